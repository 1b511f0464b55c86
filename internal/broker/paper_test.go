package broker

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"intraday/internal/models"
)

func newTestBroker() (*PaperBroker, *[]models.OrderUpdate, *[]models.AccountPosition) {
	b := NewPaperBroker(50, 4.5, zap.NewNop())

	var orders []models.OrderUpdate
	var positions []models.AccountPosition
	b.OnOrderUpdate(func(u models.OrderUpdate) { orders = append(orders, u) })
	b.OnAccountPosition(func(p models.AccountPosition) { positions = append(positions, p) })

	return b, &orders, &positions
}

func bar(low, high, close float64) models.Bar {
	return models.Bar{Low: low, High: high, Close: close}
}

// TestLimitFillsOnNextBar проверяет что limit исполняется только
// когда бар пересекает лимитную цену
func TestLimitFillsOnNextBar(t *testing.T) {
	b, orders, positions := newTestBroker()

	ref, err := b.Submit(OrderRequest{
		Side:       models.SideLong,
		Quantity:   1,
		OrderType:  models.OrderTypeLimit,
		LimitPrice: 100,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(*orders) != 1 || (*orders)[0].Status != models.OrderStatusWorking {
		t.Fatalf("expected working ack, got %+v", *orders)
	}

	// Бар не дотянулся до лимита
	b.OnBar(bar(100.5, 101.5, 101))
	if len(*orders) != 1 {
		t.Fatal("order must not fill when bar does not cross limit")
	}

	// Бар пересёк лимит
	b.OnBar(bar(99.75, 100.5, 100.25))
	last := (*orders)[len(*orders)-1]
	if last.Ref != ref || last.Status != models.OrderStatusFilled {
		t.Fatalf("expected fill for %s, got %+v", ref, last)
	}
	if last.AvgFillPrice != 100 {
		t.Errorf("fill price = %v, want limit price 100", last.AvgFillPrice)
	}

	pos := (*positions)[len(*positions)-1]
	if pos.Side != models.SideLong || pos.Quantity != 1 || pos.AvgPrice != 100 {
		t.Errorf("unexpected account position: %+v", pos)
	}
}

// TestMarketFillsImmediately проверяет немедленное исполнение market ордера
func TestMarketFillsImmediately(t *testing.T) {
	b, orders, _ := newTestBroker()
	b.OnBar(bar(99, 101, 100.5))

	_, err := b.Submit(OrderRequest{
		Side:      models.SideShort,
		Quantity:  2,
		OrderType: models.OrderTypeMarket,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(*orders) != 1 || (*orders)[0].Status != models.OrderStatusFilled {
		t.Fatalf("expected immediate fill, got %+v", *orders)
	}
	if (*orders)[0].AvgFillPrice != 100.5 {
		t.Errorf("fill price = %v, want last close 100.5", (*orders)[0].AvgFillPrice)
	}
}

// TestRoundTripNetProfit проверяет учёт реализованного PNL с комиссией
func TestRoundTripNetProfit(t *testing.T) {
	b, _, positions := newTestBroker()
	b.OnBar(bar(99, 101, 100))

	if _, err := b.Submit(OrderRequest{Side: models.SideLong, Quantity: 1, OrderType: models.OrderTypeMarket}); err != nil {
		t.Fatalf("entry failed: %v", err)
	}

	b.OnBar(bar(101, 103, 102))
	if _, err := b.Submit(OrderRequest{Side: models.SideShort, Quantity: 1, OrderType: models.OrderTypeMarket, Exit: true}); err != nil {
		t.Fatalf("exit failed: %v", err)
	}

	// (102-100) * 50 * 1 - 4.5
	want := 95.5
	if math.Abs(b.NetProfit()-want) > 1e-9 {
		t.Errorf("NetProfit = %v, want %v", b.NetProfit(), want)
	}

	last := (*positions)[len(*positions)-1]
	if last.Side != models.SideFlat {
		t.Errorf("account must be flat after exit, got %+v", last)
	}
}

// TestCancelRemovesWorkingOrder проверяет снятие limit ордера
func TestCancelRemovesWorkingOrder(t *testing.T) {
	b, orders, _ := newTestBroker()

	ref, err := b.Submit(OrderRequest{
		Side:       models.SideLong,
		Quantity:   1,
		OrderType:  models.OrderTypeLimit,
		LimitPrice: 100,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := b.Cancel(ref); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	last := (*orders)[len(*orders)-1]
	if last.Status != models.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %+v", last)
	}

	// Бар через лимит исполнять больше нечего
	b.OnBar(bar(99, 101, 100))
	if len(*orders) != 2 {
		t.Error("cancelled order must not fill")
	}

	if err := b.Cancel("PB-404"); err != ErrUnknownOrder {
		t.Errorf("expected ErrUnknownOrder, got %v", err)
	}
}

// TestCloseStrategy проверяет аварийную остановку: снятие ордеров,
// закрытие позиции, запрет дальнейших Submit
func TestCloseStrategy(t *testing.T) {
	b, _, positions := newTestBroker()
	b.OnBar(bar(99, 101, 100))

	if _, err := b.Submit(OrderRequest{Side: models.SideLong, Quantity: 1, OrderType: models.OrderTypeMarket}); err != nil {
		t.Fatalf("entry failed: %v", err)
	}
	if _, err := b.Submit(OrderRequest{Side: models.SideShort, Quantity: 1, OrderType: models.OrderTypeLimit, LimitPrice: 105, Exit: true}); err != nil {
		t.Fatalf("working exit failed: %v", err)
	}

	if err := b.CloseStrategy(); err != nil {
		t.Fatalf("CloseStrategy failed: %v", err)
	}

	last := (*positions)[len(*positions)-1]
	if last.Side != models.SideFlat {
		t.Errorf("position must be flat after CloseStrategy, got %+v", last)
	}

	if _, err := b.Submit(OrderRequest{Side: models.SideLong, Quantity: 1, OrderType: models.OrderTypeMarket}); err != ErrStrategyClosed {
		t.Errorf("expected ErrStrategyClosed, got %v", err)
	}
}
