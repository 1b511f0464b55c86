package broker

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"intraday/internal/models"
	"intraday/pkg/utils"
)

// paper.go - бумажный брокер для backtest режима
//
// Модель исполнения:
//   - market ордер исполняется немедленно по последней известной цене
//   - limit ордер исполняется на следующем баре по лимитной цене,
//     если бар её пересёк (low <= limit <= high); иначе остаётся working
//
// Проскальзывание не моделируется. Подтверждения доставляются
// синхронно внутри вызова: цикл решений однопоточный.

// Ошибки бумажного брокера
var (
	ErrStrategyClosed = errors.New("paper broker: strategy closed")
	ErrUnknownOrder   = errors.New("paper broker: unknown order ref")
	ErrNoMarketPrice  = errors.New("paper broker: no market price yet")
)

type workingOrder struct {
	ref string
	req OrderRequest
}

// PaperBroker - симулятор исполнения ордеров
type PaperBroker struct {
	dollarPerPoint float64
	commission     float64
	logger         *zap.Logger

	lastPrice float64
	orderSeq  int
	working   []*workingOrder

	// Текущая позиция счёта
	position models.AccountPosition

	netProfit float64
	closed    bool

	orderFn    func(models.OrderUpdate)
	positionFn func(models.AccountPosition)
}

// NewPaperBroker создаёт бумажный брокер.
// commission - за round trip, списывается при закрытии позиции.
func NewPaperBroker(dollarPerPoint, commission float64, logger *zap.Logger) *PaperBroker {
	return &PaperBroker{
		dollarPerPoint: dollarPerPoint,
		commission:     commission,
		logger:         logger,
		position:       models.AccountPosition{Side: models.SideFlat},
	}
}

func (b *PaperBroker) OnOrderUpdate(fn func(models.OrderUpdate)) {
	b.orderFn = fn
}

func (b *PaperBroker) OnAccountPosition(fn func(models.AccountPosition)) {
	b.positionFn = fn
}

// Submit выставляет ордер. Market исполняется немедленно,
// limit откладывается до следующего бара.
func (b *PaperBroker) Submit(req OrderRequest) (string, error) {
	if b.closed {
		return "", ErrStrategyClosed
	}

	b.orderSeq++
	ref := fmt.Sprintf("PB-%d", b.orderSeq)

	if req.OrderType == models.OrderTypeMarket {
		price := b.lastPrice
		if price == 0 {
			if req.LimitPrice == 0 {
				return "", ErrNoMarketPrice
			}
			price = req.LimitPrice
		}
		b.fill(ref, req, price)
		return ref, nil
	}

	b.working = append(b.working, &workingOrder{ref: ref, req: req})
	b.emitOrder(models.OrderUpdate{
		Ref:       ref,
		Status:    models.OrderStatusWorking,
		Quantity:  req.Quantity,
		Timestamp: time.Now(),
	})
	return ref, nil
}

// Cancel снимает работающий limit ордер
func (b *PaperBroker) Cancel(ref string) error {
	for i, w := range b.working {
		if w.ref == ref {
			b.working = append(b.working[:i], b.working[i+1:]...)
			b.emitOrder(models.OrderUpdate{
				Ref:       ref,
				Status:    models.OrderStatusCancelled,
				Quantity:  w.req.Quantity,
				Timestamp: time.Now(),
			})
			return nil
		}
	}
	return ErrUnknownOrder
}

// CloseStrategy снимает все ордера, закрывает позицию по рынку
// и запрещает дальнейшие Submit
func (b *PaperBroker) CloseStrategy() error {
	for len(b.working) > 0 {
		if err := b.Cancel(b.working[0].ref); err != nil {
			return err
		}
	}

	if b.position.Side != models.SideFlat && b.lastPrice > 0 {
		b.orderSeq++
		b.fill(fmt.Sprintf("PB-%d", b.orderSeq), OrderRequest{
			Side:      models.Opposite(b.position.Side),
			Quantity:  b.position.Quantity,
			OrderType: models.OrderTypeMarket,
			Exit:      true,
		}, b.lastPrice)
	}

	b.closed = true
	b.logger.Warn("paper broker: strategy closed, no further orders accepted")
	return nil
}

// NetProfit возвращает накопленный реализованный PNL
func (b *PaperBroker) NetProfit() float64 {
	return b.netProfit
}

// Position возвращает текущую позицию счёта
func (b *PaperBroker) Position() models.AccountPosition {
	return b.position
}

// OnBar продвигает симуляцию: обновляет последнюю цену и исполняет
// limit ордера, которые пересёк бар
func (b *PaperBroker) OnBar(bar models.Bar) {
	b.lastPrice = bar.Close

	remaining := b.working[:0]
	for _, w := range b.working {
		if bar.Low <= w.req.LimitPrice && w.req.LimitPrice <= bar.High {
			b.fill(w.ref, w.req, w.req.LimitPrice)
		} else {
			remaining = append(remaining, w)
		}
	}
	b.working = remaining
}

// fill исполняет ордер по цене price и доставляет подтверждения
func (b *PaperBroker) fill(ref string, req OrderRequest, price float64) {
	if req.Exit {
		pnl := utils.EstimatePnl(b.position.Side, b.position.AvgPrice, price, b.position.Quantity, b.dollarPerPoint, b.commission)
		b.netProfit += pnl
		b.position = models.AccountPosition{Side: models.SideFlat}
	} else {
		b.position = models.AccountPosition{
			Side:     req.Side,
			Quantity: req.Quantity,
			AvgPrice: price,
		}
	}

	b.emitOrder(models.OrderUpdate{
		Ref:          ref,
		Status:       models.OrderStatusFilled,
		Quantity:     req.Quantity,
		FilledQty:    req.Quantity,
		AvgFillPrice: price,
		Timestamp:    time.Now(),
	})
	b.emitPosition(b.position)
}

func (b *PaperBroker) emitOrder(u models.OrderUpdate) {
	if b.orderFn != nil {
		b.orderFn(u)
	}
}

func (b *PaperBroker) emitPosition(p models.AccountPosition) {
	if b.positionFn != nil {
		b.positionFn(p)
	}
}
