package bot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"intraday/internal/broker"
	"intraday/internal/models"
)

// stubBroker - управляемый из теста брокер: записывает запросы,
// подтверждения доставляются тестом напрямую в трекер
type stubBroker struct {
	seq        int
	submits    []broker.OrderRequest
	cancels    []string
	submitErr  error
	closedCall bool
	orderFn    func(models.OrderUpdate)
	positionFn func(models.AccountPosition)
}

func (b *stubBroker) Submit(req broker.OrderRequest) (string, error) {
	if b.submitErr != nil {
		return "", b.submitErr
	}
	b.seq++
	b.submits = append(b.submits, req)
	return fmt.Sprintf("S-%d", b.seq), nil
}

func (b *stubBroker) Cancel(ref string) error {
	b.cancels = append(b.cancels, ref)
	return nil
}

func (b *stubBroker) CloseStrategy() error {
	b.closedCall = true
	return nil
}

func (b *stubBroker) NetProfit() float64 { return 0 }

func (b *stubBroker) OnOrderUpdate(fn func(models.OrderUpdate))         { b.orderFn = fn }
func (b *stubBroker) OnAccountPosition(fn func(models.AccountPosition)) { b.positionFn = fn }

func (b *stubBroker) lastRef() string {
	return fmt.Sprintf("S-%d", b.seq)
}

func filled(ref string, qty int, price float64) models.OrderUpdate {
	return models.OrderUpdate{
		Ref:          ref,
		Status:       models.OrderStatusFilled,
		Quantity:     qty,
		FilledQty:    qty,
		AvgFillPrice: price,
		Timestamp:    time.Now(),
	}
}

// openPosition проводит трекер через вход и возвращает его в состоянии OPEN
func openPosition(t *testing.T, brk *stubBroker, side string, entry float64) *PositionTracker {
	t.Helper()
	pt := NewPositionTracker(brk, zap.NewNop())
	if err := pt.Enter(side, 2, models.OrderTypeLimit, entry); err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	if _, err := pt.OnOrderUpdate(filled(brk.lastRef(), 2, entry)); err != nil {
		t.Fatalf("entry fill failed: %v", err)
	}
	if pt.State() != models.StateOpen {
		t.Fatalf("state = %s, want OPEN", pt.State())
	}
	return pt
}

// ============================================================
// Жизненный цикл входа
// ============================================================

func TestPositionTrackerEntryLifecycle(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)

	if pt.Side() != models.SideLong {
		t.Errorf("side = %s, want long", pt.Side())
	}
	if pt.EntryPrice() != 100 {
		t.Errorf("entry price = %v, want 100", pt.EntryPrice())
	}
	if pt.Quantity() != 2 {
		t.Errorf("quantity = %d, want 2", pt.Quantity())
	}
}

func TestPositionTrackerEntryOnlyFromFlat(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)

	if err := pt.Enter(models.SideShort, 1, models.OrderTypeLimit, 99); !errors.Is(err, ErrNotFlat) {
		t.Fatalf("entry from OPEN should return ErrNotFlat, got %v", err)
	}
}

func TestPositionTrackerEntryCancelledResetsToFlat(t *testing.T) {
	brk := &stubBroker{}
	pt := NewPositionTracker(brk, zap.NewNop())
	if err := pt.Enter(models.SideLong, 2, models.OrderTypeLimit, 100); err != nil {
		t.Fatalf("enter failed: %v", err)
	}

	ev, err := pt.OnOrderUpdate(models.OrderUpdate{Ref: brk.lastRef(), Status: models.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("cancel processing failed: %v", err)
	}
	if ev.Kind != FillEntryCancelled {
		t.Fatalf("event = %s, want entry_cancelled", ev.Kind)
	}
	if pt.State() != models.StateFlat {
		t.Fatalf("state = %s, want FLAT after cancel", pt.State())
	}

	// После снятия вход разрешён снова
	if err := pt.Enter(models.SideLong, 2, models.OrderTypeLimit, 99); err != nil {
		t.Fatalf("re-entry after cancel should succeed: %v", err)
	}
}

func TestPositionTrackerEntryRejectedIsRecoverable(t *testing.T) {
	brk := &stubBroker{}
	pt := NewPositionTracker(brk, zap.NewNop())
	if err := pt.Enter(models.SideShort, 1, models.OrderTypeMarket, 0); err != nil {
		t.Fatalf("enter failed: %v", err)
	}

	ev, err := pt.OnOrderUpdate(models.OrderUpdate{
		Ref:          brk.lastRef(),
		Status:       models.OrderStatusRejected,
		ErrorMessage: "insufficient margin",
	})
	if err != nil {
		t.Fatalf("reject processing failed: %v", err)
	}
	if ev.Kind != FillEntryRejected {
		t.Fatalf("event = %s, want entry_rejected", ev.Kind)
	}
	if pt.State() != models.StateFlat {
		t.Fatalf("state = %s, want FLAT after reject", pt.State())
	}
}

func TestPositionTrackerPartialFillKeepsWaiting(t *testing.T) {
	brk := &stubBroker{}
	pt := NewPositionTracker(brk, zap.NewNop())
	if err := pt.Enter(models.SideLong, 3, models.OrderTypeLimit, 100); err != nil {
		t.Fatalf("enter failed: %v", err)
	}

	ev, err := pt.OnOrderUpdate(models.OrderUpdate{
		Ref:          brk.lastRef(),
		Status:       models.OrderStatusPartFilled,
		Quantity:     3,
		FilledQty:    1,
		AvgFillPrice: 100,
	})
	if err != nil {
		t.Fatalf("partial fill processing failed: %v", err)
	}
	if ev.Kind != FillPartial {
		t.Fatalf("event = %s, want partial", ev.Kind)
	}
	if pt.State() != models.StateEntryPending {
		t.Fatalf("state = %s, should stay ENTRY_PENDING on partial fill", pt.State())
	}
}

// ============================================================
// Жизненный цикл выхода
// ============================================================

func TestPositionTrackerExitCarriesTradeSnapshot(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)

	if err := pt.Flatten(models.OrderTypeLimit, 103, models.ExitReasonProfitChase); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}

	ev, err := pt.OnOrderUpdate(filled(brk.lastRef(), 2, 103))
	if err != nil {
		t.Fatalf("exit fill failed: %v", err)
	}
	if ev.Kind != FillExit {
		t.Fatalf("event = %s, want exit", ev.Kind)
	}

	// Снимок сделки снят до сброса трекера
	if ev.Side != models.SideLong || ev.EntryPrice != 100 || ev.Quantity != 2 {
		t.Fatalf("trade snapshot lost: side=%s entry=%v qty=%d", ev.Side, ev.EntryPrice, ev.Quantity)
	}
	if ev.Reason != models.ExitReasonProfitChase {
		t.Fatalf("exit reason = %s, want profit_chase", ev.Reason)
	}
	if pt.State() != models.StateFlat {
		t.Fatalf("state = %s, want FLAT after exit fill", pt.State())
	}
}

func TestPositionTrackerFlattenIdempotent(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideShort, 100)

	if err := pt.Flatten(models.OrderTypeLimit, 99, models.ExitReasonSoftDeck); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	ordersBefore := len(brk.submits)

	// Повторный flatten не должен выставлять новый ордер
	if err := pt.Flatten(models.OrderTypeLimit, 98, models.ExitReasonSoftDeck); err != nil {
		t.Fatalf("repeated flatten should be a no-op, got %v", err)
	}
	if len(brk.submits) != ordersBefore {
		t.Fatalf("repeated flatten submitted a duplicate order")
	}
}

func TestPositionTrackerEscalateExit(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)

	if err := pt.Flatten(models.OrderTypeLimit, 101, models.ExitReasonSessionEnd); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	limitRef := brk.lastRef()

	if err := pt.EscalateExit(); err != nil {
		t.Fatalf("escalation failed: %v", err)
	}
	if len(brk.cancels) != 1 || brk.cancels[0] != limitRef {
		t.Fatalf("escalation must cancel the limit exit %s, cancels=%v", limitRef, brk.cancels)
	}
	last := brk.submits[len(brk.submits)-1]
	if last.OrderType != models.OrderTypeMarket || !last.Exit {
		t.Fatalf("escalation must submit a market exit, got %+v", last)
	}
	if !pt.Escalated() {
		t.Fatal("escalated flag should be set")
	}

	// Вторая эскалация - no-op
	orders := len(brk.submits)
	if err := pt.EscalateExit(); err != nil {
		t.Fatalf("second escalation should be a no-op: %v", err)
	}
	if len(brk.submits) != orders {
		t.Fatal("second escalation submitted an extra order")
	}

	// Market выход исполняется, позиция закрыта
	ev, err := pt.OnOrderUpdate(filled(brk.lastRef(), 2, 100.5))
	if err != nil || ev.Kind != FillExit {
		t.Fatalf("escalated exit fill: ev=%s err=%v", ev.Kind, err)
	}
}

func TestPositionTrackerExitRejectedIsStuck(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)

	if err := pt.Flatten(models.OrderTypeMarket, 0, models.ExitReasonHardDeck); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}

	ev, err := pt.OnOrderUpdate(models.OrderUpdate{
		Ref:          brk.lastRef(),
		Status:       models.OrderStatusRejected,
		ErrorMessage: "exchange reject",
	})
	if !errors.Is(err, ErrStuckPosition) {
		t.Fatalf("exit reject must surface ErrStuckPosition, got %v", err)
	}
	if ev.Kind != FillExitStuck {
		t.Fatalf("event = %s, want exit_stuck", ev.Kind)
	}
}

// ============================================================
// Сверка и latches
// ============================================================

func TestPositionTrackerForceFlat(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)
	pt.ArmProfitChase()
	pt.MarkProfitPercentMet()

	pt.ForceFlat()

	if pt.State() != models.StateFlat {
		t.Fatalf("state = %s, want FLAT after force reset", pt.State())
	}
	if pt.ProfitChaseArmed() || pt.ProfitPercentMet() {
		t.Fatal("force reset must clear exit latches")
	}
}

func TestPositionTrackerUnknownRefIgnored(t *testing.T) {
	brk := &stubBroker{}
	pt := openPosition(t, brk, models.SideLong, 100)

	ev, err := pt.OnOrderUpdate(filled("GHOST-1", 2, 50))
	if err != nil {
		t.Fatalf("unknown ref should not error: %v", err)
	}
	if ev.Kind != FillNone {
		t.Fatalf("event = %s, want none for unknown ref", ev.Kind)
	}
	if pt.State() != models.StateOpen {
		t.Fatal("unknown ref must not change state")
	}
}
