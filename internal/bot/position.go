package bot

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"intraday/internal/broker"
	"intraday/internal/models"
)

// position.go - трекер собственной (виртуальной) позиции стратегии
//
// Позиция ведётся независимо от авторитетного счёта брокера: трекер
// отражает то, во что стратегия верит по событиям жизненного цикла
// своих ордеров. Расхождения устраняет сверка по account-flat callback
// (ForceFlat), где истина всегда на стороне брокера.

// Ошибки трекера
var (
	ErrNotFlat        = errors.New("position: entry allowed only from flat state")
	ErrNotOpen        = errors.New("position: flatten allowed only from open state")
	ErrStuckPosition  = errors.New("position: exit order rejected while flattening, position may be stuck")
	ErrUnexpectedFill = errors.New("position: order update for unknown ref")
)

// Виды событий исполнения, которые трекер отдаёт движку
const (
	FillNone           = "none"            // обновление без смены состояния
	FillEntry          = "entry"           // вход исполнен полностью, позиция открыта
	FillExit           = "exit"            // выход исполнен, позиция закрыта
	FillPartial        = "partial"         // частичное исполнение, требуется наблюдение
	FillEntryCancelled = "entry_cancelled" // вход снят, виртуальное состояние сброшено
	FillEntryRejected  = "entry_rejected"  // вход отклонён, можно повторить на следующем баре
	FillExitStuck      = "exit_stuck"      // выход отклонён при flatten - fatal
)

// FillEvent - результат обработки ордерного события.
// Для FillExit несёт снимок закрытой сделки: трекер к этому моменту
// уже сброшен в Flat.
type FillEvent struct {
	Kind   string
	Price  float64 // средняя цена исполнения
	Reason string  // причина выхода (для FillExit)
	Update models.OrderUpdate

	// Снимок сделки для леджера (только FillExit)
	Side       string
	EntryPrice float64
	EntryTime  time.Time
	Quantity   int
}

// PositionTracker - состояние позиции и жизненный цикл её ордеров
type PositionTracker struct {
	brk    broker.Broker
	logger *zap.Logger

	state string
	side  string

	entryPrice float64
	entryTime  time.Time
	quantity   int

	entryOrderRef string
	exitOrderRef  string

	flatteningInProgress bool
	exitOrderType        string
	exitReason           string

	// escalated: limit→market эскалация выполнена (максимум одна на flatten)
	escalated bool

	// One-way latches выходной логики, сбрасываются при переходе в Flat
	profitChaseArmed bool
	profitPercentMet bool
}

// NewPositionTracker создаёт трекер в состоянии Flat
func NewPositionTracker(brk broker.Broker, logger *zap.Logger) *PositionTracker {
	return &PositionTracker{
		brk:    brk,
		logger: logger,
		state:  models.StateFlat,
		side:   models.SideFlat,
	}
}

// transition выполняет переход по state machine с проверкой допустимости
func (pt *PositionTracker) transition(to string) {
	if !CanTransition(pt.state, to) {
		// Недопустимый переход - дефект логики, фиксируем громко
		pt.logger.Error("invalid position state transition",
			zap.String("from", pt.state),
			zap.String("to", to))
	}
	pt.state = to
}

// reset возвращает трекер в Flat и восстанавливает инварианты:
// нет ссылок на ордера, нет flatten в процессе, latches сняты
func (pt *PositionTracker) reset() {
	pt.state = models.StateFlat
	pt.side = models.SideFlat
	pt.entryOrderRef = ""
	pt.exitOrderRef = ""
	pt.flatteningInProgress = false
	pt.escalated = false
	pt.profitChaseArmed = false
	pt.profitPercentMet = false
	pt.exitReason = ""
	pt.exitOrderType = ""
}

// Enter выставляет ордер на вход фиксированным лотом.
// Допустим только из Flat без ожидающего входа; иначе логируемый no-op.
func (pt *PositionTracker) Enter(side string, quantity int, orderType string, limitPrice float64) error {
	if pt.state != models.StateFlat || pt.entryOrderRef != "" {
		pt.logger.Warn("entry skipped: not flat or entry already pending",
			zap.String("state", pt.state),
			zap.String("pending_ref", pt.entryOrderRef))
		return ErrNotFlat
	}

	ref, err := pt.brk.Submit(broker.OrderRequest{
		Side:       side,
		Quantity:   quantity,
		OrderType:  orderType,
		LimitPrice: limitPrice,
	})
	if err != nil {
		return fmt.Errorf("entry submit failed: %w", err)
	}

	pt.entryOrderRef = ref
	pt.side = side
	pt.quantity = quantity
	pt.transition(models.StateEntryPending)

	pt.logger.Info("entry order submitted",
		zap.String("ref", ref),
		zap.String("side", side),
		zap.String("type", orderType),
		zap.Float64("limit", limitPrice))
	return nil
}

// Flatten выставляет ордер на закрытие позиции.
// Идемпотентен: повторный вызов при активном flatten ничего не выставляет.
func (pt *PositionTracker) Flatten(orderType string, limitPrice float64, reason string) error {
	if pt.flatteningInProgress {
		pt.logger.Info("flatten already in progress, skipping",
			zap.String("ref", pt.exitOrderRef))
		return nil
	}
	if pt.state != models.StateOpen {
		pt.logger.Warn("flatten skipped: no open position", zap.String("state", pt.state))
		return ErrNotOpen
	}

	ref, err := pt.brk.Submit(broker.OrderRequest{
		Side:       models.Opposite(pt.side),
		Quantity:   pt.quantity,
		OrderType:  orderType,
		LimitPrice: limitPrice,
		Exit:       true,
	})
	if err != nil {
		return fmt.Errorf("exit submit failed: %w", err)
	}

	pt.exitOrderRef = ref
	pt.flatteningInProgress = true
	pt.exitOrderType = orderType
	pt.exitReason = reason
	pt.transition(models.StateExitPending)

	pt.logger.Info("exit order submitted",
		zap.String("ref", ref),
		zap.String("type", orderType),
		zap.Float64("limit", limitPrice),
		zap.String("reason", reason))
	return nil
}

// EscalateExit заменяет неисполненный limit выход на market.
// Не более одной эскалации на попытку flatten.
func (pt *PositionTracker) EscalateExit() error {
	if !pt.flatteningInProgress || pt.escalated || pt.exitOrderType != models.OrderTypeLimit {
		return nil
	}

	if err := pt.brk.Cancel(pt.exitOrderRef); err != nil {
		pt.logger.Warn("failed to cancel limit exit before escalation", zap.Error(err))
	}

	ref, err := pt.brk.Submit(broker.OrderRequest{
		Side:      models.Opposite(pt.side),
		Quantity:  pt.quantity,
		OrderType: models.OrderTypeMarket,
		Exit:      true,
	})
	if err != nil {
		return fmt.Errorf("exit escalation failed: %w", err)
	}

	pt.exitOrderRef = ref
	pt.exitOrderType = models.OrderTypeMarket
	pt.escalated = true

	pt.logger.Warn("limit exit escalated to market", zap.String("ref", ref))
	return nil
}

// CancelEntry снимает неисполненный ордер на вход (лимит живёт один бар)
func (pt *PositionTracker) CancelEntry() error {
	if pt.state != models.StateEntryPending || pt.entryOrderRef == "" {
		return nil
	}
	return pt.brk.Cancel(pt.entryOrderRef)
}

// OnOrderUpdate обрабатывает событие жизненного цикла ордера
func (pt *PositionTracker) OnOrderUpdate(u models.OrderUpdate) (FillEvent, error) {
	switch {
	case pt.entryOrderRef != "" && u.Ref == pt.entryOrderRef:
		return pt.onEntryUpdate(u)
	case pt.exitOrderRef != "" && u.Ref == pt.exitOrderRef:
		return pt.onExitUpdate(u)
	default:
		if HasPendingOrder(pt.state) {
			pt.logger.Warn("order update for unknown ref", zap.String("ref", u.Ref))
		}
		return FillEvent{Kind: FillNone, Update: u}, nil
	}
}

func (pt *PositionTracker) onEntryUpdate(u models.OrderUpdate) (FillEvent, error) {
	switch u.Status {
	case models.OrderStatusFilled:
		if u.FilledQty < u.Quantity {
			// Терминальный статус с неполным объёмом - наблюдение вручную
			return FillEvent{Kind: FillPartial, Price: u.AvgFillPrice, Update: u}, nil
		}
		pt.entryPrice = u.AvgFillPrice
		pt.entryTime = u.Timestamp
		pt.entryOrderRef = ""
		pt.transition(models.StateOpen)
		return FillEvent{Kind: FillEntry, Price: u.AvgFillPrice, Update: u}, nil

	case models.OrderStatusPartFilled:
		// Остаёмся в ожидании, предупреждение наверх
		return FillEvent{Kind: FillPartial, Price: u.AvgFillPrice, Update: u}, nil

	case models.OrderStatusCancelled:
		// Снятие входа считается осознанным - сброс виртуального состояния
		pt.reset()
		return FillEvent{Kind: FillEntryCancelled, Update: u}, nil

	case models.OrderStatusRejected:
		// Reject на входе recoverable: сброс и повтор на следующем баре
		pt.reset()
		return FillEvent{Kind: FillEntryRejected, Update: u}, nil
	}

	return FillEvent{Kind: FillNone, Update: u}, nil
}

func (pt *PositionTracker) onExitUpdate(u models.OrderUpdate) (FillEvent, error) {
	switch u.Status {
	case models.OrderStatusFilled:
		if u.FilledQty < u.Quantity {
			return FillEvent{Kind: FillPartial, Price: u.AvgFillPrice, Update: u}, nil
		}
		ev := FillEvent{
			Kind:       FillExit,
			Price:      u.AvgFillPrice,
			Reason:     pt.exitReason,
			Update:     u,
			Side:       pt.side,
			EntryPrice: pt.entryPrice,
			EntryTime:  pt.entryTime,
			Quantity:   pt.quantity,
		}
		pt.reset()
		return ev, nil

	case models.OrderStatusPartFilled:
		return FillEvent{Kind: FillPartial, Price: u.AvgFillPrice, Update: u}, nil

	case models.OrderStatusCancelled:
		// Выход снят (эскалация или вручную): flatten продолжается,
		// состояние не меняется до нового терминального события
		return FillEvent{Kind: FillNone, Update: u}, nil

	case models.OrderStatusRejected:
		// Закрытие не подтверждено - позиция может зависнуть.
		// Локально не разрешимо, обязано уйти наверх.
		return FillEvent{Kind: FillExitStuck, Update: u}, ErrStuckPosition
	}

	return FillEvent{Kind: FillNone, Update: u}, nil
}

// ForceFlat - авторитетная сверка: брокер сообщил что счёт плоский.
// Виртуальное состояние сбрасывается независимо от того, во что верил трекер.
func (pt *PositionTracker) ForceFlat() {
	if pt.state != models.StateFlat {
		pt.logger.Info("position force-reset to flat by broker reconciliation",
			zap.String("previous_state", pt.state))
	}
	pt.reset()
}

// ============================================================
// Latches выходной логики
// ============================================================

// ArmProfitChase взводит one-way latch профит-выхода
func (pt *PositionTracker) ArmProfitChase() {
	if !pt.profitChaseArmed {
		pt.profitChaseArmed = true
		pt.logger.Info("profit chasing armed", zap.Float64("entry_price", pt.entryPrice))
	}
}

// MarkProfitPercentMet взводит one-way latch market-shift выхода
func (pt *PositionTracker) MarkProfitPercentMet() {
	if !pt.profitPercentMet {
		pt.profitPercentMet = true
		pt.logger.Info("profit percentage target touched", zap.Float64("entry_price", pt.entryPrice))
	}
}

// ============================================================
// Снимок состояния
// ============================================================

func (pt *PositionTracker) State() string          { return pt.state }
func (pt *PositionTracker) Side() string           { return pt.side }
func (pt *PositionTracker) EntryPrice() float64    { return pt.entryPrice }
func (pt *PositionTracker) EntryTime() time.Time   { return pt.entryTime }
func (pt *PositionTracker) Quantity() int          { return pt.quantity }
func (pt *PositionTracker) Flattening() bool       { return pt.flatteningInProgress }
func (pt *PositionTracker) Escalated() bool        { return pt.escalated }
func (pt *PositionTracker) ProfitChaseArmed() bool { return pt.profitChaseArmed }
func (pt *PositionTracker) ProfitPercentMet() bool { return pt.profitPercentMet }
func (pt *PositionTracker) ExitReason() string     { return pt.exitReason }
