package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"intraday/internal/broker"
	"intraday/internal/models"
	"intraday/internal/predictor"
	"intraday/internal/statefiles"
	"intraday/pkg/utils"
)

// engine.go - событийное ядро стратегии
//
// Ядро реагирует на четыре вида событий хост-платформы: первичный бар,
// вторичный (более мелкий) бар, обновление ордера и авторитетное
// обновление позиции счёта. Решения строго последовательны: каждый
// публичный метод берёт общий mutex, поэтому запросы к предиктору
// уходят в порядке прихода баров и никогда не параллелятся.
//
// Порядок обработки первичного бара:
//  1. границы дня/сессии (новый день, cutoff, эскалация незакрытого выхода)
//  2. запрос сигнала у предиктора (прогрев первых ответов дня отбрасывается)
//  3. цепочка выходов для открытой позиции
//  4. гейты контуров и политика входа для плоской позиции

// Режимы развёртывания
const (
	ModeLive     = "live"
	ModeBacktest = "backtest"
)

// SignalSource - контракт сигнального канала (реализуется predictor.Client)
type SignalSource interface {
	RequestSignal(ctx context.Context, fv *models.FeatureVector) (models.SignalClass, error)
	Reset(ctx context.Context) error
	StartDay()
	Seq() int
	Connected() bool
}

// TradeLedger - контракт леджера реализованных сделок
type TradeLedger interface {
	Record(trade *models.TradeRecord) error
	MonthToDatePnl(symbol string, from time.Time) (float64, error)
}

// Notifier - получатель снимков состояния и уведомлений (websocket hub)
type Notifier interface {
	BroadcastRuntime(rt models.StrategyRuntime)
	BroadcastNotification(n models.Notification)
}

// StrategyConfig - полная конфигурация одной стратегии.
// Все различия вариантов стратегии выражаются этими полями.
type StrategyConfig struct {
	Symbol         string
	Mode           string // live, backtest
	Quantity       int
	TickSize       float64
	DollarPerPoint float64
	Commission     float64 // за round trip
	EntryOrderType string  // limit или market

	Policy     PolicyConfig
	FilterMode string
	Filters    FilterThresholds

	UseMarketView   bool // veto по файлу *.mkt
	SimpleChaseStop bool // chasing стоп на любом падении ниже вчерашнего капитала

	StartingCapital float64
	VIXThreshold    float64
	LowVol          models.RegimeParameters
	HighVol         models.RegimeParameters

	Session SessionConfig
}

// Engine - ядро стратегии
type Engine struct {
	mu sync.Mutex

	cfg    StrategyConfig
	logger *zap.Logger

	signal    SignalSource
	secondary SignalSource // подтверждающий предиктор, nil если выключен
	brk       broker.Broker
	ledger    TradeLedger
	files     statefiles.Provider
	hub       Notifier

	policy  *PolicyEngine
	daily   *DailyGovernor
	monthly *MonthlyGovernor
	session *SessionController
	tracker *PositionTracker

	paused bool
	closed bool // стратегия полностью остановлена (CloseStrategy)

	prevClose    float64
	lastSignal   models.SignalClass
	lastBarTime  time.Time
	regime       models.VolatilityRegime
	currentMonth time.Time

	// Подтверждающий канал опрашивается на каждом баре, чтобы его
	// последовательность и прогрев шли в ногу с первичным; результат
	// потребляется при попытке входа
	confirmSeq  int
	lastConfirm models.SignalClass
	confirmErr  error

	// Сверка с брокером: оценки, применённые к виртуальному капиталу
	// с момента последнего подтверждённого flat
	lastNetProfit      float64
	estimatedSinceFlat float64

	// Очереди событий брокера: бумажный брокер доставляет подтверждения
	// синхронно внутри Submit, когда ссылка на ордер ещё не записана.
	// События копятся и разбираются после возврата из вызова брокера.
	pendingOrders    []models.OrderUpdate
	pendingPositions []models.AccountPosition
}

// NewEngine собирает ядро. Callbacks брокера регистрируются на внутренние
// очереди: в backtest подтверждения приходят на той же горутине. Живая
// хост-платформа доставляет события через публичные OnOrderUpdate /
// OnAccountPosition.
func NewEngine(
	cfg StrategyConfig,
	signal SignalSource,
	secondary SignalSource,
	brk broker.Broker,
	ledger TradeLedger,
	files statefiles.Provider,
	hub Notifier,
	logger *zap.Logger,
) (*Engine, error) {
	filter, err := BuildFilter(cfg.FilterMode, cfg.Filters)
	if err != nil {
		return nil, err
	}

	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", cfg.Quantity)
	}
	if cfg.Session.Location == nil {
		cfg.Session.Location = time.Local
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		signal:    signal,
		secondary: secondary,
		brk:       brk,
		ledger:    ledger,
		files:     files,
		hub:       hub,
		policy:    NewPolicyEngine(cfg.Policy, filter, logger),
		daily:     NewDailyGovernor(cfg.Mode == ModeBacktest, logger),
		monthly:   NewMonthlyGovernor(cfg.StartingCapital, cfg.SimpleChaseStop, files, logger),
		session:   NewSessionController(cfg.Session, logger),
		tracker:   NewPositionTracker(brk, logger),
		regime:    models.RegimeLowVol,
	}

	brk.OnOrderUpdate(e.enqueueOrder)
	brk.OnAccountPosition(e.enqueuePosition)

	return e, nil
}

// ============================================================
// События брокера
// ============================================================

// enqueueOrder вызывается брокером синхронно на горутине ядра
func (e *Engine) enqueueOrder(u models.OrderUpdate) {
	e.pendingOrders = append(e.pendingOrders, u)
}

// enqueuePosition вызывается брокером синхронно на горутине ядра
func (e *Engine) enqueuePosition(p models.AccountPosition) {
	e.pendingPositions = append(e.pendingPositions, p)
}

// OnOrderUpdate - вход для живой хост-платформы (другая горутина)
func (e *Engine) OnOrderUpdate(u models.OrderUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueueOrder(u)
	e.drainBrokerEvents()
}

// OnAccountPosition - вход для живой хост-платформы (другая горутина)
func (e *Engine) OnAccountPosition(p models.AccountPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueuePosition(p)
	e.drainBrokerEvents()
}

// drainBrokerEvents разбирает накопленные события брокера.
// Вызывается только под mutex; обработка события может породить новые
// (эскалация, сверка), поэтому цикл до пустых очередей.
func (e *Engine) drainBrokerEvents() {
	for len(e.pendingOrders) > 0 || len(e.pendingPositions) > 0 {
		orders := e.pendingOrders
		e.pendingOrders = nil
		for _, u := range orders {
			e.processOrderUpdate(u)
		}

		positions := e.pendingPositions
		e.pendingPositions = nil
		for _, p := range positions {
			e.processAccountPosition(p)
		}
	}
}

func (e *Engine) processOrderUpdate(u models.OrderUpdate) {
	ev, err := e.tracker.OnOrderUpdate(u)

	switch ev.Kind {
	case FillEntry:
		e.notify(models.NotificationTypeEntry, models.SeverityInfo,
			fmt.Sprintf("position opened: %s %d @ %.4f", e.tracker.Side(), e.tracker.Quantity(), ev.Price),
			map[string]interface{}{"ref": u.Ref, "price": ev.Price})

	case FillExit:
		e.recordTrade(ev)
		e.notify(models.NotificationTypeExit, models.SeverityInfo,
			fmt.Sprintf("position closed: %s @ %.4f (%s)", ev.Side, ev.Price, ev.Reason),
			map[string]interface{}{"ref": u.Ref, "price": ev.Price, "reason": ev.Reason})

	case FillPartial:
		// Автоматической досборки частичных исполнений нет - наблюдение вручную
		e.notify(models.NotificationTypePartialFill, models.SeverityWarning,
			fmt.Sprintf("partial fill %d/%d on %s, manual monitoring required", u.FilledQty, u.Quantity, u.Ref),
			map[string]interface{}{"ref": u.Ref, "filled": u.FilledQty, "requested": u.Quantity})

	case FillEntryCancelled:
		e.logger.Info("entry order cancelled, virtual state flattened", zap.String("ref", u.Ref))

	case FillEntryRejected:
		e.notify(models.NotificationTypeSignalError, models.SeverityWarning,
			fmt.Sprintf("entry rejected: %s, retry possible next bar", u.ErrorMessage),
			map[string]interface{}{"ref": u.Ref})

	case FillExitStuck:
		// Закрытие не подтверждено - session-fatal
		RecordHalt(e.cfg.Symbol, "stuck_exit")
		e.daily.Halt()
		e.notify(models.NotificationTypeStuckExit, models.SeverityFatal,
			fmt.Sprintf("exit order rejected while flattening: %s, position may be stuck", u.ErrorMessage),
			map[string]interface{}{"ref": u.Ref})
		e.closeStrategy("stuck exit")
	}

	if err != nil && ev.Kind != FillExitStuck {
		e.logger.Error("order update processing failed", zap.Error(err))
	}
}

// processAccountPosition - авторитетная сверка со счётом брокера
func (e *Engine) processAccountPosition(p models.AccountPosition) {
	if p.Side != models.SideFlat {
		return
	}

	if e.tracker.State() != models.StateFlat {
		e.notify(models.NotificationTypeReconcile, models.SeverityWarning,
			fmt.Sprintf("broker reports flat account while virtual state is %s, force-resetting", e.tracker.State()),
			map[string]interface{}{"virtual_state": e.tracker.State()})
		e.tracker.ForceFlat()
	}

	// Пересчёт реализованного PNL от авторитетной цифры брокера:
	// оценки, применённые при решениях о выходе, заменяются фактом
	actual := e.brk.NetProfit()
	delta := actual - e.lastNetProfit
	adjustment := delta - e.estimatedSinceFlat

	if adjustment != 0 {
		e.logger.Info("reconciling virtual capital with broker",
			zap.Float64("estimated", e.estimatedSinceFlat),
			zap.Float64("actual_delta", delta),
			zap.Float64("adjustment", adjustment))
		e.monthly.OnRealized(adjustment)
		VirtualCapital.WithLabelValues(e.cfg.Symbol).Set(e.monthly.VirtualCapital())
	}

	e.lastNetProfit = actual
	e.estimatedSinceFlat = 0
}

// recordTrade пишет закрытую сделку в леджер
func (e *Engine) recordTrade(ev FillEvent) {
	trade := &models.TradeRecord{
		Symbol:     e.cfg.Symbol,
		Side:       ev.Side,
		Quantity:   ev.Quantity,
		EntryPrice: ev.EntryPrice,
		ExitPrice:  ev.Price,
		EntryTime:  ev.EntryTime,
		ExitTime:   ev.Update.Timestamp,
		Pnl: utils.EstimatePnl(ev.Side, ev.EntryPrice, ev.Price, ev.Quantity,
			e.cfg.DollarPerPoint, e.cfg.Commission),
		ExitReason: ev.Reason,
	}

	if err := e.ledger.Record(trade); err != nil {
		e.logger.Error("failed to record trade in ledger", zap.Error(err))
	}
}

// ============================================================
// Первичный бар
// ============================================================

// OnPrimaryBar обрабатывает закрытие первичного бара
func (e *Engine) OnPrimaryBar(ctx context.Context, fv *models.FeatureVector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.drainBrokerEvents()

	bar := fv.Bar
	now := bar.End
	e.lastBarTime = now
	BarsProcessed.WithLabelValues(e.cfg.Symbol, "primary").Inc()

	if e.session.NewDay(now) {
		e.startSession(now)
	}

	// После конца сессии бары игнорируются до новой даты;
	// единственное действие - дожать незакрытый выход
	if e.session.Ended() {
		e.resolvePendingExit()
		e.prevClose = bar.Close
		e.drainBrokerEvents()
		e.broadcastRuntime()
		return
	}

	if e.session.CutoffReached(now) {
		e.endSession(ctx, bar)
		e.prevClose = bar.Close
		e.drainBrokerEvents()
		e.broadcastRuntime()
		return
	}

	// Limit выход, не исполненный к этому бару, эскалируется до market
	e.resolvePendingExit()

	// Limit вход живёт один бар: неисполненный снимается,
	// снятие сбрасывает виртуальное состояние и разрешает повтор
	if e.tracker.State() == models.StateEntryPending {
		if err := e.tracker.CancelEntry(); err != nil {
			e.logger.Warn("failed to cancel stale entry order", zap.Error(err))
		}
	}
	e.drainBrokerEvents()

	// Сигнал предиктора: строго по одному запросу на бар
	preSeq := e.signal.Seq()
	started := time.Now()
	sig, err := e.signal.RequestSignal(ctx, fv)
	RecordSignalRoundTrip(e.cfg.Symbol, float64(time.Since(started).Milliseconds()))
	UpdatePredictorStatus(e.cfg.Symbol, e.signal.Connected())

	if err != nil {
		// Transport-fatal для текущего бара: решение пропускается
		SignalErrors.WithLabelValues(e.cfg.Symbol).Inc()
		severity := models.SeverityWarning
		msg := fmt.Sprintf("predictor channel failure, bar skipped: %v", err)
		if HasOpenPosition(e.tracker.State()) {
			// Позиция открыта, а канал мёртв - наружу уходит явный алерт:
			// соединение с брокером может быть живо, закрытие вручную
			severity = models.SeverityFatal
			msg = fmt.Sprintf("predictor channel failure with OPEN position, manual intervention recommended: %v", err)
		}
		e.notify(models.NotificationTypeSignalError, severity, msg, nil)
		e.prevClose = bar.Close
		e.broadcastRuntime()
		return
	}
	e.lastSignal = sig

	// Запрос подтверждающего канала уходит на каждом баре вместе с
	// первичным: последовательности и прогрев обоих каналов идут в ногу
	if e.secondary != nil {
		e.confirmSeq = e.secondary.Seq()
		e.lastConfirm, e.confirmErr = e.secondary.RequestSignal(ctx, fv)
		if e.confirmErr != nil {
			e.logger.Warn("confirmation predictor request failed", zap.Error(e.confirmErr))
		}
	}

	// Прогрев предиктора: первые ответы дня не торгуются
	if preSeq < predictor.WarmupResponses {
		WarmupDiscards.WithLabelValues(e.cfg.Symbol).Inc()
		e.logger.Info("warm-up response discarded",
			zap.Int("seq", preSeq),
			zap.String("signal", string(sig)))
		e.prevClose = bar.Close
		e.broadcastRuntime()
		return
	}

	switch e.tracker.State() {
	case models.StateOpen:
		e.policy.UpdateLatches(e.tracker, bar)
		if dec := e.policy.DecideExit(e.tracker, fv, sig, e.prevClose); dec.Exit {
			e.executeExit(dec.Reason, bar.Close, models.OrderTypeLimit)
		}
	case models.StateFlat:
		e.tryEntry(sig, fv)
	}

	e.prevClose = bar.Close
	e.drainBrokerEvents()
	e.broadcastRuntime()
}

// resolvePendingExit эскалирует незакрытый limit выход до market
// (максимум одна эскалация на попытку закрытия)
func (e *Engine) resolvePendingExit() {
	if !e.tracker.Flattening() || e.tracker.Escalated() {
		return
	}
	if err := e.tracker.EscalateExit(); err != nil {
		e.logger.Error("exit escalation failed", zap.Error(err))
	}
	e.drainBrokerEvents()
}

// tryEntry прогоняет гейты контуров и политику входа
func (e *Engine) tryEntry(sig models.SignalClass, fv *models.FeatureVector) {
	if sig == models.SignalHold {
		return
	}

	// Каждый отказ - отдельный логируемый no-op
	if e.paused {
		e.logger.Info("entry skipped: strategy paused")
		return
	}
	if e.tracker.Flattening() {
		e.logger.Info("entry skipped: exit in progress")
		return
	}
	if !e.monthly.CanEnter() {
		e.logger.Info("entry skipped: monthly governor halt",
			zap.Float64("virtual_capital", e.monthly.VirtualCapital()))
		return
	}
	if !e.daily.CanEnter() {
		e.logger.Info("entry skipped: daily loss streak halt",
			zap.Int("consecutive_losses", e.daily.ConsecutiveLosses()))
		return
	}

	// Market view перечитывается на каждом решении о входе
	view := models.ViewNeutral
	if e.cfg.UseMarketView {
		var err error
		view, err = e.files.MarketView()
		if err != nil {
			e.logger.Warn("failed to read market view, proceeding neutral", zap.Error(err))
		}
	}

	// Подтверждающий предиктор: его прогревочные ответы не торгуются,
	// вход только при совпадении обоих сигналов
	if e.secondary != nil {
		if e.confirmErr != nil {
			e.notify(models.NotificationTypeSignalError, models.SeverityWarning,
				fmt.Sprintf("confirmation predictor failure, entry skipped: %v", e.confirmErr), nil)
			return
		}
		if e.confirmSeq < predictor.WarmupResponses {
			e.logger.Info("entry skipped: confirmation predictor warming up",
				zap.Int("seq", e.confirmSeq))
			return
		}
		if e.lastConfirm != sig {
			e.logger.Info("entry skipped: confirmation predictor disagrees",
				zap.String("primary", string(sig)),
				zap.String("confirmation", string(e.lastConfirm)))
			return
		}
	}

	action := e.policy.DecideEntry(sig, view, fv)
	if action == ActionNone {
		return
	}

	side := models.SideLong
	if action == ActionEnterShort {
		side = models.SideShort
	}

	limitPrice := utils.RoundToTick(fv.Bar.Close, e.cfg.TickSize)
	if err := e.tracker.Enter(side, e.cfg.Quantity, e.cfg.EntryOrderType, limitPrice); err != nil {
		e.logger.Warn("entry submission failed", zap.Error(err))
		return
	}

	EntriesTotal.WithLabelValues(e.cfg.Symbol, side).Inc()
	e.drainBrokerEvents()
}

// executeExit выставляет закрывающий ордер и немедленно применяет
// оценку PNL к месячному контуру (сверка с брокером придёт позже)
func (e *Engine) executeExit(reason string, price float64, orderType string) {
	side := e.tracker.Side()
	entry := e.tracker.EntryPrice()
	qty := e.tracker.Quantity()

	limitPrice := utils.RoundToTick(price, e.cfg.TickSize)
	if err := e.tracker.Flatten(orderType, limitPrice, reason); err != nil {
		e.logger.Error("flatten failed", zap.Error(err))
		return
	}

	est := utils.EstimatePnl(side, entry, price, qty, e.cfg.DollarPerPoint, e.cfg.Commission)
	e.estimatedSinceFlat += est

	dailyHaltedBefore := e.daily.Halted()
	e.scoreExit(reason, est)

	if e.monthly.OnRealized(est) {
		RecordHalt(e.cfg.Symbol, "monthly")
		e.notify(models.NotificationTypeHaltMonthly, models.SeverityFatal,
			fmt.Sprintf("monthly stop breached, capital %.2f, no entries until next month", e.monthly.VirtualCapital()),
			map[string]interface{}{"virtual_capital": e.monthly.VirtualCapital()})
	}
	VirtualCapital.WithLabelValues(e.cfg.Symbol).Set(e.monthly.VirtualCapital())
	ConsecutiveLosses.WithLabelValues(e.cfg.Symbol).Set(float64(e.daily.ConsecutiveLosses()))

	if !dailyHaltedBefore && e.daily.Halted() {
		RecordHalt(e.cfg.Symbol, "daily")
		e.notify(models.NotificationTypeHaltDaily, models.SeverityFatal,
			fmt.Sprintf("daily loss streak limit reached (%d), entries halted for the session", e.daily.ConsecutiveLosses()),
			map[string]interface{}{"consecutive_losses": e.daily.ConsecutiveLosses()})
	}

	RecordExit(e.cfg.Symbol, reason, est > 0)
	e.drainBrokerEvents()
}

// scoreExit обновляет дневной контур по причине выхода
func (e *Engine) scoreExit(reason string, est float64) {
	switch reason {
	case models.ExitReasonSoftDeck:
		DeckTriggers.WithLabelValues(e.cfg.Symbol, "soft").Inc()
		e.daily.OnLoss()
	case models.ExitReasonHardDeck:
		DeckTriggers.WithLabelValues(e.cfg.Symbol, "hard").Inc()
		e.daily.OnLoss()
	case models.ExitReasonProfitChase:
		e.daily.OnWin()
	case models.ExitReasonMarketShift:
		// Счёт по знаку реализованного результата
		if est > 0 {
			e.daily.OnWin()
		} else {
			e.daily.OnLoss()
		}
	}
	// session_end и manual не меняют серии
}

// ============================================================
// Вторичный бар (intrabar стопы)
// ============================================================

// OnSecondaryBar обрабатывает закрытие бара мелкой серии: hard deck
func (e *Engine) OnSecondaryBar(ctx context.Context, bar models.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.drainBrokerEvents()
	BarsProcessed.WithLabelValues(e.cfg.Symbol, "secondary").Inc()

	if e.session.Ended() || e.tracker.State() != models.StateOpen {
		return
	}

	if !e.policy.CheckHardDeck(e.tracker, bar) {
		return
	}

	// Пробой hard deck: мягкие контуры не удержали позицию.
	// Немедленный market выход по цене уровня.
	side := e.tracker.Side()
	deckTicks := -e.cfg.Policy.HardDeckTicks
	if side == models.SideShort {
		deckTicks = e.cfg.Policy.HardDeckTicks
	}
	deckPrice := utils.TickOffset(e.tracker.EntryPrice(), deckTicks, e.cfg.TickSize)

	e.notify(models.NotificationTypeHardDeck, models.SeverityFatal,
		fmt.Sprintf("hard deck breached at %.4f (entry %.4f), forcing market exit", deckPrice, e.tracker.EntryPrice()),
		map[string]interface{}{"entry_price": e.tracker.EntryPrice(), "deck_price": deckPrice})

	e.executeExit(models.ExitReasonHardDeck, deckPrice, models.OrderTypeMarket)

	if e.cfg.Mode == ModeLive {
		// В live пробой hard deck фатален для стратегии
		RecordHalt(e.cfg.Symbol, "hard_deck")
		e.daily.Halt()
		e.closeStrategy("hard deck breach")
	}

	e.drainBrokerEvents()
	e.broadcastRuntime()
}

// closeStrategy - полная остановка: снять ордера, закрыть позицию,
// запретить дальнейшие решения. Единственное место, где ядро
// дотягивается до хоста для принудительного стопа.
func (e *Engine) closeStrategy(cause string) {
	if e.closed {
		return
	}

	e.notify(models.NotificationTypeCloseCommand, models.SeverityFatal,
		fmt.Sprintf("close strategy invoked: %s", cause), nil)

	if err := e.brk.CloseStrategy(); err != nil {
		e.logger.Error("close strategy call failed", zap.Error(err))
	}
	e.closed = true
	e.drainBrokerEvents()
}

// ============================================================
// Границы сессии
// ============================================================

// startSession выполняется на первом баре нового календарного дня
func (e *Engine) startSession(now time.Time) {
	e.signal.StartDay()
	if e.secondary != nil {
		e.secondary.StartDay()
	}

	// Граница месяца
	monthStart := utils.MonthStart(now, e.cfg.Session.Location)
	if e.currentMonth.IsZero() {
		// Рестарт процесса внутри месяца: капитал придёт из файла
		e.currentMonth = monthStart
	} else if !monthStart.Equal(e.currentMonth) {
		e.currentMonth = monthStart
		e.monthly.OnMonthStart()
	}

	// Дневной режим по волатильности
	vix, err := e.files.VIXAverage()
	if err != nil {
		e.logger.Warn("failed to read volatility average, keeping previous regime",
			zap.Error(err), zap.String("regime", string(e.regime)))
	} else {
		e.regime = models.SelectRegime(vix, e.cfg.VIXThreshold)
	}

	params := e.cfg.LowVol
	if e.regime == models.RegimeHighVol {
		params = e.cfg.HighVol
	}

	// Внешние overrides дистанций перечитываются раз в сессию
	pStops, err := e.files.StopOverride()
	if err != nil && !errors.Is(err, statefiles.ErrNotFound) {
		e.logger.Warn("failed to read stop override", zap.Error(err))
	}
	profitPct, err := e.files.ProfitPercent()
	if err != nil && !errors.Is(err, statefiles.ErrNotFound) {
		e.logger.Warn("failed to read profit percent override", zap.Error(err))
	}
	e.policy.SetDailyOverrides(pStops, profitPct)

	e.daily.OnSessionStart(params)
	e.monthly.OnSessionStart(params)

	// Независимая страховка: накопленный PNL месяца из леджера
	mtd, err := e.ledger.MonthToDatePnl(e.cfg.Symbol, e.currentMonth)
	if err != nil {
		e.logger.Error("ledger backstop check failed", zap.Error(err))
	} else if e.monthly.Backstop(mtd) {
		RecordHalt(e.cfg.Symbol, "monthly")
		e.notify(models.NotificationTypeHaltMonthly, models.SeverityFatal,
			fmt.Sprintf("monthly ledger backstop breached (month-to-date %.2f), capital zeroed", mtd),
			map[string]interface{}{"month_to_date_pnl": mtd})
	}

	VirtualCapital.WithLabelValues(e.cfg.Symbol).Set(e.monthly.VirtualCapital())

	e.logger.Info("trading session started",
		zap.String("regime", string(e.regime)),
		zap.Float64("virtual_capital", e.monthly.VirtualCapital()),
		zap.Bool("daily_halt", e.daily.Halted()),
		zap.Bool("monthly_halt", e.monthly.Halted()))
}

// endSession выполняется один раз в день при достижении cutoff
func (e *Engine) endSession(ctx context.Context, bar models.Bar) {
	e.notify(models.NotificationTypeSessionEnd, models.SeverityInfo,
		"session cutoff reached, flattening and rolling bookkeeping", nil)

	// Принудительное закрытие limit ордером; если к следующему бару
	// позиция не плоская, эскалация до market
	if e.tracker.State() == models.StateOpen {
		e.executeExit(models.ExitReasonSessionEnd, bar.Close, models.OrderTypeLimit)
	}

	// Снятый неисполненный вход
	if e.tracker.State() == models.StateEntryPending {
		if err := e.tracker.CancelEntry(); err != nil {
			e.logger.Warn("failed to cancel entry at session end", zap.Error(err))
		}
	}
	e.drainBrokerEvents()

	// Предиктор чистит внутреннее состояние последовательности
	if err := e.signal.Reset(ctx); err != nil {
		e.logger.Warn("predictor reset failed", zap.Error(err))
	}
	if e.secondary != nil {
		if err := e.secondary.Reset(ctx); err != nil {
			e.logger.Warn("confirmation predictor reset failed", zap.Error(err))
		}
	}

	e.monthly.OnSessionEnd()
}

// ============================================================
// Операторские команды (API)
// ============================================================

// Pause приостанавливает новые входы (выходы продолжают работать)
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.logger.Warn("strategy paused by operator")
}

// Resume снимает операторскую паузу и дневной halt
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	if e.daily.Halted() {
		e.daily.Resume()
	}
	e.logger.Warn("strategy resumed by operator")
}

// FlattenNow принудительно закрывает позицию по команде оператора
func (e *Engine) FlattenNow() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tracker.State() != models.StateOpen {
		return ErrNotOpen
	}

	price := e.prevClose
	e.executeExit(models.ExitReasonManual, price, models.OrderTypeMarket)
	e.drainBrokerEvents()
	return nil
}

// ============================================================
// Снимок состояния
// ============================================================

// Snapshot возвращает консистентный снимок runtime для API/WS
func (e *Engine) Snapshot() models.StrategyRuntime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() models.StrategyRuntime {
	return models.StrategyRuntime{
		Symbol:     e.cfg.Symbol,
		Mode:       e.cfg.Mode,
		State:      e.tracker.State(),
		Side:       e.tracker.Side(),
		Paused:     e.paused,
		EntryPrice: e.tracker.EntryPrice(),
		LastClose:  e.prevClose,

		SignalSeq:  e.signal.Seq(),
		LastSignal: e.lastSignal,
		WarmingUp:  e.signal.Seq() < predictor.WarmupResponses,

		ConsecutiveLosses:    e.daily.ConsecutiveLosses(),
		ConsecutiveWins:      e.daily.ConsecutiveWins(),
		MaxConsecutiveLosses: e.daily.MaxConsecutiveLosses(),
		DailyHalt:            e.daily.Halted(),

		VirtualCapital:   e.monthly.VirtualCapital(),
		StartingCapital:  e.monthly.StartingCapital(),
		YesterdayCapital: e.monthly.YesterdayCapital(),
		ProfitChasing:    e.monthly.ProfitChasing(),
		MonthlyHalt:      e.monthly.Halted(),

		Regime:     e.regime,
		EndSession: e.session.Ended(),
		LastUpdate: e.lastBarTime,
	}
}

func (e *Engine) broadcastRuntime() {
	if e.hub != nil {
		e.hub.BroadcastRuntime(e.snapshotLocked())
	}
}

// notify логирует событие с его severity и рассылает его подписчикам
func (e *Engine) notify(ntype, severity, message string, meta map[string]interface{}) {
	switch severity {
	case models.SeverityFatal:
		e.logger.Error(message, zap.String("type", ntype))
	case models.SeverityWarning:
		e.logger.Warn(message, zap.String("type", ntype))
	default:
		e.logger.Info(message, zap.String("type", ntype))
	}

	if e.hub != nil {
		e.hub.BroadcastNotification(models.Notification{
			Timestamp: time.Now(),
			Type:      ntype,
			Severity:  severity,
			Message:   message,
			Meta:      meta,
		})
	}
}
