package bot

import (
	"go.uber.org/zap"

	"intraday/internal/models"
	"intraday/pkg/utils"
)

// policy.go - политика входов и выходов
//
// Один движок политики вместо россыпи почти одинаковых вариантов
// стратегии: все различия вариантов выражены конфигурацией
// (пороги, режим фильтра, toggles).
//
// Выходы проверяются на каждом первичном баре в фиксированном
// порядке приоритета:
//  1. market-shift выход (после касания профит-цели цена ушла за SMA)
//  2. soft deck (стоп с подтверждением сигналом)
//  3. profit chasing (разворот импульса после касания профит-уровня)
//  4. hard deck живёт на вторичной серии баров (CheckHardDeck)

// Action - решение политики по входу
type Action int

// Решения входа
const (
	ActionNone Action = iota
	ActionEnterLong
	ActionEnterShort
)

// String возвращает читаемое имя решения
func (a Action) String() string {
	switch a {
	case ActionEnterLong:
		return "enter_long"
	case ActionEnterShort:
		return "enter_short"
	default:
		return "none"
	}
}

// ExitSignal - решение политики по выходу
type ExitSignal struct {
	Exit   bool
	Reason string
}

// PolicyConfig - параметры политики
type PolicyConfig struct {
	TickSize float64

	SoftDeckTicks    int // дистанция мягкого стопа
	HardDeckTicks    int // дистанция аварийного стопа
	ProfitChaseTicks int // дистанция взведения профит-выхода

	// Market-shift выход: профит-цель = entry ± ProfitPercentage × PStops,
	// после касания выход при закрытии за SMA указанного периода
	ProfitPercentage float64
	PStops           float64
	ShiftSMAPeriod   int

	// ProfitChaseSignalGated: требовать ещё и неподтверждающий сигнал
	// для профит-выхода (поведение старых вариантов)
	ProfitChaseSignalGated bool
}

// PolicyEngine - детерминированная политика решений
type PolicyEngine struct {
	cfg    PolicyConfig
	filter EntryFilter
	logger *zap.Logger
}

// NewPolicyEngine создаёт политику с собранным фильтром входа
func NewPolicyEngine(cfg PolicyConfig, filter EntryFilter, logger *zap.Logger) *PolicyEngine {
	return &PolicyEngine{cfg: cfg, filter: filter, logger: logger}
}

// SetDailyOverrides применяет прочитанные на старте сессии overrides
// (дистанция стопа и профит-процент из внешних файлов)
func (p *PolicyEngine) SetDailyOverrides(pStops, profitPercentage float64) {
	if pStops > 0 {
		p.cfg.PStops = pStops
	}
	if profitPercentage > 0 {
		p.cfg.ProfitPercentage = profitPercentage
	}
}

// ============================================================
// Вход
// ============================================================

// DecideEntry отображает сигнал в действие входа.
// Гейты контуров (daily/monthly/session/position) проверяет движок,
// здесь только veto по market view и индикаторные фильтры.
func (p *PolicyEngine) DecideEntry(sig models.SignalClass, view models.MarketView, fv *models.FeatureVector) Action {
	if sig == models.SignalHold {
		return ActionNone
	}

	// Market view veto идёт раньше любых индикаторных фильтров
	if view.Vetoes(sig) {
		p.logger.Info("entry vetoed by market view",
			zap.String("signal", string(sig)),
			zap.String("view", view.String()))
		return ActionNone
	}

	if !p.filter.Allows(sig, fv) {
		p.logger.Info("entry rejected by filter",
			zap.String("signal", string(sig)),
			zap.String("filter", p.filter.Name()))
		return ActionNone
	}

	switch sig {
	case models.SignalBuy:
		return ActionEnterLong
	case models.SignalSell:
		return ActionEnterShort
	}
	return ActionNone
}

// ============================================================
// Выход
// ============================================================

// confirms возвращает true если сигнал подтверждает удержание позиции
func confirms(sig models.SignalClass, side string) bool {
	switch side {
	case models.SideLong:
		return sig == models.SignalBuy
	case models.SideShort:
		return sig == models.SignalSell
	}
	return false
}

// UpdateLatches взводит one-way защёлки выходной логики по экстремумам бара.
// Вызывается до DecideExit на каждом первичном баре открытой позиции.
func (p *PolicyEngine) UpdateLatches(pt *PositionTracker, bar models.Bar) {
	entry := pt.EntryPrice()

	// Профит-цель market-shift выхода
	if p.cfg.ProfitPercentage > 0 && p.cfg.PStops > 0 {
		target := p.cfg.ProfitPercentage * p.cfg.PStops
		switch pt.Side() {
		case models.SideLong:
			if bar.High >= entry+target {
				pt.MarkProfitPercentMet()
			}
		case models.SideShort:
			if bar.Low <= entry-target {
				pt.MarkProfitPercentMet()
			}
		}
	}

	// Уровень взведения profit chasing
	if p.cfg.ProfitChaseTicks > 0 {
		chase := float64(p.cfg.ProfitChaseTicks) * p.cfg.TickSize
		switch pt.Side() {
		case models.SideLong:
			if bar.High >= entry+chase {
				pt.ArmProfitChase()
			}
		case models.SideShort:
			if bar.Low <= entry-chase {
				pt.ArmProfitChase()
			}
		}
	}
}

// DecideExit прогоняет цепочку выходов в порядке приоритета.
// prevClose - закрытие предыдущего первичного бара (для детекта
// разворота импульса).
func (p *PolicyEngine) DecideExit(pt *PositionTracker, fv *models.FeatureVector, sig models.SignalClass, prevClose float64) ExitSignal {
	side := pt.Side()
	entry := pt.EntryPrice()
	close := fv.Bar.Close

	// 1. Market-shift: после касания профит-цели закрытие за SMA
	// против позиции закрывает её независимо от стопов
	if pt.ProfitPercentMet() {
		sma := fv.SMA(p.cfg.ShiftSMAPeriod)
		if (side == models.SideLong && close < sma) ||
			(side == models.SideShort && close > sma) {
			p.logger.Info("market shift exit",
				zap.Float64("close", close),
				zap.Float64("sma", sma))
			return ExitSignal{Exit: true, Reason: models.ExitReasonMarketShift}
		}
	}

	// 2. Soft deck: неблагоприятное движение достигло мягкого стопа
	// и сигнал не подтверждает удержание
	if p.cfg.SoftDeckTicks > 0 {
		if utils.TicksAdverse(side, entry, close, p.cfg.TickSize) >= p.cfg.SoftDeckTicks && !confirms(sig, side) {
			p.logger.Info("soft deck exit",
				zap.Float64("entry", entry),
				zap.Float64("close", close),
				zap.String("signal", string(sig)))
			return ExitSignal{Exit: true, Reason: models.ExitReasonSoftDeck}
		}
	}

	// 3. Profit chasing: после взведения выход на развороте импульса
	// на один тик против позиции
	if pt.ProfitChaseArmed() && prevClose > 0 {
		reversed := (side == models.SideLong && close <= prevClose-p.cfg.TickSize) ||
			(side == models.SideShort && close >= prevClose+p.cfg.TickSize)
		if reversed && (!p.cfg.ProfitChaseSignalGated || !confirms(sig, side)) {
			p.logger.Info("profit chasing exit",
				zap.Float64("close", close),
				zap.Float64("prev_close", prevClose))
			return ExitSignal{Exit: true, Reason: models.ExitReasonProfitChase}
		}
	}

	return ExitSignal{}
}

// CheckHardDeck проверяет аварийный стоп по экстремуму вторичного бара.
// Пробой означает отказ мягких контуров: немедленный market выход.
func (p *PolicyEngine) CheckHardDeck(pt *PositionTracker, bar models.Bar) bool {
	if p.cfg.HardDeckTicks <= 0 {
		return false
	}

	entry := pt.EntryPrice()
	var worst float64
	switch pt.Side() {
	case models.SideLong:
		worst = bar.Low
	case models.SideShort:
		worst = bar.High
	default:
		return false
	}

	return utils.TicksAdverse(pt.Side(), entry, worst, p.cfg.TickSize) >= p.cfg.HardDeckTicks
}
