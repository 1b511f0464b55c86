package bot

import (
	"errors"

	"go.uber.org/zap"

	"intraday/internal/models"
	"intraday/internal/statefiles"
)

// monthly.go - месячный контур просадки и profit chasing
//
// Ведёт виртуальный капитал: внутреннюю оценку, обновляемую сразу при
// решении о выходе (до подтверждения брокера), чтобы контур реагировал
// уже на следующем баре. Авторитетная цифра брокера досчитывается
// позже через сверку.
//
// Два режима риска:
//   - normal: просадка считается от стартового капитала месяца
//   - profit chasing: после того как капитал превысил
//     starting × (1+target), точкой отсчёта становится вчерашний
//     капитал; нарушение зануляет капитал (жёсткая защита уже
//     заработанной прибыли)
//
// Флаг chasing - one-way latch до конца месяца.

// MonthlyGovernor - контроль месячной просадки
type MonthlyGovernor struct {
	virtualCapital   float64
	startingCapital  float64
	yesterdayCapital float64

	// Накопленные реализованные потери месяца. Зеркалируются в файл
	// после каждого убыточного выхода и перечитываются на старте
	// сессии: перенос через рестарт процесса независимо от леджера.
	monthLosses float64

	profitChasing bool
	halted        bool

	params models.RegimeParameters

	// simpleChaseStop: в chasing фазе останавливаться на любом
	// падении ниже вчерашнего капитала вместо процентной просадки
	simpleChaseStop bool

	files  statefiles.Provider
	logger *zap.Logger
}

// NewMonthlyGovernor создаёт контур со стартовым капиталом месяца
func NewMonthlyGovernor(startingCapital float64, simpleChaseStop bool, files statefiles.Provider, logger *zap.Logger) *MonthlyGovernor {
	return &MonthlyGovernor{
		virtualCapital:   startingCapital,
		startingCapital:  startingCapital,
		yesterdayCapital: startingCapital,
		simpleChaseStop:  simpleChaseStop,
		files:            files,
		logger:           logger,
	}
}

// OnMonthStart сбрасывает контур на новый календарный месяц
func (g *MonthlyGovernor) OnMonthStart() {
	g.virtualCapital = g.startingCapital
	g.yesterdayCapital = g.startingCapital
	g.monthLosses = 0
	g.profitChasing = false
	g.halted = false

	if err := g.files.SaveCapital(g.virtualCapital); err != nil {
		g.logger.Error("failed to persist capital at month start", zap.Error(err))
	}
	if err := g.files.SaveMonthLosses(0); err != nil {
		g.logger.Error("failed to reset month losses", zap.Error(err))
	}

	g.logger.Info("monthly governor reset",
		zap.Float64("starting_capital", g.startingCapital))
}

// OnSessionStart перечитывает персистентный капитал и применяет
// параметры дневного режима
func (g *MonthlyGovernor) OnSessionStart(params models.RegimeParameters) {
	g.params = params

	capital, err := g.files.Capital()
	switch {
	case err == nil:
		g.virtualCapital = capital
	case errors.Is(err, statefiles.ErrNotFound):
		// Первый запуск месяца
		g.virtualCapital = g.startingCapital
	default:
		g.logger.Error("failed to read persisted capital, keeping in-memory value", zap.Error(err))
	}

	losses, err := g.files.MonthLosses()
	switch {
	case err == nil:
		// Рестарт процесса внутри месяца: потери приходят из файла
		if losses > g.monthLosses {
			g.monthLosses = losses
		}
	case errors.Is(err, statefiles.ErrNotFound):
		// Потери месяца ещё не писались
	default:
		g.logger.Warn("failed to read month losses", zap.Error(err))
	}

	if g.virtualCapital <= 0 {
		// Занулённый капитал означает сработавший месячный стоп
		g.halted = true
	}

	g.checkProfitChasingActivation()

	g.logger.Info("monthly governor session start",
		zap.Float64("virtual_capital", g.virtualCapital),
		zap.Float64("yesterday_capital", g.yesterdayCapital),
		zap.Bool("profit_chasing", g.profitChasing),
		zap.Bool("halted", g.halted))
}

// OnRealized применяет реализованный PNL к виртуальному капиталу,
// персистит его и прогоняет проверки контура.
// Возвращает true если сработал месячный стоп.
func (g *MonthlyGovernor) OnRealized(pnl float64) bool {
	g.virtualCapital += pnl

	if pnl < 0 {
		g.monthLosses -= pnl
		if err := g.files.SaveMonthLosses(g.monthLosses); err != nil {
			g.logger.Error("failed to persist month losses", zap.Error(err))
		}
	}

	g.checkProfitChasingActivation()
	tripped := g.CheckStopLoss()

	if err := g.files.SaveCapital(g.virtualCapital); err != nil {
		g.logger.Error("failed to persist capital", zap.Error(err))
	}

	return tripped
}

// checkProfitChasingActivation - one-way latch профит-фазы
func (g *MonthlyGovernor) checkProfitChasingActivation() {
	if g.profitChasing {
		return
	}
	if g.virtualCapital > g.startingCapital*(1+g.params.ProfitChasingTarget) {
		g.profitChasing = true
		g.logger.Info("profit chasing activated",
			zap.Float64("virtual_capital", g.virtualCapital),
			zap.Float64("threshold", g.startingCapital*(1+g.params.ProfitChasingTarget)))
	}
}

// CheckStopLoss проверяет месячный стоп.
// В chasing фазе нарушение зануляет капитал: защита банка прибыли
// жёстче защиты стартового капитала.
func (g *MonthlyGovernor) CheckStopLoss() bool {
	if g.halted {
		return false
	}

	if !g.profitChasing {
		if g.virtualCapital < g.startingCapital*(1-g.params.MaxDrawdownPct) {
			g.halted = true
			g.logger.Warn("monthly drawdown limit breached",
				zap.Float64("virtual_capital", g.virtualCapital),
				zap.Float64("limit", g.startingCapital*(1-g.params.MaxDrawdownPct)))
			return true
		}
		return false
	}

	reference := g.yesterdayCapital * (1 - g.params.ProfitChasingDrawdownPct)
	if g.simpleChaseStop {
		reference = g.yesterdayCapital
	}

	if g.virtualCapital < reference {
		g.halted = true
		g.virtualCapital = 0
		g.logger.Warn("profit chasing stop breached, capital zeroed",
			zap.Float64("reference", reference))
		return true
	}

	return false
}

// Backstop - независимая страховка на старте сессии: худшее из
// накопленного PNL месяца по леджеру и перенесённых потерь месяца из
// файла против абсолютного лимита просадки.
// Возвращает true если страховка сработала.
func (g *MonthlyGovernor) Backstop(monthToDatePnl float64) bool {
	pct := g.params.MaxDrawdownPct
	if g.profitChasing {
		pct = g.params.ProfitChasingDrawdownPct
	}

	losses := -monthToDatePnl
	if g.monthLosses > losses {
		losses = g.monthLosses
	}

	if losses > g.startingCapital*pct {
		g.halted = true
		g.virtualCapital = 0
		if err := g.files.SaveCapital(0); err != nil {
			g.logger.Error("failed to persist zeroed capital", zap.Error(err))
		}
		g.logger.Warn("monthly ledger backstop breached",
			zap.Float64("month_to_date_pnl", monthToDatePnl),
			zap.Float64("carried_losses", g.monthLosses),
			zap.Float64("limit", g.startingCapital*pct))
		return true
	}

	return false
}

// OnSessionEnd снимает снапшот капитала как точку отсчёта следующей сессии
func (g *MonthlyGovernor) OnSessionEnd() {
	g.yesterdayCapital = g.virtualCapital

	if err := g.files.SaveCapital(g.virtualCapital); err != nil {
		g.logger.Error("failed to persist capital at session end", zap.Error(err))
	}
}

// CanEnter возвращает true если месячный контур разрешает новый вход
func (g *MonthlyGovernor) CanEnter() bool {
	return !g.halted && g.virtualCapital > 0
}

// Halted возвращает состояние месячного стопа
func (g *MonthlyGovernor) Halted() bool {
	return g.halted
}

// VirtualCapital возвращает текущий виртуальный капитал
func (g *MonthlyGovernor) VirtualCapital() float64 {
	return g.virtualCapital
}

// StartingCapital возвращает стартовый капитал месяца
func (g *MonthlyGovernor) StartingCapital() float64 {
	return g.startingCapital
}

// YesterdayCapital возвращает точку отсчёта chasing фазы
func (g *MonthlyGovernor) YesterdayCapital() float64 {
	return g.yesterdayCapital
}

// ProfitChasing возвращает состояние latch профит-фазы
func (g *MonthlyGovernor) ProfitChasing() bool {
	return g.profitChasing
}
