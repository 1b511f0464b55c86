package bot

import (
	"go.uber.org/zap"

	"intraday/internal/models"
)

// daily.go - дневной контур просадки
//
// Считает серии подряд идущих убытков и прибылей внутри сессии и
// двигает допустимый потолок серии убытков (ratchet):
//   - серия из minConsecutiveWins прибылей поднимает потолок на 1,
//     но не выше ceiling режима
//   - каждый убыток возвращает потолок на 1 к стартовому значению
//     режима, но не ниже него (асимметричный гистерезис: убытки
//     съедают бонус быстрее, чем прибыли его копят)
//
// Достижение потолка ставит sticky halt до конца сессии.

// DailyGovernor - контроль дневной серии убытков
type DailyGovernor struct {
	consecutiveLosses    int
	consecutiveWins      int
	maxConsecutiveLosses int

	// Границы ratchet из режима волатильности
	floor   int
	ceiling int

	minConsecutiveWins int

	haltTrading bool

	// resetHaltOnSessionStart: true для backtest (каждая сессия с чистого
	// листа), false для live (halt снимает только оператор)
	resetHaltOnSessionStart bool

	logger *zap.Logger
}

// NewDailyGovernor создаёт контур. resetHaltOnSessionStart выбирается
// по режиму развёртывания (backtest/live).
func NewDailyGovernor(resetHaltOnSessionStart bool, logger *zap.Logger) *DailyGovernor {
	return &DailyGovernor{
		resetHaltOnSessionStart: resetHaltOnSessionStart,
		logger:                  logger,
	}
}

// OnSessionStart применяет параметры дневного режима и сбрасывает счётчики
func (g *DailyGovernor) OnSessionStart(params models.RegimeParameters) {
	g.floor = params.MaxConsecutiveLosses
	g.ceiling = params.LossCeiling
	g.minConsecutiveWins = params.MinConsecutiveWins

	g.maxConsecutiveLosses = g.floor
	g.consecutiveLosses = 0
	g.consecutiveWins = 0

	if g.resetHaltOnSessionStart {
		g.haltTrading = false
	}

	g.logger.Info("daily governor armed",
		zap.Int("max_consecutive_losses", g.maxConsecutiveLosses),
		zap.Int("loss_ceiling", g.ceiling),
		zap.Int("min_consecutive_wins", g.minConsecutiveWins),
		zap.Bool("halted", g.haltTrading))
}

// OnWin учитывает прибыльную сделку
func (g *DailyGovernor) OnWin() {
	g.consecutiveWins++
	g.consecutiveLosses = 0

	if g.consecutiveWins >= g.minConsecutiveWins {
		if g.maxConsecutiveLosses < g.ceiling {
			g.maxConsecutiveLosses++
			g.logger.Info("loss ceiling ratcheted up",
				zap.Int("max_consecutive_losses", g.maxConsecutiveLosses))
		}
		g.consecutiveWins = 0
	}
}

// OnLoss учитывает убыточную сделку
func (g *DailyGovernor) OnLoss() {
	g.consecutiveWins = 0
	g.consecutiveLosses++

	// Убыток съедает накопленный бонус потолка, но не ниже floor
	if g.maxConsecutiveLosses > g.floor {
		g.maxConsecutiveLosses--
		g.logger.Info("loss ceiling eroded",
			zap.Int("max_consecutive_losses", g.maxConsecutiveLosses))
	}

	if g.consecutiveLosses >= g.maxConsecutiveLosses {
		g.haltTrading = true
		g.logger.Warn("daily loss streak limit reached, trading halted",
			zap.Int("consecutive_losses", g.consecutiveLosses),
			zap.Int("max_consecutive_losses", g.maxConsecutiveLosses))
	}
}

// CanEnter возвращает true если дневной контур разрешает новый вход
func (g *DailyGovernor) CanEnter() bool {
	if g.consecutiveLosses >= g.maxConsecutiveLosses && g.maxConsecutiveLosses > 0 {
		g.haltTrading = true
	}
	return !g.haltTrading
}

// Halt принудительно останавливает торговлю до конца сессии
// (hard deck, зависший exit и другие session-fatal условия)
func (g *DailyGovernor) Halt() {
	g.haltTrading = true
}

// Halted возвращает состояние halt
func (g *DailyGovernor) Halted() bool {
	return g.haltTrading
}

// Resume снимает halt (команда оператора в live режиме)
func (g *DailyGovernor) Resume() {
	g.haltTrading = false
	g.consecutiveLosses = 0
	g.logger.Warn("daily halt cleared by operator")
}

// ConsecutiveLosses возвращает текущую серию убытков
func (g *DailyGovernor) ConsecutiveLosses() int {
	return g.consecutiveLosses
}

// ConsecutiveWins возвращает текущую серию прибылей
func (g *DailyGovernor) ConsecutiveWins() int {
	return g.consecutiveWins
}

// MaxConsecutiveLosses возвращает текущий потолок серии убытков
func (g *DailyGovernor) MaxConsecutiveLosses() int {
	return g.maxConsecutiveLosses
}
