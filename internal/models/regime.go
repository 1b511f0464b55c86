package models

// VolatilityRegime - дневной режим волатильности, выбирается один раз
// за сессию по скользящей средней волатильности (*.vix) и фиксируется
// до конца дня
type VolatilityRegime string

// Режимы волатильности
const (
	RegimeLowVol  VolatilityRegime = "LOW_VOL"
	RegimeHighVol VolatilityRegime = "HIGH_VOL"
)

// RegimeParameters - набор риск-параметров одного режима.
//
// Один объект заменяет собой десятки почти одинаковых вариантов стратегии:
// все различия между вариантами выражаются значениями этих полей.
type RegimeParameters struct {
	// Дневной контур: лимиты серий убытков/прибылей
	MaxConsecutiveLosses int `json:"max_consecutive_losses"` // стартовый потолок серии убытков (floor для ratchet)
	LossCeiling          int `json:"loss_ceiling"`           // верхняя граница ratchet
	MinConsecutiveWins   int `json:"min_consecutive_wins"`   // длина win-серии для +1 к потолку

	// Месячный контур: цели и просадки в долях (0.6 = 60%)
	ProfitChasingTarget      float64 `json:"profit_chasing_target"`
	MaxDrawdownPct           float64 `json:"max_drawdown_pct"`
	ProfitChasingDrawdownPct float64 `json:"profit_chasing_drawdown_pct"`
}

// SelectRegime выбирает режим по средней волатильности и порогу
func SelectRegime(vixAverage, threshold float64) VolatilityRegime {
	if vixAverage >= threshold {
		return RegimeHighVol
	}
	return RegimeLowVol
}
