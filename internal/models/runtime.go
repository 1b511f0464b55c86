package models

import "time"

// StrategyRuntime - снимок runtime состояния стратегии для API и WebSocket.
// Возвращается по значению: снимок делается под mutex движка.
type StrategyRuntime struct {
	Symbol   string `json:"symbol"`
	Mode     string `json:"mode"`  // live, backtest
	State    string `json:"state"` // FLAT, ENTRY_PENDING, OPEN, EXIT_PENDING
	Side     string `json:"side"`  // flat, long, short
	Paused   bool   `json:"paused"`

	EntryPrice float64 `json:"entry_price"`
	LastClose  float64 `json:"last_close"`

	// Сигнальный канал
	SignalSeq  int         `json:"signal_seq"`
	LastSignal SignalClass `json:"last_signal"`
	WarmingUp  bool        `json:"warming_up"`

	// Дневной контур
	ConsecutiveLosses    int  `json:"consecutive_losses"`
	ConsecutiveWins      int  `json:"consecutive_wins"`
	MaxConsecutiveLosses int  `json:"max_consecutive_losses"`
	DailyHalt            bool `json:"daily_halt"`

	// Месячный контур
	VirtualCapital   float64 `json:"virtual_capital"`
	StartingCapital  float64 `json:"starting_capital"`
	YesterdayCapital float64 `json:"yesterday_capital"`
	ProfitChasing    bool    `json:"profit_chasing"`
	MonthlyHalt      bool    `json:"monthly_halt"`

	// Сессия
	Regime     VolatilityRegime `json:"regime"`
	EndSession bool             `json:"end_session"`
	LastUpdate time.Time        `json:"last_update"`
}
