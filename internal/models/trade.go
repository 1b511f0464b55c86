package models

import "time"

// TradeRecord - запись о завершённой (реализованной) сделке в леджере
type TradeRecord struct {
	ID         int       `json:"id" db:"id"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Side       string    `json:"side" db:"side"` // long, short
	Quantity   int       `json:"quantity" db:"quantity"`
	EntryPrice float64   `json:"entry_price" db:"entry_price"`
	ExitPrice  float64   `json:"exit_price" db:"exit_price"`
	EntryTime  time.Time `json:"entry_time" db:"entry_time"`
	ExitTime   time.Time `json:"exit_time" db:"exit_time"`
	Pnl        float64   `json:"pnl" db:"pnl"`               // оценка ядра: delta × dollarPerPoint - commission
	ExitReason string    `json:"exit_reason" db:"exit_reason"`
}

// Причины выхода (в порядке приоритета проверки)
const (
	ExitReasonMarketShift = "market_shift"  // цена ушла за SMA после касания профит-цели
	ExitReasonSoftDeck    = "soft_deck"     // мягкий стоп + сигнал не подтверждает удержание
	ExitReasonProfitChase = "profit_chase"  // разворот импульса после касания профит-уровня
	ExitReasonHardDeck    = "hard_deck"     // безусловный аварийный стоп
	ExitReasonSessionEnd  = "session_end"   // принудительное закрытие на границе сессии
	ExitReasonManual      = "manual"        // команда оператора через API
)
