package models

// SignalClass - категориальный ответ предиктора на один бар
type SignalClass string

// Классы сигнала
const (
	SignalSell SignalClass = "SELL"
	SignalHold SignalClass = "HOLD"
	SignalBuy  SignalClass = "BUY"
)

// Wire-коды сигнала (одиночный символ в ответе предиктора)
const (
	WireSell = '0'
	WireHold = '1'
	WireBuy  = '2'
)

// MarketView - грубая внешняя оценка рынка из файла *.mkt
type MarketView int

// Коды market view (значения файла *.mkt)
const (
	ViewBearish MarketView = 0
	ViewNeutral MarketView = 1
	ViewBullish MarketView = 2
)

// String возвращает читаемое название оценки рынка
func (v MarketView) String() string {
	switch v {
	case ViewBearish:
		return "bearish"
	case ViewBullish:
		return "bullish"
	default:
		return "neutral"
	}
}

// Vetoes возвращает true если оценка рынка запрещает сигнал:
// Bullish блокирует Sell, Bearish блокирует Buy
func (v MarketView) Vetoes(sig SignalClass) bool {
	switch v {
	case ViewBullish:
		return sig == SignalSell
	case ViewBearish:
		return sig == SignalBuy
	default:
		return false
	}
}
