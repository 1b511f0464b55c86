package models

// Стороны позиции
const (
	SideFlat  = "flat"
	SideLong  = "long"
	SideShort = "short"
)

// Состояния позиции (state machine)
const (
	StateFlat         = "FLAT"          // позиции нет, вход разрешён
	StateEntryPending = "ENTRY_PENDING" // ордер на вход отправлен, ждём подтверждения
	StateOpen         = "OPEN"          // позиция открыта
	StateExitPending  = "EXIT_PENDING"  // ордер на выход отправлен, ждём подтверждения
)

// Opposite возвращает противоположную сторону
func Opposite(side string) string {
	switch side {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// AccountPosition - авторитетное состояние счёта от брокера.
// Является источником истины для сверки виртуального состояния.
type AccountPosition struct {
	Side     string  `json:"side"` // flat, long, short
	Quantity int     `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}
