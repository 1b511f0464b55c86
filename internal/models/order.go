package models

import "time"

// Типы ордеров
const (
	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// Статусы ордера (терминальные и промежуточные)
const (
	OrderStatusWorking    = "working"
	OrderStatusFilled     = "filled"
	OrderStatusPartFilled = "part_filled"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRejected   = "rejected"
)

// OrderUpdate - событие изменения состояния ордера от хост-платформы
type OrderUpdate struct {
	Ref          string    `json:"ref"`    // opaque handle ордера
	Status       string    `json:"status"` // working, filled, part_filled, cancelled, rejected
	Quantity     int       `json:"quantity"`
	FilledQty    int       `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Terminal возвращает true для терминальных статусов
func (u *OrderUpdate) Terminal() bool {
	switch u.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}
