package websocket

import (
	"time"

	"intraday/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeRuntimeUpdate - снимок runtime состояния стратегии.
	// Отправляется после обработки каждого первичного бара.
	MessageTypeRuntimeUpdate MessageType = "runtimeUpdate"

	// MessageTypeNotification - событие торгового ядра
	// (вход, выход, halt, hard deck, ошибки канала)
	MessageTypeNotification MessageType = "notification"
)

// BaseMessage - общая шапка всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// RuntimeMessage - сообщение со снимком состояния стратегии
type RuntimeMessage struct {
	BaseMessage
	Data models.StrategyRuntime `json:"data"`
}

// NotificationMessage - сообщение с уведомлением ядра
type NotificationMessage struct {
	BaseMessage
	Data models.Notification `json:"data"`
}

// NewRuntimeMessage создает сообщение снимка состояния
func NewRuntimeMessage(rt models.StrategyRuntime) *RuntimeMessage {
	return &RuntimeMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRuntimeUpdate,
			Timestamp: time.Now(),
		},
		Data: rt,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(n models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: n,
	}
}
