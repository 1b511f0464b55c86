package models

import "time"

// Notification представляет событие торгового ядра для журнала и UI
type Notification struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`     // ENTRY, EXIT, HALT_DAILY, ...
	Severity  string                 `json:"severity"` // info, warning, fatal
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"` // дополнительные данные
}

// Типы уведомлений
const (
	NotificationTypeEntry        = "ENTRY"         // вход в позицию
	NotificationTypeExit         = "EXIT"          // выход из позиции
	NotificationTypePartialFill  = "PARTIAL_FILL"  // частичное исполнение, требуется наблюдение
	NotificationTypeHaltDaily    = "HALT_DAILY"    // исчерпан дневной лимит серий убытков
	NotificationTypeHaltMonthly  = "HALT_MONTHLY"  // сработал месячный стоп
	NotificationTypeHardDeck     = "HARD_DECK"     // пробит hard deck - отказ мягких контуров
	NotificationTypeStuckExit    = "STUCK_EXIT"    // exit-ордер отклонён, позиция может зависнуть
	NotificationTypeSignalError  = "SIGNAL_ERROR"  // ошибка канала предиктора
	NotificationTypeSessionEnd   = "SESSION_END"   // конец сессии, принудительное закрытие
	NotificationTypeReconcile    = "RECONCILE"     // сверка с авторитетной позицией брокера
	NotificationTypeCloseCommand = "CLOSE_COMMAND" // ядро запросило полную остановку стратегии
)

// Уровни важности (*.err классифицирует warning и fatal)
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityFatal   = "fatal"
)
