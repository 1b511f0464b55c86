package bot

import "intraday/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями позиции
var ValidTransitions = map[string][]string{
	models.StateFlat:         {models.StateEntryPending},
	models.StateEntryPending: {models.StateOpen, models.StateFlat}, // Flat при reject/cancel входа
	models.StateOpen:         {models.StateExitPending},
	models.StateExitPending:  {models.StateFlat},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case models.StateFlat:
		return "Позиции нет, ожидание сигнала"
	case models.StateEntryPending:
		return "Ордер на вход отправлен, ожидание исполнения"
	case models.StateOpen:
		return "Позиция открыта"
	case models.StateExitPending:
		return "Закрытие позиции..."
	default:
		return "Неизвестное состояние"
	}
}

// HasOpenPosition возвращает true если позиция открыта или закрывается
func HasOpenPosition(s string) bool {
	return s == models.StateOpen || s == models.StateExitPending
}

// HasPendingOrder возвращает true если есть неисполненный ордер
func HasPendingOrder(s string) bool {
	return s == models.StateEntryPending || s == models.StateExitPending
}
