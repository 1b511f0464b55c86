package statefiles

import (
	"errors"

	"intraday/internal/models"
)

// provider.go - доступ к персистентному состоянию стратегии
//
// Небольшие значения (капитал, месячные потери, волатильность, overrides,
// market view) живут вне процесса и разделяются с внешними инструментами.
// Контракт чтения: значения читаются заново на каждой границе (сессия,
// день, решение о входе), никогда не кэшируются. Контракт записи:
// капитал переписывается сразу после каждого реализованного выхода
// и при закрытии сессии.

// ErrNotFound значение не найдено в хранилище
var ErrNotFound = errors.New("statefiles: value not found")

// Provider интерфейс доступа к персистентному состоянию.
// Файловая реализация - FileProvider, в тестах - MemoryProvider.
type Provider interface {
	// Capital читает текущий виртуальный капитал.
	// ErrNotFound означает первый запуск месяца: вызывающий берёт
	// стартовый капитал из конфигурации.
	Capital() (float64, error)

	// SaveCapital перезаписывает виртуальный капитал
	SaveCapital(v float64) error

	// MonthLosses читает накопленные реализованные потери месяца
	MonthLosses() (float64, error)

	// SaveMonthLosses перезаписывает потери месяца
	SaveMonthLosses(v float64) error

	// VIXAverage читает скользящее среднее индикатора волатильности,
	// по которому выбирается дневной режим
	VIXAverage() (float64, error)

	// StopOverride читает внешний override дистанции стопа в пунктах.
	// ErrNotFound - override не задан, действует конфигурация.
	StopOverride() (float64, error)

	// ProfitPercent читает override профит-процента раннего выхода.
	// ErrNotFound - override не задан.
	ProfitPercent() (float64, error)

	// MarketView читает грубый взгляд на рынок (0/1/2).
	// При отсутствии значения возвращается Neutral без ошибки:
	// отсутствие файла не должно блокировать торговлю.
	MarketView() (models.MarketView, error)
}
