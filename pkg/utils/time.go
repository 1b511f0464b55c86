package utils

import "time"

// time.go - календарные утилиты торговой сессии
//
// Используются контроллером границ сессии и месячным контуром:
// - детект нового календарного дня на потоке баров
// - вычисление момента принудительного закрытия (обычный день / пятница)
// - границы месяца для леджера

// SameDay возвращает true если обе метки времени приходятся на один
// календарный день в указанной таймзоне
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// SameMonth возвращает true если обе метки времени в одном календарном месяце
func SameMonth(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// DayStart возвращает начало календарного дня (00:00:00) для t в loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// MonthStart возвращает начало календарного месяца (1-е число 00:00:00) для t в loc
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// MinutesIntoDay возвращает смещение t от начала его календарного дня
func MinutesIntoDay(t time.Time, loc *time.Location) time.Duration {
	return t.In(loc).Sub(DayStart(t, loc))
}

// CutoffReached возвращает true если t достигла момента принудительного
// закрытия сессии. Пятница имеет собственный (более ранний) cutoff.
//
// Оба значения - "номинальное закрытие минус защитный буфер", выраженные
// как смещение от полуночи торговой таймзоны.
func CutoffReached(t time.Time, regular, friday time.Duration, loc *time.Location) bool {
	cutoff := regular
	if t.In(loc).Weekday() == time.Friday {
		cutoff = friday
	}
	return MinutesIntoDay(t, loc) >= cutoff
}
