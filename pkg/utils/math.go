package utils

import "math"

// math.go - ценовая арифметика торгового ядра
//
// Все расстояния стопов и профит-целей задаются в тиках (неделимый шаг цены),
// PNL оценивается в долларах через стоимость пункта. Функции чистые,
// без побочных эффектов.

// RoundToTick округляет цену до ближайшего кратного tickSize.
//
// Используется при выставлении limit-ордеров: биржа не примет цену,
// не кратную шагу инструмента.
//
// Примеры:
//   - RoundToTick(100.13, 0.25) = 100.25
//   - RoundToTick(100.12, 0.25) = 100.00
func RoundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// TickOffset возвращает цену, смещённую на ticks тиков от base.
// Положительный ticks - вверх, отрицательный - вниз.
func TickOffset(base float64, ticks int, tickSize float64) float64 {
	return base + float64(ticks)*tickSize
}

// AdverseMove возвращает неблагоприятное движение цены в пунктах
// относительно цены входа (0 если движение благоприятное).
//
// Для лонга неблагоприятно падение, для шорта - рост.
func AdverseMove(side string, entryPrice, price float64) float64 {
	var move float64
	switch side {
	case "long":
		move = entryPrice - price
	case "short":
		move = price - entryPrice
	default:
		return 0
	}
	if move < 0 {
		return 0
	}
	return move
}

// FavorableMove возвращает благоприятное движение цены в пунктах
// относительно цены входа (0 если движение неблагоприятное).
func FavorableMove(side string, entryPrice, price float64) float64 {
	return AdverseMove(oppositeSide(side), entryPrice, price)
}

// TicksAdverse переводит неблагоприятное движение в целое число тиков (вниз)
func TicksAdverse(side string, entryPrice, price, tickSize float64) int {
	if tickSize <= 0 {
		return 0
	}
	return int(math.Floor(AdverseMove(side, entryPrice, price) / tickSize))
}

// EstimatePnl оценивает реализованный PNL сделки до подтверждения брокера.
//
// Формула из контракта ядра: priceDelta × dollarPerPoint × qty - commission.
// Оценка применяется к виртуальному капиталу сразу при решении о выходе,
// чтобы месячный контур реагировал уже на следующем баре.
func EstimatePnl(side string, entryPrice, exitPrice float64, qty int, dollarPerPoint, commission float64) float64 {
	delta := exitPrice - entryPrice
	if side == "short" {
		delta = -delta
	}
	return delta*dollarPerPoint*float64(qty) - commission
}

func oppositeSide(side string) string {
	switch side {
	case "long":
		return "short"
	case "short":
		return "long"
	}
	return side
}
