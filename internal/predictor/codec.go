package predictor

import (
	"fmt"
	"strconv"
	"strings"

	"intraday/internal/models"
)

// codec.go - wire-формат канала предиктора
//
// Запрос: одна comma-separated строка на бар, UTF-8:
//
//	seq,startHHMMSS,endHHMMSS,open,close,high,low,volume,
//	sma9,sma20,sma50,macdHist,rsi,bollLower,bollUpper,cci,
//	high,low,momentum,diPlus,diMinus,vroc,0,0,0,0,0,0,0,0,0,0\n
//
// Хвостовые нули зарезервированы под echo ответа. Ответ: comma-separated,
// поле с индексом 1 (0-based) содержит один символ класса сигнала.

// reservedFields - количество зарезервированных нулевых полей в запросе
const reservedFields = 10

// signalFieldIndex - позиция символа сигнала в ответе (0-based)
const signalFieldIndex = 1

// ParseError - ответ предиктора не соответствует форме протокола.
// Отличим от неизвестного символа сигнала: битую строку нельзя
// молча трактовать как Hold.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("predictor response parse error: %s (line: %q)", e.Reason, e.Line)
}

// UnknownSignalError - форма ответа корректна, но символ сигнала
// не входит в алфавит протокола. Трактуется как Hold, диагностика
// сохраняется для лога.
type UnknownSignalError struct {
	Char byte
}

func (e *UnknownSignalError) Error() string {
	return fmt.Sprintf("unknown signal character %q, treating as hold", e.Char)
}

// Encode сериализует вектор признаков в строку запроса.
// lineNo - строго возрастающий счётчик внутри торгового дня.
func Encode(lineNo int, fv *models.FeatureVector) []byte {
	var b strings.Builder

	fields := []string{
		strconv.Itoa(lineNo),
		fv.Bar.Start.Format("150405"),
		fv.Bar.End.Format("150405"),
		f(fv.Bar.Open),
		f(fv.Bar.Close),
		f(fv.Bar.High),
		f(fv.Bar.Low),
		f(fv.Bar.Volume),
		f(fv.SMA9),
		f(fv.SMA20),
		f(fv.SMA50),
		f(fv.MACDHist),
		f(fv.RSI),
		f(fv.BollLower),
		f(fv.BollUpper),
		f(fv.CCI),
		f(fv.Bar.High),
		f(fv.Bar.Low),
		f(fv.Momentum),
		f(fv.DIPlus),
		f(fv.DIMinus),
		f(fv.VROC),
	}

	b.WriteString(strings.Join(fields, ","))
	for i := 0; i < reservedFields; i++ {
		b.WriteString(",0")
	}
	b.WriteByte('\n')

	return []byte(b.String())
}

// Decode извлекает класс сигнала из строки ответа.
//
// Возвращает:
//   - (class, nil): символ распознан
//   - (Hold, *UnknownSignalError): форма корректна, символ вне алфавита
//   - (Hold, *ParseError): строка не соответствует протоколу
func Decode(line string) (models.SignalClass, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return models.SignalHold, &ParseError{Line: line, Reason: "empty response"}
	}

	parts := strings.Split(line, ",")
	if len(parts) <= signalFieldIndex {
		return models.SignalHold, &ParseError{Line: line, Reason: "too few fields"}
	}

	field := strings.TrimSpace(parts[signalFieldIndex])
	if len(field) != 1 {
		return models.SignalHold, &ParseError{Line: line, Reason: "signal field is not a single character"}
	}

	switch field[0] {
	case models.WireSell:
		return models.SignalSell, nil
	case models.WireHold:
		return models.SignalHold, nil
	case models.WireBuy:
		return models.SignalBuy, nil
	default:
		return models.SignalHold, &UnknownSignalError{Char: field[0]}
	}
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
