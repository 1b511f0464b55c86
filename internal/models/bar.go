package models

import "time"

// Bar представляет один завершённый бар первичной или вторичной серии
type Bar struct {
	Seq    int       `json:"seq"`    // порядковый номер бара в сессии
	Start  time.Time `json:"start"`  // время открытия бара
	End    time.Time `json:"end"`    // время закрытия бара
	Open   float64   `json:"open"`
	Close  float64   `json:"close"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Volume float64   `json:"volume"`
}

// FeatureVector - вектор признаков для одного бара.
//
// Индикаторы рассчитываются хост-платформой и передаются ядру как готовые
// значения (black-box inputs). Ядро их не пересчитывает.
type FeatureVector struct {
	Bar Bar

	SMA9      float64
	SMA20     float64
	SMA50     float64
	MACDHist  float64
	RSI       float64
	BollLower float64
	BollUpper float64
	CCI       float64
	Momentum  float64
	DIPlus    float64
	DIMinus   float64
	VROC      float64

	// ADX не входит в wire-формат предиктора, но используется
	// фильтрами входа (передаётся хост-платформой вместе с баром)
	ADX float64
}

// SMA возвращает скользящую среднюю по периоду (9/20/50)
// Неизвестный период трактуется как SMA20 - безопасный default для market-shift выхода
func (fv *FeatureVector) SMA(period int) float64 {
	switch period {
	case 9:
		return fv.SMA9
	case 50:
		return fv.SMA50
	default:
		return fv.SMA20
	}
}
