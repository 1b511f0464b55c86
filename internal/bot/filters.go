package bot

import (
	"fmt"
	"math"
	"strings"

	"intraday/internal/models"
)

// filters.go - банк индикаторных фильтров входа
//
// Каждый фильтр независим и отвечает на один вопрос: разрешён ли вход
// по данному сигналу при данных значениях индикаторов. Комбинации
// собираются из тех же примитивов. Фильтры не трогают состояние:
// чистые предикаты над вектором признаков.

// Режимы фильтрации входа
const (
	FilterModeNone          = "none"
	FilterModeRSI           = "rsi"
	FilterModeMACD          = "macd"
	FilterModeCCI           = "cci"
	FilterModeADX           = "adx"
	FilterModeVROC          = "vroc"
	FilterModeRSIMACD       = "rsi_macd"
	FilterModeRSIVROC       = "rsi_vroc"
	FilterModeADXVROC       = "adx_vroc"
	FilterModeRSIADXVROC    = "rsi_adx_vroc"
	FilterModeMACDOrRSIVROC = "macd_or_rsi_and_vroc"
)

// FilterThresholds - пороги всех фильтров.
// Активен только набор, выбранный режимом; остальные поля игнорируются.
type FilterThresholds struct {
	RSILower float64 // ниже - перепроданность, блокирует Sell
	RSIUpper float64 // выше - перекупленность, блокирует Buy

	MACDThreshold  float64 // порог величины гистограммы
	MACDTradeAbove bool    // false: торговать ниже порога; true: выше

	CCILower float64
	CCIUpper float64

	ADXThreshold float64 // минимальная сила тренда

	VROCBand       float64 // симметричная полоса отсечения
	VROCBullish    float64 // асимметричный порог для Buy
	VROCBearish    float64 // асимметричный порог для Sell
	VROCAsymmetric bool
}

// EntryFilter - предикат допуска входа
type EntryFilter interface {
	Name() string
	Allows(sig models.SignalClass, fv *models.FeatureVector) bool
}

// ============================================================
// Примитивные фильтры
// ============================================================

// rsiFilter блокирует входы в зоны перекупленности/перепроданности:
// Buy запрещён при RSI >= upper, Sell при RSI <= lower
type rsiFilter struct {
	lower, upper float64
}

func (f *rsiFilter) Name() string { return "rsi" }

func (f *rsiFilter) Allows(sig models.SignalClass, fv *models.FeatureVector) bool {
	switch sig {
	case models.SignalBuy:
		return fv.RSI < f.upper
	case models.SignalSell:
		return fv.RSI > f.lower
	}
	return true
}

// macdFilter отсекает по величине гистограммы MACD.
// tradeAbove=false: вход только при |hist| ниже порога (тихий рынок);
// tradeAbove=true: только при |hist| не ниже порога (выраженный импульс).
type macdFilter struct {
	threshold  float64
	tradeAbove bool
}

func (f *macdFilter) Name() string { return "macd" }

func (f *macdFilter) Allows(_ models.SignalClass, fv *models.FeatureVector) bool {
	magnitude := math.Abs(fv.MACDHist)
	if f.tradeAbove {
		return magnitude >= f.threshold
	}
	return magnitude < f.threshold
}

// cciFilter блокирует входы на экстремумах CCI:
// Buy при CCI >= upper, Sell при CCI <= lower
type cciFilter struct {
	lower, upper float64
}

func (f *cciFilter) Name() string { return "cci" }

func (f *cciFilter) Allows(sig models.SignalClass, fv *models.FeatureVector) bool {
	switch sig {
	case models.SignalBuy:
		return fv.CCI < f.upper
	case models.SignalSell:
		return fv.CCI > f.lower
	}
	return true
}

// adxFilter пропускает входы только при достаточной силе тренда
type adxFilter struct {
	threshold float64
}

func (f *adxFilter) Name() string { return "adx" }

func (f *adxFilter) Allows(_ models.SignalClass, fv *models.FeatureVector) bool {
	return fv.ADX >= f.threshold
}

// vrocFilter - фильтр по скорости изменения объёма.
// Симметричный вариант: вход только при |VROC| >= band (объём подтверждает
// движение). Асимметричный: Buy требует VROC >= bullish, Sell - VROC <= bearish.
type vrocFilter struct {
	band       float64
	bullish    float64
	bearish    float64
	asymmetric bool
}

func (f *vrocFilter) Name() string { return "vroc" }

func (f *vrocFilter) Allows(sig models.SignalClass, fv *models.FeatureVector) bool {
	if !f.asymmetric {
		return math.Abs(fv.VROC) >= f.band
	}

	switch sig {
	case models.SignalBuy:
		return fv.VROC >= f.bullish
	case models.SignalSell:
		return fv.VROC <= f.bearish
	}
	return true
}

// ============================================================
// Композиты
// ============================================================

// allowAll - фильтрация выключена
type allowAll struct{}

func (allowAll) Name() string { return "none" }

func (allowAll) Allows(models.SignalClass, *models.FeatureVector) bool { return true }

// andFilter пропускает вход только когда согласны все фильтры
type andFilter struct {
	filters []EntryFilter
}

func (f *andFilter) Name() string {
	names := make([]string, len(f.filters))
	for i, sub := range f.filters {
		names[i] = sub.Name()
	}
	return strings.Join(names, "+")
}

func (f *andFilter) Allows(sig models.SignalClass, fv *models.FeatureVector) bool {
	for _, sub := range f.filters {
		if !sub.Allows(sig, fv) {
			return false
		}
	}
	return true
}

// orFilter пропускает вход когда согласен хотя бы один фильтр
type orFilter struct {
	filters []EntryFilter
}

func (f *orFilter) Name() string {
	names := make([]string, len(f.filters))
	for i, sub := range f.filters {
		names[i] = sub.Name()
	}
	return strings.Join(names, "|")
}

func (f *orFilter) Allows(sig models.SignalClass, fv *models.FeatureVector) bool {
	for _, sub := range f.filters {
		if sub.Allows(sig, fv) {
			return true
		}
	}
	return false
}

// BuildFilter собирает фильтр входа по режиму и порогам
func BuildFilter(mode string, th FilterThresholds) (EntryFilter, error) {
	rsi := &rsiFilter{lower: th.RSILower, upper: th.RSIUpper}
	macd := &macdFilter{threshold: th.MACDThreshold, tradeAbove: th.MACDTradeAbove}
	cci := &cciFilter{lower: th.CCILower, upper: th.CCIUpper}
	adx := &adxFilter{threshold: th.ADXThreshold}
	vroc := &vrocFilter{band: th.VROCBand, bullish: th.VROCBullish, bearish: th.VROCBearish, asymmetric: th.VROCAsymmetric}

	switch mode {
	case FilterModeNone, "":
		return allowAll{}, nil
	case FilterModeRSI:
		return rsi, nil
	case FilterModeMACD:
		return macd, nil
	case FilterModeCCI:
		return cci, nil
	case FilterModeADX:
		return adx, nil
	case FilterModeVROC:
		return vroc, nil
	case FilterModeRSIMACD:
		return &andFilter{filters: []EntryFilter{rsi, macd}}, nil
	case FilterModeRSIVROC:
		return &andFilter{filters: []EntryFilter{rsi, vroc}}, nil
	case FilterModeADXVROC:
		return &andFilter{filters: []EntryFilter{adx, vroc}}, nil
	case FilterModeRSIADXVROC:
		return &andFilter{filters: []EntryFilter{rsi, adx, vroc}}, nil
	case FilterModeMACDOrRSIVROC:
		return &andFilter{filters: []EntryFilter{
			&orFilter{filters: []EntryFilter{macd, rsi}},
			vroc,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown entry filter mode: %q", mode)
	}
}
