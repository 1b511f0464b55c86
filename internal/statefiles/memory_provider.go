package statefiles

import "intraday/internal/models"

// MemoryProvider - in-memory реализация Provider для тестов.
// Повторяет семантику FileProvider: незаданное значение = ErrNotFound.
type MemoryProvider struct {
	capital        *float64
	monthLosses    *float64
	vixAverage     *float64
	stopOverride   *float64
	profitPercent  *float64
	marketView     *models.MarketView
	saveCapitalErr error
}

// NewMemoryProvider создаёт пустой провайдер
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

func (p *MemoryProvider) Capital() (float64, error) {
	if p.capital == nil {
		return 0, ErrNotFound
	}
	return *p.capital, nil
}

func (p *MemoryProvider) SaveCapital(v float64) error {
	if p.saveCapitalErr != nil {
		return p.saveCapitalErr
	}
	p.capital = &v
	return nil
}

func (p *MemoryProvider) MonthLosses() (float64, error) {
	if p.monthLosses == nil {
		return 0, ErrNotFound
	}
	return *p.monthLosses, nil
}

func (p *MemoryProvider) SaveMonthLosses(v float64) error {
	p.monthLosses = &v
	return nil
}

func (p *MemoryProvider) VIXAverage() (float64, error) {
	if p.vixAverage == nil {
		return 0, ErrNotFound
	}
	return *p.vixAverage, nil
}

func (p *MemoryProvider) StopOverride() (float64, error) {
	if p.stopOverride == nil {
		return 0, ErrNotFound
	}
	return *p.stopOverride, nil
}

func (p *MemoryProvider) ProfitPercent() (float64, error) {
	if p.profitPercent == nil {
		return 0, ErrNotFound
	}
	return *p.profitPercent, nil
}

func (p *MemoryProvider) MarketView() (models.MarketView, error) {
	if p.marketView == nil {
		return models.ViewNeutral, nil
	}
	return *p.marketView, nil
}

// Сеттеры для тестов

func (p *MemoryProvider) SetCapital(v float64)              { p.capital = &v }
func (p *MemoryProvider) SetMonthLosses(v float64)          { p.monthLosses = &v }
func (p *MemoryProvider) SetVIXAverage(v float64)           { p.vixAverage = &v }
func (p *MemoryProvider) SetStopOverride(v float64)         { p.stopOverride = &v }
func (p *MemoryProvider) SetProfitPercent(v float64)        { p.profitPercent = &v }
func (p *MemoryProvider) SetMarketView(v models.MarketView) { p.marketView = &v }
func (p *MemoryProvider) FailSaveCapital(err error)         { p.saveCapitalErr = err }
