package statefiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"intraday/internal/models"
)

// Расширения файлов состояния. Префикс имени - символ инструмента.
const (
	extCapital       = ".cc"
	extMonthLosses   = ".cl"
	extVIX           = ".vix"
	extStopOverride  = ".pstop"
	extProfitPercent = ".pp"
	extMarketView    = ".mkt"
)

// FileProvider - файловая реализация Provider.
// Каждое значение - plain text файл с одним числом. Файлы читаются
// с диска на каждый вызов, внешние процессы могут менять их между
// границами.
type FileProvider struct {
	dir    string
	prefix string
}

// NewFileProvider создаёт провайдер для каталога dir с префиксом prefix
func NewFileProvider(dir, prefix string) *FileProvider {
	return &FileProvider{dir: dir, prefix: prefix}
}

func (p *FileProvider) path(ext string) string {
	return filepath.Join(p.dir, p.prefix+ext)
}

// readFloat читает одно десятичное значение из файла.
// Отсутствующий файл транслируется в ErrNotFound, битое содержимое - в ошибку.
func (p *FileProvider) readFloat(ext string) (float64, error) {
	data, err := os.ReadFile(p.path(ext))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to read %s: %w", p.path(ext), err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, ErrNotFound
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value in %s: %w", p.path(ext), err)
	}
	return v, nil
}

// writeFloat перезаписывает файл одним значением
func (p *FileProvider) writeFloat(ext string, v float64) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data := strconv.FormatFloat(v, 'f', -1, 64) + "\n"
	if err := os.WriteFile(p.path(ext), []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.path(ext), err)
	}
	return nil
}

func (p *FileProvider) Capital() (float64, error) {
	return p.readFloat(extCapital)
}

func (p *FileProvider) SaveCapital(v float64) error {
	return p.writeFloat(extCapital, v)
}

func (p *FileProvider) MonthLosses() (float64, error) {
	return p.readFloat(extMonthLosses)
}

func (p *FileProvider) SaveMonthLosses(v float64) error {
	return p.writeFloat(extMonthLosses, v)
}

func (p *FileProvider) VIXAverage() (float64, error) {
	return p.readFloat(extVIX)
}

func (p *FileProvider) StopOverride() (float64, error) {
	return p.readFloat(extStopOverride)
}

func (p *FileProvider) ProfitPercent() (float64, error) {
	return p.readFloat(extProfitPercent)
}

// MarketView читает код взгляда на рынок: 0=Bearish, 1=Neutral, 2=Bullish.
// Отсутствие файла - Neutral. Неизвестный код - Neutral плюс ошибка,
// вызывающий логирует и продолжает без veto.
func (p *FileProvider) MarketView() (models.MarketView, error) {
	v, err := p.readFloat(extMarketView)
	if err != nil {
		if err == ErrNotFound {
			return models.ViewNeutral, nil
		}
		return models.ViewNeutral, err
	}

	switch int(v) {
	case 0:
		return models.ViewBearish, nil
	case 1:
		return models.ViewNeutral, nil
	case 2:
		return models.ViewBullish, nil
	default:
		return models.ViewNeutral, fmt.Errorf("unknown market view code: %v", v)
	}
}
