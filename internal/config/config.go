package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"intraday/internal/models"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Predictor PredictorConfig
	Strategy  StrategyConfig
	Session   SessionConfig
	Files     FilesConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера мониторинга
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД (леджер сделок)
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// APITokenHash - bcrypt хеш токена операторских команд.
	// Пустое значение отключает control endpoints.
	APITokenHash string
}

// PredictorConfig - настройки TCP канала к предиктору
type PredictorConfig struct {
	Addr    string
	Timeout time.Duration

	// SecondaryAddr - адрес подтверждающего предиктора для hard deck,
	// пустое значение выключает вторичный канал
	SecondaryAddr string
}

// StrategyConfig - торговые параметры стратегии
type StrategyConfig struct {
	Mode           string // live, backtest
	Symbol         string
	Quantity       int
	TickSize       float64
	DollarPerPoint float64
	Commission     float64
	EntryOrderType string // limit, market

	SoftDeckTicks    int
	HardDeckTicks    int
	ProfitChaseTicks int

	ProfitPercentage float64
	PStops           float64
	ShiftSMAPeriod   int

	ProfitChaseSignalGated bool
	UseMarketView          bool
	SimpleChaseStop        bool

	FilterMode string
	Filters    FilterConfig

	StartingCapital float64
	VIXThreshold    float64
	LowVol          models.RegimeParameters
	HighVol         models.RegimeParameters
}

// FilterConfig - пороги индикаторных фильтров входа
type FilterConfig struct {
	RSILower float64
	RSIUpper float64

	MACDThreshold  float64
	MACDTradeAbove bool

	CCILower float64
	CCIUpper float64

	ADXThreshold float64

	VROCBand       float64
	VROCBullish    float64
	VROCBearish    float64
	VROCAsymmetric bool
}

// SessionConfig - границы торговой сессии
type SessionConfig struct {
	// Cutoffs - время от полуночи в часовом поясе биржи
	RegularCutoff time.Duration
	FridayCutoff  time.Duration
	Timezone      string

	location *time.Location
}

// Location возвращает загруженный часовой пояс сессии
func (s SessionConfig) Location() *time.Location {
	return s.location
}

// FilesConfig - каталог state-файлов (капитал, overrides, market view)
type FilesConfig struct {
	Dir string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Dir     string
	Level   string
	Console bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "intraday"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			APITokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Predictor: PredictorConfig{
			Addr:          getEnv("PREDICTOR_ADDR", ""),
			Timeout:       getEnvAsDuration("PREDICTOR_TIMEOUT", 10*time.Second),
			SecondaryAddr: getEnv("SECONDARY_PREDICTOR_ADDR", ""),
		},
		Strategy: StrategyConfig{
			Mode:           getEnv("MODE", "backtest"),
			Symbol:         getEnv("SYMBOL", "ES"),
			Quantity:       getEnvAsInt("QUANTITY", 1),
			TickSize:       getEnvAsFloat("TICK_SIZE", 0.25),
			DollarPerPoint: getEnvAsFloat("DOLLAR_PER_POINT", 50),
			Commission:     getEnvAsFloat("COMMISSION", 0),
			EntryOrderType: getEnv("ENTRY_ORDER_TYPE", "limit"),

			SoftDeckTicks:    getEnvAsInt("SOFT_DECK_TICKS", 10),
			HardDeckTicks:    getEnvAsInt("HARD_DECK_TICKS", 30),
			ProfitChaseTicks: getEnvAsInt("PROFIT_CHASE_TICKS", 20),

			ProfitPercentage: getEnvAsFloat("PROFIT_PERCENTAGE", 0.35),
			PStops:           getEnvAsFloat("PSTOPS", 10),
			ShiftSMAPeriod:   getEnvAsInt("SHIFT_SMA_PERIOD", 20),

			ProfitChaseSignalGated: getEnvAsBool("PROFIT_CHASE_SIGNAL_GATED", false),
			UseMarketView:          getEnvAsBool("USE_MARKET_VIEW", false),
			SimpleChaseStop:        getEnvAsBool("SIMPLE_CHASE_STOP", false),

			FilterMode: getEnv("FILTER_MODE", "none"),
			Filters: FilterConfig{
				RSILower:       getEnvAsFloat("RSI_LOWER", 30),
				RSIUpper:       getEnvAsFloat("RSI_UPPER", 70),
				MACDThreshold:  getEnvAsFloat("MACD_THRESHOLD", 2),
				MACDTradeAbove: getEnvAsBool("MACD_TRADE_ABOVE", false),
				CCILower:       getEnvAsFloat("CCI_LOWER", -150),
				CCIUpper:       getEnvAsFloat("CCI_UPPER", 150),
				ADXThreshold:   getEnvAsFloat("ADX_THRESHOLD", 25),
				VROCBand:       getEnvAsFloat("VROC_BAND", 10),
				VROCBullish:    getEnvAsFloat("VROC_BULLISH", 8),
				VROCBearish:    getEnvAsFloat("VROC_BEARISH", -8),
				VROCAsymmetric: getEnvAsBool("VROC_ASYMMETRIC", false),
			},

			StartingCapital: getEnvAsFloat("STARTING_CAPITAL", 0),
			VIXThreshold:    getEnvAsFloat("VIX_THRESHOLD", 20),
			LowVol: models.RegimeParameters{
				MaxConsecutiveLosses:     getEnvAsInt("LOWVOL_MAX_CONSECUTIVE_LOSSES", 5),
				LossCeiling:              getEnvAsInt("LOWVOL_LOSS_CEILING", 7),
				MinConsecutiveWins:       getEnvAsInt("LOWVOL_MIN_CONSECUTIVE_WINS", 2),
				ProfitChasingTarget:      getEnvAsFloat("LOWVOL_PROFIT_CHASING_TARGET", 0.6),
				MaxDrawdownPct:           getEnvAsFloat("LOWVOL_MAX_DRAWDOWN_PCT", 0.15),
				ProfitChasingDrawdownPct: getEnvAsFloat("LOWVOL_PROFIT_CHASING_DRAWDOWN_PCT", 0.05),
			},
			HighVol: models.RegimeParameters{
				MaxConsecutiveLosses:     getEnvAsInt("HIGHVOL_MAX_CONSECUTIVE_LOSSES", 3),
				LossCeiling:              getEnvAsInt("HIGHVOL_LOSS_CEILING", 5),
				MinConsecutiveWins:       getEnvAsInt("HIGHVOL_MIN_CONSECUTIVE_WINS", 2),
				ProfitChasingTarget:      getEnvAsFloat("HIGHVOL_PROFIT_CHASING_TARGET", 0.4),
				MaxDrawdownPct:           getEnvAsFloat("HIGHVOL_MAX_DRAWDOWN_PCT", 0.1),
				ProfitChasingDrawdownPct: getEnvAsFloat("HIGHVOL_PROFIT_CHASING_DRAWDOWN_PCT", 0.04),
			},
		},
		Files: FilesConfig{
			Dir: getEnv("STATE_DIR", "./state"),
		},
		Logging: LoggingConfig{
			Dir:     getEnv("LOG_DIR", "./logs"),
			Level:   getEnv("LOG_LEVEL", "info"),
			Console: getEnvAsBool("LOG_CONSOLE", true),
		},
	}

	var err error
	cfg.Session.Timezone = getEnv("SESSION_TIMEZONE", "America/New_York")
	cfg.Session.RegularCutoff, err = parseClock(getEnv("SESSION_CUTOFF", "15:45"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_CUTOFF: %w", err)
	}
	cfg.Session.FridayCutoff, err = parseClock(getEnv("FRIDAY_CUTOFF", "14:45"))
	if err != nil {
		return nil, fmt.Errorf("FRIDAY_CUTOFF: %w", err)
	}
	cfg.Session.location, err = time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SESSION_TIMEZONE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет критичные параметры перед стартом процесса
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Predictor.Addr == "" {
		return fmt.Errorf("PREDICTOR_ADDR is required")
	}
	if c.Predictor.Timeout <= 0 {
		return fmt.Errorf("PREDICTOR_TIMEOUT must be positive, got %v", c.Predictor.Timeout)
	}

	s := &c.Strategy
	if s.Mode != "live" && s.Mode != "backtest" {
		return fmt.Errorf("MODE must be live or backtest, got %q", s.Mode)
	}
	if s.EntryOrderType != "limit" && s.EntryOrderType != "market" {
		return fmt.Errorf("ENTRY_ORDER_TYPE must be limit or market, got %q", s.EntryOrderType)
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("QUANTITY must be positive, got %d", s.Quantity)
	}
	if s.TickSize <= 0 {
		return fmt.Errorf("TICK_SIZE must be positive, got %v", s.TickSize)
	}
	if s.DollarPerPoint <= 0 {
		return fmt.Errorf("DOLLAR_PER_POINT must be positive, got %v", s.DollarPerPoint)
	}
	if s.SoftDeckTicks <= 0 {
		return fmt.Errorf("SOFT_DECK_TICKS must be positive, got %d", s.SoftDeckTicks)
	}
	if s.HardDeckTicks <= s.SoftDeckTicks {
		return fmt.Errorf("HARD_DECK_TICKS (%d) must exceed SOFT_DECK_TICKS (%d)",
			s.HardDeckTicks, s.SoftDeckTicks)
	}
	if s.ProfitChaseTicks <= 0 {
		return fmt.Errorf("PROFIT_CHASE_TICKS must be positive, got %d", s.ProfitChaseTicks)
	}
	if s.ProfitPercentage <= 0 || s.ProfitPercentage > 1 {
		return fmt.Errorf("PROFIT_PERCENTAGE must be in (0, 1], got %v", s.ProfitPercentage)
	}
	if s.ShiftSMAPeriod <= 0 {
		return fmt.Errorf("SHIFT_SMA_PERIOD must be positive, got %d", s.ShiftSMAPeriod)
	}
	if s.StartingCapital <= 0 {
		return fmt.Errorf("STARTING_CAPITAL is required and must be positive, got %v", s.StartingCapital)
	}

	// Живой режим меняет реальные деньги: операторские команды
	// без авторизации недопустимы
	if s.Mode == "live" && c.Security.APITokenHash == "" {
		return fmt.Errorf("API_TOKEN_HASH is required in live mode")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// parseClock разбирает время "HH:MM" в смещение от полуночи
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hours in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
