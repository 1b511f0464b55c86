package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"intraday/internal/api"
	"intraday/internal/bot"
	"intraday/internal/broker"
	"intraday/internal/config"
	"intraday/internal/predictor"
	"intraday/internal/repository"
	"intraday/internal/statefiles"
	"intraday/internal/websocket"
	"intraday/pkg/logging"
	"intraday/pkg/retry"

	_ "github.com/lib/pq"
)

func main() {
	// .env для локального запуска, в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLogger, err := logging.New(logging.Config{
		Dir:     cfg.Logging.Dir,
		Prefix:  cfg.Strategy.Symbol,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer closeLogger()

	logger.Info("starting intraday controller",
		zap.String("symbol", cfg.Strategy.Symbol),
		zap.String("mode", cfg.Strategy.Mode),
	)

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	tradeRepo := repository.NewTradeRepository(db)
	files := statefiles.NewFileProvider(cfg.Files.Dir, cfg.Strategy.Symbol)

	// Сигнальный канал к предиктору; подтверждающий канал опционален
	signalClient := predictor.NewClient(cfg.Predictor.Addr, cfg.Predictor.Timeout, logger)
	var secondary bot.SignalSource
	var secondaryClient *predictor.Client
	if cfg.Predictor.SecondaryAddr != "" {
		secondaryClient = predictor.NewClient(cfg.Predictor.SecondaryAddr, cfg.Predictor.Timeout, logger)
		secondary = secondaryClient
	}

	// Бумажный брокер: backtest исполняется полностью против него,
	// живая хост-платформа подставляет собственный адаптер
	brk := broker.NewPaperBroker(cfg.Strategy.DollarPerPoint, cfg.Strategy.Commission, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	engine, err := bot.NewEngine(
		strategyConfig(cfg),
		signalClient,
		secondary,
		brk,
		tradeRepo,
		files,
		hub,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	deps := &api.Dependencies{
		Engine:    engine,
		Trades:    tradeRepo,
		Hub:       hub,
		Logger:    logger,
		TokenHash: cfg.Security.APITokenHash,
		Symbol:    cfg.Strategy.Symbol,
		Location:  cfg.Session.Location(),
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}

	hub.Stop()

	if err := signalClient.Close(); err != nil {
		logger.Warn("error closing predictor channel", zap.Error(err))
	}
	if secondaryClient != nil {
		if err := secondaryClient.Close(); err != nil {
			logger.Warn("error closing secondary predictor channel", zap.Error(err))
		}
	}

	logger.Info("stopped")
}

// strategyConfig собирает конфигурацию ядра из конфигурации процесса
func strategyConfig(cfg *config.Config) bot.StrategyConfig {
	s := cfg.Strategy
	return bot.StrategyConfig{
		Symbol:         s.Symbol,
		Mode:           s.Mode,
		Quantity:       s.Quantity,
		TickSize:       s.TickSize,
		DollarPerPoint: s.DollarPerPoint,
		Commission:     s.Commission,
		EntryOrderType: s.EntryOrderType,

		Policy: bot.PolicyConfig{
			TickSize:               s.TickSize,
			SoftDeckTicks:          s.SoftDeckTicks,
			HardDeckTicks:          s.HardDeckTicks,
			ProfitChaseTicks:       s.ProfitChaseTicks,
			ProfitPercentage:       s.ProfitPercentage,
			PStops:                 s.PStops,
			ShiftSMAPeriod:         s.ShiftSMAPeriod,
			ProfitChaseSignalGated: s.ProfitChaseSignalGated,
		},
		FilterMode: s.FilterMode,
		Filters: bot.FilterThresholds{
			RSILower:       s.Filters.RSILower,
			RSIUpper:       s.Filters.RSIUpper,
			MACDThreshold:  s.Filters.MACDThreshold,
			MACDTradeAbove: s.Filters.MACDTradeAbove,
			CCILower:       s.Filters.CCILower,
			CCIUpper:       s.Filters.CCIUpper,
			ADXThreshold:   s.Filters.ADXThreshold,
			VROCBand:       s.Filters.VROCBand,
			VROCBullish:    s.Filters.VROCBullish,
			VROCBearish:    s.Filters.VROCBearish,
			VROCAsymmetric: s.Filters.VROCAsymmetric,
		},

		UseMarketView:   s.UseMarketView,
		SimpleChaseStop: s.SimpleChaseStop,

		StartingCapital: s.StartingCapital,
		VIXThreshold:    s.VIXThreshold,
		LowVol:          s.LowVol,
		HighVol:         s.HighVol,

		Session: bot.SessionConfig{
			RegularCutoff: cfg.Session.RegularCutoff,
			FridayCutoff:  cfg.Session.FridayCutoff,
			Location:      cfg.Session.Location(),
		},
	}
}

// initDatabase создает подключение к базе данных.
// Ping с backoff: при старте docker-compose БД может подняться позже процесса.
func initDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pingCfg := retry.NetworkConfig()
	pingCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	if err := retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, pingCfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
