package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intraday/internal/api/handlers"
	"intraday/internal/api/middleware"
	"intraday/internal/bot"
	"intraday/internal/repository"
	"intraday/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Engine *bot.Engine
	Trades *repository.TradeRepository
	Hub    *websocket.Hub
	Logger *zap.Logger

	// Bcrypt хеш API токена для операторских команд.
	// Пустой хеш отключает control endpoints.
	TokenHash string

	// Торгуемый символ и часовой пояс сессии для запросов к леджеру
	Symbol   string
	Location *time.Location
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/
//
//	├── GET /status - снимок runtime состояния стратегии
//	├── GET /trades?limit=N - последние сделки леджера
//	├── GET /trades/{id} - одна сделка леджера
//	├── GET /stats?period=day|month|all - агрегаты леджера
//	└── /strategy/ (Bearer токен)
//	    ├── POST /pause - приостановить новые входы
//	    ├── POST /resume - снять паузу и дневной halt
//	    └── POST /flatten - принудительно закрыть позицию
//
// /ws - WebSocket поток runtime снимков и уведомлений
// /metrics - Prometheus метрики
// /healthz - проверка живости
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для /api/strategy/*)
func SetupRoutes(deps *Dependencies) *mux.Router {
	logger := zap.NewNop()
	if deps != nil && deps.Logger != nil {
		logger = deps.Logger
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var strategyHandler *handlers.StrategyHandler
	if deps != nil && deps.Engine != nil {
		strategyHandler = handlers.NewStrategyHandler(deps.Engine)
	}

	var tradesHandler *handlers.TradesHandler
	if deps != nil && deps.Trades != nil {
		tradesHandler = handlers.NewTradesHandler(deps.Trades, deps.Symbol, deps.Location)
	}

	// API routes
	api := router.PathPrefix("/api").Subrouter()

	if strategyHandler != nil {
		api.HandleFunc("/status", strategyHandler.GetStatus).Methods("GET")

		// Операторские команды защищены Bearer токеном
		control := api.PathPrefix("/strategy").Subrouter()
		control.Use(middleware.Auth(deps.TokenHash, logger))
		control.HandleFunc("/pause", strategyHandler.Pause).Methods("POST")
		control.HandleFunc("/resume", strategyHandler.Resume).Methods("POST")
		control.HandleFunc("/flatten", strategyHandler.Flatten).Methods("POST")
	}

	if tradesHandler != nil {
		api.HandleFunc("/trades", tradesHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/{id:[0-9]+}", tradesHandler.GetTrade).Methods("GET")
		api.HandleFunc("/stats", tradesHandler.GetStats).Methods("GET")
	}

	// WebSocket поток мониторинга
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
