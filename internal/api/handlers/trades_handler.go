package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"intraday/internal/models"
	"intraday/internal/repository"
	"intraday/pkg/utils"
)

const (
	defaultTradesLimit = 50
	maxTradesLimit     = 500
)

// TradeReader - чтение леджера реализованных сделок
type TradeReader interface {
	GetRecent(symbol string, limit int) ([]*models.TradeRecord, error)
	GetByID(id int) (*models.TradeRecord, error)
	GetStats(symbol string, from time.Time) (*repository.Stats, error)
}

// TradesHandler обрабатывает HTTP запросы к леджеру сделок.
//
// Endpoints:
// - GET /api/trades?limit=N - последние сделки
// - GET /api/trades/{id} - одна сделка по ID
// - GET /api/stats?period=day|month|all - агрегаты за период
type TradesHandler struct {
	trades TradeReader
	symbol string
	loc    *time.Location
}

// NewTradesHandler создает новый TradesHandler.
// Агрегаты считаются в часовом поясе торговой сессии.
func NewTradesHandler(trades TradeReader, symbol string, loc *time.Location) *TradesHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TradesHandler{
		trades: trades,
		symbol: symbol,
		loc:    loc,
	}
}

// GetTrades возвращает последние сделки по торгуемому символу.
//
// GET /api/trades?limit=50
//
// Query Parameters:
// - limit (optional): количество сделок (по умолчанию 50, максимум 500)
//
// Response 200 OK:
//
//	[
//	  {
//	    "id": 42,
//	    "symbol": "ES",
//	    "side": "long",
//	    "quantity": 1,
//	    "entry_price": 4500.25,
//	    "exit_price": 4497.75,
//	    "entry_time": "2026-03-04T15:10:00Z",
//	    "exit_time": "2026-03-04T15:25:00Z",
//	    "pnl": -125.0,
//	    "exit_reason": "soft_deck"
//	  }
//	]
func (h *TradesHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		respondError(w, http.StatusInternalServerError, "trade ledger not initialized", "")
		return
	}

	limit := defaultTradesLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > maxTradesLimit {
			limit = maxTradesLimit
		}
	}

	trades, err := h.trades.GetRecent(h.symbol, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get trades", err.Error())
		return
	}

	// Пустой результат возвращается как [], а не null
	if trades == nil {
		trades = []*models.TradeRecord{}
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetTrade возвращает одну сделку по её ID.
//
// GET /api/trades/{id}
//
// Response 200 OK: объект сделки
// Response 404 Not Found: сделки с таким ID нет
func (h *TradesHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		respondError(w, http.StatusInternalServerError, "trade ledger not initialized", "")
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid trade id", "id must be a positive integer")
		return
	}

	trade, err := h.trades.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			respondError(w, http.StatusNotFound, "trade not found", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get trade", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, trade)
}

// GetStats возвращает агрегаты леджера за период.
//
// GET /api/stats?period=day|month|all
//
// Query Parameters:
// - period (optional): "day", "month" (default) или "all"
//
// Response 200 OK:
//
//	{
//	  "trades": 12,
//	  "wins": 7,
//	  "losses": 5,
//	  "total_pnl": 612.50,
//	  "best_trade": 250.00,
//	  "worst_trade": -130.00
//	}
func (h *TradesHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		respondError(w, http.StatusInternalServerError, "trade ledger not initialized", "")
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}

	now := time.Now().In(h.loc)

	var from time.Time
	switch period {
	case "day":
		from = utils.DayStart(now, h.loc)
	case "month":
		from = utils.MonthStart(now, h.loc)
	case "all":
		// Нулевое время покрывает весь леджер
	default:
		respondError(w, http.StatusBadRequest, "invalid period", "period must be one of: day, month, all")
		return
	}

	stats, err := h.trades.GetStats(h.symbol, from)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
