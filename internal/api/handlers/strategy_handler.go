package handlers

import (
	"errors"
	"net/http"

	"intraday/internal/bot"
	"intraday/internal/models"
)

// StrategyController - операции над работающим торговым ядром.
// Реализуется bot.Engine, интерфейс нужен для тестов без брокера.
type StrategyController interface {
	Snapshot() models.StrategyRuntime
	Pause()
	Resume()
	FlattenNow() error
}

// StrategyHandler обрабатывает HTTP запросы управления стратегией.
//
// Endpoints:
// - GET /api/status - снимок runtime состояния стратегии
// - POST /api/strategy/pause - приостановить новые входы
// - POST /api/strategy/resume - снять паузу и дневной halt
// - POST /api/strategy/flatten - принудительно закрыть позицию
type StrategyHandler struct {
	engine StrategyController
}

// NewStrategyHandler создает новый StrategyHandler
func NewStrategyHandler(engine StrategyController) *StrategyHandler {
	return &StrategyHandler{engine: engine}
}

// GetStatus возвращает текущий снимок runtime состояния.
//
// GET /api/status
//
// Response 200 OK: models.StrategyRuntime
func (h *StrategyHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusInternalServerError, "engine not initialized", "")
		return
	}

	respondJSON(w, http.StatusOK, h.engine.Snapshot())
}

// Pause приостанавливает новые входы. Открытая позиция и её выходы
// продолжают обрабатываться.
//
// POST /api/strategy/pause
//
// Response 200 OK:
//
//	{"message": "strategy paused"}
func (h *StrategyHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusInternalServerError, "engine not initialized", "")
		return
	}

	h.engine.Pause()
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "strategy paused"})
}

// Resume снимает операторскую паузу и дневной halt.
//
// POST /api/strategy/resume
//
// Response 200 OK:
//
//	{"message": "strategy resumed"}
func (h *StrategyHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusInternalServerError, "engine not initialized", "")
		return
	}

	h.engine.Resume()
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "strategy resumed"})
}

// Flatten принудительно закрывает открытую позицию рыночным ордером.
//
// POST /api/strategy/flatten
//
// Response 200 OK:
//
//	{"message": "flatten order submitted"}
//
// Response 409 Conflict: позиция не открыта
func (h *StrategyHandler) Flatten(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusInternalServerError, "engine not initialized", "")
		return
	}

	if err := h.engine.FlattenNow(); err != nil {
		if errors.Is(err, bot.ErrNotOpen) {
			respondError(w, http.StatusConflict, "no open position", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to flatten position", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "flatten order submitted"})
}
