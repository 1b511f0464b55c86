package bot

import (
	"time"

	"go.uber.org/zap"

	"intraday/pkg/utils"
)

// session.go - контроллер границ торговой сессии
//
// Жизненный цикл: InSession → (cutoff по wall-clock) → Flattening →
// SessionClosed → (новый календарный день на потоке баров) → InSession.
// Детект конца сессии защёлкивается один раз в день; бары после
// закрытия игнорируются до смены даты.

// SessionConfig - параметры границ сессии.
// Cutoff задаются как смещение от полуночи торговой таймзоны:
// номинальное закрытие минус защитный буфер. Пятница закрывается раньше.
type SessionConfig struct {
	RegularCutoff time.Duration
	FridayCutoff  time.Duration
	Location      *time.Location
}

// SessionController - состояние границ дня
type SessionController struct {
	cfg    SessionConfig
	logger *zap.Logger

	// endSession - защёлка конца сессии, снимается только сменой даты
	endSession bool

	// currentDay - начало наблюдаемого календарного дня,
	// нулевое значение до первого бара
	currentDay time.Time
}

// NewSessionController создаёт контроллер
func NewSessionController(cfg SessionConfig, logger *zap.Logger) *SessionController {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &SessionController{cfg: cfg, logger: logger}
}

// NewDay возвращает true если t принадлежит новому календарному дню
// (включая самый первый бар). Смена дня снимает защёлку endSession.
func (sc *SessionController) NewDay(t time.Time) bool {
	if !sc.currentDay.IsZero() && utils.SameDay(sc.currentDay, t, sc.cfg.Location) {
		return false
	}

	sc.currentDay = utils.DayStart(t, sc.cfg.Location)
	if sc.endSession {
		sc.logger.Info("new trading day observed, session re-armed",
			zap.Time("day", sc.currentDay))
	}
	sc.endSession = false
	return true
}

// CutoffReached возвращает true ровно один раз за день: когда t впервые
// достигла момента принудительного закрытия
func (sc *SessionController) CutoffReached(t time.Time) bool {
	if sc.endSession {
		return false
	}
	if !utils.CutoffReached(t, sc.cfg.RegularCutoff, sc.cfg.FridayCutoff, sc.cfg.Location) {
		return false
	}

	sc.endSession = true
	sc.logger.Info("session cutoff reached", zap.Time("bar_time", t))
	return true
}

// Ended возвращает true после детекта конца сессии до следующего дня
func (sc *SessionController) Ended() bool {
	return sc.endSession
}

// CurrentDay возвращает начало наблюдаемого календарного дня
func (sc *SessionController) CurrentDay() time.Time {
	return sc.currentDay
}
