package bot

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestSession() *SessionController {
	return NewSessionController(SessionConfig{
		RegularCutoff: 15*time.Hour + 45*time.Minute,
		FridayCutoff:  14*time.Hour + 45*time.Minute,
		Location:      time.UTC,
	}, zap.NewNop())
}

func TestSessionNewDayDetection(t *testing.T) {
	sc := newTestSession()

	monday := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	if !sc.NewDay(monday) {
		t.Fatal("first bar must open a new day")
	}
	if sc.NewDay(monday.Add(5 * time.Minute)) {
		t.Fatal("same-day bar must not re-trigger")
	}
	if !sc.NewDay(monday.Add(24 * time.Hour)) {
		t.Fatal("next calendar day must trigger")
	}
}

func TestSessionCutoffLatchesOncePerDay(t *testing.T) {
	sc := newTestSession()

	monday := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	sc.NewDay(monday)

	if sc.CutoffReached(monday.Add(6 * time.Hour)) { // 15:30
		t.Fatal("cutoff fired before 15:45")
	}
	if !sc.CutoffReached(time.Date(2024, 3, 4, 15, 45, 0, 0, time.UTC)) {
		t.Fatal("cutoff must fire at 15:45")
	}
	if !sc.Ended() {
		t.Fatal("session must be marked ended after cutoff")
	}

	// Защёлка: повторные бары после cutoff не перезапускают закрытие
	if sc.CutoffReached(time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)) {
		t.Fatal("cutoff must fire exactly once per day")
	}

	// Новый день снимает защёлку
	tuesday := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	if !sc.NewDay(tuesday) {
		t.Fatal("tuesday must open a new day")
	}
	if sc.Ended() {
		t.Fatal("new day must clear the end-session latch")
	}
	if !sc.CutoffReached(time.Date(2024, 3, 5, 15, 50, 0, 0, time.UTC)) {
		t.Fatal("cutoff must re-arm for the new day")
	}
}

func TestSessionFridayEarlyCutoff(t *testing.T) {
	sc := newTestSession()

	friday := time.Date(2024, 3, 8, 9, 30, 0, 0, time.UTC)
	sc.NewDay(friday)

	if sc.CutoffReached(time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC)) {
		t.Fatal("friday cutoff fired before 14:45")
	}
	if !sc.CutoffReached(time.Date(2024, 3, 8, 14, 45, 0, 0, time.UTC)) {
		t.Fatal("friday must cut off at 14:45, an hour earlier")
	}
}
