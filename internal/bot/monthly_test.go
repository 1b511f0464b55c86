package bot

import (
	"testing"

	"go.uber.org/zap"

	"intraday/internal/statefiles"
)

func newTestMonthly(simpleChaseStop bool) (*MonthlyGovernor, *statefiles.MemoryProvider) {
	files := statefiles.NewMemoryProvider()
	g := NewMonthlyGovernor(10000, simpleChaseStop, files, zap.NewNop())
	g.OnSessionStart(testRegimeParams())
	return g, files
}

// ============================================================
// Месячный стоп в normal фазе
// ============================================================

func TestMonthlyGovernorDrawdownHalt(t *testing.T) {
	g, _ := newTestMonthly(false)

	// Лимит: 10000 × (1-0.15) = 8500
	if g.OnRealized(-1000) {
		t.Fatal("capital 9000 should not trip the stop")
	}
	if !g.CanEnter() {
		t.Fatal("entries should be allowed at capital 9000")
	}

	if !g.OnRealized(-600) {
		t.Fatal("capital 8400 must trip the monthly stop")
	}
	if g.CanEnter() {
		t.Fatal("entries must be blocked after monthly halt")
	}
}

func TestMonthlyGovernorPersistsCapital(t *testing.T) {
	g, files := newTestMonthly(false)

	g.OnRealized(500)
	saved, err := files.Capital()
	if err != nil {
		t.Fatalf("capital should be persisted: %v", err)
	}
	if saved != 10500 {
		t.Fatalf("persisted capital = %v, want 10500", saved)
	}
}

func TestMonthlyGovernorSessionStartReadsPersistedCapital(t *testing.T) {
	files := statefiles.NewMemoryProvider()
	files.SetCapital(7200)

	// Рестарт процесса внутри месяца: капитал приходит из файла
	g := NewMonthlyGovernor(10000, false, files, zap.NewNop())
	g.OnSessionStart(testRegimeParams())

	if g.VirtualCapital() != 7200 {
		t.Fatalf("virtual capital = %v, want persisted 7200", g.VirtualCapital())
	}
}

func TestMonthlyGovernorZeroedCapitalMeansHalt(t *testing.T) {
	files := statefiles.NewMemoryProvider()
	files.SetCapital(0)

	g := NewMonthlyGovernor(10000, false, files, zap.NewNop())
	g.OnSessionStart(testRegimeParams())

	if g.CanEnter() {
		t.Fatal("zeroed persisted capital must block entries")
	}
}

// ============================================================
// Profit chasing
// ============================================================

func TestMonthlyGovernorProfitChasingLatch(t *testing.T) {
	g, _ := newTestMonthly(false)

	// Порог: 10000 × (1+0.6) = 16000, активация строго выше
	g.OnRealized(6000)
	if g.ProfitChasing() {
		t.Fatal("capital exactly 16000 should not activate chasing")
	}

	g.OnRealized(1)
	if !g.ProfitChasing() {
		t.Fatal("capital above 16000 must activate chasing")
	}

	// One-way latch: откат ниже порога фазу не выключает
	g.OnSessionEnd()
	g.OnRealized(-2000)
	if !g.ProfitChasing() {
		t.Fatal("chasing latch must survive a drawdown below the threshold")
	}
}

func TestMonthlyGovernorChasingStopZeroesCapital(t *testing.T) {
	g, files := newTestMonthly(false)

	g.OnRealized(7000) // 17000, chasing активен
	g.OnSessionEnd()   // yesterdayCapital = 17000

	// Референс: 17000 × (1-0.05) = 16150
	if g.OnRealized(-500) {
		t.Fatal("capital 16500 is above chasing reference, no stop expected")
	}

	if !g.OnRealized(-400) {
		t.Fatal("capital 16100 must trip the chasing stop")
	}
	if g.VirtualCapital() != 0 {
		t.Fatalf("chasing stop must zero capital, got %v", g.VirtualCapital())
	}

	saved, err := files.Capital()
	if err != nil || saved != 0 {
		t.Fatalf("zeroed capital must be persisted, got %v, err %v", saved, err)
	}
}

func TestMonthlyGovernorSimpleChaseStop(t *testing.T) {
	g, _ := newTestMonthly(true)

	g.OnRealized(7000)
	g.OnSessionEnd() // yesterdayCapital = 17000

	// Simple вариант: любое падение ниже вчерашнего капитала
	if !g.OnRealized(-1) {
		t.Fatal("any drop below yesterday capital must trip the simple chase stop")
	}
	if g.VirtualCapital() != 0 {
		t.Fatalf("capital should be zeroed, got %v", g.VirtualCapital())
	}
}

// ============================================================
// Границы месяца и страховка леджера
// ============================================================

func TestMonthlyGovernorMonthStartResets(t *testing.T) {
	g, _ := newTestMonthly(false)

	g.OnRealized(7000)
	g.OnSessionEnd()
	g.OnRealized(-17000) // chasing стоп, капитал занулён

	g.OnMonthStart()
	if g.VirtualCapital() != 10000 {
		t.Fatalf("month start should restore starting capital, got %v", g.VirtualCapital())
	}
	if g.ProfitChasing() {
		t.Fatal("month start should clear the chasing latch")
	}
	if !g.CanEnter() {
		t.Fatal("month start should clear the halt")
	}
}

func TestMonthlyGovernorPersistsMonthLosses(t *testing.T) {
	g, files := newTestMonthly(false)

	g.OnRealized(-300)
	g.OnRealized(200) // прибыль накопленные потери не уменьшает
	g.OnRealized(-100)

	saved, err := files.MonthLosses()
	if err != nil {
		t.Fatalf("month losses should be persisted: %v", err)
	}
	if saved != 400 {
		t.Fatalf("persisted month losses = %v, want 400", saved)
	}
}

func TestMonthlyGovernorBackstopUsesCarriedLosses(t *testing.T) {
	files := statefiles.NewMemoryProvider()
	files.SetMonthLosses(1600) // за лимитом 10000 × 0.15

	// Рестарт процесса: потери месяца приходят из файла
	g := NewMonthlyGovernor(10000, false, files, zap.NewNop())
	g.OnSessionStart(testRegimeParams())

	// Леджер чистый, страховка срабатывает по перенесённым потерям
	if !g.Backstop(0) {
		t.Fatal("carried month losses above the limit must trip the backstop")
	}
	if g.VirtualCapital() != 0 {
		t.Fatalf("backstop must zero capital, got %v", g.VirtualCapital())
	}
}

func TestMonthlyGovernorMonthStartClearsLosses(t *testing.T) {
	g, files := newTestMonthly(false)

	g.OnRealized(-1700)
	g.OnMonthStart()

	if saved, _ := files.MonthLosses(); saved != 0 {
		t.Fatalf("month start must reset persisted losses, got %v", saved)
	}
	if g.Backstop(0) {
		t.Fatal("fresh month must not trip the backstop")
	}
}

func TestMonthlyGovernorLedgerBackstop(t *testing.T) {
	g, files := newTestMonthly(false)

	// Лимит: -10000 × 0.15 = -1500
	if g.Backstop(-1400) {
		t.Fatal("month-to-date -1400 is within the limit")
	}

	if !g.Backstop(-1600) {
		t.Fatal("month-to-date -1600 must trip the ledger backstop")
	}
	if g.VirtualCapital() != 0 {
		t.Fatalf("backstop must zero capital, got %v", g.VirtualCapital())
	}
	if saved, _ := files.Capital(); saved != 0 {
		t.Fatalf("zeroed capital must be persisted, got %v", saved)
	}
}
