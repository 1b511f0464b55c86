package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"intraday/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func TestNewTradeRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTradeRepository(db)
	if repo == nil {
		t.Fatal("NewTradeRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestTradeRepositoryRecord(t *testing.T) {
	entry := time.Date(2024, 3, 11, 9, 45, 0, 0, time.UTC)
	exit := entry.Add(20 * time.Minute)

	tests := []struct {
		name        string
		trade       *models.TradeRecord
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			trade: &models.TradeRecord{
				Symbol:     "ES",
				Side:       models.SideLong,
				Quantity:   1,
				EntryPrice: 100,
				ExitPrice:  102,
				EntryTime:  entry,
				ExitTime:   exit,
				Pnl:        95.5,
				ExitReason: models.ExitReasonProfitChase,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs("ES", models.SideLong, 1, 100.0, 102.0, entry, exit, 95.5, models.ExitReasonProfitChase).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			expectError: false,
		},
		{
			name: "database error",
			trade: &models.TradeRecord{
				Symbol: "ES",
				Side:   models.SideShort,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs("ES", models.SideShort, 0, float64(0), float64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), float64(0), "").
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			err = repo.Record(tt.trade)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.trade.ID != 7 {
					t.Errorf("expected ID=7, got %d", tt.trade.ID)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryGetByID(t *testing.T) {
	entry := time.Date(2024, 3, 11, 9, 45, 0, 0, time.UTC)
	exit := entry.Add(20 * time.Minute)

	t.Run("returns the trade", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		rows := sqlmock.NewRows([]string{
			"id", "symbol", "side", "quantity", "entry_price", "exit_price",
			"entry_time", "exit_time", "pnl", "exit_reason",
		}).AddRow(42, "ES", models.SideLong, 1, 100.0, 102.0, entry, exit, 95.5, models.ExitReasonProfitChase)

		mock.ExpectQuery(`SELECT (.+) FROM trades`).
			WithArgs(42).
			WillReturnRows(rows)

		repo := NewTradeRepository(db)
		trade, err := repo.GetByID(42)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if trade.ID != 42 || trade.ExitReason != models.ExitReasonProfitChase {
			t.Errorf("unexpected trade: %+v", trade)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
	})

	t.Run("missing trade maps to ErrTradeNotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM trades`).
			WithArgs(7).
			WillReturnError(sql.ErrNoRows)

		repo := NewTradeRepository(db)
		if _, err := repo.GetByID(7); !errors.Is(err, ErrTradeNotFound) {
			t.Fatalf("expected ErrTradeNotFound, got %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
	})
}

func TestTradeRepositoryMonthToDatePnl(t *testing.T) {
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    float64
		expectError bool
	}{
		{
			name: "positive month",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COALESCE\(SUM\(pnl\), 0\)`).
					WithArgs("ES", monthStart).
					WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1523.75))
			},
			expected: 1523.75,
		},
		{
			name: "empty ledger returns zero",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COALESCE\(SUM\(pnl\), 0\)`).
					WithArgs("ES", monthStart).
					WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0.0))
			},
			expected: 0,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COALESCE\(SUM\(pnl\), 0\)`).
					WithArgs("ES", monthStart).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			got, err := repo.MonthToDatePnl("ES", monthStart)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if got != tt.expected {
					t.Errorf("MonthToDatePnl = %v, want %v", got, tt.expected)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryGetRecent(t *testing.T) {
	entry := time.Date(2024, 3, 11, 9, 45, 0, 0, time.UTC)
	exit := entry.Add(15 * time.Minute)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "symbol", "side", "quantity", "entry_price", "exit_price",
		"entry_time", "exit_time", "pnl", "exit_reason",
	}).
		AddRow(2, "ES", models.SideShort, 1, 101.0, 100.0, entry, exit, 45.5, models.ExitReasonSoftDeck).
		AddRow(1, "ES", models.SideLong, 1, 100.0, 102.0, entry, exit, 95.5, models.ExitReasonProfitChase)

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs("ES", 50).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.GetRecent("ES", 50)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}

	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].ID != 2 || trades[0].ExitReason != models.ExitReasonSoftDeck {
		t.Errorf("unexpected first trade: %+v", trades[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryGetStats(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"count", "wins", "losses", "total", "best", "worst"}).
		AddRow(12, 7, 5, 431.25, 120.0, -85.5)

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs("ES", from).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	stats, err := repo.GetStats("ES", from)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if stats.Trades != 12 || stats.Wins != 7 || stats.Losses != 5 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.TotalPnl != 431.25 || stats.BestTrade != 120.0 || stats.WorstTrade != -85.5 {
		t.Errorf("unexpected aggregates: %+v", stats)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
