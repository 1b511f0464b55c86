package repository

import (
	"database/sql"
	"errors"
	"time"

	"intraday/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades (леджер реализованных сделок)
//
// Леджер - внешняя по отношению к виртуальному капиталу истина:
// месячный backstop на старте сессии считает накопленный PNL месяца
// именно отсюда, независимо от per-bar оценок ядра.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Record записывает завершённую сделку
func (r *TradeRepository) Record(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (symbol, side, quantity, entry_price, exit_price, entry_time, exit_time, pnl, exit_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRow(
		query,
		trade.Symbol,
		trade.Side,
		trade.Quantity,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.EntryTime,
		trade.ExitTime,
		trade.Pnl,
		trade.ExitReason,
	).Scan(&trade.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, symbol, side, quantity, entry_price, exit_price, entry_time, exit_time, pnl, exit_reason
		FROM trades
		WHERE id = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.Symbol,
		&trade.Side,
		&trade.Quantity,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.EntryTime,
		&trade.ExitTime,
		&trade.Pnl,
		&trade.ExitReason,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetRecent возвращает последние N сделок по символу
func (r *TradeRepository) GetRecent(symbol string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, symbol, side, quantity, entry_price, exit_price, entry_time, exit_time, pnl, exit_reason
		FROM trades
		WHERE symbol = $1
		ORDER BY exit_time DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.Side,
			&trade.Quantity,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.EntryTime,
			&trade.ExitTime,
			&trade.Pnl,
			&trade.ExitReason,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// MonthToDatePnl возвращает суммарный реализованный PNL по символу
// начиная с from (начало календарного месяца)
func (r *TradeRepository) MonthToDatePnl(symbol string, from time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE symbol = $1 AND exit_time >= $2`

	var pnl float64
	err := r.db.QueryRow(query, symbol, from).Scan(&pnl)
	if err != nil {
		return 0, err
	}

	return pnl, nil
}

// Stats - агрегаты по сделкам за период
type Stats struct {
	Trades     int     `json:"trades"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	TotalPnl   float64 `json:"total_pnl"`
	BestTrade  float64 `json:"best_trade"`
	WorstTrade float64 `json:"worst_trade"`
}

// GetStats возвращает агрегаты по символу начиная с from
func (r *TradeRepository) GetStats(symbol string, from time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pnl), 0),
			COALESCE(MAX(pnl), 0),
			COALESCE(MIN(pnl), 0)
		FROM trades
		WHERE symbol = $1 AND exit_time >= $2`

	stats := &Stats{}
	err := r.db.QueryRow(query, symbol, from).Scan(
		&stats.Trades,
		&stats.Wins,
		&stats.Losses,
		&stats.TotalPnl,
		&stats.BestTrade,
		&stats.WorstTrade,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
