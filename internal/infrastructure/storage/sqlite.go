package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stellarperps/perpmon/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			asset TEXT NOT NULL,
			side TEXT NOT NULL,
			notional_size REAL NOT NULL,
			entry_price REAL NOT NULL,
			current_price REAL NOT NULL,
			leverage INTEGER NOT NULL,
			margin REAL NOT NULL,
			unrealized_pnl REAL NOT NULL DEFAULT 0,
			liquidation_price REAL NOT NULL,
			is_liquidated BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_asset ON positions(asset, is_liquidated);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_owner ON positions(owner);`,
		`CREATE TABLE IF NOT EXISTS liquidation_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id TEXT NOT NULL,
			user TEXT NOT NULL,
			asset TEXT NOT NULL,
			liquidation_price REAL NOT NULL,
			timestamp INTEGER NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset TEXT NOT NULL,
			price REAL NOT NULL,
			prev_price REAL NOT NULL,
			change_pct REAL NOT NULL,
			timestamp INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS funding_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset TEXT NOT NULL,
			rate REAL NOT NULL,
			spot_price REAL NOT NULL,
			mark_price REAL NOT NULL,
			timestamp INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_funding_asset ON funding_samples(asset);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// PositionRepository Implementation

func (s *SQLiteStore) SavePosition(ctx context.Context, pos *domain.Position) error {
	query := `INSERT INTO positions (id, owner, asset, side, notional_size, entry_price, current_price, leverage, margin, unrealized_pnl, liquidation_price, is_liquidated, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		pos.ID, pos.Owner, pos.Asset, pos.Side, pos.NotionalSize, pos.EntryPrice,
		pos.CurrentPrice, pos.Leverage, pos.Margin, pos.UnrealizedPnL,
		pos.LiquidationPrice, pos.IsLiquidated, pos.CreatedAt)
	return err
}

func (s *SQLiteStore) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	query := `UPDATE positions SET current_price = ?, unrealized_pnl = ?, is_liquidated = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query,
		pos.CurrentPrice, pos.UnrealizedPnL, pos.IsLiquidated, pos.ID)
	return err
}

const positionColumns = `id, owner, asset, side, notional_size, entry_price, current_price, leverage, margin, unrealized_pnl, liquidation_price, is_liquidated, created_at`

func (s *SQLiteStore) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPositionNotFound
	}
	return p, err
}

func (s *SQLiteStore) ListActivePositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE is_liquidated = 0 ORDER BY id`
	return s.queryPositions(ctx, query)
}

func (s *SQLiteStore) ListPositionsByOwner(ctx context.Context, owner string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE owner = ? ORDER BY id`
	return s.queryPositions(ctx, query, owner)
}

func (s *SQLiteStore) queryPositions(ctx context.Context, query string, args ...any) ([]*domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(&p.ID, &p.Owner, &p.Asset, &p.Side, &p.NotionalSize,
		&p.EntryPrice, &p.CurrentPrice, &p.Leverage, &p.Margin,
		&p.UnrealizedPnL, &p.LiquidationPrice, &p.IsLiquidated, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EventRepository Implementation

func (s *SQLiteStore) SaveLiquidationEvent(ctx context.Context, event *domain.LiquidationEvent) error {
	query := `INSERT INTO liquidation_events (position_id, user, asset, liquidation_price, timestamp, reason)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		event.PositionID, event.User, event.Asset, event.LiquidationPrice, event.Timestamp, event.Reason)
	return err
}

func (s *SQLiteStore) ListLiquidationEvents(ctx context.Context, limit int) ([]*domain.LiquidationEvent, error) {
	query := `SELECT position_id, user, asset, liquidation_price, timestamp, reason
			  FROM liquidation_events ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.LiquidationEvent
	for rows.Next() {
		var e domain.LiquidationEvent
		if err := rows.Scan(&e.PositionID, &e.User, &e.Asset, &e.LiquidationPrice, &e.Timestamp, &e.Reason); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) CountLiquidationEvents(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM liquidation_events`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) SavePriceAlert(ctx context.Context, alert *domain.PriceAlert) error {
	query := `INSERT INTO price_alerts (asset, price, prev_price, change_pct, timestamp)
			  VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		alert.Asset, alert.Price, alert.PrevPrice, alert.ChangePct, alert.Timestamp)
	return err
}

func (s *SQLiteStore) ListPriceAlerts(ctx context.Context, limit int) ([]*domain.PriceAlert, error) {
	query := `SELECT asset, price, prev_price, change_pct, timestamp
			  FROM price_alerts ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.PriceAlert
	for rows.Next() {
		var a domain.PriceAlert
		if err := rows.Scan(&a.Asset, &a.Price, &a.PrevPrice, &a.ChangePct, &a.Timestamp); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteStore) SaveFundingSample(ctx context.Context, sample *domain.FundingSample) error {
	query := `INSERT INTO funding_samples (asset, rate, spot_price, mark_price, timestamp)
			  VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sample.Asset, sample.Rate, sample.SpotPrice, sample.MarkPrice, sample.Timestamp)
	return err
}

func (s *SQLiteStore) ListFundingSamples(ctx context.Context, asset string, limit int) ([]*domain.FundingSample, error) {
	query := `SELECT asset, rate, spot_price, mark_price, timestamp FROM funding_samples`
	args := []any{}
	if asset != "" {
		query += ` WHERE asset = ?`
		args = append(args, asset)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*domain.FundingSample
	for rows.Next() {
		var f domain.FundingSample
		if err := rows.Scan(&f.Asset, &f.Rate, &f.SpotPrice, &f.MarkPrice, &f.Timestamp); err != nil {
			return nil, err
		}
		samples = append(samples, &f)
	}
	return samples, rows.Err()
}
