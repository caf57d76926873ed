package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"stockquote-alert/internal/errors"
	"stockquote-alert/internal/logging"
	"stockquote-alert/internal/models"
)

// SQLiteStore implements AlertJournal using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ AlertJournal = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the journal at dbPath.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(errors.ErrDatabaseError, "creating %s: %v", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:  db,
		log: logging.WithComponent(log, "journal"),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		price TEXT NOT NULL,
		buy_threshold TEXT NOT NULL,
		sell_threshold TEXT NOT NULL,
		subject TEXT NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		fired_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_symbol_fired ON alerts(symbol, fired_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_fired ON alerts(fired_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordAlert inserts rec, assigning an ID when it has none.
func (s *SQLiteStore) RecordAlert(ctx context.Context, rec *models.AlertRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FiredAt.IsZero() {
		rec.FiredAt = time.Now()
	}

	delivered := 0
	if rec.Delivered {
		delivered = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, symbol, action, price, buy_threshold, sell_threshold, subject, delivered, error, fired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Symbol, string(rec.Action), rec.Price.String(), rec.BuyThreshold.String(), rec.SellThreshold.String(),
		rec.Subject, delivered, nullString(rec.Error), rec.FiredAt.UTC())
	if err != nil {
		return errors.Wrapf(errors.ErrDatabaseError, "failed to save alert: %v", err)
	}

	logging.LogAlert(s.log, rec.ID, rec.Symbol, rec.Action.String(), rec.Price.String())
	return nil
}

// RecentAlerts returns journaled alerts, newest first.
func (s *SQLiteStore) RecentAlerts(ctx context.Context, filter AlertFilter) ([]models.AlertRecord, error) {
	query := `
		SELECT id, symbol, action, price, buy_threshold, sell_threshold, subject, delivered, error, fired_at
		FROM alerts WHERE 1=1
	`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, string(filter.Action))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query += " ORDER BY fired_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabaseError, "failed to query alerts: %v", err)
	}
	defer rows.Close()

	var alerts []models.AlertRecord
	for rows.Next() {
		var (
			a         models.AlertRecord
			action    string
			delivered int
			errText   sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &action, &a.Price, &a.BuyThreshold, &a.SellThreshold,
			&a.Subject, &delivered, &errText, &a.FiredAt); err != nil {
			return nil, errors.Wrapf(errors.ErrDatabaseError, "failed to scan alert: %v", err)
		}
		a.Action = models.Action(action)
		a.Delivered = delivered == 1
		a.Error = errText.String
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
