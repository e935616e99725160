package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"oi-surge-alerts/internal/alerting"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createAlertsTableSQL = `CREATE TABLE IF NOT EXISTS alerts (
        id                  UUID PRIMARY KEY,
        symbol              TEXT        NOT NULL,
        price_label         TEXT        NOT NULL DEFAULT '',
        price_peak_pct      NUMERIC,
        oi_label            TEXT        NOT NULL DEFAULT '',
        oi_peak_pct         NUMERIC,
        suspected_short     BOOLEAN     NOT NULL DEFAULT FALSE,
        first_alert_at      TIMESTAMPTZ NOT NULL,
        alerted_at          TIMESTAMPTZ NOT NULL,
        created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE INDEX IF NOT EXISTS alerts_alerted_at_idx ON alerts (alerted_at DESC);`

	insertAlertSQL = `INSERT INTO alerts (
        id,
        symbol,
        price_label,
        price_peak_pct,
        oi_label,
        oi_peak_pct,
        suspected_short,
        first_alert_at,
        alerted_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentAlertsSQL = `SELECT
        id::text,
        symbol,
        price_label,
        price_peak_pct::text,
        oi_label,
        oi_peak_pct::text,
        suspected_short,
        first_alert_at,
        alerted_at,
        created_at
    FROM alerts
    ORDER BY alerted_at DESC
    LIMIT $1;`
)

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	EnsureSchema(ctx context.Context) error
	InsertAlert(ctx context.Context, alert AlertRecord) error
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// Store persists alert records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the alerts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createAlertsTableSQL); execErr != nil {
		return fmt.Errorf("ensure alerts schema: %w", execErr)
	}
	return nil
}

// InsertAlert stores an alert record. Re-inserting the same ID is a no-op.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertAlertSQL,
		alert.ID,
		alert.Symbol,
		alert.PriceLabel,
		nullableDecimal(alert.PricePeakPct),
		alert.OpenInterestLabel,
		nullableDecimal(alert.OpenInterestPct),
		alert.SuspectedShort,
		alert.FirstAlertAt,
		alert.AlertedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert alert: %w", execErr)
	}
	return nil
}

// ListRecentAlerts lists the most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// RecordAlert adapts a dispatched notification into an audit row.
func (s *Store) RecordAlert(ctx context.Context, note alerting.Notification) error {
	return s.InsertAlert(ctx, RecordFromNotification(note))
}

// RecordFromNotification maps a notification onto an AlertRecord.
func RecordFromNotification(note alerting.Notification) AlertRecord {
	rec := AlertRecord{
		ID:             note.ID,
		Symbol:         note.Instrument.Symbol,
		SuspectedShort: note.SuspectedShort,
		FirstAlertAt:   note.FirstAlert.UTC(),
		AlertedAt:      note.At.UTC(),
	}
	if note.Price != nil {
		rec.PriceLabel = note.Price.Label
		rec.PricePeakPct = decimal.NewNullDecimal(decimal.NewFromFloat(note.Price.Peak).Round(4))
	}
	if note.OpenInterest != nil {
		rec.OpenInterestLabel = note.OpenInterest.Label
		rec.OpenInterestPct = decimal.NewNullDecimal(decimal.NewFromFloat(note.OpenInterest.Peak).Round(4))
	}
	return rec
}

func nullableDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func scanAlert(rows pgx.Rows) (AlertRecord, error) {
	var (
		rec      AlertRecord
		priceStr *string
		oiStr    *string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Symbol,
		&rec.PriceLabel,
		&priceStr,
		&rec.OpenInterestLabel,
		&oiStr,
		&rec.SuspectedShort,
		&rec.FirstAlertAt,
		&rec.AlertedAt,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.PricePeakPct, err = parseNullable(priceStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse price peak pct: %w", err)
	}
	if rec.OpenInterestPct, err = parseNullable(oiStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse open interest peak pct: %w", err)
	}
	return rec, nil
}

func parseNullable(v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

var (
	_ AlertStore        = (*Store)(nil)
	_ alerting.Recorder = (*Store)(nil)
)
