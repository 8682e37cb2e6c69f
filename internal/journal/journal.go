// File: internal/journal/journal.go
// ============================================
package journal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"crypto-signal-bot/pkg/types"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	EventSignal = "signal"
	EventClose  = "close"
)

var ErrBadTable = errors.New("invalid journal table name")

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Sink appends one row per alerted signal or closed trade. Best effort.
type Sink interface {
	AppendRow(ctx context.Context, row Row) error
	Close() error
}

// Row is a flat journal record
type Row struct {
	ID         string    `db:"id"`
	Event      string    `db:"event"`
	SignalID   string    `db:"signal_id"`
	Symbol     string    `db:"symbol"`
	Side       string    `db:"side"`
	Timeframe  string    `db:"timeframe"`
	Entry      float64   `db:"entry"`
	Stop       float64   `db:"stop"`
	Target     float64   `db:"target"`
	Confidence int       `db:"confidence"`
	Outcome    string    `db:"outcome"`
	Price      float64   `db:"price"`
	ResultPct  float64   `db:"result_pct"`
	CreatedAt  time.Time `db:"created_at"`
}

func SignalRow(s types.Signal, now time.Time) Row {
	return Row{
		ID:         uuid.NewString(),
		Event:      EventSignal,
		SignalID:   s.ID,
		Symbol:     s.Symbol,
		Side:       string(s.Side),
		Timeframe:  s.WorkTimeframe,
		Entry:      s.Entry,
		Stop:       s.Stop,
		Target:     s.Target,
		Confidence: s.Confidence,
		Outcome:    string(types.TradeOpen),
		Price:      s.Entry,
		CreatedAt:  now.UTC(),
	}
}

func CloseRow(ev types.CloseEvent) Row {
	row := SignalRow(ev.Trade.Signal, ev.Trade.ClosedAt)
	row.Event = EventClose
	row.Outcome = string(ev.Trade.State)
	row.Price = ev.Price
	row.ResultPct = ev.RealizedPct
	return row
}

// NopSink is used when no database is configured
type NopSink struct{}

func (NopSink) AppendRow(context.Context, Row) error { return nil }
func (NopSink) Close() error                         { return nil }

type PostgresSink struct {
	db     *sqlx.DB
	insert string
}

// NewPostgresSink connects, verifies the connection and creates the table
func NewPostgresSink(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrBadTable, table)
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL(table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	return &PostgresSink{db: db, insert: insertSQL(table)}, nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id          UUID PRIMARY KEY,
		event       TEXT NOT NULL,
		signal_id   TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		timeframe   TEXT NOT NULL,
		entry       DOUBLE PRECISION NOT NULL,
		stop        DOUBLE PRECISION NOT NULL,
		target      DOUBLE PRECISION NOT NULL,
		confidence  INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		price       DOUBLE PRECISION NOT NULL,
		result_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL
	)`, table)
}

func insertSQL(table string) string {
	return fmt.Sprintf(`
	INSERT INTO %s (
		id, event, signal_id, symbol, side, timeframe, entry, stop, target,
		confidence, outcome, price, result_pct, created_at
	) VALUES (
		:id, :event, :signal_id, :symbol, :side, :timeframe, :entry, :stop, :target,
		:confidence, :outcome, :price, :result_pct, :created_at
	)`, table)
}

func (s *PostgresSink) AppendRow(ctx context.Context, row Row) error {
	if _, err := s.db.NamedExecContext(ctx, s.insert, row); err != nil {
		return fmt.Errorf("append %s row %s: %w", row.Event, row.SignalID, err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// Open returns a Postgres sink, or a NopSink when dsn is empty or the
// database cannot be reached.
func Open(ctx context.Context, dsn, table string, logger zerolog.Logger) Sink {
	if dsn == "" {
		logger.Info().Msg("Journal disabled, no DSN configured")
		return NopSink{}
	}

	sink, err := NewPostgresSink(ctx, dsn, table)
	if err != nil {
		logger.Error().Err(err).Msg("Journal unavailable, continuing without it")
		return NopSink{}
	}

	logger.Info().Str("table", table).Msg("Journal connected")
	return sink
}
