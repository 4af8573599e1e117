package timescaledb

import (
	"context"
	"fmt"
	"strings"

	"winsentry/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	colTime    = "time"
	colRecord  = "record_id"
	colEventID = "event_id"
	colSource  = "source"
	colMessage = "message"
)

// SchemaConn is the part of *pgxpool.Pool EnsureEventTable runs DDL through.
type SchemaConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ SchemaConn = (*pgxpool.Pool)(nil)

// EnsureEventTable creates the event hypertable used by Channel and EventWriter.
func EnsureEventTable(ctx context.Context, pool SchemaConn, table string) error {
	ident := pgx.Identifier{table}.Sanitize()
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s TIMESTAMPTZ NOT NULL,
			%s BIGINT GENERATED ALWAYS AS IDENTITY,
			%s INTEGER NOT NULL,
			%s TEXT NOT NULL DEFAULT '',
			%s TEXT
		);`,
		ident, colTime, colRecord, colEventID, colSource, colMessage)
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create base table %s: %w", table, err)
	}
	log.Info().Str("table", table).Msg("Ensured base table exists.")

	var isHypertable bool
	_ = pool.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM timescaledb_information.hypertables WHERE hypertable_name = $1
    );`, table).Scan(&isHypertable)

	if !isHypertable {
		log.Info().Str("table", table).Msg("Table is not a hypertable, attempting to create...")
		if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb;"); err != nil {
			log.Warn().Err(err).Msg("Failed to ensure timescaledb extension exists (permission issue?). Trying to proceed...")
		}
		query, args := hypertableQuery(table)
		_, err := pool.Exec(ctx, query, args...)
		if err != nil && !strings.Contains(err.Error(), "already a hypertable") {
			// plain Postgres still works, only without chunking
			log.Warn().Err(err).Str("table", table).Msg("Could not create hypertable, using a plain table")
		}
	}

	indexSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s DESC, %s DESC);`,
		pgx.Identifier{"idx_" + table + "_time_record"}.Sanitize(), ident, colTime, colRecord)
	if _, err := pool.Exec(ctx, indexSQL); err != nil {
		log.Warn().Err(err).Msg("Failed to create index on event table (continuing)")
	}
	return nil
}

// hypertableQuery binds the table and time column as parameters; the table is
// passed in its quoted form so regclass resolves the same relation CREATE TABLE made.
func hypertableQuery(table string) (string, []any) {
	return "SELECT create_hypertable($1::text::regclass, $2::text::name, if_not_exists => TRUE, chunk_time_interval => INTERVAL '1 day');",
		[]any{pgx.Identifier{table}.Sanitize(), colTime}
}

// EventWriter bulk-inserts security events.
type EventWriter struct {
	pool  *pgxpool.Pool
	table string
}

func NewEventWriter(pool *pgxpool.Pool, table string) *EventWriter {
	return &EventWriter{pool: pool, table: table}
}

func (w *EventWriter) Write(ctx context.Context, events []model.RawEvent) error {
	if len(events) == 0 {
		return nil
	}
	columns := []string{colTime, colEventID, colSource, colMessage}
	source := pgx.CopyFromSlice(len(events), func(i int) ([]interface{}, error) {
		e := events[i]
		return []interface{}{e.Timestamp, int32(e.ID), e.Source, e.Message}, nil
	})

	copyCount, err := w.pool.CopyFrom(ctx, pgx.Identifier{w.table}, columns, source)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bulk insert events into TimescaleDB")
		return fmt.Errorf("timescaledb copyfrom failed: %w", err)
	}
	if int(copyCount) != len(events) {
		log.Warn().Int64("inserted", copyCount).Int("expected", len(events)).Msg("TimescaleDB CopyFrom event count mismatch")
	} else {
		log.Debug().Int64("count", copyCount).Msg("Successfully inserted events into TimescaleDB")
	}
	return nil
}
