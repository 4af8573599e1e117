package timescaledb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"winsentry/internal/eventlog"
	"winsentry/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Channel reads events from a Postgres/TimescaleDB table newest first. Each
// handle is a read-only repeatable-read transaction, so rows inserted after Open
// are not seen; pages are fetched by keyset on (time, record_id).
type Channel struct {
	pool      TxBeginner
	table     string
	batchSize int

	mu      sync.Mutex
	nextID  eventlog.Handle
	cursors map[eventlog.Handle]*txCursor
}

// TxBeginner is the part of *pgxpool.Pool a Channel reads through.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ TxBeginner = (*pgxpool.Pool)(nil)

type txCursor struct {
	tx       pgx.Tx
	lastTime time.Time
	lastID   int64
	started  bool
	done     bool
}

func NewChannel(pool TxBeginner, table string, batchSize int) *Channel {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Channel{
		pool:      pool,
		table:     table,
		batchSize: batchSize,
		cursors:   make(map[eventlog.Handle]*txCursor),
	}
}

func (c *Channel) Open(ctx context.Context, server, name string) (eventlog.Handle, error) {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return 0, classify(c.table, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.cursors[c.nextID] = &txCursor{tx: tx}
	return c.nextID, nil
}

func (c *Channel) ReadBatch(ctx context.Context, h eventlog.Handle, dir eventlog.Direction) ([]eventlog.Record, error) {
	if dir != eventlog.Backward {
		return nil, fmt.Errorf("%w: %s", eventlog.ErrUnsupportedDirection, dir)
	}
	c.mu.Lock()
	cur, ok := c.cursors[h]
	c.mu.Unlock()
	if !ok {
		return nil, eventlog.ErrUnknownHandle
	}
	if cur.done {
		return []eventlog.Record{}, nil
	}

	query, args := pageQuery(c.table, cur, c.batchSize)
	rows, err := cur.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(c.table, err)
	}
	defer rows.Close()

	records := make([]eventlog.Record, 0, c.batchSize)
	for rows.Next() {
		var (
			ts       time.Time
			recordID int64
			eventID  int32
			source   string
			message  *string
		)
		if err := rows.Scan(&ts, &recordID, &eventID, &source, &message); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		cur.lastTime, cur.lastID, cur.started = ts, recordID, true

		ev := model.RawEvent{ID: int64(eventID), Timestamp: ts, Source: source, Message: "No Message Content"}
		if message != nil && strings.TrimSpace(*message) != "" {
			ev.Message = strings.TrimSpace(*message)
		}
		records = append(records, eventlog.Record{Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(c.table, err)
	}
	if len(records) < c.batchSize {
		cur.done = true
	}
	log.Trace().Int("rows", len(records)).Str("table", c.table).Msg("Read event page")
	return records, nil
}

func (c *Channel) Close(h eventlog.Handle) error {
	c.mu.Lock()
	cur, ok := c.cursors[h]
	delete(c.cursors, h)
	c.mu.Unlock()
	if !ok {
		return eventlog.ErrUnknownHandle
	}
	err := cur.tx.Rollback(context.Background())
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func pageQuery(table string, cur *txCursor, limit int) (string, []interface{}) {
	ident := pgx.Identifier{table}.Sanitize()
	selectSQL := fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s", colTime, colRecord, colEventID, colSource, colMessage, ident)
	order := fmt.Sprintf(" ORDER BY %s DESC, %s DESC LIMIT $1", colTime, colRecord)
	if !cur.started {
		return selectSQL + order, []interface{}{limit}
	}
	where := fmt.Sprintf(" WHERE (%s, %s) < ($2, $3)", colTime, colRecord)
	return selectSQL + where + order, []interface{}{limit, cur.lastTime, cur.lastID}
}

// classify maps privilege and authentication failures to AccessDeniedError.
func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", "28000", "28P01":
			return &eventlog.AccessDeniedError{Channel: table, Err: err}
		}
	}
	return fmt.Errorf("timescaledb query on %s failed: %w", table, err)
}
