package timescaledb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/eventlog"
	"winsentry/internal/model"
)

func TestPageQuery(t *testing.T) {
	cur := &txCursor{}
	query, args := pageQuery("security_events", cur, 64)
	assert.Equal(t, `SELECT time, record_id, event_id, source, message FROM "security_events" ORDER BY time DESC, record_id DESC LIMIT $1`, query)
	assert.Equal(t, []interface{}{64}, args)

	last := time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)
	cur.lastTime, cur.lastID, cur.started = last, 42, true
	query, args = pageQuery("security_events", cur, 64)
	assert.Equal(t, `SELECT time, record_id, event_id, source, message FROM "security_events" WHERE (time, record_id) < ($2, $3) ORDER BY time DESC, record_id DESC LIMIT $1`, query)
	assert.Equal(t, []interface{}{64, last, int64(42)}, args)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		denied bool
	}{
		{name: "Insufficient Privilege", err: &pgconn.PgError{Code: "42501"}, denied: true},
		{name: "Password Failed", err: &pgconn.PgError{Code: "28P01"}, denied: true},
		{name: "Undefined Table", err: &pgconn.PgError{Code: "42P01"}},
		{name: "Network", err: errors.New("connection reset by peer")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("security_events", tt.err)
			assert.Equal(t, tt.denied, errors.Is(err, eventlog.ErrAccessDenied))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

type eventRow struct {
	ts       time.Time
	recordID int64
	eventID  int32
	source   string
	message  *string
}

// fakeDB hands out snapshot transactions over rows held newest first.
type fakeDB struct {
	rows      []eventRow
	beginErr  error
	begins    int
	rollbacks int
	queries   int
}

func (db *fakeDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	db.begins++
	snapshot := append([]eventRow(nil), db.rows...)
	return &fakeTx{db: db, rows: snapshot}, nil
}

type fakeTx struct {
	pgx.Tx
	db   *fakeDB
	rows []eventRow
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	tx.db.queries++
	limit := args[0].(int)
	var page []eventRow
	for _, r := range tx.rows {
		if len(args) == 3 {
			lastTime, lastID := args[1].(time.Time), args[2].(int64)
			if r.ts.After(lastTime) || (r.ts.Equal(lastTime) && r.recordID >= lastID) {
				continue
			}
		}
		if len(page) == limit {
			break
		}
		page = append(page, r)
	}
	return &fakeRows{rows: page, pos: -1}, nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.db.rollbacks++
	return nil
}

type fakeRows struct {
	pgx.Rows
	rows []eventRow
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	*dest[0].(*time.Time) = row.ts
	*dest[1].(*int64) = row.recordID
	*dest[2].(*int32) = row.eventID
	*dest[3].(*string) = row.source
	*dest[4].(**string) = row.message
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

func sampleRows(n int) []eventRow {
	base := time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)
	msg := "  An account failed to log on.  "
	rows := make([]eventRow, 0, n)
	for i := n; i >= 1; i-- {
		// pairs share a timestamp so paging must break ties on record_id
		rows = append(rows, eventRow{
			ts:       base.Add(time.Duration(i/2) * time.Minute),
			recordID: int64(i),
			eventID:  4625,
			source:   "Microsoft-Windows-Security-Auditing",
			message:  &msg,
		})
	}
	return rows
}

func TestChannel_ReadBatchPagesUntilDone(t *testing.T) {
	db := &fakeDB{rows: sampleRows(5)}
	ch := NewChannel(db, "security_events", 2)
	ctx := context.Background()

	h, err := ch.Open(ctx, "", "security_events")
	require.NoError(t, err)

	var ids []int64
	var sizes []int
	for i := 0; i < 4; i++ {
		page, err := ch.ReadBatch(ctx, h, eventlog.Backward)
		require.NoError(t, err)
		sizes = append(sizes, len(page))
		for _, rec := range page {
			require.NoError(t, rec.Err)
			assert.Equal(t, "An account failed to log on.", rec.Event.Message)
			ids = append(ids, rec.Event.ID)
		}
	}
	assert.Equal(t, []int{2, 2, 1, 0}, sizes)
	assert.Len(t, ids, 5)
	// a short page marks the cursor done, so the last read never queries
	assert.Equal(t, 3, db.queries)

	require.NoError(t, ch.Close(h))
	assert.Equal(t, 1, db.rollbacks)
	assert.ErrorIs(t, ch.Close(h), eventlog.ErrUnknownHandle)
	_, err = ch.ReadBatch(ctx, h, eventlog.Backward)
	assert.ErrorIs(t, err, eventlog.ErrUnknownHandle)
}

func TestChannel_ReadBatchKeysetOrder(t *testing.T) {
	db := &fakeDB{rows: sampleRows(4)}
	ch := NewChannel(db, "security_events", 3)
	ctx := context.Background()

	h, err := ch.Open(ctx, "", "security_events")
	require.NoError(t, err)
	defer ch.Close(h)

	first, err := ch.ReadBatch(ctx, h, eventlog.Backward)
	require.NoError(t, err)
	require.Len(t, first, 3)
	second, err := ch.ReadBatch(ctx, h, eventlog.Backward)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].Event.Timestamp.Before(first[2].Event.Timestamp) ||
		second[0].Event.Timestamp.Equal(first[2].Event.Timestamp))

	_, err = ch.ReadBatch(ctx, h, eventlog.Forward)
	assert.ErrorIs(t, err, eventlog.ErrUnsupportedDirection)
}

func TestChannel_OpenAccessDenied(t *testing.T) {
	db := &fakeDB{beginErr: &pgconn.PgError{Code: "42501"}}
	ch := NewChannel(db, "security_events", 2)

	_, err := ch.Open(context.Background(), "", "security_events")
	assert.ErrorIs(t, err, eventlog.ErrAccessDenied)
	assert.Zero(t, db.begins)
}

func TestChannel_SourceFetchReleasesTransaction(t *testing.T) {
	db := &fakeDB{rows: sampleRows(5)}
	src := eventlog.NewSource(NewChannel(db, "security_events", 2), "", "security_events")

	for i := 0; i < 3; i++ {
		events, err := src.Fetch(context.Background(), model.NewEventFilter(4625), 3)
		require.NoError(t, err)
		assert.Len(t, events, 3)
	}
	assert.Equal(t, 3, db.begins)
	assert.Equal(t, db.begins, db.rollbacks)
}
