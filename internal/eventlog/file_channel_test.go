package eventlog_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/eventlog"
	"winsentry/internal/model"
	"winsentry/internal/parser"
)

// writeEventFile writes n events oldest first, the order an exporter appends them.
func writeEventFile(t *testing.T, n int, extra ...string) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		line, err := parser.EncodeEventLine(model.RawEvent{
			ID:        4625,
			Timestamp: baseTime.Add(time.Duration(i) * time.Second),
			Source:    "Microsoft-Windows-Security-Auditing",
			Message:   fmt.Sprintf("An account failed to log on. seq=%d %s", i, strings.Repeat("x", 80)),
		})
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	for _, l := range extra {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "security.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func readAll(t *testing.T, ch eventlog.Channel, h eventlog.Handle) []eventlog.Record {
	t.Helper()
	var out []eventlog.Record
	for {
		batch, err := ch.ReadBatch(context.Background(), h, eventlog.Backward)
		require.NoError(t, err)
		if len(batch) == 0 {
			return out
		}
		out = append(out, batch...)
	}
}

func TestFileChannel_ReadsNewestFirstAcrossBlocks(t *testing.T) {
	const n = 2000
	path := writeEventFile(t, n)
	ch := eventlog.NewFileChannel(path, 50)

	h, err := ch.Open(context.Background(), "", "Security")
	require.NoError(t, err)
	defer ch.Close(h)

	records := readAll(t, ch, h)
	require.Len(t, records, n)
	for i, rec := range records {
		require.NoError(t, rec.Err)
		want := baseTime.Add(time.Duration(n-1-i) * time.Second)
		require.True(t, want.Equal(rec.Event.Timestamp), "record %d has timestamp %s", i, rec.Event.Timestamp)
	}
}

func TestFileChannel_MalformedLines(t *testing.T) {
	path := writeEventFile(t, 2, `{"id":4625,"timestamp":"yesterday"}`, `not json at all`, "")
	ch := eventlog.NewFileChannel(path, 10)

	h, err := ch.Open(context.Background(), "", "")
	require.NoError(t, err)
	defer ch.Close(h)

	records := readAll(t, ch, h)
	require.Len(t, records, 4)

	assert.ErrorIs(t, records[0].Err, eventlog.ErrMalformedEvent)
	assert.ErrorIs(t, records[1].Err, eventlog.ErrMalformedEvent)
	assert.Equal(t, int64(4625), records[1].Event.ID)
	assert.NoError(t, records[2].Err)
	assert.NoError(t, records[3].Err)
}

func TestFileChannel_IgnoresLinesAppendedAfterOpen(t *testing.T) {
	path := writeEventFile(t, 3)
	ch := eventlog.NewFileChannel(path, 10)

	h, err := ch.Open(context.Background(), "", "")
	require.NoError(t, err)
	defer ch.Close(h)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":4625,"timestamp":"2026-01-09T00:00:00Z","source":"s","message":"late"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Len(t, readAll(t, ch, h), 3)
}

func TestFileChannel_Errors(t *testing.T) {
	ch := eventlog.NewFileChannel(filepath.Join(t.TempDir(), "missing.jsonl"), 10)
	_, err := ch.Open(context.Background(), "", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, eventlog.ErrAccessDenied)

	path := writeEventFile(t, 1)
	ch = eventlog.NewFileChannel(path, 10)
	h, err := ch.Open(context.Background(), "", "")
	require.NoError(t, err)

	_, err = ch.ReadBatch(context.Background(), h, eventlog.Forward)
	assert.ErrorIs(t, err, eventlog.ErrUnsupportedDirection)

	require.NoError(t, ch.Close(h))
	_, err = ch.ReadBatch(context.Background(), h, eventlog.Backward)
	assert.ErrorIs(t, err, eventlog.ErrUnknownHandle)
	assert.ErrorIs(t, ch.Close(h), eventlog.ErrUnknownHandle)
}

func TestFileChannel_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := writeEventFile(t, 1)
	require.NoError(t, os.Chmod(path, 0))

	src := eventlog.NewSource(eventlog.NewFileChannel(path, 10), "", "Security")
	events, err := src.Fetch(context.Background(), model.NewEventFilter(4625), 10)
	assert.Empty(t, events)
	assert.ErrorIs(t, err, eventlog.ErrAccessDenied)
}
