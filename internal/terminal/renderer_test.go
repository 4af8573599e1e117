package terminal_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/eventlog"
	"winsentry/internal/kafka"
	"winsentry/internal/model"
	"winsentry/internal/terminal"
)

var clock = time.Date(2026, 1, 8, 14, 30, 5, 0, time.UTC)

func newRenderer(buf *bytes.Buffer) *terminal.Renderer {
	return terminal.NewRenderer(buf, 5*time.Second, []int64{4625},
		terminal.WithColor(false),
		terminal.WithClock(func() time.Time { return clock }),
	)
}

func TestRender_Clear(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newRenderer(&buf).Render(model.ClearSnapshot(model.GranularityMinute, clock)))

	out := buf.String()
	assert.Contains(t, out, "=== WINSENTRY LIVE MONITOR [14:30:05] ===")
	assert.Contains(t, out, "Event ID 4625")
	assert.Contains(t, out, ">> Status: CLEAR")
	assert.Contains(t, out, "Updating in 5 seconds")
	assert.NotContains(t, out, "\033[")
}

func TestRender_Warning(t *testing.T) {
	snap := &model.Snapshot{
		TotalCount:    3,
		TopOffenderIP: "10.0.0.5",
		Records: []model.ForensicRecord{
			{RawEvent: model.RawEvent{Timestamp: clock}, TargetUser: "admin", SourceIP: "10.0.0.5", FailureReason: "Wrong Password (Brute-Force)"},
			{RawEvent: model.RawEvent{Timestamp: clock.Add(-time.Minute)}, TargetUser: "ghost", SourceIP: "10.0.0.9", FailureReason: "Non-existent User (Enumeration)"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, newRenderer(&buf).Render(snap))

	out := buf.String()
	assert.Contains(t, out, ">> WARNING: 3 FAILED LOGIN ATTEMPTS DETECTED")
	assert.Contains(t, out, "Top offender: 10.0.0.5")
	assert.Contains(t, out, "Time")
	assert.Contains(t, out, "Reason")
	assert.Contains(t, out, "Wrong Password (Brute-Force)")
	assert.Contains(t, out, "ghost")
	assert.Contains(t, out, "(showing newest 2 of 3)")
}

func TestRender_Color(t *testing.T) {
	var buf bytes.Buffer
	r := terminal.NewRenderer(&buf, time.Second, nil, terminal.WithColor(true))
	require.NoError(t, r.Render(nil))

	out := buf.String()
	assert.Contains(t, out, "\033[H\033[2J")
	assert.Contains(t, out, "Event ID any")
	assert.Contains(t, out, "Updating in 1 second...")
}

func TestRenderAccessDenied(t *testing.T) {
	var buf bytes.Buffer
	err := &eventlog.AccessDeniedError{Channel: "Security", Err: errors.New("not elevated")}
	require.NoError(t, newRenderer(&buf).RenderAccessDenied(err, eventlog.Remediation(err)))

	out := buf.String()
	assert.Contains(t, out, "CRITICAL ERROR: ACCESS DENIED")
	assert.Contains(t, out, eventlog.Remediation(err))
}

func TestShowSnapshot(t *testing.T) {
	var buf bytes.Buffer
	msg := &kafka.SnapshotMessage{
		Host:       "dc01",
		Channel:    "Security",
		ProducedAt: time.Now().Add(-time.Minute),
		Snapshot:   model.ClearSnapshot(model.GranularityMinute, clock),
	}
	require.NoError(t, newRenderer(&buf).ShowSnapshot(msg))

	out := buf.String()
	assert.Contains(t, out, "WINSENTRY REMOTE MONITOR")
	assert.Contains(t, out, "Host dc01, channel Security")
	assert.Contains(t, out, ">> Status: CLEAR")
}

func TestPublishSnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newRenderer(&buf).PublishSnapshot(context.Background(), model.ClearSnapshot(model.GranularityMinute, clock)))
	assert.Contains(t, buf.String(), ">> Status: CLEAR")
}
