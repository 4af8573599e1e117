package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/aggregator"
	"winsentry/internal/controller"
	"winsentry/internal/dto"
	"winsentry/internal/metrics"
	"winsentry/internal/model"
	"winsentry/internal/service"
	"winsentry/internal/store"
)

type fakeStatus struct {
	status dto.MonitorStatusResponse
}

func (f fakeStatus) Status() dto.MonitorStatusResponse { return f.status }

type fixture struct {
	router    *gin.Engine
	snapshots store.SnapshotStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logFile := filepath.Join(t.TempDir(), "winsentry.log")
	require.NoError(t, os.WriteFile(logFile, []byte("one\ntwo\nthree\n"), 0o644))

	snapshots := store.NewInMemorySnapshotStore()
	query := service.NewSnapshotQueryService(snapshots, 2)
	router := gin.New()
	controller.RegisterSnapshotRoutes(router, controller.NewSnapshotController(
		query,
		service.NewDiagnosticsService(logFile),
		fakeStatus{status: dto.MonitorStatusResponse{State: "sleeping", Channel: "Security", Cycles: 3}},
	))
	controller.RegisterStreamRoutes(router, controller.NewStreamController(snapshots, query))
	controller.RegisterMetricsRoutes(router, metrics.NewCollector().Handler())
	return &fixture{router: router, snapshots: snapshots}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func sampleSnapshot() *model.Snapshot {
	ts := time.Date(2026, 1, 8, 10, 30, 0, 0, time.UTC)
	var records []model.ForensicRecord
	for i := 0; i < 3; i++ {
		records = append(records, model.ForensicRecord{
			RawEvent:      model.RawEvent{ID: 4625, Timestamp: ts.Add(-time.Duration(i) * time.Minute)},
			SourceIP:      "10.0.0.5",
			TargetUser:    "admin",
			StatusCode:    "0xc000006a",
			FailureReason: "Wrong Password (Brute-Force)",
		})
	}
	return aggregator.Compute(records, aggregator.Options{Granularity: model.GranularityMinute, RecordLimit: 10, Now: ts})
}

func TestGetSnapshot_NotPublished(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/api/v1/snapshot")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no snapshot published yet")
}

func TestGetSnapshot(t *testing.T) {
	f := newFixture(t)
	f.snapshots.Publish(sampleSnapshot())

	w := f.get(t, "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.SnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Sequence)
	assert.Equal(t, dto.StatusWarning, resp.Status)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, "10.0.0.5", resp.TopOffenderIP)
	assert.Equal(t, "minute", resp.Granularity)
	assert.Len(t, resp.Records, 2, "default limit applies")
	assert.Len(t, resp.Timeline, 3)

	w = f.get(t, "/api/v1/snapshot?granularity=hour&limit=3")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hour", resp.Granularity)
	assert.Len(t, resp.Records, 3)
	require.Len(t, resp.Timeline, 1)
	assert.Equal(t, 3, resp.Timeline[0].Value)
}

func TestGetSnapshot_BadParams(t *testing.T) {
	f := newFixture(t)
	f.snapshots.Publish(sampleSnapshot())

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/snapshot?granularity=week").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/snapshot?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/snapshot?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/snapshot/timeline?granularity=week").Code)
}

func TestGetTimeline(t *testing.T) {
	f := newFixture(t)
	f.snapshots.Publish(sampleSnapshot())

	w := f.get(t, "/api/v1/snapshot/timeline?granularity=day")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.TimelineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "day", resp.Granularity)
	require.Len(t, resp.Points, 1)
	assert.Equal(t, 3, resp.Points[0].Value)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.MonitorStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sleeping", resp.State)
	assert.Equal(t, uint64(3), resp.Cycles)
}

func TestGetDiagnostics(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/api/v1/diagnostics?lines=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.DiagnosticsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"two", "three"}, resp.Lines)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/diagnostics?lines=-1").Code)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "winsentry_")
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	f.snapshots.Publish(sampleSnapshot())

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?limit=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var first dto.SnapshotResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Len(t, first.Records, 1)

	f.snapshots.Publish(model.ClearSnapshot(model.GranularityMinute, time.Now()))

	var second dto.SnapshotResponse
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, dto.StatusClear, second.Status)
	assert.Equal(t, model.Unknown, second.TopOffenderIP)
}

func TestStream_BadGranularity(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/api/v1/stream?granularity=week")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
