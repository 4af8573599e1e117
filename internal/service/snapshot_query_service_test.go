package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/aggregator"
	"winsentry/internal/dto"
	"winsentry/internal/model"
	"winsentry/internal/service"
	"winsentry/internal/store"
)

func queryFixture(t *testing.T, defaultLimit int) (service.SnapshotQueryService, store.SnapshotStore) {
	t.Helper()
	snapshots := store.NewInMemorySnapshotStore()
	return service.NewSnapshotQueryService(snapshots, defaultLimit), snapshots
}

func failureSnapshot() *model.Snapshot {
	base := time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)
	records := []model.ForensicRecord{
		{RawEvent: model.RawEvent{ID: 4625, Timestamp: base.Add(90 * time.Minute)}, SourceIP: "10.0.0.5", TargetUser: "admin", StatusCode: "0xc000006a", FailureReason: "Wrong Password (Brute-Force)"},
		{RawEvent: model.RawEvent{ID: 4625, Timestamp: base.Add(30 * time.Minute)}, SourceIP: "10.0.0.9", TargetUser: "ghost", StatusCode: "0xc0000064", FailureReason: "Non-existent User (Enumeration)"},
		{RawEvent: model.RawEvent{ID: 4625, Timestamp: base.Add(10 * time.Minute)}, SourceIP: "10.0.0.5", TargetUser: "admin", StatusCode: "0xc000006a", FailureReason: "Wrong Password (Brute-Force)"},
	}
	return &model.Snapshot{
		GeneratedAt:   base.Add(2 * time.Hour),
		Granularity:   model.GranularityHour,
		TotalCount:    3,
		TopOffenderIP: "10.0.0.5",
		TimeBuckets: []model.TimeBucket{
			{Start: base, Count: 2},
			{Start: base.Add(time.Hour), Count: 1},
		},
		ReasonHistogram: map[string]int{
			"Wrong Password (Brute-Force)":    2,
			"Non-existent User (Enumeration)": 1,
		},
		Records: records,
	}
}

func TestGetSnapshot_NoSnapshot(t *testing.T) {
	svc, _ := queryFixture(t, 10)

	_, err := svc.GetSnapshot(dto.SnapshotRequest{})
	assert.ErrorIs(t, err, service.ErrNoSnapshot)

	_, err = svc.GetTimeline(dto.TimelineRequest{})
	assert.ErrorIs(t, err, service.ErrNoSnapshot)
}

func TestGetSnapshot_Defaults(t *testing.T) {
	svc, snapshots := queryFixture(t, 2)
	snapshots.Publish(failureSnapshot())

	resp, err := svc.GetSnapshot(dto.SnapshotRequest{})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), resp.Sequence)
	assert.Equal(t, dto.StatusWarning, resp.Status)
	assert.Equal(t, "hour", resp.Granularity)
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, "10.0.0.5", resp.Records[0].SourceIP)
	assert.Equal(t, []dto.ReasonCountResponse{
		{Reason: "Wrong Password (Brute-Force)", Count: 2},
		{Reason: "Non-existent User (Enumeration)", Count: 1},
	}, resp.Reasons)
	require.Len(t, resp.Timeline, 2)
	assert.Equal(t, 2, resp.Timeline[0].Value)
	assert.Equal(t, time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC).UnixMilli(), resp.Timeline[0].Timestamp)
}

func TestGetSnapshot_Limits(t *testing.T) {
	svc, snapshots := queryFixture(t, 1)
	snapshots.Publish(failureSnapshot())

	resp, err := svc.GetSnapshot(dto.SnapshotRequest{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 3)

	resp, err = svc.GetSnapshot(dto.SnapshotRequest{Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 1, "over the maximum falls back to the default")
}

func TestGetSnapshot_Clear(t *testing.T) {
	svc, snapshots := queryFixture(t, 10)
	snapshots.Publish(model.ClearSnapshot(model.GranularityMinute, time.Now()))

	resp, err := svc.GetSnapshot(dto.SnapshotRequest{})
	require.NoError(t, err)
	assert.Equal(t, dto.StatusClear, resp.Status)
	assert.Equal(t, model.Unknown, resp.TopOffenderIP)
	assert.Empty(t, resp.Records)
	assert.Empty(t, resp.Timeline)
	assert.Empty(t, resp.Reasons)
}

func TestGetTimeline_Rebucket(t *testing.T) {
	svc, snapshots := queryFixture(t, 10)
	snapshots.Publish(failureSnapshot())

	resp, err := svc.GetTimeline(dto.TimelineRequest{Granularity: "d"})
	require.NoError(t, err)
	assert.Equal(t, "day", resp.Granularity)
	assert.Equal(t, []dto.TimelinePoint{
		{Timestamp: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC).UnixMilli(), Value: 3},
	}, resp.Points)

	_, err = svc.GetTimeline(dto.TimelineRequest{Granularity: "fortnight"})
	assert.ErrorIs(t, err, model.ErrUnknownGranularity)
}

func TestGetSnapshot_TimelineCoversUnretainedRecords(t *testing.T) {
	svc, snapshots := queryFixture(t, 10)
	base := time.Date(2026, 1, 8, 10, 30, 0, 0, time.UTC)
	var records []model.ForensicRecord
	for i := 0; i < 5; i++ {
		records = append(records, model.ForensicRecord{
			RawEvent:      model.RawEvent{ID: 4625, Timestamp: base.Add(-time.Duration(i) * time.Minute)},
			SourceIP:      "10.0.0.5",
			FailureReason: "Wrong Password (Brute-Force)",
		})
	}
	snapshots.Publish(aggregator.Compute(records, aggregator.Options{
		Granularity: model.GranularityMinute,
		RecordLimit: 2,
		Now:         base,
	}))

	for _, g := range []string{"second", "minute", "hour", "day"} {
		resp, err := svc.GetSnapshot(dto.SnapshotRequest{Granularity: g})
		require.NoError(t, err)

		sum := 0
		for _, p := range resp.Timeline {
			sum += p.Value
		}
		assert.Equal(t, resp.TotalCount, sum, g)
		assert.Len(t, resp.Records, 2)
	}
}
