package service

import (
	"errors"
	"strings"

	"winsentry/internal/dto"
	"winsentry/internal/model"
	"winsentry/internal/store"

	"github.com/rs/zerolog/log"
)

var ErrNoSnapshot = errors.New("no snapshot published yet")

const maxRecordLimit = 1000

type SnapshotQueryService interface {
	GetSnapshot(req dto.SnapshotRequest) (*dto.SnapshotResponse, error)
	// Describe converts a published snapshot into its API form.
	Describe(snap *model.Snapshot, req dto.SnapshotRequest) (*dto.SnapshotResponse, error)
	GetTimeline(req dto.TimelineRequest) (*dto.TimelineResponse, error)
}

type snapshotQueryService struct {
	snapshots    store.SnapshotStore
	defaultLimit int
}

func NewSnapshotQueryService(snapshots store.SnapshotStore, defaultLimit int) SnapshotQueryService {
	if defaultLimit <= 0 || defaultLimit > maxRecordLimit {
		defaultLimit = maxRecordLimit
	}
	return &snapshotQueryService{
		snapshots:    snapshots,
		defaultLimit: defaultLimit,
	}
}

func (s *snapshotQueryService) GetSnapshot(req dto.SnapshotRequest) (*dto.SnapshotResponse, error) {
	snap := s.snapshots.Latest()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return s.Describe(snap, req)
}

func (s *snapshotQueryService) Describe(snap *model.Snapshot, req dto.SnapshotRequest) (*dto.SnapshotResponse, error) {
	g, err := s.granularity(req.Granularity, snap)
	if err != nil {
		return nil, err
	}
	if req.Limit <= 0 || req.Limit > maxRecordLimit {
		req.Limit = s.defaultLimit
	}

	log.Debug().Uint64("sequence", snap.Sequence).Str("granularity", string(g)).Int("limit", req.Limit).Msg("Getting snapshot")

	resp := &dto.SnapshotResponse{
		Sequence:      snap.Sequence,
		GeneratedAt:   snap.GeneratedAt,
		Status:        dto.StatusWarning,
		Partial:       snap.Partial,
		TotalCount:    snap.TotalCount,
		TopOffenderIP: snap.TopOffenderIP,
		Granularity:   string(g),
		Timeline:      toPoints(snap.Rebucket(g)),
		Reasons:       make([]dto.ReasonCountResponse, 0, len(snap.ReasonHistogram)),
		Records:       make([]dto.RecordResponse, 0, min(req.Limit, len(snap.Records))),
	}
	if snap.Clear() {
		resp.Status = dto.StatusClear
	}
	for _, rc := range snap.ReasonCounts() {
		resp.Reasons = append(resp.Reasons, dto.ReasonCountResponse{Reason: rc.Reason, Count: rc.Count})
	}
	for i, r := range snap.Records {
		if i >= req.Limit {
			break
		}
		resp.Records = append(resp.Records, dto.RecordResponse{
			Time:          r.Timestamp,
			EventID:       r.ID,
			User:          r.TargetUser,
			SourceIP:      r.SourceIP,
			StatusCode:    r.StatusCode,
			FailureReason: r.FailureReason,
		})
	}
	return resp, nil
}

func (s *snapshotQueryService) GetTimeline(req dto.TimelineRequest) (*dto.TimelineResponse, error) {
	snap := s.snapshots.Latest()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	g, err := s.granularity(req.Granularity, snap)
	if err != nil {
		return nil, err
	}
	return &dto.TimelineResponse{
		Sequence:    snap.Sequence,
		Granularity: string(g),
		Label:       g.Label(),
		Points:      toPoints(snap.Rebucket(g)),
	}, nil
}

func (s *snapshotQueryService) granularity(raw string, snap *model.Snapshot) (model.Granularity, error) {
	if strings.TrimSpace(raw) == "" {
		return snap.Granularity, nil
	}
	return model.ParseGranularity(raw)
}

func toPoints(buckets []model.TimeBucket) []dto.TimelinePoint {
	points := make([]dto.TimelinePoint, len(buckets))
	for i, b := range buckets {
		points[i] = dto.TimelinePoint{Timestamp: b.Start.UnixMilli(), Value: b.Count}
	}
	return points
}
