package dto

type SnapshotRequest struct {
	Granularity string
	Limit       int
}

type TimelineRequest struct {
	Granularity string
}
