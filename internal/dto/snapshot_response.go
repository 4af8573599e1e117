package dto

import "time"

const (
	StatusClear   = "clear"
	StatusWarning = "warning"
)

type RecordResponse struct {
	Time          time.Time `json:"time"`
	EventID       int64     `json:"eventId"`
	User          string    `json:"user"`
	SourceIP      string    `json:"sourceIp"`
	StatusCode    string    `json:"statusCode"`
	FailureReason string    `json:"failureReason"`
}

type ReasonCountResponse struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// TimelinePoint is one time bucket.
type TimelinePoint struct {
	Timestamp int64 `json:"timestamp"` // Epoch Milliseconds
	Value     int   `json:"value"`
}

type SnapshotResponse struct {
	Sequence      uint64                `json:"sequence"`
	GeneratedAt   time.Time             `json:"generatedAt"`
	Status        string                `json:"status"`
	Partial       bool                  `json:"partial"`
	TotalCount    int                   `json:"totalCount"`
	TopOffenderIP string                `json:"topOffenderIp"`
	Granularity   string                `json:"granularity"`
	Timeline      []TimelinePoint       `json:"timeline"`
	Reasons       []ReasonCountResponse `json:"reasons"`
	Records       []RecordResponse      `json:"records"`
}

type TimelineResponse struct {
	Sequence    uint64          `json:"sequence"`
	Granularity string          `json:"granularity"`
	Label       string          `json:"label"`
	Points      []TimelinePoint `json:"points"`
}

type MonitorStatusResponse struct {
	State          string    `json:"state"`
	Channel        string    `json:"channel"`
	Cycles         uint64    `json:"cycles"`
	LastCycleAt    time.Time `json:"lastCycleAt,omitempty"`
	LastDurationMs int64     `json:"lastDurationMs"`
	LastError      string    `json:"lastError,omitempty"`
	AccessDenied   bool      `json:"accessDenied"`
	Remediation    string    `json:"remediation,omitempty"`
	PollIntervalMs int64     `json:"pollIntervalMs"`
	Sequence       uint64    `json:"sequence"`
}

type DiagnosticsResponse struct {
	File  string   `json:"file"`
	Lines []string `json:"lines"`
}
