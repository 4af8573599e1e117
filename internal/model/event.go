package model

import "time"

// Unknown marks a forensic field that could not be extracted.
const Unknown = "N/A"

type RawEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

type ForensicRecord struct {
	RawEvent
	SourceIP      string `json:"source_ip"`
	TargetUser    string `json:"target_user"`
	StatusCode    string `json:"status_code"`
	FailureReason string `json:"failure_reason"`
}

// EventFilter is the set of event ids a fetch is interested in.
type EventFilter map[int64]struct{}

func NewEventFilter(ids ...int64) EventFilter {
	f := make(EventFilter, len(ids))
	for _, id := range ids {
		f[id] = struct{}{}
	}
	return f
}

func (f EventFilter) Contains(id int64) bool {
	_, ok := f[id]
	return ok
}

func (f EventFilter) IDs() []int64 {
	ids := make([]int64, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	return ids
}
