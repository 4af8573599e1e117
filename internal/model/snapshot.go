package model

import (
	"sort"
	"time"
)

type TimeBucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Snapshot is the aggregated view of one poll cycle. It is never mutated after
// publication; a newer cycle replaces it wholesale.
type Snapshot struct {
	Sequence        uint64           `json:"sequence"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Granularity     Granularity      `json:"granularity"`
	TotalCount      int              `json:"total_count"`
	TopOffenderIP   string           `json:"top_offender_ip"`
	TimeBuckets     []TimeBucket     `json:"time_buckets"`
	ReasonHistogram map[string]int   `json:"reason_histogram"`
	Records         []ForensicRecord `json:"records"`
	// EventTimes holds the timestamp of every counted record, including those
	// beyond the retained Records, so the timeline can be re-bucketed.
	EventTimes []time.Time `json:"event_times,omitempty"`
	Partial         bool             `json:"partial"`
}

// ClearSnapshot is the view published when no failure was found.
func ClearSnapshot(g Granularity, now time.Time) *Snapshot {
	return &Snapshot{
		GeneratedAt:     now,
		Granularity:     g,
		TopOffenderIP:   Unknown,
		TimeBuckets:     []TimeBucket{},
		ReasonHistogram: map[string]int{},
		Records:         []ForensicRecord{},
		EventTimes:      []time.Time{},
	}
}

func (s *Snapshot) Clear() bool {
	return s == nil || s.TotalCount == 0
}

// ReasonCounts returns the histogram ordered by count, then reason.
func (s *Snapshot) ReasonCounts() []ReasonCount {
	out := make([]ReasonCount, 0, len(s.ReasonHistogram))
	for reason, n := range s.ReasonHistogram {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Rebucket recomputes the timeline at another granularity. It uses EventTimes
// when they cover every counted record and falls back to the retained records.
func (s *Snapshot) Rebucket(g Granularity) []TimeBucket {
	if g == s.Granularity {
		out := make([]TimeBucket, len(s.TimeBuckets))
		copy(out, s.TimeBuckets)
		return out
	}
	if len(s.EventTimes) == s.TotalCount {
		return BucketTimes(s.EventTimes, g)
	}
	return BucketRecords(s.Records, g)
}

// BucketRecords groups records by their floored timestamp, ascending by bucket start.
func BucketRecords(records []ForensicRecord, g Granularity) []TimeBucket {
	return BucketTimes(RecordTimes(records), g)
}

// RecordTimes returns the timestamps of records, in order.
func RecordTimes(records []ForensicRecord) []time.Time {
	times := make([]time.Time, len(records))
	for i, r := range records {
		times[i] = r.Timestamp
	}
	return times
}

// BucketTimes groups timestamps by their floored start, ascending by bucket start.
func BucketTimes(times []time.Time, g Granularity) []TimeBucket {
	// keyed by instant so equal starts in different locations share a bucket
	index := make(map[int64]int)
	buckets := make([]TimeBucket, 0)
	for _, ts := range times {
		start := g.Floor(ts)
		key := start.UnixNano()
		if i, ok := index[key]; ok {
			buckets[i].Count++
			continue
		}
		index[key] = len(buckets)
		buckets = append(buckets, TimeBucket{Start: start, Count: 1})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}
