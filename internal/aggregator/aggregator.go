package aggregator

import (
	"time"

	"winsentry/internal/model"
)

type Options struct {
	Granularity model.Granularity
	// RecordLimit bounds the records retained on the snapshot; zero keeps all.
	RecordLimit int
	Now         time.Time
}

// Compute folds newest-first forensic records into a snapshot. Counts, buckets
// and the histogram cover every record; only the retained record list is bounded.
func Compute(records []model.ForensicRecord, opts Options) *model.Snapshot {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if !opts.Granularity.Valid() {
		opts.Granularity = model.GranularityMinute
	}
	if len(records) == 0 {
		return model.ClearSnapshot(opts.Granularity, opts.Now)
	}

	histogram := make(map[string]int)
	for _, r := range records {
		histogram[r.FailureReason]++
	}

	retained := records
	if opts.RecordLimit > 0 && len(retained) > opts.RecordLimit {
		retained = retained[:opts.RecordLimit]
	}
	kept := make([]model.ForensicRecord, len(retained))
	copy(kept, retained)

	times := model.RecordTimes(records)
	return &model.Snapshot{
		GeneratedAt:     opts.Now,
		Granularity:     opts.Granularity,
		TotalCount:      len(records),
		TopOffenderIP:   TopOffender(records),
		TimeBuckets:     model.BucketTimes(times, opts.Granularity),
		ReasonHistogram: histogram,
		Records:         kept,
		EventTimes:      times,
	}
}

// TopOffender returns the most frequent known source IP. Among IPs sharing the
// highest count, the one whose count reaches that maximum first while walking the
// records in order wins. With no known IP the sentinel is returned.
func TopOffender(records []model.ForensicRecord) string {
	counts := make(map[string]int)
	best := 0
	for _, r := range records {
		if r.SourceIP == model.Unknown || r.SourceIP == "" {
			continue
		}
		counts[r.SourceIP]++
		if counts[r.SourceIP] > best {
			best = counts[r.SourceIP]
		}
	}
	if best == 0 {
		return model.Unknown
	}

	running := make(map[string]int, len(counts))
	for _, r := range records {
		if counts[r.SourceIP] != best {
			continue
		}
		running[r.SourceIP]++
		if running[r.SourceIP] == best {
			return r.SourceIP
		}
	}
	return model.Unknown
}
