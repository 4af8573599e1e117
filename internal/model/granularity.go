package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownGranularity = errors.New("unknown granularity")

type Granularity string

const (
	GranularitySecond Granularity = "second"
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// ParseGranularity accepts the long names and the short dashboard codes (s, min, h, d).
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "second", "seconds", "s":
		return GranularitySecond, nil
	case "minute", "minutes", "min":
		return GranularityMinute, nil
	case "hour", "hours", "h":
		return GranularityHour, nil
	case "day", "days", "d":
		return GranularityDay, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// Floor truncates t to the start of its bucket, in t's own location.
func (g Granularity) Floor(t time.Time) time.Time {
	switch g {
	case GranularitySecond:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	case GranularityMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	return t
}

func (g Granularity) Label() string {
	switch g {
	case GranularitySecond:
		return "Per Second"
	case GranularityMinute:
		return "Per Minute"
	case GranularityHour:
		return "Per Hour"
	case GranularityDay:
		return "Per Day"
	}
	return string(g)
}

func (g Granularity) Valid() bool {
	switch g {
	case GranularitySecond, GranularityMinute, GranularityHour, GranularityDay:
		return true
	}
	return false
}
