package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func ParseTimeFlexible(timeStr string) (time.Time, error) {
	timeStr = strings.TrimSpace(timeStr)
	// Try parsing as RFC3339 (ISO 8601)
	t, err := time.Parse(time.RFC3339Nano, timeStr)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, timeStr) // Try without nano
	if err == nil {
		return t, nil
	}
	// Windows exports often drop the zone; treat those as local time.
	t, err = time.ParseInLocation("2006-01-02T15:04:05.999999999", timeStr, time.Local)
	if err == nil {
		return t, nil
	}

	// Try parsing as epoch milliseconds
	ms, err := strconv.ParseInt(timeStr, 10, 64)
	if err == nil {
		return time.UnixMilli(ms).UTC(), nil // Convert to UTC
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
}
