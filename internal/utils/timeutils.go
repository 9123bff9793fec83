package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// DowntimeSeconds converts a pair of timestamps into whole seconds of
// outage, clamping negatives from clock skew to zero.
func DowntimeSeconds(downSince, recoveredAt time.Time) int64 {
	secs := int64(recoveredAt.Sub(downSince).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// FormatDowntime renders a downtime duration for event descriptions.
func FormatDowntime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	return d.Truncate(time.Second).String()
}
