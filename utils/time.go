// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// TimeToUTC converts a time to UTC if it's not already
func TimeToUTC(t time.Time) time.Time {
	return t.UTC()
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := TimeToUTC(*t)
	return &utc
}

// MaxTime returns the later of two times
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MaxTimePtr returns a pointer to the later of two optional times. A nil
// argument loses to any non-nil one.
func MaxTimePtr(a, b *time.Time) *time.Time {
	if a == nil {
		return TimeToUTCPtr(b)
	}
	if b == nil {
		return TimeToUTCPtr(a)
	}
	later := MaxTime(*a, *b)
	return TimeToUTCPtr(&later)
}
