package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusEventKey(t *testing.T) {
	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	event := StatusEvent{TargetID: "g1", Status: TargetStatusSent, Timestamp: ts}

	assert.Equal(t, "g1|sent|1787486400000", event.Key())

	// Sub-millisecond differences collapse onto the same key
	same := event
	same.Timestamp = ts.Add(100 * time.Microsecond)
	assert.Equal(t, event.Key(), same.Key())

	other := event
	other.Status = TargetStatusFailed
	assert.NotEqual(t, event.Key(), other.Key())
}

func TestStatusEventValidate(t *testing.T) {
	ts := time.Now().UTC()

	assert.NoError(t, StatusEvent{TargetID: "g1", Status: TargetStatusSent, Timestamp: ts}.Validate())
	assert.Error(t, StatusEvent{Status: TargetStatusSent, Timestamp: ts}.Validate())
	assert.Error(t, StatusEvent{TargetID: "g1", Status: "teleported", Timestamp: ts}.Validate())
}
