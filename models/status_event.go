package models

import (
	"fmt"
	"time"
)

// StatusEvent is one reported delivery outcome for one target at one point in
// time. Events are immutable and transient: they are consumed once to derive a
// target mutation and then discarded.
type StatusEvent struct {
	TargetID   string       `json:"target_id"`
	Status     TargetStatus `json:"status"`
	Timestamp  time.Time    `json:"timestamp"`
	DurationMs *int64       `json:"duration_ms,omitempty"`
	Error      *string      `json:"error,omitempty"`
	RulesText  *string      `json:"rules_text,omitempty"`
	Reasons    []string     `json:"reasons,omitempty"`
	Forced     bool         `json:"forced"`

	// CampaignID tags events produced by a dispatch so campaign aggregates
	// never depend on global registry state. Stream events carry no campaign.
	CampaignID string `json:"campaign_id,omitempty"`
}

// Key returns the idempotency key of the event. Two events with the same
// target, status and timestamp are the same event; re-applying is a no-op.
func (e StatusEvent) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.TargetID, e.Status, e.Timestamp.UnixMilli())
}

// Validate checks the event carries a usable target id and status
func (e StatusEvent) Validate() error {
	if e.TargetID == "" {
		return fmt.Errorf("status event has empty target id")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("status event has unknown status %q", e.Status)
	}
	return nil
}
