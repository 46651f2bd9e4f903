package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is the value object describing one dispatch operation. It is never
// persisted; its durable side effects are registry mutations, send-state
// writes and delivery-log rows.
type Campaign struct {
	ID              uuid.UUID
	MessageBody     string
	TargetIDs       []string
	DryRun          bool
	DelaySeconds    int
	OverrideTargets map[string]struct{}
	StartedAt       time.Time

	SentCount    int
	FailedCount  int
	SkippedCount int
}

// NewCampaign builds a campaign from a message body, an ordered target list
// (duplicates removed, order of first occurrence preserved) and options.
func NewCampaign(messageBody string, targetIDs []string, dryRun bool, delaySeconds int, overrideTargets []string, startedAt time.Time) Campaign {
	seen := make(map[string]struct{}, len(targetIDs))
	deduped := make([]string, 0, len(targetIDs))
	for _, id := range targetIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}

	overrides := make(map[string]struct{}, len(overrideTargets))
	for _, id := range overrideTargets {
		if id != "" {
			overrides[id] = struct{}{}
		}
	}

	return Campaign{
		ID:              uuid.New(),
		MessageBody:     messageBody,
		TargetIDs:       deduped,
		DryRun:          dryRun,
		DelaySeconds:    delaySeconds,
		OverrideTargets: overrides,
		StartedAt:       startedAt,
	}
}

// IsOverride reports whether the target was explicitly force-resent
func (c Campaign) IsOverride(targetID string) bool {
	_, ok := c.OverrideTargets[targetID]
	return ok
}

// CountEvent folds one applied status event into the campaign aggregates
func (c *Campaign) CountEvent(status TargetStatus) {
	switch status {
	case TargetStatusSent, TargetStatusDryRun:
		c.SentCount++
	case TargetStatusFailed, TargetStatusBlocked, TargetStatusFloodWait:
		c.FailedCount++
	case TargetStatusSkippedRules:
		c.SkippedCount++
	}
}
