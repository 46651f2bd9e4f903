package dto

import (
	"time"
)

// StartDispatchRequest represents the request to start a send campaign
type StartDispatchRequest struct {
	MessageBody     string   `json:"message_body" validate:"required"`
	TargetIDs       []string `json:"target_ids" validate:"required,min=1"`
	DryRun          bool     `json:"dry_run,omitempty"`
	DelaySeconds    int      `json:"delay_seconds,omitempty" validate:"omitempty,min=0,max=3600"`
	OverrideTargets []string `json:"override_targets,omitempty"`
}

// StartDispatchResponse carries the campaign id and the targets accepted for sending
type StartDispatchResponse struct {
	CampaignID      string   `json:"campaign_id"`
	AcceptedTargets []string `json:"accepted_targets"`
	SkippedTargets  []string `json:"skipped_targets,omitempty"`
}

// StopDispatchRequest represents the request to stop a running campaign
type StopDispatchRequest struct {
	CampaignID string `json:"-"`
}

// CampaignStatusResponse represents the live aggregates of a campaign
type CampaignStatusResponse struct {
	CampaignID   string    `json:"campaign_id"`
	DryRun       bool      `json:"dry_run"`
	StartedAt    time.Time `json:"started_at"`
	Running      bool      `json:"running"`
	TotalTargets int       `json:"total_targets"`
	SentCount    int       `json:"sent_count"`
	FailedCount  int       `json:"failed_count"`
	SkippedCount int       `json:"skipped_count"`
}
