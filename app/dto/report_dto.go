package dto

import (
	"time"
)

// DeliveryLogDTO represents one applied status event in API responses
type DeliveryLogDTO struct {
	ID         uint      `json:"id"`
	CampaignID *string   `json:"campaign_id,omitempty"`
	TargetID   string    `json:"target_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
	DurationMs *int64    `json:"duration_ms,omitempty"`
	Error      *string   `json:"error,omitempty"`
	RulesText  *string   `json:"rules_text,omitempty"`
	Reasons    []string  `json:"reasons,omitempty"`
	Forced     bool      `json:"forced"`
}

// ListDeliveryLogRequest represents the filter fields of a delivery log listing
type ListDeliveryLogRequest struct {
	CampaignID *string `json:"-" query:"campaign_id"`
	TargetID   *string `json:"-" query:"target_id"`
	Status     *string `json:"-" query:"status"`
	Page       int     `json:"-" query:"page"`
	PageSize   int     `json:"-" query:"page_size"`
}

// ListDeliveryLogResponse represents a delivery log listing
type ListDeliveryLogResponse struct {
	Rows  []DeliveryLogDTO `json:"rows"`
	Total int64            `json:"total"`
}
