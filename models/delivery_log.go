package models

import (
	"time"

	"github.com/lib/pq"
)

// DeliveryLog records one applied status event for audit and reporting.
// Rows are append-only; the registry writes them fire-and-forget.
type DeliveryLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CampaignID *string        `gorm:"size:36;index:idx_delivery_log_campaign_id" json:"campaign_id,omitempty"`
	TargetID   string         `gorm:"size:64;not null;index:idx_delivery_log_target_id" json:"target_id"`
	Status     TargetStatus   `gorm:"size:32;not null" json:"status"`
	OccurredAt time.Time      `gorm:"not null;index:idx_delivery_log_occurred_at" json:"occurred_at"`
	DurationMs *int64         `json:"duration_ms,omitempty"`
	Error      *string        `gorm:"type:text" json:"error,omitempty"`
	RulesText  *string        `gorm:"type:text" json:"rules_text,omitempty"`
	Reasons    pq.StringArray `gorm:"type:text[]" json:"reasons,omitempty"`
	Forced     bool           `gorm:"not null;default:false" json:"forced"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
}

func (DeliveryLog) TableName() string { return "delivery_log" }

// DeliveryLogFilter provides filter fields for repository queries
type DeliveryLogFilter struct {
	CampaignID *string
	TargetID   *string
	Status     *TargetStatus
}
