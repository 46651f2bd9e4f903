package models

import "time"

// TargetSendState is the durable per-target record behind the cooldown and
// block gate. It carries exactly two facts, independent of any campaign:
// the last successful (or dry-run) send time and the blocked flag. A missing
// row means never sent, not blocked.
type TargetSendState struct {
	TargetID   string     `gorm:"primaryKey;size:64" json:"target_id"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	Blocked    bool       `gorm:"not null;default:false" json:"blocked"`
	UpdatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (TargetSendState) TableName() string { return "target_send_states" }
