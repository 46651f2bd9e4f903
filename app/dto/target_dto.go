package dto

import (
	"time"
)

// VerificationDTO represents the resolution sub-state of a direct target
type VerificationDTO struct {
	State       string    `json:"state"`
	RawInput    string    `json:"raw_input"`
	DisplayName *string   `json:"display_name,omitempty"`
	MatchedBy   *string   `json:"matched_by,omitempty"`
	Error       *string   `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// TargetDTO represents one recipient in API responses
type TargetDTO struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	DisplayName  string           `json:"display_name"`
	Status       string           `json:"status"`
	LastStatusAt *time.Time       `json:"last_status_at,omitempty"`
	LastSentAt   *time.Time       `json:"last_sent_at,omitempty"`
	Blocked      bool             `json:"blocked"`
	Verification *VerificationDTO `json:"verification,omitempty"`
}

// AddGroupTargetRequest represents the request to register a group recipient
type AddGroupTargetRequest struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
}

// AddDirectTargetRequest represents the request to register an ad-hoc recipient
type AddDirectTargetRequest struct {
	Input string `json:"input" validate:"required"`
}

// AddDirectTargetResponse carries the provisional target created for the input
type AddDirectTargetResponse struct {
	Target TargetDTO `json:"target"`
}

// ListTargetsRequest represents the filter fields of a target listing
type ListTargetsRequest struct {
	Kind    *string `json:"-" query:"kind"`
	Status  *string `json:"-" query:"status"`
	Blocked *bool   `json:"-" query:"blocked"`
}

// ListTargetsResponse represents a target listing
type ListTargetsResponse struct {
	Targets []TargetDTO `json:"targets"`
	Total   int         `json:"total"`
}
