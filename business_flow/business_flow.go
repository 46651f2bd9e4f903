// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToTargetDTO converts a target model to TargetDTO for API responses
func ToTargetDTO(target models.Target) dto.TargetDTO {
	out := dto.TargetDTO{
		ID:           target.ID,
		Kind:         target.Kind.String(),
		DisplayName:  target.DisplayName,
		Status:       target.Status.String(),
		LastStatusAt: target.LastStatusAt,
		LastSentAt:   target.LastSentAt,
		Blocked:      target.Blocked,
	}
	if target.Verification != nil {
		out.Verification = &dto.VerificationDTO{
			State:       target.Verification.State.String(),
			RawInput:    target.Verification.RawInput,
			DisplayName: target.Verification.DisplayName,
			MatchedBy:   target.Verification.MatchedBy,
			Error:       target.Verification.Error,
			StartedAt:   target.Verification.StartedAt,
		}
	}
	return out
}

// ToDeliveryLogDTO converts a delivery log row to its API representation
func ToDeliveryLogDTO(row models.DeliveryLog) dto.DeliveryLogDTO {
	return dto.DeliveryLogDTO{
		ID:         row.ID,
		CampaignID: row.CampaignID,
		TargetID:   row.TargetID,
		Status:     row.Status.String(),
		OccurredAt: row.OccurredAt,
		DurationMs: row.DurationMs,
		Error:      row.Error,
		RulesText:  row.RulesText,
		Reasons:    row.Reasons,
		Forced:     row.Forced,
	}
}
