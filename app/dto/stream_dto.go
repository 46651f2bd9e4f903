package dto

// StreamEnvelope is the wire format of one push-channel frame. Frames whose
// Type is not the send-status type are ignored by the listener.
type StreamEnvelope struct {
	Type string          `json:"type"`
	Data StreamEventData `json:"data"`
}

// StreamEventData is the payload of a send-status frame
type StreamEventData struct {
	TargetID   string   `json:"target_id"`
	Status     string   `json:"status"`
	Timestamp  int64    `json:"timestamp"`
	DurationMs *int64   `json:"duration_ms,omitempty"`
	Error      *string  `json:"error,omitempty"`
	RulesText  *string  `json:"rules_text,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
	Forced     bool     `json:"forced,omitempty"`
	CampaignID string   `json:"campaign_id,omitempty"`
}
