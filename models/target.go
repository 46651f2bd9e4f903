package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TargetKind distinguishes group recipients from ad-hoc direct recipients
type TargetKind string

const (
	TargetKindGroup  TargetKind = "group"
	TargetKindDirect TargetKind = "direct"
)

// String returns the string representation of the kind
func (k TargetKind) String() string {
	return string(k)
}

// Valid checks if the kind is valid
func (k TargetKind) Valid() bool {
	switch k {
	case TargetKindGroup, TargetKindDirect:
		return true
	default:
		return false
	}
}

// TargetStatus represents the most recently applied delivery status of a target
type TargetStatus string

const (
	TargetStatusPending      TargetStatus = "pending"
	TargetStatusSent         TargetStatus = "sent"
	TargetStatusFailed       TargetStatus = "failed"
	TargetStatusDryRun       TargetStatus = "dry_run"
	TargetStatusBlocked      TargetStatus = "blocked"
	TargetStatusSkippedRules TargetStatus = "skipped_rules"
	TargetStatusFloodWait    TargetStatus = "flood_wait"
)

// String returns the string representation of the status
func (s TargetStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s TargetStatus) Valid() bool {
	switch s {
	case TargetStatusPending, TargetStatusSent, TargetStatusFailed,
		TargetStatusDryRun, TargetStatusBlocked, TargetStatusSkippedRules,
		TargetStatusFloodWait:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TargetStatus
func (s *TargetStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = TargetStatus(v)
	case []byte:
		*s = TargetStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TargetStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TargetStatus
func (s TargetStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid TargetStatus: %s", s)
	}
	return string(s), nil
}

// VerificationState represents the resolution state of a direct target
type VerificationState string

const (
	VerificationStatePending  VerificationState = "pending"
	VerificationStateVerified VerificationState = "verified"
	VerificationStateReady    VerificationState = "ready"
	VerificationStateError    VerificationState = "error"
)

// String returns the string representation of the state
func (s VerificationState) String() string {
	return string(s)
}

// Valid checks if the state is valid
func (s VerificationState) Valid() bool {
	switch s {
	case VerificationStatePending, VerificationStateVerified,
		VerificationStateReady, VerificationStateError:
		return true
	default:
		return false
	}
}

// Eligible reports whether a direct target in this state may be included in a
// dispatch target list
func (s VerificationState) Eligible() bool {
	return s == VerificationStateVerified || s == VerificationStateReady
}

// Verification holds the per-attempt resolution sub-state of a direct target.
// Re-adding a removed target starts a fresh attempt at pending.
type Verification struct {
	State       VerificationState `json:"state"`
	RawInput    string            `json:"raw_input"`
	DisplayName *string           `json:"display_name,omitempty"`
	MatchedBy   *string           `json:"matched_by,omitempty"`
	Error       *string           `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
}

// Target is the canonical mutable status record of one recipient. It is owned
// exclusively by the target registry; everything outside the registry sees
// value copies only.
type Target struct {
	ID           string        `json:"id"`
	Kind         TargetKind    `json:"kind"`
	DisplayName  string        `json:"display_name"`
	Status       TargetStatus  `json:"status"`
	LastStatusAt *time.Time    `json:"last_status_at,omitempty"`
	LastSentAt   *time.Time    `json:"last_sent_at,omitempty"`
	Blocked      bool          `json:"blocked"`
	Verification *Verification `json:"verification,omitempty"`
}

// Clone returns a deep copy safe to hand outside the registry
func (t Target) Clone() Target {
	cp := t
	if t.LastStatusAt != nil {
		v := *t.LastStatusAt
		cp.LastStatusAt = &v
	}
	if t.LastSentAt != nil {
		v := *t.LastSentAt
		cp.LastSentAt = &v
	}
	if t.Verification != nil {
		v := *t.Verification
		cp.Verification = &v
	}
	return cp
}

// TargetFilter provides filter fields for registry snapshots
type TargetFilter struct {
	Kind    *TargetKind
	Status  *TargetStatus
	Blocked *bool
}

// Matches reports whether the target satisfies every set filter field
func (f TargetFilter) Matches(t Target) bool {
	if f.Kind != nil && t.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Blocked != nil && t.Blocked != *f.Blocked {
		return false
	}
	return true
}
