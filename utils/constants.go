package utils

import (
	"time"
)

// Dispatch constants
const (
	// DispatchBatchSize is the number of targets sent to the backend per batch
	DispatchBatchSize = 50

	// DispatchTimeout is the per-call timeout for backend dispatch requests
	DispatchTimeout = 60 * time.Second

	// ResolveTimeout is the per-call timeout for direct target resolution
	ResolveTimeout = 30 * time.Second
)

// Verification constants
const (
	// VerificationConfirmDuration is how long a verified direct target waits
	// before it is considered ready for dispatch
	VerificationConfirmDuration = 5 * time.Second
)

// Stream constants
const (
	// StreamStaleTimeout is the window without any inbound message after which
	// the push channel is considered stale and reconnected
	StreamStaleTimeout = 90 * time.Second

	// StreamReconnectBackoff is the initial delay before reopening a torn-down
	// stream connection
	StreamReconnectBackoff = 2 * time.Second

	// StreamReconnectBackoffMax caps the exponential reconnect backoff
	StreamReconnectBackoffMax = 60 * time.Second

	// StreamEventType is the discriminator of push messages carrying status events
	StreamEventType = "message_send_status"
)

// HTTP constants
const (
	// CORSMaxAge is the preflight cache lifetime in seconds
	CORSMaxAge = 86400
)

// Cooldown constants
const (
	// DefaultCooldownMinutes is the default minimum gap between successful
	// sends to the same target when the caller does not override it
	DefaultCooldownMinutes = 50
)
