// Package stream consumes the send backend's push channel and folds status
// events into the orchestrator.
package stream

import (
	"context"

	"github.com/amirphl/Susanoo/models"
)

// StreamConn is one live connection to the push channel
type StreamConn interface {
	// Receive blocks until the next raw frame arrives or the context ends
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// StreamSource dials the push channel. Implementations must be safe to call
// Connect repeatedly; the listener reconnects on every failure.
type StreamSource interface {
	Connect(ctx context.Context) (StreamConn, error)
}

// StatusEventHandler receives every well-formed send-status event in arrival order
type StatusEventHandler interface {
	HandleStatusEvent(ctx context.Context, event models.StatusEvent) error
}
