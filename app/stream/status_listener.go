package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Frames received on the push channel, including non-status frames
	streamFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_frames_total",
			Help: "Total number of frames received on the status stream",
		},
	)

	// Status events applied to the registry
	streamEventsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_events_applied_total",
			Help: "Total number of status events handed to the orchestrator",
		},
	)

	// Frames or events discarded, partitioned by reason
	streamEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_dropped_total",
			Help: "Total number of stream frames or events discarded",
		},
		[]string{"reason"},
	)

	// Reconnect attempts after a teardown
	streamReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_reconnects_total",
			Help: "Total number of status stream reconnects",
		},
	)
)

// StatusListener is the long-lived consumer of the send backend's push
// channel. It survives every error: malformed frames are dropped, dead or
// stale connections are torn down and re-dialed with exponential backoff.
// Only cancelling its context stops it.
type StatusListener struct {
	source  StreamSource
	handler StatusEventHandler

	staleAfter time.Duration
	backoffMin time.Duration
	backoffMax time.Duration
}

// NewStatusListener creates a new status listener instance. Non-positive
// durations fall back to the package defaults.
func NewStatusListener(source StreamSource, handler StatusEventHandler, staleAfter, backoffMin, backoffMax time.Duration) *StatusListener {
	if staleAfter <= 0 {
		staleAfter = utils.StreamStaleTimeout
	}
	if backoffMin <= 0 {
		backoffMin = utils.StreamReconnectBackoff
	}
	if backoffMax <= 0 {
		backoffMax = utils.StreamReconnectBackoffMax
	}
	return &StatusListener{
		source:     source,
		handler:    handler,
		staleAfter: staleAfter,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
	}
}

// Start launches the listener loop and returns a function that stops it
func (l *StatusListener) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	go l.run(ctx)
	return func() {
		cancel()
	}
}

func (l *StatusListener) run(ctx context.Context) {
	backoff := l.backoffMin

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.source.Connect(ctx)
		if err != nil {
			log.Printf("stream: connect failed: %v (retrying in %s)", err, backoff)
			streamReconnectsTotal.Inc()
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, l.backoffMax)
			continue
		}

		backoff = l.backoffMin
		l.consume(ctx, conn)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		streamReconnectsTotal.Inc()
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, l.backoffMax)
	}
}

// consume reads frames until the connection errors, goes stale or the
// context ends
func (l *StatusListener) consume(ctx context.Context, conn StreamConn) {
	for {
		recvCtx, cancel := context.WithTimeout(ctx, l.staleAfter)
		payload, err := conn.Receive(recvCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				log.Printf("stream: no frame for %s, tearing down stale connection", l.staleAfter)
			} else {
				log.Printf("stream: receive failed: %v", err)
			}
			return
		}

		l.handleFrame(ctx, payload)
	}
}

func (l *StatusListener) handleFrame(ctx context.Context, payload []byte) {
	streamFramesTotal.Inc()

	var envelope dto.StreamEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		streamEventsDropped.WithLabelValues("malformed").Inc()
		log.Printf("stream: dropping malformed frame: %v", err)
		return
	}

	if envelope.Type != utils.StreamEventType {
		streamEventsDropped.WithLabelValues("ignored_type").Inc()
		return
	}

	event := models.StatusEvent{
		TargetID:   envelope.Data.TargetID,
		Status:     models.TargetStatus(envelope.Data.Status),
		Timestamp:  time.UnixMilli(envelope.Data.Timestamp).UTC(),
		DurationMs: envelope.Data.DurationMs,
		Error:      envelope.Data.Error,
		RulesText:  envelope.Data.RulesText,
		Reasons:    envelope.Data.Reasons,
		Forced:     envelope.Data.Forced,
		CampaignID: envelope.Data.CampaignID,
	}

	if err := event.Validate(); err != nil {
		streamEventsDropped.WithLabelValues("malformed").Inc()
		log.Printf("stream: dropping invalid event: %v", err)
		return
	}

	if err := l.handler.HandleStatusEvent(ctx, event); err != nil {
		streamEventsDropped.WithLabelValues("rejected").Inc()
		log.Printf("stream: event for %s rejected: %v", event.TargetID, err)
		return
	}

	streamEventsApplied.Inc()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
