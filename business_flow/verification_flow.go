package businessflow

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
)

// VerificationFlow owns the lifecycle of direct targets: provisional
// registration, asynchronous resolution against the send backend and the
// verified-to-ready confirmation window.
type VerificationFlow interface {
	AddDirectTarget(ctx context.Context, req *dto.AddDirectTargetRequest, metadata *ClientMetadata) (*dto.AddDirectTargetResponse, error)

	// RemoveTarget removes any target and cancels whatever verification
	// work is still pending for it. Group targets pass straight through.
	RemoveTarget(ctx context.Context, targetID string, metadata *ClientMetadata) error
}

// VerificationFlowImpl implements the verification business flow
type VerificationFlowImpl struct {
	registry TargetRegistry
	backend  services.BackendClient

	confirmAfter time.Duration

	mu sync.Mutex
	// attempt generation per target id; a bumped generation invalidates
	// every in-flight resolution and timer of the previous attempt
	attempts map[string]uint64
	timers   map[string]*time.Timer
}

// NewVerificationFlow creates a new verification flow instance
func NewVerificationFlow(
	registry TargetRegistry,
	backend services.BackendClient,
	confirmAfter time.Duration,
) VerificationFlow {
	return &VerificationFlowImpl{
		registry:     registry,
		backend:      backend,
		confirmAfter: confirmAfter,
		attempts:     make(map[string]uint64),
		timers:       make(map[string]*time.Timer),
	}
}

// DirectTargetID derives the stable registry id for a raw direct input.
// The send backend resolves the same raw input again at send time, so the
// id never changes across verification.
func DirectTargetID(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimPrefix(normalized, "@")
	return "direct:" + normalized
}

func (s *VerificationFlowImpl) AddDirectTarget(ctx context.Context, req *dto.AddDirectTargetRequest, metadata *ClientMetadata) (*dto.AddDirectTargetResponse, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, NewBusinessError("TARGET_INPUT_REQUIRED", "Target input is required", ErrTargetInputRequired)
	}

	targetID := DirectTargetID(input)
	target := models.Target{
		ID:          targetID,
		Kind:        models.TargetKindDirect,
		DisplayName: input,
		Status:      models.TargetStatusPending,
		Verification: &models.Verification{
			State:     models.VerificationStatePending,
			RawInput:  input,
			StartedAt: utils.UTCNow(),
		},
	}

	added, err := s.registry.AddTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	generation := s.bumpAttempt(targetID)
	go s.resolve(targetID, input, generation)

	return &dto.AddDirectTargetResponse{Target: ToTargetDTO(*added)}, nil
}

func (s *VerificationFlowImpl) RemoveTarget(ctx context.Context, targetID string, metadata *ClientMetadata) error {
	// Invalidate before removing so a resolution racing with the removal
	// cannot resurrect state on the registry
	s.bumpAttempt(targetID)

	return s.registry.RemoveTarget(ctx, targetID)
}

// resolve runs the asynchronous resolution of one attempt. Results are
// discarded if the attempt generation moved on while the call was in flight.
func (s *VerificationFlowImpl) resolve(targetID, input string, generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), utils.ResolveTimeout)
	defer cancel()

	result, err := s.backend.Resolve(ctx, input)

	if err != nil {
		log.Printf("verification: resolve failed for %s: %v", targetID, err)
		s.applyIfCurrent(targetID, generation, models.Verification{
			State:     models.VerificationStateError,
			RawInput:  input,
			Error:     utils.ToPtr(err.Error()),
			StartedAt: utils.UTCNow(),
		})
		return
	}

	verification := models.Verification{
		State:       models.VerificationStateVerified,
		RawInput:    input,
		DisplayName: utils.ToPtr(result.DisplayName),
		MatchedBy:   result.MatchedBy,
		StartedAt:   utils.UTCNow(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempts[targetID] != generation {
		return
	}
	s.updateVerification(targetID, verification)
	s.timers[targetID] = time.AfterFunc(s.confirmAfter, func() {
		confirmed := verification
		confirmed.State = models.VerificationStateReady
		s.applyIfCurrent(targetID, generation, confirmed)
	})
}

// applyIfCurrent writes a verification result unless the attempt generation
// has moved on. The generation check and the registry write happen under one
// lock, so a remove and re-add racing with a late resolution cannot land the
// stale result on the fresh attempt.
func (s *VerificationFlowImpl) applyIfCurrent(targetID string, generation uint64, verification models.Verification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempts[targetID] != generation {
		return false
	}
	s.updateVerification(targetID, verification)
	return true
}

func (s *VerificationFlowImpl) updateVerification(targetID string, verification models.Verification) {
	if err := s.registry.UpdateVerification(context.Background(), targetID, verification); err != nil {
		// The target may have been removed while we were resolving
		if !IsTargetNotFound(err) {
			log.Printf("verification: failed to update %s: %v", targetID, err)
		}
	}
}

// bumpAttempt advances the attempt generation and cancels the previous
// attempt's confirmation timer, if any
func (s *VerificationFlowImpl) bumpAttempt(targetID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[targetID]++
	if timer, ok := s.timers[targetID]; ok {
		timer.Stop()
		delete(s.timers, targetID)
	}
	return s.attempts[targetID]
}
