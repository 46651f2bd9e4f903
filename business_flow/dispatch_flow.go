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

// DispatchFlow coordinates send campaigns: validation, cooldown gating,
// batch submission to the send backend and live aggregate tracking.
type DispatchFlow interface {
	StartDispatch(ctx context.Context, req *dto.StartDispatchRequest, metadata *ClientMetadata) (*dto.StartDispatchResponse, error)
	StopDispatch(ctx context.Context, campaignID string, metadata *ClientMetadata) error
	GetCampaignStatus(ctx context.Context, campaignID string) (*dto.CampaignStatusResponse, error)

	// ListEligibleTargets returns the targets that would pass the dispatch
	// gate right now. A non-positive cooldown falls back to the configured one.
	ListEligibleTargets(ctx context.Context, cooldown time.Duration) []models.Target

	// HandleStatusEvent folds one delivery outcome into the registry and,
	// when the event belongs to a tracked campaign, into its aggregates.
	HandleStatusEvent(ctx context.Context, event models.StatusEvent) error
}

type campaignRun struct {
	campaign models.Campaign
	running  bool
	stopped  bool
}

// DispatchFlowImpl implements the dispatch business flow
type DispatchFlowImpl struct {
	registry TargetRegistry
	backend  services.BackendClient

	cooldown   time.Duration
	batchSize  int
	sleepFn    func(context.Context, time.Duration) // injectable for tests
	mu         sync.Mutex
	inFlight   map[string]string // target id -> campaign id
	campaigns  map[string]*campaignRun
}

// NewDispatchFlow creates a new dispatch flow instance
func NewDispatchFlow(
	registry TargetRegistry,
	backend services.BackendClient,
	cooldown time.Duration,
	batchSize int,
) DispatchFlow {
	if batchSize <= 0 {
		batchSize = utils.DispatchBatchSize
	}
	return &DispatchFlowImpl{
		registry:  registry,
		backend:   backend,
		cooldown:  cooldown,
		batchSize: batchSize,
		sleepFn:   sleepWithContext,
		inFlight:  make(map[string]string),
		campaigns: make(map[string]*campaignRun),
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// StartDispatch validates the request, gates every target through the
// cooldown and block rules and submits the accepted set in batches. No side
// effect happens before all validation has passed.
func (s *DispatchFlowImpl) StartDispatch(ctx context.Context, req *dto.StartDispatchRequest, metadata *ClientMetadata) (*dto.StartDispatchResponse, error) {
	if strings.TrimSpace(req.MessageBody) == "" {
		return nil, NewBusinessError("DISPATCH_EMPTY_MESSAGE", "Message body is empty", ErrEmptyMessage)
	}

	campaign := models.NewCampaign(req.MessageBody, req.TargetIDs, req.DryRun, req.DelaySeconds, req.OverrideTargets, utils.UTCNow())
	if len(campaign.TargetIDs) == 0 {
		return nil, NewBusinessError("DISPATCH_NO_TARGETS", "No targets selected", ErrNoTargets)
	}

	// Resolve every target up front so a bad id fails the whole request
	// before anything is mutated
	targets := make(map[string]models.Target, len(campaign.TargetIDs))
	for _, id := range campaign.TargetIDs {
		target, err := s.registry.GetTarget(ctx, id)
		if err != nil {
			return nil, err
		}
		if target.Kind == models.TargetKindDirect {
			switch {
			case target.Verification == nil:
				// Lazily created from a stream event; never went through
				// verification at all.
				return nil, NewBusinessErrorf("DISPATCH_VERIFICATION_IN_PROGRESS", "Target %s has not been verified", ErrVerificationInProgress, id)
			case target.Verification.State == models.VerificationStatePending:
				return nil, NewBusinessErrorf("DISPATCH_VERIFICATION_IN_PROGRESS", "Target %s is still being verified", ErrVerificationInProgress, id)
			case target.Verification.State == models.VerificationStateError:
				return nil, NewBusinessErrorf("DISPATCH_RESOLVE_FAILED", "Target %s could not be resolved", ErrResolveFailed, id)
			}
		}
		targets[id] = *target
	}

	now := utils.UTCNow()
	accepted := make([]string, 0, len(campaign.TargetIDs))
	skipped := make([]string, 0)
	for _, id := range campaign.TargetIDs {
		target := targets[id]
		if campaign.IsOverride(id) {
			accepted = append(accepted, id)
			continue
		}
		if !sendEligible(target, now, s.cooldown) {
			skipped = append(skipped, id)
			continue
		}
		accepted = append(accepted, id)
	}

	if len(accepted) == 0 {
		return nil, NewBusinessError("DISPATCH_NO_TARGETS", "All targets were skipped by cooldown or block rules", ErrNoTargets)
	}

	s.mu.Lock()
	for _, id := range accepted {
		if other, busy := s.inFlight[id]; busy {
			s.mu.Unlock()
			return nil, NewBusinessErrorf("DISPATCH_IN_FLIGHT", "Target %s is already part of campaign %s", ErrDispatchInFlight, id, other)
		}
	}
	campaignID := campaign.ID.String()
	for _, id := range accepted {
		s.inFlight[id] = campaignID
	}
	run := &campaignRun{campaign: campaign, running: true}
	run.campaign.TargetIDs = accepted
	s.campaigns[campaignID] = run
	s.mu.Unlock()

	s.registry.MarkPending(ctx, accepted)

	batches := splitBatches(accepted, s.batchSize)

	// The first batch goes out synchronously so a dead backend surfaces as
	// an error on the request itself instead of a silent background failure.
	if err := s.submitBatch(ctx, campaignID, &campaign, batches[0]); err != nil {
		s.finishRun(campaignID)
		return nil, NewBusinessError("DISPATCH_TRANSPORT_FAILED", "Send backend is unreachable", ErrDispatchTransport)
	}

	if len(batches) > 1 {
		go s.runBatches(campaignID, campaign, batches[1:])
	} else {
		s.finishRun(campaignID)
	}

	return &dto.StartDispatchResponse{
		CampaignID:      campaignID,
		AcceptedTargets: accepted,
		SkippedTargets:  skipped,
	}, nil
}

func (s *DispatchFlowImpl) runBatches(campaignID string, campaign models.Campaign, batches [][]string) {
	defer s.finishRun(campaignID)

	ctx := context.Background()
	delay := time.Duration(campaign.DelaySeconds) * time.Second

	for i, batch := range batches {
		s.sleepFn(ctx, delay)

		if s.isStopped(campaignID) {
			left := 0
			for _, b := range batches[i:] {
				left += len(b)
			}
			log.Printf("dispatch: campaign %s stopped, %d targets left unsent", campaignID, left)
			return
		}

		if err := s.submitBatch(ctx, campaignID, &campaign, batch); err != nil {
			// A mid-run transport failure marks the batch failed and moves
			// on; later batches may still succeed.
			log.Printf("dispatch: campaign %s batch submission failed: %v", campaignID, err)
			s.failBatch(ctx, campaignID, batch, err)
		}
	}
}

func (s *DispatchFlowImpl) submitBatch(ctx context.Context, campaignID string, campaign *models.Campaign, batch []string) error {
	overrides := make([]string, 0)
	for _, id := range batch {
		if campaign.IsOverride(id) {
			overrides = append(overrides, id)
		}
	}

	result, err := s.backend.SendBatch(ctx, &services.SendBatchRequest{
		CampaignID:  campaignID,
		MessageBody: campaign.MessageBody,
		TargetIDs:   batch,
		DryRun:      campaign.DryRun,
		Overrides:   overrides,
	})
	if err != nil {
		return err
	}

	// The synchronous per-target results are the authoritative initial
	// status of this batch; they are applied in the order the backend
	// returned them. The stream corrects them later if needed.
	now := utils.UTCNow()
	for _, outcome := range result.Results {
		status := models.TargetStatus(outcome.Status)
		if !status.Valid() {
			log.Printf("dispatch: campaign %s returned unknown status %q for %s", campaignID, outcome.Status, outcome.TargetID)
			continue
		}
		ts := now
		if outcome.Timestamp > 0 {
			ts = time.UnixMilli(outcome.Timestamp).UTC()
		}
		event := models.StatusEvent{
			TargetID:   outcome.TargetID,
			Status:     status,
			Timestamp:  ts,
			DurationMs: outcome.DurationMs,
			Error:      outcome.Error,
			RulesText:  outcome.RulesText,
			Reasons:    outcome.Reasons,
			Forced:     campaign.IsOverride(outcome.TargetID),
			CampaignID: campaignID,
		}
		if err := s.HandleStatusEvent(ctx, event); err != nil {
			log.Printf("dispatch: campaign %s failed to apply result for %s: %v", campaignID, outcome.TargetID, err)
		}
	}

	return nil
}

// failBatch synthesizes failed events for targets whose batch never reached
// the backend, so they do not stay pending forever
func (s *DispatchFlowImpl) failBatch(ctx context.Context, campaignID string, batch []string, cause error) {
	now := utils.UTCNow()
	for _, id := range batch {
		event := models.StatusEvent{
			TargetID:   id,
			Status:     models.TargetStatusFailed,
			Timestamp:  now,
			Error:      utils.ToPtr(cause.Error()),
			CampaignID: campaignID,
		}
		if err := s.HandleStatusEvent(ctx, event); err != nil {
			log.Printf("dispatch: failed to record batch failure for %s: %v", id, err)
		}
	}
}

func (s *DispatchFlowImpl) StopDispatch(ctx context.Context, campaignID string, metadata *ClientMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.campaigns[campaignID]
	if !ok {
		return NewBusinessErrorf("CAMPAIGN_NOT_FOUND", "Campaign %s not found", ErrCampaignNotFound, campaignID)
	}

	run.stopped = true
	return nil
}

func (s *DispatchFlowImpl) GetCampaignStatus(ctx context.Context, campaignID string) (*dto.CampaignStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.campaigns[campaignID]
	if !ok {
		return nil, NewBusinessErrorf("CAMPAIGN_NOT_FOUND", "Campaign %s not found", ErrCampaignNotFound, campaignID)
	}

	return &dto.CampaignStatusResponse{
		CampaignID:   campaignID,
		DryRun:       run.campaign.DryRun,
		StartedAt:    run.campaign.StartedAt,
		Running:      run.running,
		TotalTargets: len(run.campaign.TargetIDs),
		SentCount:    run.campaign.SentCount,
		FailedCount:  run.campaign.FailedCount,
		SkippedCount: run.campaign.SkippedCount,
	}, nil
}

func (s *DispatchFlowImpl) HandleStatusEvent(ctx context.Context, event models.StatusEvent) error {
	applied, err := s.registry.ApplyStatusEvent(ctx, event)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if event.CampaignID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if run, ok := s.campaigns[event.CampaignID]; ok {
		run.campaign.CountEvent(event.Status)
	}
	return nil
}

func (s *DispatchFlowImpl) isStopped(campaignID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.campaigns[campaignID]
	return ok && run.stopped
}

// finishRun releases the in-flight reservations of a campaign and marks it
// no longer running. Aggregates stay queryable afterwards.
func (s *DispatchFlowImpl) finishRun(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.campaigns[campaignID]
	if !ok {
		return
	}
	run.running = false
	for id, owner := range s.inFlight {
		if owner == campaignID {
			delete(s.inFlight, id)
		}
	}
}

func (s *DispatchFlowImpl) ListEligibleTargets(ctx context.Context, cooldown time.Duration) []models.Target {
	if cooldown <= 0 {
		cooldown = s.cooldown
	}

	now := utils.UTCNow()
	targets := s.registry.ListTargets(ctx, models.TargetFilter{})
	out := make([]models.Target, 0, len(targets))
	for _, target := range targets {
		if !sendEligible(target, now, cooldown) {
			continue
		}
		if target.Kind == models.TargetKindDirect {
			if target.Verification == nil || !target.Verification.State.Eligible() {
				continue
			}
		}
		out = append(out, target)
	}
	return out
}

// sendEligible is the single cooldown and block gate shared by dispatch and
// the eligibility listing
func sendEligible(target models.Target, now time.Time, cooldown time.Duration) bool {
	if target.Blocked {
		return false
	}
	if target.LastSentAt != nil && now.Sub(*target.LastSentAt) < cooldown {
		return false
	}
	return true
}

func splitBatches(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
