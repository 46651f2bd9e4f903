package businessflow

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// Applied-event keys kept for duplicate suppression. Old keys are evicted
// FIFO once the window is full; the window is far larger than any realistic
// replay horizon.
const appliedKeyWindow = 8192

// TargetRegistry owns the canonical status record of every recipient. All
// mutations go through it; callers only ever receive value copies.
type TargetRegistry interface {
	AddTarget(ctx context.Context, target models.Target) (*models.Target, error)
	RemoveTarget(ctx context.Context, targetID string) error
	GetTarget(ctx context.Context, targetID string) (*models.Target, error)
	ListTargets(ctx context.Context, filter models.TargetFilter) []models.Target

	// ApplyStatusEvent folds one delivery outcome into the registry,
	// creating the target lazily when the event is the first reference to
	// it. The returned bool reports whether the event mutated state;
	// duplicates (same target, status and timestamp) return false with no
	// error.
	ApplyStatusEvent(ctx context.Context, event models.StatusEvent) (bool, error)

	// MarkPending resets the listed targets to pending at dispatch time.
	// Unknown ids are ignored.
	MarkPending(ctx context.Context, targetIDs []string)

	// UpdateVerification replaces the verification sub-state of a direct target
	UpdateVerification(ctx context.Context, targetID string, verification models.Verification) error

	// LoadSendStates seeds last-sent and blocked facts from the durable
	// store. Rows for targets not yet registered are kept aside and merged
	// when the target is added.
	LoadSendStates(ctx context.Context) error
}

// TargetRegistryImpl implements the target registry business flow
type TargetRegistryImpl struct {
	mu      sync.RWMutex
	targets map[string]*models.Target
	order   []string

	appliedKeys map[string]struct{}
	appliedFIFO []string

	// send-state rows loaded for targets that do not exist yet
	seeds map[string]models.TargetSendState

	sendStateRepo   repository.SendStateRepository
	deliveryLogRepo repository.DeliveryLogRepository

	// nil when the repositories are memory-backed; with a database attached
	// the per-event writes share one transaction
	db *gorm.DB
}

// NewTargetRegistry creates a new target registry instance
func NewTargetRegistry(
	sendStateRepo repository.SendStateRepository,
	deliveryLogRepo repository.DeliveryLogRepository,
	db *gorm.DB,
) TargetRegistry {
	return &TargetRegistryImpl{
		targets:         make(map[string]*models.Target),
		appliedKeys:     make(map[string]struct{}),
		seeds:           make(map[string]models.TargetSendState),
		sendStateRepo:   sendStateRepo,
		deliveryLogRepo: deliveryLogRepo,
		db:              db,
	}
}

func (r *TargetRegistryImpl) AddTarget(ctx context.Context, target models.Target) (*models.Target, error) {
	if target.ID == "" {
		return nil, NewBusinessError("TARGET_INPUT_REQUIRED", "Target id is required", ErrTargetInputRequired)
	}
	if !target.Kind.Valid() {
		return nil, NewBusinessErrorf("TARGET_INPUT_REQUIRED", "Unknown target kind %q", ErrTargetInputRequired, target.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.targets[target.ID]; exists {
		return nil, NewBusinessErrorf("TARGET_ALREADY_EXISTS", "Target %s already exists", ErrTargetAlreadyExists, target.ID)
	}

	if target.Status == "" {
		target.Status = models.TargetStatusPending
	}

	if seed, ok := r.seeds[target.ID]; ok {
		target.LastSentAt = seed.LastSentAt
		target.Blocked = seed.Blocked
	}

	stored := target.Clone()
	r.targets[target.ID] = &stored
	r.order = append(r.order, target.ID)

	out := stored.Clone()
	return &out, nil
}

func (r *TargetRegistryImpl) RemoveTarget(ctx context.Context, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, exists := r.targets[targetID]
	if !exists {
		return NewBusinessErrorf("TARGET_NOT_FOUND", "Target %s not found", ErrTargetNotFound, targetID)
	}

	// Keep durable facts so a re-added target does not lose its cooldown
	r.seeds[targetID] = models.TargetSendState{
		TargetID:   targetID,
		LastSentAt: target.LastSentAt,
		Blocked:    target.Blocked,
	}

	delete(r.targets, targetID)
	for i, id := range r.order {
		if id == targetID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

func (r *TargetRegistryImpl) GetTarget(ctx context.Context, targetID string) (*models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, exists := r.targets[targetID]
	if !exists {
		return nil, NewBusinessErrorf("TARGET_NOT_FOUND", "Target %s not found", ErrTargetNotFound, targetID)
	}

	out := target.Clone()
	return &out, nil
}

func (r *TargetRegistryImpl) ListTargets(ctx context.Context, filter models.TargetFilter) []models.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Target, 0, len(r.order))
	for _, id := range r.order {
		target := r.targets[id]
		if target == nil || !filter.Matches(*target) {
			continue
		}
		out = append(out, target.Clone())
	}
	return out
}

func (r *TargetRegistryImpl) ApplyStatusEvent(ctx context.Context, event models.StatusEvent) (bool, error) {
	if err := event.Validate(); err != nil {
		return false, NewBusinessError("STATUS_EVENT_INVALID", "Status event validation failed", err)
	}

	r.mu.Lock()

	target, exists := r.targets[event.TargetID]
	if !exists {
		target = r.createLazy(event.TargetID)
	}

	key := event.Key()
	if _, dup := r.appliedKeys[key]; dup {
		r.mu.Unlock()
		return false, nil
	}
	r.rememberKey(key)

	// Arrival order is authoritative for the displayed status: the newest
	// arriving event always wins, even when its timestamp is older.
	ts := event.Timestamp.UTC()
	target.Status = event.Status
	target.LastStatusAt = &ts

	switch event.Status {
	case models.TargetStatusSent:
		target.Blocked = false
		target.LastSentAt = utils.MaxTimePtr(target.LastSentAt, &ts)
	case models.TargetStatusDryRun:
		target.LastSentAt = utils.MaxTimePtr(target.LastSentAt, &ts)
	case models.TargetStatusBlocked:
		target.Blocked = true
	}

	r.mu.Unlock()

	// Persistence is best effort; a store failure never rejects the event.
	if err := r.persistEvent(ctx, event, ts); err != nil {
		log.Printf("target registry: failed to persist %s for %s: %v", event.Status, event.TargetID, err)
	}

	return true, nil
}

// persistEvent writes the durable side effects of one applied event. With a
// database attached, the send-state and delivery-log writes share one
// transaction.
func (r *TargetRegistryImpl) persistEvent(ctx context.Context, event models.StatusEvent, ts time.Time) error {
	write := func(ctx context.Context) error {
		switch event.Status {
		case models.TargetStatusSent:
			if err := r.sendStateRepo.RecordSent(ctx, event.TargetID, ts); err != nil {
				return err
			}
			if err := r.sendStateRepo.SetBlocked(ctx, event.TargetID, false); err != nil {
				return err
			}
		case models.TargetStatusDryRun:
			if err := r.sendStateRepo.RecordSent(ctx, event.TargetID, ts); err != nil {
				return err
			}
		case models.TargetStatusBlocked:
			if err := r.sendStateRepo.SetBlocked(ctx, event.TargetID, true); err != nil {
				return err
			}
		}

		if r.deliveryLogRepo == nil {
			return nil
		}
		row := &models.DeliveryLog{
			TargetID:   event.TargetID,
			Status:     event.Status,
			OccurredAt: ts,
			DurationMs: event.DurationMs,
			Error:      event.Error,
			RulesText:  event.RulesText,
			Reasons:    event.Reasons,
			Forced:     event.Forced,
		}
		if event.CampaignID != "" {
			row.CampaignID = utils.ToPtr(event.CampaignID)
		}
		return r.deliveryLogRepo.Save(ctx, row)
	}

	if r.db != nil {
		return repository.WithTransaction(ctx, r.db, write)
	}
	return write(ctx)
}

func (r *TargetRegistryImpl) MarkPending(ctx context.Context, targetIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range targetIDs {
		if target, ok := r.targets[id]; ok {
			target.Status = models.TargetStatusPending
		}
	}
}

func (r *TargetRegistryImpl) UpdateVerification(ctx context.Context, targetID string, verification models.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, exists := r.targets[targetID]
	if !exists {
		return NewBusinessErrorf("TARGET_NOT_FOUND", "Target %s not found", ErrTargetNotFound, targetID)
	}

	v := verification
	target.Verification = &v
	if v.DisplayName != nil && *v.DisplayName != "" {
		target.DisplayName = *v.DisplayName
	}
	return nil
}

func (r *TargetRegistryImpl) LoadSendStates(ctx context.Context) error {
	states, err := r.sendStateRepo.ListAll(ctx)
	if err != nil {
		return NewBusinessError("SEND_STATE_LOAD_FAILED", "Failed to load send states", err)
	}

	// Stable order keeps startup logs deterministic
	sort.Slice(states, func(i, j int) bool { return states[i].TargetID < states[j].TargetID })

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, state := range states {
		if state == nil {
			continue
		}
		if target, ok := r.targets[state.TargetID]; ok {
			target.LastSentAt = utils.MaxTimePtr(target.LastSentAt, state.LastSentAt)
			target.Blocked = state.Blocked
			continue
		}
		r.seeds[state.TargetID] = *state
	}

	return nil
}

// createLazy registers a target first referenced by a status event. Caller
// must hold the write lock.
func (r *TargetRegistryImpl) createLazy(targetID string) *models.Target {
	target := &models.Target{
		ID:          targetID,
		Kind:        kindForID(targetID),
		DisplayName: targetID,
		Status:      models.TargetStatusPending,
	}
	if seed, ok := r.seeds[targetID]; ok {
		target.LastSentAt = seed.LastSentAt
		target.Blocked = seed.Blocked
	}
	r.targets[targetID] = target
	r.order = append(r.order, targetID)
	return target
}

// kindForID infers the kind of a lazily created target; direct recipient ids
// carry the "direct:" prefix
func kindForID(id string) models.TargetKind {
	if strings.HasPrefix(id, "direct:") {
		return models.TargetKindDirect
	}
	return models.TargetKindGroup
}

// rememberKey records an applied event key, evicting the oldest once the
// window is full. Caller must hold the write lock.
func (r *TargetRegistryImpl) rememberKey(key string) {
	r.appliedKeys[key] = struct{}{}
	r.appliedFIFO = append(r.appliedFIFO, key)
	if len(r.appliedFIFO) > appliedKeyWindow {
		oldest := r.appliedFIFO[0]
		r.appliedFIFO = r.appliedFIFO[1:]
		delete(r.appliedKeys, oldest)
	}
}
