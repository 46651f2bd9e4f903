package repository

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
)

// MemorySendStateRepository is an in-memory SendStateRepository. It backs the
// cooldown gate when no database is configured and doubles as the test
// implementation.
type MemorySendStateRepository struct {
	mu     sync.RWMutex
	states map[string]*models.TargetSendState
}

func NewMemorySendStateRepository() *MemorySendStateRepository {
	return &MemorySendStateRepository{states: make(map[string]*models.TargetSendState)}
}

func (r *MemorySendStateRepository) ByTargetID(_ context.Context, targetID string) (*models.TargetSendState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[targetID]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (r *MemorySendStateRepository) ListAll(_ context.Context) ([]*models.TargetSendState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.TargetSendState, 0, len(r.states))
	for _, state := range r.states {
		cp := *state
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemorySendStateRepository) RecordSent(_ context.Context, targetID string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sentAt = sentAt.UTC()
	state, ok := r.states[targetID]
	if !ok {
		r.states[targetID] = &models.TargetSendState{
			TargetID:   targetID,
			LastSentAt: &sentAt,
			UpdatedAt:  utils.UTCNow(),
		}
		return nil
	}

	if state.LastSentAt == nil || sentAt.After(*state.LastSentAt) {
		state.LastSentAt = &sentAt
	}
	state.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *MemorySendStateRepository) SetBlocked(_ context.Context, targetID string, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[targetID]
	if !ok {
		r.states[targetID] = &models.TargetSendState{
			TargetID:  targetID,
			Blocked:   blocked,
			UpdatedAt: utils.UTCNow(),
		}
		return nil
	}

	state.Blocked = blocked
	state.UpdatedAt = utils.UTCNow()
	return nil
}
