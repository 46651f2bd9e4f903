package repository

import (
	"context"
	"sync"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
)

// MemoryDeliveryLogRepository is an in-memory DeliveryLogRepository used when
// no database is configured, and by tests.
type MemoryDeliveryLogRepository struct {
	mu     sync.RWMutex
	rows   []*models.DeliveryLog
	nextID uint
}

func NewMemoryDeliveryLogRepository() *MemoryDeliveryLogRepository {
	return &MemoryDeliveryLogRepository{nextID: 1}
}

func (r *MemoryDeliveryLogRepository) Save(_ context.Context, row *models.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *row
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = utils.UTCNow()
	}
	r.nextID++
	r.rows = append(r.rows, &cp)
	row.ID = cp.ID
	return nil
}

func (r *MemoryDeliveryLogRepository) SaveBatch(ctx context.Context, rows []*models.DeliveryLog) error {
	for _, row := range rows {
		if row == nil {
			continue
		}
		if err := r.Save(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryDeliveryLogRepository) matches(filter models.DeliveryLogFilter, row *models.DeliveryLog) bool {
	if filter.CampaignID != nil {
		if row.CampaignID == nil || *row.CampaignID != *filter.CampaignID {
			return false
		}
	}
	if filter.TargetID != nil && row.TargetID != *filter.TargetID {
		return false
	}
	if filter.Status != nil && row.Status != *filter.Status {
		return false
	}
	return true
}

// ByFilter returns matching rows newest first
func (r *MemoryDeliveryLogRepository) ByFilter(_ context.Context, filter models.DeliveryLogFilter, limit, offset int) ([]*models.DeliveryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.DeliveryLog, 0)
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if r.matches(filter, row) {
			cp := *row
			matched = append(matched, &cp)
		}
	}

	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

func (r *MemoryDeliveryLogRepository) Count(_ context.Context, filter models.DeliveryLogFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, row := range r.rows {
		if r.matches(filter, row) {
			count++
		}
	}
	return count, nil
}
