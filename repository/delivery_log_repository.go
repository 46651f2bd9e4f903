package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Susanoo/models"
	"gorm.io/gorm"
)

// DeliveryLogRepositoryImpl implements DeliveryLogRepository
type DeliveryLogRepositoryImpl struct {
	*BaseRepository[models.DeliveryLog, models.DeliveryLogFilter]
}

func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &DeliveryLogRepositoryImpl{BaseRepository: NewBaseRepository[models.DeliveryLog, models.DeliveryLogFilter](db)}
}

func (r *DeliveryLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.DeliveryLogFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.TargetID != nil {
		db = db.Where("target_id = ?", *filter.TargetID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

func (r *DeliveryLogRepositoryImpl) ByFilter(ctx context.Context, filter models.DeliveryLogFilter, limit, offset int) ([]*models.DeliveryLog, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.DeliveryLog{}), filter).Order("occurred_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.DeliveryLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find delivery log rows: %w", err)
	}

	return rows, nil
}

func (r *DeliveryLogRepositoryImpl) Count(ctx context.Context, filter models.DeliveryLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.DeliveryLog{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count delivery log rows: %w", err)
	}

	return count, nil
}
