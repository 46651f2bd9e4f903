package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SendStateRepositoryImpl implements SendStateRepository on PostgreSQL
type SendStateRepositoryImpl struct {
	*BaseRepository[models.TargetSendState, any]
}

func NewSendStateRepository(db *gorm.DB) SendStateRepository {
	return &SendStateRepositoryImpl{BaseRepository: NewBaseRepository[models.TargetSendState, any](db)}
}

func (r *SendStateRepositoryImpl) ByTargetID(ctx context.Context, targetID string) (*models.TargetSendState, error) {
	db := r.getDB(ctx)

	var state models.TargetSendState
	err := db.Where("target_id = ?", targetID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find send state for target %s: %w", targetID, err)
	}

	return &state, nil
}

func (r *SendStateRepositoryImpl) ListAll(ctx context.Context) ([]*models.TargetSendState, error) {
	db := r.getDB(ctx)

	var states []*models.TargetSendState
	if err := db.Find(&states).Error; err != nil {
		return nil, fmt.Errorf("failed to list send states: %w", err)
	}

	return states, nil
}

// RecordSent upserts the last-sent timestamp. GREATEST keeps the newer of the
// stored and incoming values, so late or replayed observations never move the
// timestamp backwards.
func (r *SendStateRepositoryImpl) RecordSent(ctx context.Context, targetID string, sentAt time.Time) error {
	db := r.getDB(ctx)

	row := &models.TargetSendState{
		TargetID:   targetID,
		LastSentAt: utils.ToPtr(sentAt.UTC()),
		UpdatedAt:  utils.UTCNow(),
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_sent_at": clause.Expr{SQL: "GREATEST(COALESCE(target_send_states.last_sent_at, EXCLUDED.last_sent_at), EXCLUDED.last_sent_at)"},
			"updated_at":   clause.Expr{SQL: "EXCLUDED.updated_at"},
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record sent for target %s: %w", targetID, err)
	}

	return nil
}

func (r *SendStateRepositoryImpl) SetBlocked(ctx context.Context, targetID string, blocked bool) error {
	db := r.getDB(ctx)

	row := &models.TargetSendState{
		TargetID:  targetID,
		Blocked:   blocked,
		UpdatedAt: utils.UTCNow(),
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"blocked":    blocked,
			"updated_at": clause.Expr{SQL: "EXCLUDED.updated_at"},
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set blocked=%t for target %s: %w", blocked, targetID, err)
	}

	return nil
}
