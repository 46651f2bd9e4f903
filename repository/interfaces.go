// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Susanoo/models"
)

// Context key for transaction management
type contextKey string

const TxContextKey contextKey = "tx"

// SendStateRepository persists the per-target cooldown and block facts.
// Implementations must treat a missing row as never sent and not blocked.
type SendStateRepository interface {
	ByTargetID(ctx context.Context, targetID string) (*models.TargetSendState, error)
	ListAll(ctx context.Context) ([]*models.TargetSendState, error)

	// RecordSent applies a last-sent observation with max-wins semantics:
	// an older timestamp never overwrites a newer stored one.
	RecordSent(ctx context.Context, targetID string, sentAt time.Time) error

	SetBlocked(ctx context.Context, targetID string, blocked bool) error
}

// DeliveryLogRepository stores applied status events for audit and reporting
type DeliveryLogRepository interface {
	Save(ctx context.Context, row *models.DeliveryLog) error
	SaveBatch(ctx context.Context, rows []*models.DeliveryLog) error
	ByFilter(ctx context.Context, filter models.DeliveryLogFilter, limit, offset int) ([]*models.DeliveryLog, error)
	Count(ctx context.Context, filter models.DeliveryLogFilter) (int64, error)
}
