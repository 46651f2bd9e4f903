package repository

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySendStateRecordSentMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySendStateRepository()

	newer := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	require.NoError(t, repo.RecordSent(ctx, "g1", newer))

	// An out-of-order send must not regress the watermark
	require.NoError(t, repo.RecordSent(ctx, "g1", older))

	state, err := repo.ByTargetID(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.LastSentAt)
	assert.True(t, state.LastSentAt.Equal(newer))
}

func TestMemorySendStateSetBlocked(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySendStateRepository()

	require.NoError(t, repo.SetBlocked(ctx, "g1", true))

	state, err := repo.ByTargetID(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Blocked)
	assert.Nil(t, state.LastSentAt)

	require.NoError(t, repo.SetBlocked(ctx, "g1", false))
	state, err = repo.ByTargetID(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, state.Blocked)
}

func TestMemorySendStateUnknownTarget(t *testing.T) {
	repo := NewMemorySendStateRepository()

	state, err := repo.ByTargetID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemorySendStateListAll(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySendStateRepository()

	require.NoError(t, repo.RecordSent(ctx, "g1", utils.UTCNow()))
	require.NoError(t, repo.SetBlocked(ctx, "g2", true))

	states, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestMemoryDeliveryLogSaveAssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeliveryLogRepository()

	first := &models.DeliveryLog{TargetID: "g1", Status: models.TargetStatusSent, OccurredAt: utils.UTCNow()}
	second := &models.DeliveryLog{TargetID: "g2", Status: models.TargetStatusFailed, OccurredAt: utils.UTCNow()}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	assert.Equal(t, uint(1), first.ID)
	assert.Equal(t, uint(2), second.ID)
}

func TestMemoryDeliveryLogByFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeliveryLogRepository()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	rows := []*models.DeliveryLog{
		{TargetID: "g1", Status: models.TargetStatusSent, OccurredAt: base, CampaignID: utils.ToPtr("c1")},
		{TargetID: "g2", Status: models.TargetStatusFailed, OccurredAt: base.Add(time.Minute), CampaignID: utils.ToPtr("c1")},
		{TargetID: "g1", Status: models.TargetStatusSent, OccurredAt: base.Add(2 * time.Minute), CampaignID: utils.ToPtr("c2")},
	}
	require.NoError(t, repo.SaveBatch(ctx, rows))

	// Unfiltered, newest first
	all, err := repo.ByFilter(ctx, models.DeliveryLogFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "g1", all[0].TargetID)
	require.NotNil(t, all[0].CampaignID)
	assert.Equal(t, "c2", *all[0].CampaignID)

	campaign := "c1"
	byCampaign, err := repo.ByFilter(ctx, models.DeliveryLogFilter{CampaignID: &campaign}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byCampaign, 2)

	status := models.TargetStatusFailed
	byStatus, err := repo.ByFilter(ctx, models.DeliveryLogFilter{Status: &status}, 0, 0)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "g2", byStatus[0].TargetID)

	// Offset past the end yields an empty page
	page, err := repo.ByFilter(ctx, models.DeliveryLogFilter{}, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = repo.ByFilter(ctx, models.DeliveryLogFilter{}, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "g2", page[0].TargetID)
}

func TestMemoryDeliveryLogCount(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeliveryLogRepository()

	require.NoError(t, repo.Save(ctx, &models.DeliveryLog{TargetID: "g1", Status: models.TargetStatusSent, OccurredAt: utils.UTCNow()}))
	require.NoError(t, repo.Save(ctx, &models.DeliveryLog{TargetID: "g1", Status: models.TargetStatusFailed, OccurredAt: utils.UTCNow()}))

	total, err := repo.Count(ctx, models.DeliveryLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	target := "g1"
	status := models.TargetStatusSent
	count, err := repo.Count(ctx, models.DeliveryLogFilter{TargetID: &target, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
