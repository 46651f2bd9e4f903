package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (TargetRegistry, *repository.MemorySendStateRepository, *repository.MemoryDeliveryLogRepository) {
	sendStates := repository.NewMemorySendStateRepository()
	deliveryLog := repository.NewMemoryDeliveryLogRepository()
	return NewTargetRegistry(sendStates, deliveryLog, nil), sendStates, deliveryLog
}

func groupTarget(id string) models.Target {
	return models.Target{
		ID:          id,
		Kind:        models.TargetKindGroup,
		DisplayName: "Group " + id,
	}
}

func TestAddTarget(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		target      models.Target
		expectError bool
		checkError  func(error) bool
	}{
		{
			name:        "missing id",
			target:      models.Target{Kind: models.TargetKindGroup},
			expectError: true,
			checkError:  IsTargetInputRequired,
		},
		{
			name:        "unknown kind",
			target:      models.Target{ID: "g1", Kind: "broadcast"},
			expectError: true,
			checkError:  IsTargetInputRequired,
		},
		{
			name:   "valid group target",
			target: groupTarget("g1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, _, _ := newTestRegistry()
			added, err := registry.AddTarget(ctx, tt.target)

			if tt.expectError {
				require.Error(t, err)
				assert.True(t, tt.checkError(err))
				assert.Nil(t, added)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, added)
			assert.Equal(t, tt.target.ID, added.ID)
			assert.Equal(t, models.TargetStatusPending, added.Status)
		})
	}
}

func TestAddTargetDuplicate(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	_, err = registry.AddTarget(ctx, groupTarget("g1"))
	require.Error(t, err)
	assert.True(t, IsTargetAlreadyExists(err))
}

func TestApplyStatusEventDuplicateIsNoOp(t *testing.T) {
	ctx := context.Background()
	registry, _, deliveryLog := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	event := models.StatusEvent{
		TargetID:  "g1",
		Status:    models.TargetStatusSent,
		Timestamp: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}

	applied, err := registry.ApplyStatusEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, applied)

	// Same target, status and timestamp: the event has already been applied
	applied, err = registry.ApplyStatusEvent(ctx, event)
	require.NoError(t, err)
	assert.False(t, applied)

	count, err := deliveryLog.Count(ctx, models.DeliveryLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestApplyStatusEventArrivalOrderWins(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	newer := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-10 * time.Minute)

	applied, err := registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusSent, Timestamp: newer,
	})
	require.NoError(t, err)
	require.True(t, applied)

	// An older-stamped failure arriving later still becomes the displayed
	// status, but the last-sent watermark keeps the newer send.
	applied, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusFailed, Timestamp: older,
	})
	require.NoError(t, err)
	require.True(t, applied)

	target, err := registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.TargetStatusFailed, target.Status)
	require.NotNil(t, target.LastSentAt)
	assert.True(t, target.LastSentAt.Equal(newer))
	require.NotNil(t, target.LastStatusAt)
	assert.True(t, target.LastStatusAt.Equal(older))
}

func TestApplyStatusEventBlockLifecycle(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusBlocked, Timestamp: base,
	})
	require.NoError(t, err)

	target, err := registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, target.Blocked)

	// Failures and flood waits do not clear the block
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusFailed, Timestamp: base.Add(time.Minute),
	})
	require.NoError(t, err)

	target, err = registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, target.Blocked)

	// Only a successful send clears it
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusSent, Timestamp: base.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	target, err = registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, target.Blocked)
}

func TestApplyStatusEventDryRunAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	registry, sendStates, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusDryRun, Timestamp: ts,
	})
	require.NoError(t, err)

	target, err := registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, target.LastSentAt)
	assert.True(t, target.LastSentAt.Equal(ts))

	state, err := sendStates.ByTargetID(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.LastSentAt)
	assert.True(t, state.LastSentAt.Equal(ts))
}

func TestApplyStatusEventCreatesTargetLazily(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	applied, err := registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g-new", Status: models.TargetStatusSent, Timestamp: ts,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	target, err := registry.GetTarget(ctx, "g-new")
	require.NoError(t, err)
	assert.Equal(t, models.TargetKindGroup, target.Kind)
	assert.Equal(t, models.TargetStatusSent, target.Status)
	require.NotNil(t, target.LastSentAt)

	// Direct recipient ids are recognized by their prefix
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "direct:alice", Status: models.TargetStatusFailed, Timestamp: ts,
	})
	require.NoError(t, err)

	target, err = registry.GetTarget(ctx, "direct:alice")
	require.NoError(t, err)
	assert.Equal(t, models.TargetKindDirect, target.Kind)
}

func TestApplyStatusEventInvalid(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "", Status: models.TargetStatusSent, Timestamp: time.Now(),
	})
	require.Error(t, err)

	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: "teleported", Timestamp: time.Now(),
	})
	require.Error(t, err)
}

func TestApplyStatusEventWritesDeliveryLog(t *testing.T) {
	ctx := context.Background()
	registry, _, deliveryLog := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	errText := "peer flood"
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID:   "g1",
		Status:     models.TargetStatusFloodWait,
		Timestamp:  ts,
		Error:      &errText,
		Reasons:    []string{"flood_wait_420"},
		CampaignID: "campaign-1",
	})
	require.NoError(t, err)

	rows, err := deliveryLog.ByFilter(ctx, models.DeliveryLogFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "g1", rows[0].TargetID)
	assert.Equal(t, models.TargetStatusFloodWait, rows[0].Status)
	require.NotNil(t, rows[0].CampaignID)
	assert.Equal(t, "campaign-1", *rows[0].CampaignID)
	require.NotNil(t, rows[0].Error)
	assert.Equal(t, "peer flood", *rows[0].Error)
}

func TestRemoveTargetKeepsDurableFacts(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusSent, Timestamp: ts,
	})
	require.NoError(t, err)

	require.NoError(t, registry.RemoveTarget(ctx, "g1"))

	_, err = registry.GetTarget(ctx, "g1")
	require.Error(t, err)
	assert.True(t, IsTargetNotFound(err))

	// Re-adding does not reset the cooldown clock
	added, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)
	require.NotNil(t, added.LastSentAt)
	assert.True(t, added.LastSentAt.Equal(ts))
	assert.Equal(t, models.TargetStatusPending, added.Status)
}

func TestRemoveTargetUnknown(t *testing.T) {
	registry, _, _ := newTestRegistry()

	err := registry.RemoveTarget(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsTargetNotFound(err))
}

func TestLoadSendStatesSeedsColdStart(t *testing.T) {
	ctx := context.Background()
	sendStates := repository.NewMemorySendStateRepository()
	deliveryLog := repository.NewMemoryDeliveryLogRepository()

	sentAt := time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC)
	require.NoError(t, sendStates.RecordSent(ctx, "g1", sentAt))
	require.NoError(t, sendStates.SetBlocked(ctx, "g2", true))

	registry := NewTargetRegistry(sendStates, deliveryLog, nil)

	// g1 registered before the load, g2 only after
	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)

	require.NoError(t, registry.LoadSendStates(ctx))

	target, err := registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, target.LastSentAt)
	assert.True(t, target.LastSentAt.Equal(sentAt))

	added, err := registry.AddTarget(ctx, groupTarget("g2"))
	require.NoError(t, err)
	assert.True(t, added.Blocked)
}

func TestListTargetsFilter(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)
	_, err = registry.AddTarget(ctx, models.Target{ID: "direct:alice", Kind: models.TargetKindDirect, DisplayName: "alice"})
	require.NoError(t, err)

	all := registry.ListTargets(ctx, models.TargetFilter{})
	require.Len(t, all, 2)
	// Insertion order is preserved
	assert.Equal(t, "g1", all[0].ID)
	assert.Equal(t, "direct:alice", all[1].ID)

	kind := models.TargetKindDirect
	direct := registry.ListTargets(ctx, models.TargetFilter{Kind: &kind})
	require.Len(t, direct, 1)
	assert.Equal(t, "direct:alice", direct[0].ID)
}

func TestMarkPendingIgnoresUnknown(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, groupTarget("g1"))
	require.NoError(t, err)
	_, err = registry.ApplyStatusEvent(ctx, models.StatusEvent{
		TargetID: "g1", Status: models.TargetStatusSent, Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	registry.MarkPending(ctx, []string{"g1", "ghost"})

	target, err := registry.GetTarget(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.TargetStatusPending, target.Status)
}

func TestUpdateVerification(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestRegistry()

	_, err := registry.AddTarget(ctx, models.Target{
		ID: "direct:alice", Kind: models.TargetKindDirect, DisplayName: "alice",
	})
	require.NoError(t, err)

	display := "Alice Example"
	err = registry.UpdateVerification(ctx, "direct:alice", models.Verification{
		State:       models.VerificationStateVerified,
		RawInput:    "alice",
		DisplayName: &display,
	})
	require.NoError(t, err)

	target, err := registry.GetTarget(ctx, "direct:alice")
	require.NoError(t, err)
	require.NotNil(t, target.Verification)
	assert.Equal(t, models.VerificationStateVerified, target.Verification.State)
	assert.Equal(t, "Alice Example", target.DisplayName)

	err = registry.UpdateVerification(ctx, "ghost", models.Verification{State: models.VerificationStatePending})
	require.Error(t, err)
	assert.True(t, IsTargetNotFound(err))
}
