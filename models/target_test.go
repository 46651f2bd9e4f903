package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetStatusValid(t *testing.T) {
	valid := []TargetStatus{
		TargetStatusPending, TargetStatusSent, TargetStatusFailed,
		TargetStatusDryRun, TargetStatusBlocked, TargetStatusSkippedRules,
		TargetStatusFloodWait,
	}
	for _, status := range valid {
		assert.True(t, status.Valid(), status.String())
	}

	assert.False(t, TargetStatus("").Valid())
	assert.False(t, TargetStatus("teleported").Valid())
}

func TestTargetStatusScanValue(t *testing.T) {
	var status TargetStatus
	require.NoError(t, status.Scan("sent"))
	assert.Equal(t, TargetStatusSent, status)

	require.NoError(t, status.Scan([]byte("blocked")))
	assert.Equal(t, TargetStatusBlocked, status)

	require.NoError(t, status.Scan(nil))
	assert.Equal(t, TargetStatus(""), status)

	assert.Error(t, status.Scan(42))

	value, err := TargetStatusFailed.Value()
	require.NoError(t, err)
	assert.Equal(t, "failed", value)

	_, err = TargetStatus("teleported").Value()
	assert.Error(t, err)
}

func TestTargetKindValid(t *testing.T) {
	assert.True(t, TargetKindGroup.Valid())
	assert.True(t, TargetKindDirect.Valid())
	assert.False(t, TargetKind("broadcast").Valid())
}

func TestVerificationStateEligible(t *testing.T) {
	assert.False(t, VerificationStatePending.Eligible())
	assert.True(t, VerificationStateVerified.Eligible())
	assert.True(t, VerificationStateReady.Eligible())
	assert.False(t, VerificationStateError.Eligible())
}

func TestTargetClone(t *testing.T) {
	sentAt := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	original := Target{
		ID:           "direct:alice",
		Kind:         TargetKindDirect,
		Status:       TargetStatusSent,
		LastSentAt:   &sentAt,
		Verification: &Verification{State: VerificationStateReady, RawInput: "alice"},
	}

	clone := original.Clone()
	*clone.LastSentAt = clone.LastSentAt.Add(time.Hour)
	clone.Verification.State = VerificationStateError

	assert.True(t, original.LastSentAt.Equal(sentAt))
	assert.Equal(t, VerificationStateReady, original.Verification.State)
}

func TestTargetFilterMatches(t *testing.T) {
	target := Target{ID: "g1", Kind: TargetKindGroup, Status: TargetStatusSent, Blocked: true}

	assert.True(t, TargetFilter{}.Matches(target))

	kind := TargetKindGroup
	status := TargetStatusSent
	blocked := true
	assert.True(t, TargetFilter{Kind: &kind, Status: &status, Blocked: &blocked}.Matches(target))

	otherKind := TargetKindDirect
	assert.False(t, TargetFilter{Kind: &otherKind}.Matches(target))

	notBlocked := false
	assert.False(t, TargetFilter{Blocked: &notBlocked}.Matches(target))
}
