package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerificationEnv(t *testing.T, confirmAfter time.Duration) (TargetRegistry, *fakeBackend, VerificationFlow) {
	t.Helper()

	registry, _, _ := newTestRegistry()
	backend := &fakeBackend{}
	flow := NewVerificationFlow(registry, backend, confirmAfter)
	return registry, backend, flow
}

func verificationState(t *testing.T, registry TargetRegistry, targetID string) models.VerificationState {
	t.Helper()

	target, err := registry.GetTarget(context.Background(), targetID)
	if err != nil || target.Verification == nil {
		return ""
	}
	return target.Verification.State
}

func TestDirectTargetID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice", "direct:alice"},
		{"@alice", "direct:alice"},
		{"  @Alice  ", "direct:alice"},
		{"+15550100", "direct:+15550100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DirectTargetID(tt.input))
	}
}

func TestAddDirectTargetEmptyInput(t *testing.T) {
	_, _, flow := newVerificationEnv(t, time.Hour)

	_, err := flow.AddDirectTarget(context.Background(), &dto.AddDirectTargetRequest{Input: "   "}, testMetadata())
	require.Error(t, err)
	assert.True(t, IsTargetInputRequired(err))
}

func TestAddDirectTargetDuplicate(t *testing.T) {
	ctx := context.Background()
	_, _, flow := newVerificationEnv(t, time.Hour)

	_, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)

	// Different casing of the same input maps to the same target id
	_, err = flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "@Alice"}, testMetadata())
	require.Error(t, err)
	assert.True(t, IsTargetAlreadyExists(err))
}

func TestAddDirectTargetBecomesReady(t *testing.T) {
	ctx := context.Background()
	registry, backend, flow := newVerificationEnv(t, 20*time.Millisecond)

	backend.resolveFn = func(input string) (*services.ResolveResult, error) {
		return &services.ResolveResult{
			TargetID:    DirectTargetID(input),
			DisplayName: "Alice Example",
			MatchedBy:   utils.ToPtr("username"),
		}, nil
	}

	resp, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)
	assert.Equal(t, "direct:alice", resp.Target.ID)

	require.Eventually(t, func() bool {
		return verificationState(t, registry, "direct:alice") == models.VerificationStateReady
	}, 2*time.Second, 5*time.Millisecond)

	target, err := registry.GetTarget(ctx, "direct:alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", target.DisplayName)
	require.NotNil(t, target.Verification.MatchedBy)
	assert.Equal(t, "username", *target.Verification.MatchedBy)
}

func TestAddDirectTargetVerifiedBeforeConfirmation(t *testing.T) {
	ctx := context.Background()
	registry, _, flow := newVerificationEnv(t, time.Hour)

	_, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)

	// With a long confirmation window the target settles on verified,
	// which is already eligible for dispatch.
	require.Eventually(t, func() bool {
		return verificationState(t, registry, "direct:alice") == models.VerificationStateVerified
	}, 2*time.Second, 5*time.Millisecond)

	target, err := registry.GetTarget(ctx, "direct:alice")
	require.NoError(t, err)
	assert.True(t, target.Verification.State.Eligible())
}

func TestAddDirectTargetResolveError(t *testing.T) {
	ctx := context.Background()
	registry, backend, flow := newVerificationEnv(t, 20*time.Millisecond)

	backend.resolveFn = func(string) (*services.ResolveResult, error) {
		return nil, errors.New("no such user")
	}

	_, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "nobody"}, testMetadata())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return verificationState(t, registry, "direct:nobody") == models.VerificationStateError
	}, 2*time.Second, 5*time.Millisecond)

	target, err := registry.GetTarget(ctx, "direct:nobody")
	require.NoError(t, err)
	require.NotNil(t, target.Verification.Error)
	assert.Equal(t, "no such user", *target.Verification.Error)
}

func TestRemoveTargetDiscardsInFlightResolution(t *testing.T) {
	ctx := context.Background()
	registry, backend, flow := newVerificationEnv(t, 20*time.Millisecond)

	block := make(chan struct{})
	backend.resolveFn = func(input string) (*services.ResolveResult, error) {
		<-block
		return &services.ResolveResult{TargetID: DirectTargetID(input), DisplayName: input}, nil
	}

	_, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)

	require.NoError(t, flow.RemoveTarget(ctx, "direct:alice", testMetadata()))
	close(block)

	// The late resolution must not resurrect the removed target
	time.Sleep(50 * time.Millisecond)
	_, err = registry.GetTarget(ctx, "direct:alice")
	require.Error(t, err)
	assert.True(t, IsTargetNotFound(err))
}

func TestStaleResolutionCannotLandOnFreshAttempt(t *testing.T) {
	ctx := context.Background()
	registry, backend, flow := newVerificationEnv(t, time.Hour)
	impl, ok := flow.(*VerificationFlowImpl)
	require.True(t, ok)

	block := make(chan struct{})
	backend.resolveFn = func(input string) (*services.ResolveResult, error) {
		<-block
		return &services.ResolveResult{TargetID: DirectTargetID(input), DisplayName: input}, nil
	}

	_, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)

	// Remove and re-add while the first attempt is still resolving
	require.NoError(t, flow.RemoveTarget(ctx, "direct:alice", testMetadata()))
	_, err = flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)

	// The first attempt's verified result arrives late; it must not
	// overwrite the fresh attempt's pending state
	stale := models.Verification{State: models.VerificationStateVerified, RawInput: "alice"}
	assert.False(t, impl.applyIfCurrent("direct:alice", 1, stale))
	assert.Equal(t, models.VerificationStatePending, verificationState(t, registry, "direct:alice"))

	close(block)
}

func TestReAddStartsFreshAttempt(t *testing.T) {
	ctx := context.Background()
	registry, backend, flow := newVerificationEnv(t, 10*time.Millisecond)

	backend.resolveFn = func(string) (*services.ResolveResult, error) {
		return nil, errors.New("no such user")
	}

	_, err := flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return verificationState(t, registry, "direct:alice") == models.VerificationStateError
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, flow.RemoveTarget(ctx, "direct:alice", testMetadata()))

	// The backend recovered; the fresh attempt must reach ready
	backend.mu.Lock()
	backend.resolveFn = nil
	backend.mu.Unlock()

	_, err = flow.AddDirectTarget(ctx, &dto.AddDirectTargetRequest{Input: "alice"}, testMetadata())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return verificationState(t, registry, "direct:alice") == models.VerificationStateReady
	}, 2*time.Second, 5*time.Millisecond)
}
