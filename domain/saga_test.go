package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo_HappyPath(t *testing.T) {
	assert.True(t, CanTransitionTo(SagaStepStarted, SagaStepCartLoaded))
	assert.True(t, CanTransitionTo(SagaStepCartLoaded, SagaStepInventoryReserved))
	assert.True(t, CanTransitionTo(SagaStepInventoryReserved, SagaStepPaymentSettled))
	assert.True(t, CanTransitionTo(SagaStepPaymentSettled, SagaStepOrderCreated))
	assert.True(t, CanTransitionTo(SagaStepOrderCreated, SagaStepCartCleared))
}

func TestCanTransitionTo_RejectsSkips(t *testing.T) {
	assert.False(t, CanTransitionTo(SagaStepStarted, SagaStepPaymentSettled))
	assert.False(t, CanTransitionTo(SagaStepCartLoaded, SagaStepOrderCreated))
	assert.False(t, CanTransitionTo(SagaStepPaymentSettled, SagaStepInventoryReserved))
	assert.False(t, CanTransitionTo(SagaStepCartCleared, SagaStepStarted))
}

func TestSagaOutcome_IsTerminal(t *testing.T) {
	assert.False(t, SagaOutcomeInProgress.IsTerminal())
	assert.False(t, SagaOutcomeCompensating.IsTerminal())
	assert.True(t, SagaOutcomeCompleted.IsTerminal())
	assert.True(t, SagaOutcomeFailed.IsTerminal())
	assert.True(t, SagaOutcomeManualIntervention.IsTerminal())
}

func TestNewSagaState(t *testing.T) {
	state := NewSagaState("cust-1", "key-abc")

	assert.NotEqual(t, state.SagaID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "cust-1", state.CustomerID)
	assert.Equal(t, "key-abc", state.IdempotencyKey)
	assert.Equal(t, SagaStepStarted, state.Step)
	assert.Equal(t, SagaOutcomeInProgress, state.Outcome)
}
