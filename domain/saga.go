package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SagaStep is the position of a checkout saga in its forward path.
type SagaStep string

const (
	SagaStepStarted           SagaStep = "STARTED"
	SagaStepCartLoaded        SagaStep = "CART_LOADED"
	SagaStepInventoryReserved SagaStep = "INVENTORY_RESERVED"
	SagaStepPaymentSettled    SagaStep = "PAYMENT_SETTLED"
	SagaStepOrderCreated      SagaStep = "ORDER_CREATED"
	SagaStepCartCleared       SagaStep = "CART_CLEARED"
)

func (s SagaStep) String() string {
	return string(s)
}

// SagaOutcome is the overall state of the saga.
type SagaOutcome string

const (
	SagaOutcomeInProgress         SagaOutcome = "IN_PROGRESS"
	SagaOutcomeCompleted          SagaOutcome = "COMPLETED"
	SagaOutcomeCompensating       SagaOutcome = "COMPENSATING"
	SagaOutcomeFailed             SagaOutcome = "FAILED"
	SagaOutcomeManualIntervention SagaOutcome = "MANUAL_INTERVENTION"
)

func (o SagaOutcome) IsTerminal() bool {
	return o == SagaOutcomeCompleted || o == SagaOutcomeFailed || o == SagaOutcomeManualIntervention
}

func (o SagaOutcome) String() string {
	return string(o)
}

// validTransitions lists the allowed forward moves. Compensation and
// terminal outcomes are tracked on SagaState.Outcome, not here.
var validTransitions = map[SagaStep][]SagaStep{
	SagaStepStarted:           {SagaStepCartLoaded},
	SagaStepCartLoaded:        {SagaStepInventoryReserved},
	SagaStepInventoryReserved: {SagaStepPaymentSettled},
	SagaStepPaymentSettled:    {SagaStepOrderCreated},
	SagaStepOrderCreated:      {SagaStepCartCleared},
}

// CanTransitionTo reports whether a saga at step from may advance to step to.
func CanTransitionTo(from, to SagaStep) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SagaState is the durable record of one checkout attempt.
type SagaState struct {
	SagaID         uuid.UUID
	CustomerID     string
	IdempotencyKey string
	Step           SagaStep
	Outcome        SagaOutcome
	Total          decimal.Decimal
	Currency       string
	ReservationID  string
	PaymentRef     string
	OrderID        string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewSagaState(customerID, idempotencyKey string) *SagaState {
	return &SagaState{
		SagaID:         uuid.New(),
		CustomerID:     customerID,
		IdempotencyKey: idempotencyKey,
		Step:           SagaStepStarted,
		Outcome:        SagaOutcomeInProgress,
	}
}
