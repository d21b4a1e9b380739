// Package publisher drains the transactional outbox to Kafka and finishes
// sagas whose completion write was lost after their order was created.
package publisher

import (
	"context"
	"log"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const Topic = "checkout-events"

// Repo is the slice of the repository the poller needs.
type Repo interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetStuckSagas(ctx context.Context, olderThan time.Duration) ([]*domain.SagaState, error)
	GetOrderBySagaID(ctx context.Context, sagaID uuid.UUID) (*domain.Order, error)
	CompleteSaga(ctx context.Context, sagaID uuid.UUID, step domain.SagaStep, event *domain.OrderCreatedEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	stuckAfter   time.Duration
	repo         Repo
	writer       messageWriter
}

func NewOutboxPoller(repo Repo, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: 5 * time.Second,
		stuckAfter:   30 * time.Second,
		repo:         repo,
		writer:       w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	defer p.writer.Close()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSagas(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents publishes outbox rows in creation order. An event
// is only marked processed after the broker acknowledges it, so delivery is
// at-least-once and consumers must dedupe on the event key.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		msg := kafka.Message{
			Key:   []byte(event.AggregateID),
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
			},
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			log.Printf("failed to publish outbox event %d: %v", event.ID, err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Printf("failed to mark outbox event %d processed: %v", event.ID, err)
		}
	}
}

// recoverStuckSagas completes sagas that created their order but crashed
// before CompleteSaga committed. Completing them writes the outbox event, so
// the next event tick publishes it.
func (p *OutboxPoller) recoverStuckSagas(ctx context.Context) {
	stuck, err := p.repo.GetStuckSagas(ctx, p.stuckAfter)
	if err != nil {
		log.Printf("failed to fetch stuck sagas: %v", err)
		return
	}

	for _, state := range stuck {
		log.Printf("recovering stuck saga %s, order %s", state.SagaID, state.OrderID)

		order, err := p.repo.GetOrderBySagaID(ctx, state.SagaID)
		if err != nil {
			log.Printf("failed to load order for stuck saga %s: %v", state.SagaID, err)
			continue
		}

		event := &domain.OrderCreatedEvent{
			SagaID:      state.SagaID.String(),
			OrderID:     state.OrderID,
			CustomerID:  state.CustomerID,
			TotalAmount: state.Total,
			Currency:    state.Currency,
			Lines:       order.Lines,
			CompletedAt: state.UpdatedAt,
		}
		// the step stays where the crashed process left it, so a missed cart
		// clear remains visible after recovery
		if err := p.repo.CompleteSaga(ctx, state.SagaID, state.Step, event); err != nil {
			log.Printf("failed to complete stuck saga %s: %v", state.SagaID, err)
			continue
		}
		log.Printf("saga %s recovered", state.SagaID)
	}
}
