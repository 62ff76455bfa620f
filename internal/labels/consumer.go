package labels

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

const labelConsumerName = "labels"

type printDispatcher interface {
	Dispatch(ctx context.Context, job payloads.LabelPrintRequestedEvent) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer drains label print jobs from the label topic, forwards each to the
// print bridge and records the print confirmation.
type Consumer struct {
	subscription *pubsub.Subscriber
	dispatcher   printDispatcher
	idem         idempotencyChecker
	db           txRunner
	outbox       outboxPublisher
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds a consumer bound to the label subscription.
func NewConsumer(subscription *pubsub.Subscriber, dispatcher printDispatcher, idem idempotencyChecker, db txRunner, outboxSvc outboxPublisher, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("label subscription is required")
	}
	if dispatcher == nil {
		return nil, errors.New("print dispatcher is required")
	}
	if idem == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if db == nil {
		return nil, errors.New("db runner is required")
	}
	if outboxSvc == nil {
		return nil, errors.New("outbox service is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		dispatcher:   dispatcher,
		idem:         idem,
		db:           db,
		outbox:       outboxSvc,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.Data, msg.Attributes) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process returns true when the message should be acked.
func (c *Consumer) process(ctx context.Context, data []byte, attrs map[string]string) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_type": attrs["event_type"],
		"event_id":   attrs["event_id"],
	})

	if eventType := enums.OutboxEventType(attrs["event_type"]); eventType != "" && eventType != enums.EventLabelPrintRequested {
		c.logg.Info(logCtx, "skipping event not handled by label consumer")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode label envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "label envelope carries invalid event id", err)
		return true
	}

	var job payloads.LabelPrintRequestedEvent
	if err := json.Unmarshal(envelope.Data, &job); err != nil {
		c.logg.Error(logCtx, "failed to decode label job", err)
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"cart_id":    job.CartID,
		"bag_number": job.BagNumber,
		"reprint":    job.Reprint,
	})

	processed, err := c.idem.CheckAndMarkProcessed(ctx, labelConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "label idempotency check failed", err)
		return false
	}
	if processed {
		c.logg.Info(logCtx, "label job already printed")
		return true
	}

	if err := c.dispatcher.Dispatch(ctx, job); err != nil {
		c.logg.Error(logCtx, "label dispatch failed", err)
		c.unmark(ctx, logCtx, eventID)
		return false
	}

	printedAt := c.now().UTC()
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLabelPrinted,
			AggregateType: enums.AggregateCart,
			AggregateID:   job.CartID,
			Version:       1,
			OccurredAt:    printedAt,
			Data: payloads.LabelPrintedEvent{
				CartID:    job.CartID,
				BagNumber: job.BagNumber,
				PrintedAt: printedAt,
			},
		})
	})
	if err != nil {
		c.logg.Error(logCtx, "failed to record label print confirmation", err)
		c.unmark(ctx, logCtx, eventID)
		return false
	}

	c.logg.Info(logCtx, "label job dispatched")
	return true
}

func (c *Consumer) unmark(ctx context.Context, logCtx context.Context, eventID uuid.UUID) {
	if err := c.idem.Delete(ctx, labelConsumerName, eventID); err != nil {
		c.logg.Error(logCtx, "failed to release label idempotency mark", err)
	}
}
