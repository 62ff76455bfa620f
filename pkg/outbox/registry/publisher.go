package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/config"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("events topic is required")
	}
	if cfg.LabelTopic == "" {
		return nil, fmt.Errorf("label topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	eventsTopic := cfg.EventsTopic
	labelTopic := cfg.LabelTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventSeparationStarted,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.SeparationStartedEvent{} },
		},
		{
			EventType:      enums.EventUnitSeparated,
			AggregateType:  enums.AggregateCartItem,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.UnitSeparatedEvent{} },
		},
		{
			EventType:      enums.EventItemCancelled,
			AggregateType:  enums.AggregateCartItem,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.ItemCancelledEvent{} },
		},
		{
			EventType:      enums.EventQuantityReduced,
			AggregateType:  enums.AggregateCartItem,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.QuantityReducedEvent{} },
		},
		{
			EventType:      enums.EventRemovalConfirmed,
			AggregateType:  enums.AggregateCartItem,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.RemovalConfirmedEvent{} },
		},
		{
			EventType:      enums.EventReallocationCreated,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.ReallocationCreatedEvent{} },
		},
		{
			EventType:      enums.EventReallocationResolved,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.ReallocationResolvedEvent{} },
		},
		{
			EventType:      enums.EventBagSeparated,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.BagSeparatedEvent{} },
		},
		{
			EventType:      enums.EventGiftApplied,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.GiftAppliedEvent{} },
		},
		{
			EventType:      enums.EventGiftRevoked,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.GiftRevokedEvent{} },
		},
		{
			EventType:      enums.EventCartExpired,
			AggregateType:  enums.AggregateCart,
			Topic:          eventsTopic,
			PayloadFactory: func() interface{} { return &payloads.CartExpiredEvent{} },
		},
	} {
		reg.register(desc)
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventLabelPrintRequested,
		AggregateType:  enums.AggregateCart,
		Topic:          labelTopic,
		PayloadFactory: func() interface{} { return &payloads.LabelPrintRequestedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventLabelPrinted,
		AggregateType:  enums.AggregateCart,
		Topic:          labelTopic,
		PayloadFactory: func() interface{} { return &payloads.LabelPrintedEvent{} },
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
