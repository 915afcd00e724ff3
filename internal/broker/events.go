package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-backend/internal/models"
	"pos-backend/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes committed order audit events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// OrderKey is the partition key for all messages about one order
func OrderKey(orderID string) string {
	return "order-" + orderID
}

// PublishOrderEvent publishes an audit event keyed by its order
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	return ep.producer.PublishEvent(ctx, OrderKey(event.OrderID.String()), models.NewOrderEventMessage(*event))
}

// EventHandler routes incoming messages by type
type EventHandler struct {
	onReconcileRequest func(context.Context, *models.ReconcileRequest) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnReconcileRequest registers a handler for reconcile requests
func (eh *EventHandler) OnReconcileRequest(handler func(context.Context, *models.ReconcileRequest) error) {
	eh.onReconcileRequest = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.MessageTypeReconcileRequest:
		if eh.onReconcileRequest != nil {
			var req models.ReconcileRequest
			if err := json.Unmarshal(msg.Value, &req); err != nil {
				return fmt.Errorf("failed to unmarshal reconcile request: %w", err)
			}
			return eh.onReconcileRequest(ctx, &req)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
