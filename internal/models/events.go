package models

import (
	"encoding/json"
	"time"
)

// Message types published to Kafka
const (
	MessageTypeOrderEvent       = "ORDER_EVENT"
	MessageTypeReconcileRequest = "RECONCILE_REQUESTED"
)

// BaseEvent contains common fields for all messages
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEventMessage carries a committed audit event to downstream consumers
type OrderEventMessage struct {
	BaseEvent
	StoreID         string          `json:"store_id"`
	OrderID         string          `json:"order_id"`
	OrderEventType  string          `json:"order_event_type"`
	ActorID         string          `json:"actor_id"`
	Payload         json.RawMessage `json:"payload"`
	EventOccurredAt time.Time       `json:"occurred_at"`
}

// ReconcileRequest is produced by the external scheduler to trigger a scan
type ReconcileRequest struct {
	BaseEvent
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewOrderEventMessage wraps an audit event for publishing
func NewOrderEventMessage(e OrderEvent) *OrderEventMessage {
	return &OrderEventMessage{
		BaseEvent: BaseEvent{
			EventID:   e.ID.String(),
			EventType: MessageTypeOrderEvent,
			Timestamp: time.Now(),
		},
		StoreID:         e.StoreID,
		OrderID:         e.OrderID.String(),
		OrderEventType:  e.EventType,
		ActorID:         e.ActorID,
		Payload:         e.Payload,
		EventOccurredAt: e.Timestamp,
	}
}
