package store

import (
	"context"
	"encoding/json"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// appendEvent writes one immutable audit event inside the caller's transaction.
// order_events has no update or delete path; a trigger rejects both.
func appendEvent(ctx context.Context, tx *sqlx.Tx, order *models.Order, eventType, actorID string, payload any, at time.Time) (*models.OrderEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Database("failed to encode event payload", err)
	}

	event := &models.OrderEvent{
		ID:        uuid.New(),
		StoreID:   order.StoreID,
		OrderID:   order.ID,
		EventType: eventType,
		ActorID:   actorID,
		Payload:   data,
		Timestamp: at,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_events (id, store_id, order_id, event_type, actor_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.StoreID, event.OrderID, event.EventType, event.ActorID, string(data), event.Timestamp)
	if err != nil {
		return nil, apperr.Database("failed to append order event", err)
	}

	return event, nil
}

// ListOrderEvents returns all events for an order, newest first
func (s *Store) ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	events := []models.OrderEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, store_id, order_id, event_type, actor_id, payload, occurred_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY occurred_at DESC, seq DESC`, orderID)
	if err != nil {
		return nil, apperr.Database("failed to list order events", err)
	}
	return events, nil
}
