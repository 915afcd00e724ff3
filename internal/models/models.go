package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Customer is the store customer an order belongs to
type Customer struct {
	ID        string    `db:"id" json:"id"`
	StoreID   string    `db:"store_id" json:"store_id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order represents a customer order placed at a store
type Order struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	StoreID        string          `db:"store_id" json:"store_id"`
	ClientOrderID  string          `db:"client_order_id" json:"client_order_id"`
	Source         OrderSource     `db:"source" json:"source"`
	CustomerID     string          `db:"customer_id" json:"customer_id"`
	Items          LineItems       `db:"items" json:"items"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	PromotionIDs   pq.StringArray  `db:"promotion_ids" json:"promotion_ids"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`

	Customer *Customer `db:"-" json:"customer,omitempty"`
	Payment  *Payment  `db:"-" json:"payment,omitempty"`
}

// LineItem is a single ordered menu item
type LineItem struct {
	MenuItemID string          `json:"menu_item_id"`
	VariantID  *string         `json:"variant_id,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// LineItems is stored as a JSONB array with the LineItem schema
type LineItems []LineItem

func (li LineItems) Value() (driver.Value, error) {
	if li == nil {
		return "[]", nil
	}
	b, err := json.Marshal(li)
	if err != nil {
		return nil, err
	}
	// jsonb columns reject []byte parameters, which lib/pq encodes as bytea
	return string(b), nil
}

func (li *LineItems) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*li = LineItems{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("line items: unsupported source type %T", src)
	}
	return json.Unmarshal(data, li)
}

// Payment represents the payment attached to an order
type Payment struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	OrderID           uuid.UUID       `db:"order_id" json:"order_id"`
	Method            PaymentMethod   `db:"method" json:"method"`
	Provider          PaymentProvider `db:"provider" json:"provider"`
	Status            PaymentStatus   `db:"status" json:"status"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	ProviderReference *string         `db:"provider_reference" json:"provider_reference,omitempty"`
	ReceiptNumber     *string         `db:"receipt_number" json:"receipt_number,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	CompletedAt       *time.Time      `db:"completed_at" json:"completed_at,omitempty"`

	Order *Order `db:"-" json:"order,omitempty"`
}

// OrderEvent is an immutable audit record of an order-affecting action
type OrderEvent struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	StoreID   string          `db:"store_id" json:"store_id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	EventType string          `db:"event_type" json:"event_type"`
	ActorID   string          `db:"actor_id" json:"actor_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Timestamp time.Time       `db:"occurred_at" json:"timestamp"`
}

// DecodePayload unmarshals the event payload into v. The payload schema is
// owned by the event type: CreatedPayload for EventTypeCreated,
// StatusChangedPayload for EventTypeStatusChanged.
func (e OrderEvent) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Event types
const (
	EventTypeCreated       = "created"
	EventTypeStatusChanged = "status_changed"
)

// Actors recorded for events raised by the backend itself
const (
	ActorSystem     = "system"
	ActorReconciler = "system:reconciler"
)

// CreatedPayload is the payload of a created event
type CreatedPayload struct {
	Source OrderSource     `json:"source"`
	Total  decimal.Decimal `json:"total"`
}

// StatusChangedPayload is the payload of a status_changed event
type StatusChangedPayload struct {
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

// ReconciliationWindow bounds the age of processing payments eligible for reconciliation
const ReconciliationWindow = 30 * time.Minute

// OrderPage is one page of a store's orders
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// PaymentPage is one page of a store's payments
type PaymentPage struct {
	Payments []Payment `json:"payments"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
