package service

import (
	"context"

	"pos-backend/internal/models"

	"github.com/google/uuid"
)

// OrderRepository is the Order Store and Event Log. Implemented by
// store.Store and memory.Store.
type OrderRepository interface {
	CreateOrder(ctx context.Context, in models.CreateOrderInput) (*models.Order, *models.OrderEvent, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByClientOrderID(ctx context.Context, storeID, clientOrderID string) (*models.Order, error)
	UpdateOrderStatusWhen(ctx context.Context, orderID uuid.UUID, status, actorID string, allow func(current string) bool) (*models.Order, *models.OrderEvent, error)
	ListOrdersByStore(ctx context.Context, storeID string, filter models.OrderFilter, page models.Pagination) (*models.OrderPage, error)
	ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
}

// PaymentRepository is the Payment Store
type PaymentRepository interface {
	CreatePayment(ctx context.Context, in models.CreatePaymentInput) (*models.Payment, error)
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status models.PaymentStatus, providerReference string) (*models.Payment, bool, error)
	ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus, limit int) ([]models.Payment, error)
	ListProcessingPayments(ctx context.Context) ([]models.Payment, error)
	CountStaleProcessingPayments(ctx context.Context) (int, error)
	ListPaymentsByStore(ctx context.Context, storeID string, filter models.PaymentFilter, page models.Pagination) (*models.PaymentPage, error)
}

// EventPublisher fans committed order events out to downstream consumers
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, *models.OrderEvent) error { return nil }
