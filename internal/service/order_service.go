package service

import (
	"context"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
	"pos-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	orders    OrderRepository
	payments  PaymentRepository
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service. A nil publisher disables
// event fan-out.
func NewOrderService(orders OrderRepository, payments PaymentRepository, publisher EventPublisher) *OrderService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &OrderService{
		orders:    orders,
		payments:  payments,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateOrder persists a new order. A repeated (store, client order ID)
// fails with Conflict.
func (s *OrderService) CreateOrder(ctx context.Context, in models.CreateOrderInput) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	order, event, err := s.orders.CreateOrder(ctx, in)
	if err != nil {
		kind := apperr.KindOf(err)
		util.OrdersRejectedTotal.WithLabelValues(kind.String()).Inc()
		if kind == apperr.KindConflict {
			s.logger.Info("Duplicate order rejected",
				zap.String("store_id", in.StoreID),
				zap.String("client_order_id", in.ClientOrderID))
		}
		return nil, util.SpanError(span, err)
	}

	util.OrdersCreatedTotal.WithLabelValues(string(order.Source)).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("store_id", order.StoreID),
		zap.String("client_order_id", order.ClientOrderID))

	s.publish(ctx, event)
	return order, nil
}

// GetOrder retrieves an order with its customer and payment, if any
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, util.SpanError(span, err)
	}

	payment, err := s.payments.GetPaymentByOrderID(ctx, id)
	if err != nil {
		return nil, util.SpanError(span, err)
	}
	order.Payment = payment

	return order, nil
}

// FindByClientOrderID returns the order for a dedup key, or nil
func (s *OrderService) FindByClientOrderID(ctx context.Context, storeID, clientOrderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.FindByClientOrderID")
	defer span.End()

	order, err := s.orders.GetOrderByClientOrderID(ctx, storeID, clientOrderID)
	return order, util.SpanError(span, err)
}

// UpdateOrderStatus transitions an order. Re-applying the current status
// returns the order with changed=false and emits nothing.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, actorID string) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	order, changed, err := s.transition(ctx, id, status, actorID, nil)
	return order, changed, util.SpanError(span, err)
}

// transition runs a guarded status change and publishes its event
func (s *OrderService) transition(ctx context.Context, id uuid.UUID, status, actorID string, allow func(string) bool) (*models.Order, bool, error) {
	order, event, err := s.orders.UpdateOrderStatusWhen(ctx, id, status, actorID, allow)
	if err != nil {
		return nil, false, err
	}

	if event == nil {
		util.OrderTransitionNoopsTotal.Inc()
		s.logger.Debug("Order status unchanged",
			zap.String("order_id", id.String()),
			zap.String("status", status))
		return order, false, nil
	}

	util.OrderTransitionsTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", id.String()),
		zap.String("status", status),
		zap.String("actor_id", actorID))

	s.publish(ctx, event)
	return order, true, nil
}

// ListOrders returns a page of a store's orders
func (s *OrderService) ListOrders(ctx context.Context, storeID string, filter models.OrderFilter, page models.Pagination) (*models.OrderPage, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	result, err := s.orders.ListOrdersByStore(ctx, storeID, filter, page)
	return result, util.SpanError(span, err)
}

// GetEventHistory returns an order's events, newest first
func (s *OrderService) GetEventHistory(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetEventHistory")
	defer span.End()

	if _, err := s.orders.GetOrderByID(ctx, id); err != nil {
		return nil, util.SpanError(span, err)
	}

	events, err := s.orders.ListOrderEvents(ctx, id)
	return events, util.SpanError(span, err)
}

// publish is best-effort: the event is already committed to the log
func (s *OrderService) publish(ctx context.Context, event *models.OrderEvent) {
	if event == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("order_id", event.OrderID.String()),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
