package service

import (
	"context"

	"pos-backend/internal/models"
	"pos-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService handles payment creation and settlement
type PaymentService struct {
	payments PaymentRepository
	orders   *OrderService
	logger   *zap.Logger
}

// NewPaymentService creates a new payment service. Order transitions caused
// by settlement go through orders so they are logged and published.
func NewPaymentService(payments PaymentRepository, orders *OrderService) *PaymentService {
	return &PaymentService{
		payments: payments,
		orders:   orders,
		logger:   util.GetLogger(),
	}
}

// CreatePayment records a payment for an existing order. It always starts pending.
func (ps *PaymentService) CreatePayment(ctx context.Context, in models.CreatePaymentInput) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePayment")
	defer span.End()

	payment, err := ps.payments.CreatePayment(ctx, in)
	if err != nil {
		return nil, util.SpanError(span, err)
	}

	util.PaymentsCreatedTotal.WithLabelValues(string(payment.Provider)).Inc()
	ps.logger.Info("Payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", payment.OrderID.String()),
		zap.String("provider", string(payment.Provider)))

	return payment, nil
}

func (ps *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetPayment")
	defer span.End()

	payment, err := ps.payments.GetPaymentByID(ctx, id)
	return payment, util.SpanError(span, err)
}

// GetPaymentForOrder returns the order's payment, or nil if there is none
func (ps *PaymentService) GetPaymentForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetPaymentForOrder")
	defer span.End()

	payment, err := ps.payments.GetPaymentByOrderID(ctx, orderID)
	return payment, util.SpanError(span, err)
}

// UpdatePaymentStatus transitions only the payment
func (ps *PaymentService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, providerReference string) (*models.Payment, bool, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.UpdatePaymentStatus")
	defer span.End()

	payment, changed, err := ps.payments.UpdatePaymentStatus(ctx, id, status, providerReference)
	if err != nil {
		return nil, false, util.SpanError(span, err)
	}

	if changed {
		util.PaymentTransitionsTotal.WithLabelValues(string(status)).Inc()
		ps.logger.Info("Payment status changed",
			zap.String("payment_id", id.String()),
			zap.String("status", string(status)))
	}
	return payment, changed, nil
}

// Settlement is the outcome of applying a provider-reported status
type Settlement struct {
	Payment        *models.Payment
	Order          *models.Order
	PaymentChanged bool
	OrderChanged   bool
}

// Settle applies a provider-reported payment status, then moves the order to
// the status it implies (success -> paid, failed -> payment_failed,
// refunded -> refunded). When the payment was already in the reported status
// the order is only moved if it still awaits that settlement, so a redelivered
// callback finishes a half-applied settlement but never rolls back an order
// that has moved on.
func (ps *PaymentService) Settle(ctx context.Context, id uuid.UUID, status models.PaymentStatus, providerReference, actorID string) (*Settlement, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Settle")
	defer span.End()

	payment, changed, err := ps.UpdatePaymentStatus(ctx, id, status, providerReference)
	if err != nil {
		return nil, util.SpanError(span, err)
	}

	result := &Settlement{Payment: payment, PaymentChanged: changed}

	orderStatus, ok := models.OrderStatusForPayment(payment.Status)
	if !ok {
		return result, nil
	}

	// an unchanged payment only moves an order that still awaits it
	var allow func(string) bool
	if !changed {
		allow = func(current string) bool {
			return models.SettlementPending(current, payment.Status)
		}
	}

	order, orderChanged, err := ps.orders.transition(ctx, payment.OrderID, orderStatus, actorID, allow)
	if err != nil {
		ps.logger.Error("Payment settled but order transition failed",
			zap.String("payment_id", id.String()),
			zap.String("order_id", payment.OrderID.String()),
			zap.String("order_status", orderStatus),
			zap.Error(err))
		return nil, util.SpanError(span, err)
	}

	result.Order = order
	result.OrderChanged = orderChanged
	return result, nil
}

// ListByStatus returns up to limit payments in status, oldest first
func (ps *PaymentService) ListByStatus(ctx context.Context, status models.PaymentStatus, limit int) ([]models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ListByStatus")
	defer span.End()

	payments, err := ps.payments.ListPaymentsByStatus(ctx, status, limit)
	return payments, util.SpanError(span, err)
}

// ListPayments returns a page of a store's payments
func (ps *PaymentService) ListPayments(ctx context.Context, storeID string, filter models.PaymentFilter, page models.Pagination) (*models.PaymentPage, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ListPayments")
	defer span.End()

	result, err := ps.payments.ListPaymentsByStore(ctx, storeID, filter, page)
	return result, util.SpanError(span, err)
}
