package store

import (
	"context"
	"database/sql"
	"errors"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const paymentColumns = `
	p.id, p.order_id, p.method, p.provider, p.status, p.amount,
	p.provider_reference, p.receipt_number, p.created_at, p.completed_at`

const paymentOrderColumns = `
	o.id AS "order.id", o.store_id AS "order.store_id", o.client_order_id AS "order.client_order_id",
	o.source AS "order.source", o.customer_id AS "order.customer_id", o.items AS "order.items",
	o.subtotal AS "order.subtotal", o.discount_amount AS "order.discount_amount",
	o.tax_amount AS "order.tax_amount", o.total AS "order.total", o.promotion_ids AS "order.promotion_ids",
	o.status AS "order.status", o.created_at AS "order.created_at", o.updated_at AS "order.updated_at",
	o.completed_at AS "order.completed_at"`

// paymentRow is a payment joined with its order
type paymentRow struct {
	models.Payment
	Ord models.Order `db:"order"`
}

func (r paymentRow) toModel() *models.Payment {
	payment := r.Payment
	order := r.Ord
	payment.Order = &order
	return &payment
}

// candidateRow is a payment joined with its order and the order's customer
type candidateRow struct {
	paymentRow
	Cust models.Customer `db:"customer"`
}

func (r candidateRow) toModel() *models.Payment {
	payment := r.paymentRow.toModel()
	customer := r.Cust
	payment.Order.Customer = &customer
	return payment
}

// CreatePayment persists a new payment. The status always starts pending,
// whatever the input carries.
func (s *Store) CreatePayment(ctx context.Context, in models.CreatePaymentInput) (*models.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           in.OrderID,
		Method:            in.Method,
		Provider:          in.Provider,
		Status:            models.PaymentStatusPending,
		Amount:            in.Amount,
		ProviderReference: in.ProviderReference,
		ReceiptNumber:     in.ReceiptNumber,
		CreatedAt:         s.clock(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, method, provider, status, amount, provider_reference, receipt_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.OrderID, payment.Method, payment.Provider, payment.Status,
		payment.Amount, payment.ProviderReference, payment.ReceiptNumber, payment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperr.NotFound("Order with ID %s not found", in.OrderID)
		}
		if isUniqueViolation(err, constraintPaymentOrder) {
			return nil, apperr.Conflict(map[string]string{"order_id": in.OrderID.String()},
				"Payment for order %s already exists", in.OrderID)
		}
		return nil, apperr.Database("failed to insert payment", err)
	}

	return payment, nil
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return getPaymentByID(ctx, s.db, id, false)
}

func getPaymentByID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*models.Payment, error) {
	query := "SELECT" + paymentColumns + " FROM payments p WHERE p.id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var payment models.Payment
	err := sqlx.GetContext(ctx, q, &payment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Payment with ID %s not found", id)
	}
	if err != nil {
		return nil, apperr.Database("failed to get payment", err)
	}
	return &payment, nil
}

// GetPaymentByOrderID retrieves the payment for an order, or nil if there is none
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT"+paymentColumns+" FROM payments p WHERE p.order_id = $1 ORDER BY p.created_at DESC LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database("failed to get payment by order id", err)
	}
	return &payment, nil
}

// UpdatePaymentStatus transitions a payment under a row lock. Re-applying the
// current status is a no-op and reports changed=false. The provider reference
// is only replaced when a new one is given; completed_at is written once, on
// the first transition into success.
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status models.PaymentStatus, providerReference string) (*models.Payment, bool, error) {
	if !status.Valid() {
		return nil, false, apperr.Validation(
			map[string]string{"status": "must be one of: pending, processing, success, failed, refunded"},
			"invalid payment status")
	}

	var (
		payment *models.Payment
		changed bool
	)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getPaymentByID(ctx, tx, paymentID, true)
		if err != nil {
			return err
		}

		if current.Status == status {
			payment = current
			return nil
		}

		if providerReference != "" {
			current.ProviderReference = &providerReference
		}
		if status == models.PaymentStatusSuccess && current.CompletedAt == nil {
			now := s.clock()
			current.CompletedAt = &now
		}
		current.Status = status

		_, err = tx.ExecContext(ctx,
			"UPDATE payments SET status = $1, provider_reference = $2, completed_at = $3 WHERE id = $4",
			current.Status, current.ProviderReference, current.CompletedAt, paymentID)
		if err != nil {
			return apperr.Database("failed to update payment status", err)
		}

		payment = current
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return payment, changed, nil
}

// ListPaymentsByStatus returns up to limit payments in a status, oldest first
func (s *Store) ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = models.DefaultStatusLimit
	}

	payments := []models.Payment{}
	err := s.db.SelectContext(ctx, &payments,
		"SELECT"+paymentColumns+" FROM payments p WHERE p.status = $1 ORDER BY p.created_at ASC, p.id LIMIT $2",
		status, limit)
	if err != nil {
		return nil, apperr.Database("failed to list payments by status", err)
	}
	return payments, nil
}

// ListProcessingPayments returns the reconciliation candidates: payments in
// processing created within the reconciliation window, joined with their
// order and customer. Older processing payments are not candidates.
func (s *Store) ListProcessingPayments(ctx context.Context) ([]models.Payment, error) {
	cutoff := s.clock().Add(-models.ReconciliationWindow)

	rows := []candidateRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT"+paymentColumns+","+paymentOrderColumns+","+customerColumns+`
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		JOIN customers c ON c.id = o.customer_id
		WHERE p.status = $1 AND p.created_at >= $2`,
		models.PaymentStatusProcessing, cutoff)
	if err != nil {
		return nil, apperr.Database("failed to list processing payments", err)
	}

	payments := make([]models.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, *r.toModel())
	}
	return payments, nil
}

// CountStaleProcessingPayments counts processing payments older than the
// reconciliation window, which no scan will pick up
func (s *Store) CountStaleProcessingPayments(ctx context.Context) (int, error) {
	cutoff := s.clock().Add(-models.ReconciliationWindow)

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM payments WHERE status = $1 AND created_at < $2",
		models.PaymentStatusProcessing, cutoff)
	if err != nil {
		return 0, apperr.Database("failed to count stale payments", err)
	}
	return count, nil
}

// ListPaymentsByStore returns a page of a store's payments, newest first,
// joined through the order's store
func (s *Store) ListPaymentsByStore(ctx context.Context, storeID string, filter models.PaymentFilter, page models.Pagination) (*models.PaymentPage, error) {
	page = page.Normalize()

	p := &predicate{}
	p.add("o.store_id = $%d", storeID)
	if filter.Status != "" {
		p.add("p.status = $%d", filter.Status)
	}
	if filter.Method != "" {
		p.add("p.method = $%d", filter.Method)
	}
	if filter.Created.From != nil {
		p.add("p.created_at >= $%d", *filter.Created.From)
	}
	if filter.Created.To != nil {
		p.add("p.created_at <= $%d", *filter.Created.To)
	}

	const from = " FROM payments p JOIN orders o ON o.id = p.order_id"
	limitClause, args := p.page(page.Limit, page.Offset)

	rows := []paymentRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT"+paymentColumns+","+paymentOrderColumns+from+p.where()+
			" ORDER BY p.created_at DESC, p.id"+limitClause,
		args...)
	if err != nil {
		return nil, apperr.Database("failed to list payments", err)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from+p.where(), p.args...); err != nil {
		return nil, apperr.Database("failed to count payments", err)
	}

	payments := make([]models.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, *r.toModel())
	}

	return &models.PaymentPage{
		Payments: payments,
		Total:    total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}, nil
}
