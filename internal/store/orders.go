package store

import (
	"context"
	"database/sql"
	"errors"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `
	o.id, o.store_id, o.client_order_id, o.source, o.customer_id, o.items,
	o.subtotal, o.discount_amount, o.tax_amount, o.total, o.promotion_ids,
	o.status, o.created_at, o.updated_at, o.completed_at`

const customerColumns = `
	c.id AS "customer.id", c.store_id AS "customer.store_id", c.name AS "customer.name",
	c.phone AS "customer.phone", c.email AS "customer.email", c.created_at AS "customer.created_at"`

const orderWithCustomerFrom = ` FROM orders o JOIN customers c ON c.id = o.customer_id`

// orderRow is an order joined with its customer
type orderRow struct {
	models.Order
	Cust models.Customer `db:"customer"`
}

func (r orderRow) toModel() *models.Order {
	order := r.Order
	customer := r.Cust
	order.Customer = &customer
	return &order
}

func duplicateOrder(storeID, clientOrderID string) error {
	return apperr.Conflict(
		map[string]string{"store_id": storeID, "client_order_id": clientOrderID},
		"Order with client_order_id %s already exists for store %s", clientOrderID, storeID)
}

// CreateOrder persists a new order and its created event in one transaction.
// A second order with the same (store, client order ID) fails with Conflict,
// whether it is caught by the lookup or by the unique constraint. The dedup
// lookup runs before input validation, so a retry always reports the
// duplicate.
func (s *Store) CreateOrder(ctx context.Context, in models.CreateOrderInput) (*models.Order, *models.OrderEvent, error) {
	promotionIDs := pq.StringArray(in.PromotionIDs)
	if promotionIDs == nil {
		promotionIDs = pq.StringArray{}
	}

	var (
		order *models.Order
		event *models.OrderEvent
	)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := getOrderByClientOrderID(ctx, tx, in.StoreID, in.ClientOrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateOrder(in.StoreID, in.ClientOrderID)
		}
		if err := in.Validate(); err != nil {
			return err
		}

		now := s.clock()
		id := uuid.New()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, store_id, client_order_id, source, customer_id, items,
				subtotal, discount_amount, tax_amount, total, promotion_ids,
				status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
			id, in.StoreID, in.ClientOrderID, in.Source, in.CustomerID, models.LineItems(in.Items),
			in.Subtotal, in.DiscountAmount, in.TaxAmount, in.Total, promotionIDs,
			models.OrderStatusCreated, now)
		if err != nil {
			if isUniqueViolation(err, constraintOrderDedup) {
				return duplicateOrder(in.StoreID, in.ClientOrderID)
			}
			if isForeignKeyViolation(err) {
				return apperr.Validation(map[string]string{"customer_id": "does not exist"}, "invalid order")
			}
			if constraint, ok := isCheckViolation(err); ok {
				return apperr.Validation(map[string]string{"constraint": constraint}, "invalid order")
			}
			return apperr.Database("failed to insert order", err)
		}

		order, err = getOrderByID(ctx, tx, id, false)
		if err != nil {
			return err
		}

		event, err = appendEvent(ctx, tx, order, models.EventTypeCreated, models.ActorSystem,
			models.CreatedPayload{Source: order.Source, Total: order.Total}, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return order, event, nil
}

// GetOrderByID retrieves an order with its customer
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return getOrderByID(ctx, s.db, id, false)
}

// GetOrderByClientOrderID returns the order for a dedup key, or nil if there is none
func (s *Store) GetOrderByClientOrderID(ctx context.Context, storeID, clientOrderID string) (*models.Order, error) {
	return getOrderByClientOrderID(ctx, s.db, storeID, clientOrderID)
}

func getOrderByID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	query := "SELECT" + orderColumns + "," + customerColumns + orderWithCustomerFrom + " WHERE o.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF o"
	}

	var row orderRow
	err := sqlx.GetContext(ctx, q, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Order with ID %s not found", id)
	}
	if err != nil {
		return nil, apperr.Database("failed to get order", err)
	}
	return row.toModel(), nil
}

func getOrderByClientOrderID(ctx context.Context, q sqlx.QueryerContext, storeID, clientOrderID string) (*models.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, q, &row,
		"SELECT"+orderColumns+","+customerColumns+orderWithCustomerFrom+
			" WHERE o.store_id = $1 AND o.client_order_id = $2",
		storeID, clientOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database("failed to get order by client order id", err)
	}
	return row.toModel(), nil
}

// UpdateOrderStatus transitions an order under a row lock. Re-applying the
// current status returns the order unchanged and a nil event.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status, actorID string) (*models.Order, *models.OrderEvent, error) {
	return s.UpdateOrderStatusWhen(ctx, orderID, status, actorID, nil)
}

// UpdateOrderStatusWhen is UpdateOrderStatus with a guard checked against the
// locked row. When allow rejects the current status the order is returned
// unchanged with a nil event. A nil allow accepts every status.
func (s *Store) UpdateOrderStatusWhen(ctx context.Context, orderID uuid.UUID, status, actorID string, allow func(current string) bool) (*models.Order, *models.OrderEvent, error) {
	if status == "" {
		return nil, nil, apperr.Validation(map[string]string{"status": "is required"}, "invalid status")
	}

	var (
		order *models.Order
		event *models.OrderEvent
	)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getOrderByID(ctx, tx, orderID, true)
		if err != nil {
			return err
		}

		if current.Status == status || (allow != nil && !allow(current.Status)) {
			order = current
			return nil
		}

		now := s.clock()
		completedAt := current.CompletedAt
		if status == models.OrderStatusCompleted {
			completedAt = &now
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, completed_at = $2, updated_at = $3 WHERE id = $4",
			status, completedAt, now, orderID)
		if err != nil {
			return apperr.Database("failed to update order status", err)
		}

		oldStatus := current.Status
		current.Status = status
		current.CompletedAt = completedAt
		current.UpdatedAt = now
		order = current

		event, err = appendEvent(ctx, tx, current, models.EventTypeStatusChanged, actorID,
			models.StatusChangedPayload{OldStatus: oldStatus, NewStatus: status}, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return order, event, nil
}

// ListOrdersByStore returns a page of a store's orders, newest first. The
// total comes from a separate count query and may drift from the page under
// concurrent writes.
func (s *Store) ListOrdersByStore(ctx context.Context, storeID string, filter models.OrderFilter, page models.Pagination) (*models.OrderPage, error) {
	page = page.Normalize()

	p := &predicate{}
	p.add("o.store_id = $%d", storeID)
	if filter.Status != "" {
		p.add("o.status = $%d", filter.Status)
	}
	if filter.CustomerName != "" {
		p.add("c.name ILIKE $%d", "%"+escapeLike(filter.CustomerName)+"%")
	}
	if filter.Created.From != nil {
		p.add("o.created_at >= $%d", *filter.Created.From)
	}
	if filter.Created.To != nil {
		p.add("o.created_at <= $%d", *filter.Created.To)
	}

	limitClause, args := p.page(page.Limit, page.Offset)

	rows := []orderRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT"+orderColumns+","+customerColumns+orderWithCustomerFrom+p.where()+
			" ORDER BY o.created_at DESC, o.id"+limitClause,
		args...)
	if err != nil {
		return nil, apperr.Database("failed to list orders", err)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*)"+orderWithCustomerFrom+p.where(), p.args...); err != nil {
		return nil, apperr.Database("failed to count orders", err)
	}

	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, *r.toModel())
	}

	return &models.OrderPage{
		Orders: orders,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}
