// Package memory is an in-process implementation of the order, payment and
// event stores with the same semantics as the Postgres store. It backs unit
// tests of the services and the routing layer.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

type dedupKey struct {
	storeID       string
	clientOrderID string
}

// Store keeps all state in maps guarded by one mutex
type Store struct {
	mu sync.Mutex

	now       func() time.Time
	customers map[string]models.Customer
	orders    map[uuid.UUID]models.Order
	dedup     map[dedupKey]uuid.UUID
	payments  map[uuid.UUID]models.Payment
	events    []models.OrderEvent
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		customers: map[string]models.Customer{},
		orders:    map[uuid.UUID]models.Order{},
		dedup:     map[dedupKey]uuid.UUID{},
		payments:  map[uuid.UUID]models.Payment{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// AddCustomer registers a customer that orders can reference
func (s *Store) AddCustomer(c models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock()
	}
	s.customers[c.ID] = c
}

// SetPaymentCreatedAt backdates a payment, for exercising time windows
func (s *Store) SetPaymentCreatedAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		p.CreatedAt = at
		s.payments[id] = p
	}
}

// withCustomer returns a copy of o joined with its customer; callers hold mu
func (s *Store) withCustomer(o models.Order) *models.Order {
	if c, ok := s.customers[o.CustomerID]; ok {
		o.Customer = &c
	}
	return &o
}

func (s *Store) appendEvent(o models.Order, eventType, actorID string, payload any, at time.Time) (*models.OrderEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Database("failed to encode event payload", err)
	}
	event := models.OrderEvent{
		ID:        uuid.New(),
		StoreID:   o.StoreID,
		OrderID:   o.ID,
		EventType: eventType,
		ActorID:   actorID,
		Payload:   data,
		Timestamp: at,
	}
	s.events = append(s.events, event)
	return &event, nil
}

func (s *Store) CreateOrder(_ context.Context, in models.CreateOrderInput) (*models.Order, *models.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey{in.StoreID, in.ClientOrderID}
	if _, exists := s.dedup[key]; exists {
		return nil, nil, apperr.Conflict(
			map[string]string{"store_id": in.StoreID, "client_order_id": in.ClientOrderID},
			"Order with client_order_id %s already exists for store %s", in.ClientOrderID, in.StoreID)
	}
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	if _, ok := s.customers[in.CustomerID]; !ok {
		return nil, nil, apperr.Validation(map[string]string{"customer_id": "does not exist"}, "invalid order")
	}

	now := s.clock()
	order := models.Order{
		ID:             uuid.New(),
		StoreID:        in.StoreID,
		ClientOrderID:  in.ClientOrderID,
		Source:         in.Source,
		CustomerID:     in.CustomerID,
		Items:          append(models.LineItems{}, in.Items...),
		Subtotal:       in.Subtotal,
		DiscountAmount: in.DiscountAmount,
		TaxAmount:      in.TaxAmount,
		Total:          in.Total,
		PromotionIDs:   append(pq.StringArray{}, in.PromotionIDs...),
		Status:         models.OrderStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	event, err := s.appendEvent(order, models.EventTypeCreated, models.ActorSystem,
		models.CreatedPayload{Source: in.Source, Total: in.Total}, now)
	if err != nil {
		return nil, nil, err
	}

	s.orders[order.ID] = order
	s.dedup[key] = order.ID

	return s.withCustomer(order), event, nil
}

func (s *Store) GetOrderByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("Order with ID %s not found", id)
	}
	return s.withCustomer(order), nil
}

func (s *Store) GetOrderByClientOrderID(_ context.Context, storeID, clientOrderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.dedup[dedupKey{storeID, clientOrderID}]
	if !ok {
		return nil, nil
	}
	return s.withCustomer(s.orders[id]), nil
}

// UpdateOrderStatusWhen transitions an order unless allow rejects its current
// status. A nil allow accepts every status.
func (s *Store) UpdateOrderStatusWhen(_ context.Context, orderID uuid.UUID, status, actorID string, allow func(current string) bool) (*models.Order, *models.OrderEvent, error) {
	if status == "" {
		return nil, nil, apperr.Validation(map[string]string{"status": "is required"}, "invalid status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil, apperr.NotFound("Order with ID %s not found", orderID)
	}
	if order.Status == status || (allow != nil && !allow(order.Status)) {
		return s.withCustomer(order), nil, nil
	}

	now := s.clock()
	oldStatus := order.Status
	order.Status = status
	order.UpdatedAt = now
	if status == models.OrderStatusCompleted {
		order.CompletedAt = &now
	}

	event, err := s.appendEvent(order, models.EventTypeStatusChanged, actorID,
		models.StatusChangedPayload{OldStatus: oldStatus, NewStatus: status}, now)
	if err != nil {
		return nil, nil, err
	}
	s.orders[orderID] = order

	return s.withCustomer(order), event, nil
}

func (s *Store) ListOrdersByStore(_ context.Context, storeID string, filter models.OrderFilter, page models.Pagination) (*models.OrderPage, error) {
	page = page.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(filter.CustomerName)
	matched := lo.Filter(lo.Values(s.orders), func(o models.Order, _ int) bool {
		if o.StoreID != storeID {
			return false
		}
		if filter.Status != "" && o.Status != filter.Status {
			return false
		}
		if name != "" && !strings.Contains(strings.ToLower(s.customers[o.CustomerID].Name), name) {
			return false
		}
		return filter.Created.Contains(o.CreatedAt)
	})

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	orders := lo.Map(window(matched, page), func(o models.Order, _ int) models.Order {
		return *s.withCustomer(o)
	})

	return &models.OrderPage{Orders: orders, Total: len(matched), Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *Store) ListOrderEvents(_ context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := []models.OrderEvent{}
	// newest first: walk the append log backwards
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].OrderID == orderID {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

func (s *Store) CreatePayment(_ context.Context, in models.CreatePaymentInput) (*models.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[in.OrderID]; !ok {
		return nil, apperr.NotFound("Order with ID %s not found", in.OrderID)
	}
	for _, p := range s.payments {
		if p.OrderID == in.OrderID {
			return nil, apperr.Conflict(map[string]string{"order_id": in.OrderID.String()},
				"Payment for order %s already exists", in.OrderID)
		}
	}

	payment := models.Payment{
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
	s.payments[payment.ID] = payment

	return &payment, nil
}

func (s *Store) GetPaymentByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, apperr.NotFound("Payment with ID %s not found", id)
	}
	return &payment, nil
}

func (s *Store) GetPaymentByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := lo.Find(lo.Values(s.payments), func(p models.Payment) bool { return p.OrderID == orderID })
	if !ok {
		return nil, nil
	}
	return &payment, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, paymentID uuid.UUID, status models.PaymentStatus, providerReference string) (*models.Payment, bool, error) {
	if !status.Valid() {
		return nil, false, apperr.Validation(
			map[string]string{"status": "must be one of: pending, processing, success, failed, refunded"},
			"invalid payment status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, false, apperr.NotFound("Payment with ID %s not found", paymentID)
	}
	if payment.Status == status {
		return &payment, false, nil
	}

	if providerReference != "" {
		payment.ProviderReference = lo.ToPtr(providerReference)
	}
	if status == models.PaymentStatusSuccess && payment.CompletedAt == nil {
		payment.CompletedAt = lo.ToPtr(s.clock())
	}
	payment.Status = status
	s.payments[paymentID] = payment

	return &payment, true, nil
}

func (s *Store) ListPaymentsByStatus(_ context.Context, status models.PaymentStatus, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = models.DefaultStatusLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := lo.Filter(lo.Values(s.payments), func(p models.Payment, _ int) bool { return p.Status == status })
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) ListProcessingPayments(_ context.Context) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-models.ReconciliationWindow)
	candidates := lo.Filter(lo.Values(s.payments), func(p models.Payment, _ int) bool {
		return p.Status == models.PaymentStatusProcessing && !p.CreatedAt.Before(cutoff)
	})

	return lo.Map(candidates, func(p models.Payment, _ int) models.Payment {
		p.Order = s.withCustomer(s.orders[p.OrderID])
		return p
	}), nil
}

func (s *Store) CountStaleProcessingPayments(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-models.ReconciliationWindow)
	return lo.CountBy(lo.Values(s.payments), func(p models.Payment) bool {
		return p.Status == models.PaymentStatusProcessing && p.CreatedAt.Before(cutoff)
	}), nil
}

func (s *Store) ListPaymentsByStore(_ context.Context, storeID string, filter models.PaymentFilter, page models.Pagination) (*models.PaymentPage, error) {
	page = page.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := lo.Filter(lo.Values(s.payments), func(p models.Payment, _ int) bool {
		if s.orders[p.OrderID].StoreID != storeID {
			return false
		}
		if filter.Status != "" && p.Status != filter.Status {
			return false
		}
		if filter.Method != "" && p.Method != filter.Method {
			return false
		}
		return filter.Created.Contains(p.CreatedAt)
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	payments := lo.Map(window(matched, page), func(p models.Payment, _ int) models.Payment {
		order := s.orders[p.OrderID]
		p.Order = &order
		return p
	})

	return &models.PaymentPage{Payments: payments, Total: len(matched), Limit: page.Limit, Offset: page.Offset}, nil
}

func window[T any](items []T, page models.Pagination) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
