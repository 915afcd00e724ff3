package models

import (
	"fmt"
	"strings"
	"time"

	"pos-backend/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default page sizes
const (
	DefaultPageLimit   = 50
	DefaultStatusLimit = 100
)

// AmountScale is the number of decimal places money columns store
const AmountScale = 2

// checkAmount returns the field message for a bad money value, or ""
func checkAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "must be at least 0"
	}
	if !d.Equal(d.Truncate(AmountScale)) {
		return fmt.Sprintf("must have at most %d decimal places", AmountScale)
	}
	return ""
}

// CreateOrderInput is a pre-validated order creation request
type CreateOrderInput struct {
	StoreID        string
	ClientOrderID  string
	Source         OrderSource
	CustomerID     string
	Items          []LineItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	PromotionIDs   []string
}

// Validate checks the invariants enforced at order creation
func (in CreateOrderInput) Validate() error {
	fields := map[string]string{}

	if strings.TrimSpace(in.StoreID) == "" {
		fields["store_id"] = "is required"
	}
	if strings.TrimSpace(in.ClientOrderID) == "" {
		fields["client_order_id"] = "is required"
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		fields["customer_id"] = "is required"
	}
	if !in.Source.Valid() {
		fields["source"] = "must be one of: mobile_pickup, in_store"
	}
	if len(in.Items) == 0 {
		fields["items"] = "must contain at least 1 item"
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.MenuItemID) == "" {
			fields[fmt.Sprintf("items[%d].menu_item_id", i)] = "is required"
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be at least 1"
		}
		if msg := checkAmount(item.UnitPrice); msg != "" {
			fields[fmt.Sprintf("items[%d].unit_price", i)] = msg
		}
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", in.Subtotal},
		{"discount_amount", in.DiscountAmount},
		{"tax_amount", in.TaxAmount},
		{"total", in.Total},
	}
	for _, a := range amounts {
		if msg := checkAmount(a.value); msg != "" {
			fields[a.name] = msg
		}
	}
	if in.Total.LessThan(in.Subtotal) {
		fields["total"] = "must be greater than or equal to subtotal"
	}

	if len(fields) > 0 {
		return apperr.Validation(fields, "invalid order")
	}
	return nil
}

// CreatePaymentInput is a pre-validated payment creation request
type CreatePaymentInput struct {
	OrderID           uuid.UUID
	Method            PaymentMethod
	Provider          PaymentProvider
	Amount            decimal.Decimal
	ProviderReference *string
	ReceiptNumber     *string
	// Status is ignored: payments always start pending
	Status PaymentStatus
}

func (in CreatePaymentInput) Validate() error {
	fields := map[string]string{}

	if in.OrderID == uuid.Nil {
		fields["order_id"] = "is required"
	}
	if !in.Method.Valid() {
		fields["method"] = "must be one of: qris, gopay, shopeepay, credit_card, debit_card"
	}
	if !in.Provider.Valid() {
		fields["provider"] = "must be one of: xendit, stripe, adyen, gopay_api, shopeepay_api"
	}
	if msg := checkAmount(in.Amount); msg != "" {
		fields["amount"] = msg
	}

	if len(fields) > 0 {
		return apperr.Validation(fields, "invalid payment")
	}
	return nil
}

// DateRange is an inclusive creation time range; either bound may be nil
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// OrderFilter has AND semantics across fields; empty fields match everything
type OrderFilter struct {
	Status       string
	CustomerName string
	Created      DateRange
}

// PaymentFilter has AND semantics across fields; empty fields match everything
type PaymentFilter struct {
	Status  PaymentStatus
	Method  PaymentMethod
	Created DateRange
}

// Pagination is a limit/offset window
type Pagination struct {
	Limit  int
	Offset int
}

// Normalize applies the default limit and clamps negative offsets
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
