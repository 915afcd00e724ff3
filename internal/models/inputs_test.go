package models

import (
	"testing"
	"time"

	"pos-backend/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrderInput() CreateOrderInput {
	return CreateOrderInput{
		StoreID:       "s1",
		ClientOrderID: "c1",
		Source:        OrderSourceMobilePickup,
		CustomerID:    "cust-1",
		Items: []LineItem{
			{MenuItemID: "latte", Quantity: 2, UnitPrice: decimal.NewFromInt(45)},
		},
		Subtotal: decimal.NewFromInt(90),
		Total:    decimal.NewFromInt(100),
	}
}

func TestCreateOrderInputValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateOrderInput)
		wantField string
	}{
		{name: "valid: ok", mutate: func(*CreateOrderInput) {}},
		{
			name:      "total below subtotal: fail",
			mutate:    func(in *CreateOrderInput) { in.Total = decimal.NewFromInt(50) },
			wantField: "total",
		},
		{
			name:      "zero quantity: fail",
			mutate:    func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
			wantField: "items[0].quantity",
		},
		{
			name:      "negative unit price: fail",
			mutate:    func(in *CreateOrderInput) { in.Items[0].UnitPrice = decimal.NewFromInt(-1) },
			wantField: "items[0].unit_price",
		},
		{
			name:      "unknown source: fail",
			mutate:    func(in *CreateOrderInput) { in.Source = "drive_thru" },
			wantField: "source",
		},
		{
			name:      "no items: fail",
			mutate:    func(in *CreateOrderInput) { in.Items = nil },
			wantField: "items",
		},
		{
			name:      "negative tax: fail",
			mutate:    func(in *CreateOrderInput) { in.TaxAmount = decimal.NewFromInt(-5) },
			wantField: "tax_amount",
		},
		{
			name: "trailing zeros beyond cents: ok",
			mutate: func(in *CreateOrderInput) {
				in.Total = decimal.RequireFromString("100.000")
			},
		},
		{
			name:      "sub-cent total: fail",
			mutate:    func(in *CreateOrderInput) { in.Total = decimal.RequireFromString("100.005") },
			wantField: "total",
		},
		{
			name:      "sub-cent unit price: fail",
			mutate:    func(in *CreateOrderInput) { in.Items[0].UnitPrice = decimal.RequireFromString("45.001") },
			wantField: "items[0].unit_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validOrderInput()
			tt.mutate(&in)

			err := in.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			appErr, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Fields, tt.wantField)
		})
	}
}

func TestCreatePaymentInputValidate(t *testing.T) {
	in := CreatePaymentInput{
		OrderID:  uuid.New(),
		Method:   PaymentMethodQRIS,
		Provider: ProviderXendit,
		Amount:   decimal.NewFromInt(100),
	}
	require.NoError(t, in.Validate())

	in.Method = "cash"
	in.Provider = "paypal"
	appErr, ok := apperr.As(in.Validate())
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "method")
	assert.Contains(t, appErr.Fields, "provider")

	in.Method, in.Provider = PaymentMethodQRIS, ProviderXendit
	in.Amount = decimal.RequireFromString("10.005")
	appErr, ok = apperr.As(in.Validate())
	require.True(t, ok)
	assert.Equal(t, "must have at most 2 decimal places", appErr.Fields["amount"])
}

func TestOrderStatusForPayment(t *testing.T) {
	status, ok := OrderStatusForPayment(PaymentStatusSuccess)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusPaid, status)

	_, ok = OrderStatusForPayment(PaymentStatusProcessing)
	assert.False(t, ok)
}

func TestDateRangeContainsInclusive(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	r := DateRange{From: &from, To: &to}

	assert.True(t, r.Contains(from))
	assert.True(t, r.Contains(to))
	assert.False(t, r.Contains(to.Add(time.Nanosecond)))
	assert.True(t, DateRange{}.Contains(from))
}

func TestPaginationNormalize(t *testing.T) {
	assert.Equal(t, Pagination{Limit: 50, Offset: 0}, Pagination{Offset: -3}.Normalize())
	assert.Equal(t, Pagination{Limit: 10, Offset: 20}, Pagination{Limit: 10, Offset: 20}.Normalize())
}

func TestLineItemsScan(t *testing.T) {
	var items LineItems
	require.NoError(t, items.Scan([]byte(`[{"menu_item_id":"latte","quantity":2,"unit_price":"45.5"}]`)))
	require.Len(t, items, 1)
	assert.Equal(t, "latte", items[0].MenuItemID)
	assert.True(t, decimal.RequireFromString("45.5").Equal(items[0].UnitPrice))

	require.NoError(t, items.Scan(nil))
	assert.Empty(t, items)
}

func TestSettlementPending(t *testing.T) {
	tests := []struct {
		order   string
		payment PaymentStatus
		want    bool
	}{
		{OrderStatusCreated, PaymentStatusSuccess, true},
		{OrderStatusCreated, PaymentStatusFailed, true},
		{OrderStatusPaid, PaymentStatusSuccess, false},
		{OrderStatusCompleted, PaymentStatusSuccess, false},
		{OrderStatusCancelled, PaymentStatusSuccess, false},
		{OrderStatusCancelled, PaymentStatusFailed, false},
		{OrderStatusPaid, PaymentStatusRefunded, true},
		{OrderStatusCompleted, PaymentStatusRefunded, true},
		{OrderStatusCancelled, PaymentStatusRefunded, false},
		{OrderStatusCreated, PaymentStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.order+"/"+string(tt.payment), func(t *testing.T) {
			assert.Equal(t, tt.want, SettlementPending(tt.order, tt.payment))
		})
	}
}
