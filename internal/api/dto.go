package api

import (
	"strings"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
	"pos-backend/internal/service"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type lineItemRequest struct {
	MenuItemID string          `json:"menu_item_id" binding:"required"`
	VariantID  *string         `json:"variant_id"`
	Quantity   int             `json:"quantity" binding:"required,min=1"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	StoreID        string            `json:"store_id" binding:"required"`
	ClientOrderID  string            `json:"client_order_id" binding:"required"`
	Source         string            `json:"source" binding:"required,oneof=mobile_pickup in_store"`
	CustomerID     string            `json:"customer_id" binding:"required"`
	Items          []lineItemRequest `json:"items" binding:"required,min=1,dive"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	Total          decimal.Decimal   `json:"total"`
	PromotionIDs   []string          `json:"promotion_ids"`
}

func (r createOrderRequest) toInput() models.CreateOrderInput {
	return models.CreateOrderInput{
		StoreID:       strings.TrimSpace(r.StoreID),
		ClientOrderID: strings.TrimSpace(r.ClientOrderID),
		Source:        models.OrderSource(r.Source),
		CustomerID:    strings.TrimSpace(r.CustomerID),
		Items: lo.Map(r.Items, func(item lineItemRequest, _ int) models.LineItem {
			return models.LineItem{
				MenuItemID: item.MenuItemID,
				VariantID:  item.VariantID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
			}
		}),
		Subtotal:       r.Subtotal,
		DiscountAmount: r.DiscountAmount,
		TaxAmount:      r.TaxAmount,
		Total:          r.Total,
		PromotionIDs:   r.PromotionIDs,
	}
}

type updateOrderStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	ActorID string `json:"actor_id" binding:"required"`
}

type createPaymentRequest struct {
	OrderID           string          `json:"order_id" binding:"required,uuid"`
	Method            string          `json:"method" binding:"required,oneof=qris gopay shopeepay credit_card debit_card"`
	Provider          string          `json:"provider" binding:"required,oneof=xendit stripe adyen gopay_api shopeepay_api"`
	Amount            decimal.Decimal `json:"amount"`
	ProviderReference *string         `json:"provider_reference"`
	ReceiptNumber     *string         `json:"receipt_number"`
	// accepted for compatibility; new payments always start pending
	Status string `json:"status"`
}

func (r createPaymentRequest) toInput() models.CreatePaymentInput {
	return models.CreatePaymentInput{
		OrderID:           uuid.MustParse(r.OrderID),
		Method:            models.PaymentMethod(r.Method),
		Provider:          models.PaymentProvider(r.Provider),
		Amount:            r.Amount,
		ProviderReference: r.ProviderReference,
		ReceiptNumber:     r.ReceiptNumber,
		Status:            models.PaymentStatus(r.Status),
	}
}

type updatePaymentStatusRequest struct {
	Status            string `json:"status" binding:"required,oneof=pending processing success failed refunded"`
	ProviderReference string `json:"provider_reference"`
	ActorID           string `json:"actor_id"`
}

// webhookRequest is the provider callback body. Status may use the
// provider's own vocabulary.
type webhookRequest struct {
	PaymentID         string `json:"payment_id" binding:"required,uuid"`
	Status            string `json:"status" binding:"required"`
	ProviderReference string `json:"provider_reference"`
}

type settlementResponse struct {
	Payment        *models.Payment `json:"payment"`
	Order          *models.Order   `json:"order,omitempty"`
	PaymentChanged bool            `json:"payment_changed"`
	OrderChanged   bool            `json:"order_changed"`
}

func newSettlementResponse(s *service.Settlement) settlementResponse {
	return settlementResponse{
		Payment:        s.Payment,
		Order:          s.Order,
		PaymentChanged: s.PaymentChanged,
		OrderChanged:   s.OrderChanged,
	}
}

type orderStatusResponse struct {
	Order   *models.Order `json:"order"`
	Changed bool          `json:"changed"`
}

// listQuery holds the filters shared by the store listing endpoints
type listQuery struct {
	Status       string `form:"status"`
	Method       string `form:"method"`
	CustomerName string `form:"customer_name"`
	DateFrom     string `form:"date_from"`
	DateTo       string `form:"date_to"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset       int    `form:"offset" binding:"omitempty,min=0"`
}

func (q listQuery) page() models.Pagination {
	return models.Pagination{Limit: q.Limit, Offset: q.Offset}.Normalize()
}

// created parses the date bounds. A bare date as date_to covers the whole day.
func (q listQuery) created() (models.DateRange, error) {
	var r models.DateRange
	fields := map[string]string{}

	if q.DateFrom != "" {
		from, _, err := parseDate(q.DateFrom)
		if err != nil {
			fields["date_from"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			r.From = &from
		}
	}
	if q.DateTo != "" {
		to, dateOnly, err := parseDate(q.DateTo)
		if err != nil {
			fields["date_to"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			if dateOnly {
				to = to.Add(24*time.Hour - time.Microsecond)
			}
			r.To = &to
		}
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		fields["date_to"] = "must not be before date_from"
	}

	if len(fields) > 0 {
		return models.DateRange{}, apperr.Validation(fields, "Invalid query")
	}
	return r, nil
}

func (q listQuery) orderFilter() (models.OrderFilter, error) {
	created, err := q.created()
	if err != nil {
		return models.OrderFilter{}, err
	}
	return models.OrderFilter{
		Status:       q.Status,
		CustomerName: q.CustomerName,
		Created:      created,
	}, nil
}

func (q listQuery) paymentFilter() (models.PaymentFilter, error) {
	fields := map[string]string{}
	if q.Status != "" && !models.PaymentStatus(q.Status).Valid() {
		fields["status"] = "is not a payment status"
	}
	if q.Method != "" && !models.PaymentMethod(q.Method).Valid() {
		fields["method"] = "is not a payment method"
	}
	if len(fields) > 0 {
		return models.PaymentFilter{}, apperr.Validation(fields, "Invalid query")
	}

	created, err := q.created()
	if err != nil {
		return models.PaymentFilter{}, err
	}
	return models.PaymentFilter{
		Status:  models.PaymentStatus(q.Status),
		Method:  models.PaymentMethod(q.Method),
		Created: created,
	}, nil
}

type statusQuery struct {
	Status string `form:"status" binding:"required,oneof=pending processing success failed refunded"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(map[string]string{field: "must be a UUID"}, "Invalid "+field)
	}
	return id, nil
}
