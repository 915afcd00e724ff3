package models

// OrderSource is the channel an order was placed through
type OrderSource string

const (
	OrderSourceMobilePickup OrderSource = "mobile_pickup"
	OrderSourceInStore      OrderSource = "in_store"
)

func (s OrderSource) Valid() bool {
	return s == OrderSourceMobilePickup || s == OrderSourceInStore
}

// Order statuses. Status is free-form; these are the values the backend itself writes.
const (
	OrderStatusCreated       = "created"
	OrderStatusPaid          = "paid"
	OrderStatusPaymentFailed = "payment_failed"
	OrderStatusRefunded      = "refunded"
	OrderStatusCompleted     = "completed"
	OrderStatusCancelled     = "cancelled"
)

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentMethodQRIS       PaymentMethod = "qris"
	PaymentMethodGoPay      PaymentMethod = "gopay"
	PaymentMethodShopeePay  PaymentMethod = "shopeepay"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
)

var validPaymentMethods = map[PaymentMethod]struct{}{
	PaymentMethodQRIS:       {},
	PaymentMethodGoPay:      {},
	PaymentMethodShopeePay:  {},
	PaymentMethodCreditCard: {},
	PaymentMethodDebitCard:  {},
}

func (m PaymentMethod) Valid() bool {
	_, ok := validPaymentMethods[m]
	return ok
}

// PaymentProvider is the external provider processing the payment
type PaymentProvider string

const (
	ProviderXendit    PaymentProvider = "xendit"
	ProviderStripe    PaymentProvider = "stripe"
	ProviderAdyen     PaymentProvider = "adyen"
	ProviderGoPay     PaymentProvider = "gopay_api"
	ProviderShopeePay PaymentProvider = "shopeepay_api"
)

var validPaymentProviders = map[PaymentProvider]struct{}{
	ProviderXendit:    {},
	ProviderStripe:    {},
	ProviderAdyen:     {},
	ProviderGoPay:     {},
	ProviderShopeePay: {},
}

func (p PaymentProvider) Valid() bool {
	_, ok := validPaymentProviders[p]
	return ok
}

// PaymentProviders lists every supported provider
func PaymentProviders() []PaymentProvider {
	return []PaymentProvider{ProviderXendit, ProviderStripe, ProviderAdyen, ProviderGoPay, ProviderShopeePay}
}

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

// remember to add new statuses to validPaymentStatuses
const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

var validPaymentStatuses = map[PaymentStatus]struct{}{
	PaymentStatusPending:    {},
	PaymentStatusProcessing: {},
	PaymentStatusSuccess:    {},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := validPaymentStatuses[s]
	return ok
}

// OrderStatusForPayment returns the order status implied by a payment status.
// Pending and processing payments imply no order change.
func OrderStatusForPayment(s PaymentStatus) (string, bool) {
	switch s {
	case PaymentStatusSuccess:
		return OrderStatusPaid, true
	case PaymentStatusFailed:
		return OrderStatusPaymentFailed, true
	case PaymentStatusRefunded:
		return OrderStatusRefunded, true
	default:
		return "", false
	}
}

// SettlementPending reports whether an order in orderStatus still needs the
// transition implied by payment status s. An order that has already moved
// past it (completed, cancelled, another payment outcome) is left alone.
func SettlementPending(orderStatus string, s PaymentStatus) bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed:
		return orderStatus == OrderStatusCreated
	case PaymentStatusRefunded:
		return orderStatus == OrderStatusPaid || orderStatus == OrderStatusCompleted
	default:
		return false
	}
}
