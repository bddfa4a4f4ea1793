// Package checkout implements the payment-reconciliation core of the
// storefront: durable order intents, a session-unique order code factory,
// payment initiation, and the single-writer reconciliation gate that accepts
// exactly one terminal outcome per order code.
package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMode selects how an order is paid for.
type PaymentMode string

const (
	// ModeCashOnDelivery settles on delivery; no external payment provider
	// is involved and the order finalizes immediately.
	ModeCashOnDelivery PaymentMode = "cash-on-delivery"

	// ModeOnlinePayment redirects the customer to an external payment
	// provider and reconciles the outcome asynchronously.
	ModeOnlinePayment PaymentMode = "online-payment"
)

// UsesRedirect reports whether the mode hands control to an external payment
// provider. Only redirect modes leave a pending payment behind.
func (m PaymentMode) UsesRedirect() bool {
	return m == ModeOnlinePayment
}

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	return m == ModeCashOnDelivery || m == ModeOnlinePayment
}

// GeoLocation is a delivery coordinate pair.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OrderIntent is the durably persisted record of what the customer wants to
// buy and how they intend to pay. It is written before any payment redirect
// is issued and is immutable once created.
type OrderIntent struct {
	// OrderCode is the human-readable session-unique code ("APP-###-###").
	OrderCode string `json:"orderCode"`

	// IntentID is a collision-resistant identifier for the intent itself.
	// OrderCode is for display and correlation; IntentID is the real key.
	IntentID string `json:"intentId"`

	CustomerID             string          `json:"customerId"`
	PaymentMode            PaymentMode     `json:"paymentMode"`
	PaymentService         string          `json:"paymentService,omitempty"`
	PaymentAccountNumber   string          `json:"paymentAccountNumber,omitempty"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	RecipientName          string          `json:"recipientName"`
	RecipientContactNumber string          `json:"recipientContactNumber"`
	OrderNote              string          `json:"orderNote,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
}

// DeliveryAddressIntent is the delivery destination persisted alongside an
// OrderIntent, 1:1 by order code.
type DeliveryAddressIntent struct {
	OrderCode              string      `json:"orderCode"`
	Address                string      `json:"address"`
	RecipientName          string      `json:"recipientName"`
	RecipientContactNumber string      `json:"recipientContactNumber"`
	OrderNote              string      `json:"orderNote,omitempty"`
	GeoLocation            GeoLocation `json:"geoLocation"`
}

// CartLine is one line item read from the cart collaborator at checkout time.
type CartLine struct {
	CartID    string          `json:"cartId"`
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CartSnapshot is an ephemeral read of the cart at checkout time. The core
// caches it next to the intents so a finalize after restart can resubmit.
type CartSnapshot []CartLine

// Subtotal sums price x quantity over all lines.
func (s CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// State tracks where an order code is in its lifecycle. AwaitingPayment is
// the only state in which the observer channels are live; Finalizing and
// Cancelling are entered at most once, enforced by the Gate.
type State string

const (
	StateCreated         State = "created"
	StateAwaitingPayment State = "awaiting-payment"
	StateFinalizing      State = "finalizing"
	StateFinalized       State = "finalized"
	StateCancelling      State = "cancelling"
	StateCancelled       State = "cancelled"
)
