package backendclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/appmart/checkout-core/internal/domain/checkout"
)

var _ checkout.OrderBackend = (*OrderClient)(nil)

// OrderClient talks to the order backend. Checkout submission and address
// registration are independent remote calls; the finalizer decides what a
// failure of either means.
//
// Idempotency per order code on the backend side is assumed but not verified
// here; the gate already prevents this client from being invoked more than
// once per code.
type OrderClient struct {
	baseURL string
	http    *http.Client
}

// NewOrderClient creates a client for the order backend at baseURL.
func NewOrderClient(baseURL string) *OrderClient {
	return &OrderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(),
	}
}

// SubmitOrderCheckout submits the finalized order.
func (c *OrderClient) SubmitOrderCheckout(ctx context.Context, sub checkout.CheckoutSubmission) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderCode")
	e.Str(sub.OrderCode)
	e.FieldStart("customerId")
	e.Str(sub.CustomerID)
	e.FieldStart("paymentMode")
	e.Str(string(sub.PaymentMode))
	e.FieldStart("paymentService")
	e.Str(sub.PaymentService)
	e.FieldStart("paymentAccountNumber")
	e.Str(sub.PaymentAccountNumber)
	e.FieldStart("totalAmount")
	e.Str(sub.TotalAmount.String())
	e.FieldStart("items")
	e.ArrStart()
	for _, line := range sub.Lines {
		e.ObjStart()
		e.FieldStart("cartId")
		e.Str(line.CartID)
		e.FieldStart("productId")
		e.Str(line.ProductID)
		e.FieldStart("price")
		e.Str(line.Price.String())
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	if _, err := do(ctx, c.http, http.MethodPost, c.baseURL+"/orders/checkout", e.Bytes()); err != nil {
		return errors.Wrap(err, "submit order checkout")
	}
	return nil
}

// RegisterDeliveryAddress registers the delivery address for a finalized
// order.
func (c *OrderClient) RegisterDeliveryAddress(ctx context.Context, sub checkout.AddressSubmission) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderCode")
	e.Str(sub.OrderCode)
	e.FieldStart("address")
	e.Str(sub.Address)
	e.FieldStart("recipientName")
	e.Str(sub.RecipientName)
	e.FieldStart("recipientContactNumber")
	e.Str(sub.RecipientContactNumber)
	e.FieldStart("orderNote")
	e.Str(sub.OrderNote)
	e.FieldStart("geoLocation")
	e.ObjStart()
	e.FieldStart("latitude")
	e.Float64(sub.GeoLocation.Latitude)
	e.FieldStart("longitude")
	e.Float64(sub.GeoLocation.Longitude)
	e.ObjEnd()
	e.ObjEnd()

	if _, err := do(ctx, c.http, http.MethodPost, c.baseURL+"/orders/delivery-address", e.Bytes()); err != nil {
		return errors.Wrap(err, "register delivery address")
	}
	return nil
}
