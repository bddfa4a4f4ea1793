package backendclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/appmart/checkout-core/internal/domain/checkout"
)

var _ checkout.PaymentBackend = (*PaymentClient)(nil)

// PaymentClient talks to the payment backend: payment initiation and status
// lookup. Redirect URL validation is the PaymentInitiator's job; this client
// only transports.
type PaymentClient struct {
	baseURL string
	http    *http.Client
}

// NewPaymentClient creates a client for the payment backend at baseURL.
func NewPaymentClient(baseURL string) *PaymentClient {
	return &PaymentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(),
	}
}

// InitiatePayment registers the payment with the provider and returns the
// external redirect URL from the response.
func (c *PaymentClient) InitiatePayment(ctx context.Context, amount decimal.Decimal, cart checkout.CartSnapshot, orderCode string) (string, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderCode")
	e.Str(orderCode)
	e.FieldStart("amount")
	e.Str(amount.String())
	e.FieldStart("items")
	e.ArrStart()
	for _, line := range cart {
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

	body, err := do(ctx, c.http, http.MethodPost, c.baseURL+"/payments/initiate", e.Bytes())
	if err != nil {
		return "", errors.Wrap(err, "initiate payment")
	}
	if len(body) == 0 {
		return "", errors.New("empty initiation response")
	}

	var redirect string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "redirectUrl":
			v, err := d.Str()
			if err != nil {
				return err
			}
			redirect = v
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", errors.Wrap(err, "decode initiation response")
	}
	if redirect == "" {
		return "", errors.New("initiation response missing redirectUrl")
	}
	return redirect, nil
}

// PaymentStatus returns the provider's raw status code for orderCode.
func (c *PaymentClient) PaymentStatus(ctx context.Context, orderCode string) (string, error) {
	u := fmt.Sprintf("%s/payments/%s/status", c.baseURL, url.PathEscape(orderCode))

	body, err := do(ctx, c.http, http.MethodGet, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "payment status")
	}

	var status string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "statusCode":
			v, err := d.Str()
			if err != nil {
				return err
			}
			status = v
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", errors.Wrap(err, "decode status response")
	}
	if status == "" {
		return "", errors.New("status response missing statusCode")
	}
	return status, nil
}
