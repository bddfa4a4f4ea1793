package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentBackend is the remote payment provider collaborator.
type PaymentBackend interface {
	// InitiatePayment registers the payment and returns the external
	// redirect URL, unvalidated.
	InitiatePayment(ctx context.Context, amount decimal.Decimal, cart CartSnapshot, orderCode string) (string, error)

	// PaymentStatus returns the provider's raw status code for the order.
	PaymentStatus(ctx context.Context, orderCode string) (string, error)
}

// OrderBackend is the remote order service collaborator.
type OrderBackend interface {
	SubmitOrderCheckout(ctx context.Context, sub CheckoutSubmission) error
	RegisterDeliveryAddress(ctx context.Context, sub AddressSubmission) error
}

// CartStore is the cart collaborator. It is read at checkout time and cleared
// only by the finalizer after an accepted success.
type CartStore interface {
	Lines(ctx context.Context, customerID string) (cartID string, snapshot CartSnapshot, err error)
	Clear(ctx context.Context, customerID string) error
}

// CheckoutSubmission is the payload submitted to the order backend on
// finalization.
type CheckoutSubmission struct {
	OrderCode            string
	CustomerID           string
	PaymentMode          PaymentMode
	PaymentService       string
	PaymentAccountNumber string
	TotalAmount          decimal.Decimal
	Lines                CartSnapshot
}

// AddressSubmission registers the delivery address for a finalized order.
type AddressSubmission struct {
	OrderCode              string
	Address                string
	RecipientName          string
	RecipientContactNumber string
	OrderNote              string
	GeoLocation            GeoLocation
}

// ErrInvalidPaymentURL reports a redirect URL that failed validation. Fatal
// to the current attempt; no marker is created, so nothing is left dangling.
var ErrInvalidPaymentURL = errors.New("checkout: invalid payment redirect url")

// InitiationError reports a payment backend failure during initiation.
type InitiationError struct {
	Err error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("payment initiation failed: %v", e.Err)
}

func (e *InitiationError) Unwrap() error { return e.Err }

// blockedSchemes are pseudo-schemes that must never be handed to an embedded
// browser. Anything that can execute script or synthesize a document.
var blockedSchemes = map[string]struct{}{
	"javascript": {},
	"about":      {},
	"data":       {},
	"vbscript":   {},
	"blob":       {},
	"file":       {},
}

// ValidateRedirectURL checks that raw is a well-formed absolute http or https
// URL. It returns an error wrapping ErrInvalidPaymentURL otherwise.
func ValidateRedirectURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.Wrap(ErrInvalidPaymentURL, "empty url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(ErrInvalidPaymentURL, "unparseable url: %v", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if _, blocked := blockedSchemes[scheme]; blocked {
		return errors.Wrapf(ErrInvalidPaymentURL, "blocked scheme %q", scheme)
	}
	if scheme != "http" && scheme != "https" {
		return errors.Wrapf(ErrInvalidPaymentURL, "scheme %q is not http(s)", scheme)
	}
	if u.Host == "" {
		return errors.Wrap(ErrInvalidPaymentURL, "missing host")
	}
	return nil
}

// PaymentInitiator obtains and validates the external redirect URL for an
// order. It performs no durable writes: the caller writes the pending marker
// only after a validated URL comes back.
type PaymentInitiator struct {
	backend PaymentBackend
}

// NewPaymentInitiator wraps the payment backend collaborator.
func NewPaymentInitiator(backend PaymentBackend) *PaymentInitiator {
	return &PaymentInitiator{backend: backend}
}

// Initiate calls the payment backend and validates the returned redirect URL.
func (i *PaymentInitiator) Initiate(ctx context.Context, amount decimal.Decimal, cart CartSnapshot, orderCode string) (string, error) {
	redirect, err := i.backend.InitiatePayment(ctx, amount, cart, orderCode)
	if err != nil {
		return "", &InitiationError{Err: err}
	}
	if err := ValidateRedirectURL(redirect); err != nil {
		return "", err
	}
	return redirect, nil
}
