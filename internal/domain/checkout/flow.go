package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrEmptyCart is returned by Begin when the cart collaborator has no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ErrInvalidPaymentMode is returned by Begin for an unknown payment mode.
var ErrInvalidPaymentMode = errors.New("checkout: invalid payment mode")

// PollerStarter spawns the background status poller for an order. Implemented
// by observer.PollerSet; an interface here keeps the dependency pointing
// outward.
type PollerStarter interface {
	StartPolling(orderCode string, mode PaymentMode)
}

// BeginRequest carries the caller-validated checkout input. Business-rule
// validation (delivery fee computation, recipient checks) happens before the
// core is invoked.
type BeginRequest struct {
	CustomerID             string
	PaymentMode            PaymentMode
	PaymentService         string
	PaymentAccountNumber   string
	RecipientName          string
	RecipientContactNumber string
	OrderNote              string
	Address                string
	GeoLocation            GeoLocation

	// DeliveryFee is computed by the caller and added to the cart subtotal.
	DeliveryFee decimal.Decimal
}

// BeginResult is the outcome of starting a checkout.
type BeginResult struct {
	OrderCode   string
	TotalAmount decimal.Decimal
	State       State

	// RedirectURL is set only for redirect payment modes.
	RedirectURL string
}

// PendingStatus describes the current reconciliation state for the app's
// restart-recovery surface.
type PendingStatus struct {
	OrderCode string
	State     State

	// FinalizeError is set when a confirmed payment could not be submitted
	// to the order backend. State stays recoverable; no automatic retry.
	FinalizeError string

	// CancelError is set when pending state could not be cleared after an
	// accepted failure or cancellation.
	CancelError string
}

// Flow orchestrates the checkout: generate a code, persist intents, initiate
// payment, persist the pending marker, and hand observation over to the three
// racing channels behind the Gate.
type Flow struct {
	codes     *CodeFactory
	store     *IntentStore
	initiator *PaymentInitiator
	cart      CartStore
	gate      *Gate
	finalizer Finalizer
	pollers   PollerStarter

	now   func() time.Time
	newID func() string
}

// NewFlow wires the checkout flow. pollers may be nil in tests that drive
// observers manually.
func NewFlow(
	codes *CodeFactory,
	store *IntentStore,
	initiator *PaymentInitiator,
	cart CartStore,
	gate *Gate,
	finalizer Finalizer,
	pollers PollerStarter,
) *Flow {
	return &Flow{
		codes:     codes,
		store:     store,
		initiator: initiator,
		cart:      cart,
		gate:      gate,
		finalizer: finalizer,
		pollers:   pollers,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Begin starts a checkout. The write order is the crash-recovery invariant:
// intents are durably persisted first, the payment redirect is obtained and
// validated second, and only then is the pending marker written. A failure at
// any step leaves no dangling reconciliation.
func (f *Flow) Begin(ctx context.Context, req BeginRequest) (BeginResult, error) {
	if !req.PaymentMode.Valid() {
		return BeginResult{}, ErrInvalidPaymentMode
	}

	cartID, snapshot, err := f.cart.Lines(ctx, req.CustomerID)
	if err != nil {
		return BeginResult{}, errors.Wrap(err, "read cart")
	}
	if len(snapshot) == 0 {
		return BeginResult{}, ErrEmptyCart
	}

	total := snapshot.Subtotal().Add(req.DeliveryFee).Round(2)
	code := f.codes.Generate()

	intent := OrderIntent{
		OrderCode:              code,
		IntentID:               f.newID(),
		CustomerID:             req.CustomerID,
		PaymentMode:            req.PaymentMode,
		PaymentService:         req.PaymentService,
		PaymentAccountNumber:   req.PaymentAccountNumber,
		TotalAmount:            total,
		RecipientName:          req.RecipientName,
		RecipientContactNumber: req.RecipientContactNumber,
		OrderNote:              req.OrderNote,
		CreatedAt:              f.now(),
	}
	addr := DeliveryAddressIntent{
		OrderCode:              code,
		Address:                req.Address,
		RecipientName:          req.RecipientName,
		RecipientContactNumber: req.RecipientContactNumber,
		OrderNote:              req.OrderNote,
		GeoLocation:            req.GeoLocation,
	}

	if err := f.store.Persist(ctx, intent, addr); err != nil {
		return BeginResult{}, err
	}
	if err := f.store.CacheCart(ctx, cartID, snapshot); err != nil {
		return BeginResult{}, err
	}

	// Cash on delivery needs no provider and no reconciliation: finalize
	// straight away.
	if !req.PaymentMode.UsesRedirect() {
		if err := f.finalizer.Finalize(ctx, code); err != nil {
			return BeginResult{}, err
		}
		return BeginResult{OrderCode: code, TotalAmount: total, State: StateFinalized}, nil
	}

	redirect, err := f.initiator.Initiate(ctx, total, snapshot, code)
	if err != nil {
		// No marker was written, so nothing dangles.
		return BeginResult{}, err
	}

	if err := f.store.MarkPending(ctx, code); err != nil {
		return BeginResult{}, err
	}

	if f.pollers != nil {
		f.pollers.StartPolling(code, req.PaymentMode)
	}

	zctx.From(ctx).Info("Checkout awaiting payment",
		zap.String("order_code", code),
		zap.String("total", total.String()),
	)
	return BeginResult{
		OrderCode:   code,
		TotalAmount: total,
		State:       StateAwaitingPayment,
		RedirectURL: redirect,
	}, nil
}

// Recover restarts observation for a reconciliation that was outstanding when
// the process died. Call once on startup. Crash residue (marker without
// intents, or vice versa) reads as no pending intent and is left alone.
func (f *Flow) Recover(ctx context.Context) (string, bool, error) {
	code, ok, err := f.store.LoadPending(ctx)
	if err != nil || !ok {
		return "", false, err
	}

	intent, _, err := f.store.LoadIntents(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNoPendingIntent) {
			return "", false, nil
		}
		return "", false, err
	}

	if intent.PaymentMode.UsesRedirect() && f.pollers != nil {
		f.pollers.StartPolling(code, intent.PaymentMode)
	}

	zctx.From(ctx).Info("Recovered pending reconciliation", zap.String("order_code", code))
	return code, true, nil
}

// Pending reports the current reconciliation state, if any.
func (f *Flow) Pending(ctx context.Context) (PendingStatus, bool, error) {
	code, ok, err := f.store.LoadPending(ctx)
	if err != nil {
		return PendingStatus{}, false, err
	}
	if !ok {
		return PendingStatus{}, false, nil
	}

	status := PendingStatus{OrderCode: code, State: StateAwaitingPayment}

	if outcome, claimed := f.gate.Claimed(code); claimed {
		res, done := f.gate.Resolution(code)
		switch outcome {
		case OutcomeSuccess:
			status.State = StateFinalizing
			if done && res.Err != nil {
				status.FinalizeError = res.Err.Error()
			}
		default:
			status.State = StateCancelling
			if done && res.Err != nil {
				status.CancelError = res.Err.Error()
			}
		}
	}
	return status, true, nil
}
