package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// FinalizationError reports a remote failure after a confirmed payment.
// Cart and intent state are deliberately left in place so a later
// user-initiated retry still has the data to resubmit.
type FinalizationError struct {
	Stage string // "submit-order" or "register-address"
	Err   error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("finalization failed at %s: %v", e.Stage, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// OrderFinalizer completes an order whose payment was confirmed: it submits
// the checkout and address to the order backend, clears the cart
// collaborator, and clears intent storage. Exactly-once invocation is
// guaranteed upstream by the Gate, not here.
type OrderFinalizer struct {
	store  *IntentStore
	orders OrderBackend
	cart   CartStore
}

var _ Finalizer = (*OrderFinalizer)(nil)

// NewOrderFinalizer wires the finalizer's collaborators.
func NewOrderFinalizer(store *IntentStore, orders OrderBackend, cart CartStore) *OrderFinalizer {
	return &OrderFinalizer{store: store, orders: orders, cart: cart}
}

// Finalize submits the persisted intents and clears cart and intent state.
// On a remote failure nothing is cleared and a FinalizationError is returned;
// there is no automatic retry.
func (f *OrderFinalizer) Finalize(ctx context.Context, orderCode string) error {
	intent, addr, err := f.store.LoadIntents(ctx, orderCode)
	if err != nil {
		if errors.Is(err, ErrNoPendingIntent) {
			// Crash residue or an already-cleared order: nothing to do.
			zctx.From(ctx).Warn("Finalize without pending intent", zap.String("order_code", orderCode))
			return nil
		}
		return errors.Wrap(err, "load intents")
	}

	snapshot, err := f.store.LoadCartSnapshot(ctx)
	if err != nil && !errors.Is(err, ErrNoPendingIntent) {
		return errors.Wrap(err, "load cart snapshot")
	}

	if err := f.orders.SubmitOrderCheckout(ctx, CheckoutSubmission{
		OrderCode:            intent.OrderCode,
		CustomerID:           intent.CustomerID,
		PaymentMode:          intent.PaymentMode,
		PaymentService:       intent.PaymentService,
		PaymentAccountNumber: intent.PaymentAccountNumber,
		TotalAmount:          intent.TotalAmount,
		Lines:                snapshot,
	}); err != nil {
		return &FinalizationError{Stage: "submit-order", Err: err}
	}

	if err := f.orders.RegisterDeliveryAddress(ctx, AddressSubmission{
		OrderCode:              addr.OrderCode,
		Address:                addr.Address,
		RecipientName:          addr.RecipientName,
		RecipientContactNumber: addr.RecipientContactNumber,
		OrderNote:              addr.OrderNote,
		GeoLocation:            addr.GeoLocation,
	}); err != nil {
		return &FinalizationError{Stage: "register-address", Err: err}
	}

	if err := f.cart.Clear(ctx, intent.CustomerID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	if err := f.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear intent storage")
	}

	zctx.From(ctx).Info("Order finalized", zap.String("order_code", orderCode))
	return nil
}

// CancellationHandler clears pending state after an accepted failure or
// cancellation. The cart collaborator is not touched: item selections must
// survive a failed payment attempt.
type CancellationHandler struct {
	store *IntentStore
}

var _ Canceller = (*CancellationHandler)(nil)

// NewCancellationHandler wraps the intent store.
func NewCancellationHandler(store *IntentStore) *CancellationHandler {
	return &CancellationHandler{store: store}
}

// Cancel removes the marker and intents as one unit.
func (c *CancellationHandler) Cancel(ctx context.Context, orderCode string) error {
	if err := c.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear pending state")
	}
	zctx.From(ctx).Info("Order cancelled", zap.String("order_code", orderCode))
	return nil
}
