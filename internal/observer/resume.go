package observer

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/appmart/checkout-core/internal/domain/checkout"
)

// App lifecycle states reported by the client.
const (
	LifecycleActive     = "active"
	LifecycleBackground = "background"
)

// ResumeWatcher performs one immediate status check when the app transitions
// from background to active while a payment is outstanding.
//
// When the customer confirms a payment in an external banking or
// mobile-money app, the embedded browser and the poller's delivery may both
// be suspended by the OS; the foreground resume is the only channel
// guaranteed to fire.
type ResumeWatcher struct {
	gate     *checkout.Gate
	store    *checkout.IntentStore
	payments checkout.PaymentBackend

	mu   sync.Mutex
	last string
}

// NewResumeWatcher wires the resume observer. The app is assumed to start in
// the foreground.
func NewResumeWatcher(gate *checkout.Gate, store *checkout.IntentStore, payments checkout.PaymentBackend) *ResumeWatcher {
	return &ResumeWatcher{
		gate:     gate,
		store:    store,
		payments: payments,
		last:     LifecycleActive,
	}
}

// Transition records a lifecycle state change. Only a background→active
// transition with a pending marker triggers a status check; every other
// transition is a no-op.
func (w *ResumeWatcher) Transition(ctx context.Context, state string) error {
	w.mu.Lock()
	prev := w.last
	w.last = state
	w.mu.Unlock()

	if prev != LifecycleBackground || state != LifecycleActive {
		return nil
	}
	return w.checkPending(ctx)
}

func (w *ResumeWatcher) checkPending(ctx context.Context) error {
	orderCode, ok, err := w.store.LoadPending(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	lg := zctx.From(ctx).With(zap.String("order_code", orderCode))

	status, err := w.payments.PaymentStatus(ctx, orderCode)
	if err != nil {
		// Same policy as the poller: one failed check is not fatal, a later
		// resume or poll retries it.
		lg.Debug("Resume status query failed", zap.Error(err))
		return nil
	}

	outcome := checkout.ClassifyStatusCode(status)
	if !outcome.Terminal() {
		return nil
	}

	lg.Info("Resume check observed terminal outcome", zap.Stringer("outcome", outcome))
	w.gate.Submit(ctx, checkout.Report{
		OrderCode: orderCode,
		Outcome:   outcome,
		Source:    checkout.SourceResume,
	})
	return nil
}
