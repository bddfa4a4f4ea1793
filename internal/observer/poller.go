package observer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/appmart/checkout-core/internal/domain/checkout"
)

// DefaultPollInterval is the fixed delay between status queries while a
// payment is outstanding.
const DefaultPollInterval = 2 * time.Second

// pollEntry tracks one running poller goroutine.
type pollEntry struct {
	cancel context.CancelFunc

	// inFlight guards against overlapping status queries: a slow response
	// must not trigger a second concurrent query for the same order.
	inFlight atomic.Bool
}

// PollerSet runs one status-polling goroutine per outstanding order. Each
// poller fires its first query immediately, then every interval, and stops
// when the gate resolves the order, the pending marker disappears, the
// payment mode is no longer redirect-based, or the set's context is
// cancelled. No overall timeout is imposed: the poller lives as long as the
// marker does.
type PollerSet struct {
	ctx      context.Context
	gate     *checkout.Gate
	store    *checkout.IntentStore
	payments checkout.PaymentBackend
	interval time.Duration

	mu      sync.Mutex
	running map[string]*pollEntry
	wg      sync.WaitGroup
}

var _ checkout.PollerStarter = (*PollerSet)(nil)

// NewPollerSet creates a PollerSet whose pollers live within ctx, which
// should be the application lifetime context, never a request context.
func NewPollerSet(
	ctx context.Context,
	gate *checkout.Gate,
	store *checkout.IntentStore,
	payments checkout.PaymentBackend,
	interval time.Duration,
) *PollerSet {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollerSet{
		ctx:      ctx,
		gate:     gate,
		store:    store,
		payments: payments,
		interval: interval,
		running:  make(map[string]*pollEntry),
	}
}

// StartPolling spawns the poller for orderCode. Non-redirect modes and codes
// that already have a running poller are ignored.
func (s *PollerSet) StartPolling(orderCode string, mode checkout.PaymentMode) {
	if !mode.UsesRedirect() {
		return
	}

	s.mu.Lock()
	if _, ok := s.running[orderCode]; ok {
		s.mu.Unlock()
		return
	}
	pctx, cancel := context.WithCancel(s.ctx)
	entry := &pollEntry{cancel: cancel}
	s.running[orderCode] = entry
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(pctx, entry, orderCode)
}

// Stop cancels the poller for orderCode, if one is running.
func (s *PollerSet) Stop(orderCode string) {
	s.mu.Lock()
	entry, ok := s.running[orderCode]
	s.mu.Unlock()

	if ok {
		entry.cancel()
	}
}

// Wait blocks until every poller goroutine has exited. Used during shutdown.
func (s *PollerSet) Wait() {
	s.wg.Wait()
}

// Polling reports whether a poller is currently running for orderCode.
func (s *PollerSet) Polling(orderCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.running[orderCode]
	return ok
}

func (s *PollerSet) run(ctx context.Context, entry *pollEntry, orderCode string) {
	defer s.wg.Done()
	defer s.remove(orderCode)
	defer entry.cancel()

	lg := zctx.From(ctx).With(zap.String("order_code", orderCode))
	lg.Debug("Status poller started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First query fires immediately, not after one interval.
	for {
		if done := s.checkOnce(ctx, lg, entry, orderCode); done {
			lg.Debug("Status poller stopped")
			return
		}
		select {
		case <-ctx.Done():
			lg.Debug("Status poller cancelled")
			return
		case <-ticker.C:
		}
	}
}

// checkOnce performs one status query round. It returns true when polling
// should stop.
func (s *PollerSet) checkOnce(ctx context.Context, lg *zap.Logger, entry *pollEntry, orderCode string) bool {
	if s.gate.Resolved(orderCode) {
		return true
	}

	intent, _, err := s.store.LoadIntents(ctx, orderCode)
	if err != nil {
		if errors.Is(err, checkout.ErrNoPendingIntent) {
			// Intents gone or replaced by a newer checkout.
			return true
		}
		lg.Debug("Pending intent read failed", zap.Error(err))
		return false
	}
	if !intent.PaymentMode.UsesRedirect() {
		return true
	}

	pending, err := s.store.HasMarker(ctx, orderCode)
	if err != nil {
		lg.Debug("Pending marker read failed", zap.Error(err))
		return false
	}
	if !pending {
		return true
	}

	if !entry.inFlight.CompareAndSwap(false, true) {
		// Previous query still running; skip this round.
		return false
	}
	defer entry.inFlight.Store(false)

	status, err := s.payments.PaymentStatus(ctx, orderCode)
	if err != nil {
		// A single failed status query is not fatal: the next interval
		// retries the same check. Nothing is surfaced to the user.
		lg.Debug("Status query failed", zap.Error(err))
		return false
	}

	outcome := checkout.ClassifyStatusCode(status)
	if !outcome.Terminal() {
		return false
	}

	s.gate.Submit(ctx, checkout.Report{
		OrderCode: orderCode,
		Outcome:   outcome,
		Source:    checkout.SourcePoller,
	})
	return true
}

func (s *PollerSet) remove(orderCode string) {
	s.mu.Lock()
	delete(s.running, orderCode)
	s.mu.Unlock()
}
