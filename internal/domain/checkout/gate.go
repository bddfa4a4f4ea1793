package checkout

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Source identifies which observer channel produced a report.
type Source uint8

const (
	SourceSurface Source = iota // embedded browser navigation
	SourcePoller                // fixed-interval status poll
	SourceResume                // foreground-resume check
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceSurface:
		return "surface"
	case SourcePoller:
		return "poller"
	case SourceResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Report is one terminal outcome observation for an order code.
type Report struct {
	OrderCode string
	Outcome   Outcome
	Source    Source
}

// Resolution is the recorded result of processing an accepted report.
type Resolution struct {
	Outcome Outcome
	Err     error
}

// Finalizer completes an order after an accepted success.
type Finalizer interface {
	Finalize(ctx context.Context, orderCode string) error
}

// Canceller clears pending state after an accepted failure or cancellation.
type Canceller interface {
	Cancel(ctx context.Context, orderCode string) error
}

// Gate is the single authority that accepts the first terminal outcome per
// order code and discards every later or duplicate report, whatever its
// source or outcome.
//
// The claim is a synchronous in-memory check-and-insert under a mutex,
// performed before any I/O. Re-reading durable state after I/O would let two
// racing reports both observe "still pending"; the claim closes that window.
// Accepted reports then flow through a channel to the single consumer
// goroutine (Run), so exactly one writer ever touches the finalizer,
// canceller, and durable state.
type Gate struct {
	finalizer Finalizer
	canceller Canceller

	mu       sync.Mutex
	claimed  map[string]Outcome
	resolved map[string]Resolution

	reports chan Report
}

// reportQueueSize bounds the accepted-report queue. Claims are released when
// a send does not complete, so a full queue never strands an order.
const reportQueueSize = 16

// NewGate creates a Gate routing accepted successes to fin and accepted
// failures/cancellations to can. Run must be started for reports to be
// processed.
func NewGate(fin Finalizer, can Canceller) *Gate {
	return &Gate{
		finalizer: fin,
		canceller: can,
		claimed:   make(map[string]Outcome),
		resolved:  make(map[string]Resolution),
		reports:   make(chan Report, reportQueueSize),
	}
}

// Submit offers a terminal outcome for an order code. It returns true when
// this report won the claim and was queued for processing, false when the
// code was already claimed or the outcome is not terminal. Safe to call from
// any goroutine; duplicate and late calls are no-ops by design.
//
// A claim only stands once the report is queued. If ctx is cancelled before
// the send completes (a disconnecting client, shutdown), the claim is
// released so a later report from any channel can still win.
func (g *Gate) Submit(ctx context.Context, r Report) bool {
	if !r.Outcome.Terminal() {
		return false
	}

	g.mu.Lock()
	if _, taken := g.claimed[r.OrderCode]; taken {
		g.mu.Unlock()
		return false
	}
	g.claimed[r.OrderCode] = r.Outcome
	g.mu.Unlock()

	select {
	case g.reports <- r:
		return true
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.claimed, r.OrderCode)
		g.mu.Unlock()
		return false
	}
}

// Resolved reports whether a terminal outcome has been accepted for code.
// Observers use it as a stop condition.
func (g *Gate) Resolved(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.claimed[code]
	return ok
}

// Claimed returns the outcome that won the claim for code, if any. The
// consumer may not have processed it yet; see Resolution for the final
// result.
func (g *Gate) Claimed(code string) (Outcome, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	o, ok := g.claimed[code]
	return o, ok
}

// Resolution returns the processing result for an accepted code, once the
// consumer has handled it.
func (g *Gate) Resolution(code string) (Resolution, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, ok := g.resolved[code]
	return res, ok
}

// Run consumes accepted reports until ctx is cancelled. It is the only
// goroutine that invokes the finalizer and canceller.
func (g *Gate) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-g.reports:
			g.process(ctx, lg, r)
		}
	}
}

func (g *Gate) process(ctx context.Context, lg *zap.Logger, r Report) {
	lg.Info("Reconciliation accepted",
		zap.String("order_code", r.OrderCode),
		zap.Stringer("outcome", r.Outcome),
		zap.Stringer("source", r.Source),
	)

	var err error
	switch r.Outcome {
	case OutcomeSuccess:
		err = g.finalizer.Finalize(ctx, r.OrderCode)
	case OutcomeFailed, OutcomeCancelled:
		err = g.canceller.Cancel(ctx, r.OrderCode)
	}

	if err != nil {
		lg.Error("Reconciliation handler failed",
			zap.String("order_code", r.OrderCode),
			zap.Stringer("outcome", r.Outcome),
			zap.Error(err),
		)
	}

	g.mu.Lock()
	g.resolved[r.OrderCode] = Resolution{Outcome: r.Outcome, Err: err}
	g.mu.Unlock()
}
