// Package observer implements the three independent channels that can learn
// a payment's terminal outcome: the embedded browser's navigation events, the
// fixed-interval status poller, and the foreground-resume check. All three
// feed the reconciliation gate, which alone decides who wins.
package observer

import (
	"context"
	"strings"

	"github.com/appmart/checkout-core/internal/domain/checkout"
)

// Navigation URL markers. Classification is a plain substring match over the
// lowercased destination URL, mirroring the provider's return-page routes.
var (
	successMarkers = []string{"order-success", "payment-success", "success=true"}

	failedMarkers    = []string{"payment-failed", "failed=true"}
	cancelledMarkers = []string{"order-cancelled", "cancelled=true"}
)

// ClassifyNavigation maps a navigation-completed URL to an outcome. Anything
// that matches no marker is indeterminate (OutcomePending): intermediate
// provider pages, bank login screens, 3DS challenges.
func ClassifyNavigation(rawURL string) checkout.Outcome {
	u := strings.ToLower(rawURL)

	for _, m := range successMarkers {
		if strings.Contains(u, m) {
			return checkout.OutcomeSuccess
		}
	}
	for _, m := range cancelledMarkers {
		if strings.Contains(u, m) {
			return checkout.OutcomeCancelled
		}
	}
	for _, m := range failedMarkers {
		if strings.Contains(u, m) {
			return checkout.OutcomeFailed
		}
	}
	return checkout.OutcomePending
}

// Surface receives navigation-completed events from the app's embedded
// browser and forwards terminal classifications to the gate.
//
// It deliberately performs no deduplication: the same classified URL may be
// revisited by several navigation events, and the gate is the only
// deduplication authority.
type Surface struct {
	gate  *checkout.Gate
	store *checkout.IntentStore
}

// NewSurface wires the navigation observer.
func NewSurface(gate *checkout.Gate, store *checkout.IntentStore) *Surface {
	return &Surface{gate: gate, store: store}
}

// Observe classifies one navigation destination for the given order code and
// submits terminal outcomes to the gate. Without a pending marker for the
// code it is a no-op. The classified outcome is returned for logging.
func (s *Surface) Observe(ctx context.Context, orderCode, rawURL string) (checkout.Outcome, error) {
	outcome := ClassifyNavigation(rawURL)
	if !outcome.Terminal() {
		return outcome, nil
	}

	pending, err := s.store.HasMarker(ctx, orderCode)
	if err != nil {
		return outcome, err
	}
	if !pending {
		return outcome, nil
	}

	s.gate.Submit(ctx, checkout.Report{
		OrderCode: orderCode,
		Outcome:   outcome,
		Source:    checkout.SourceSurface,
	})
	return outcome, nil
}
