package checkout

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/appmart/checkout-core/internal/kv"
)

// Fixed keys in the durable store. The marker key is written last and removed
// first: a crash can leave intents without a marker (ignored by readers) but
// never a marker pointing at state that a later write would corrupt.
const (
	keyPendingOrderCode = "checkout:pending-order-code"
	keyOrderIntent      = "checkout:order-intent"
	keyAddressIntent    = "checkout:address-intent"
	keyCartID           = "checkout:cart-id"
	keyCartSnapshot     = "checkout:cart-snapshot"
)

// ErrNoPendingIntent is returned when no usable pending intent exists for the
// requested order code. A marker without intents (crash residue) also reports
// this: readers must treat that degraded state as "no pending intent".
var ErrNoPendingIntent = errors.New("checkout: no pending intent")

// IntentStore durably persists the checkout payload, address payload, and the
// pending-payment marker on top of the key-value collaborator.
type IntentStore struct {
	kv kv.Store
}

// NewIntentStore wraps the given key-value store.
func NewIntentStore(store kv.Store) *IntentStore {
	return &IntentStore{kv: store}
}

// Persist writes both intents under their fixed keys, overwriting any
// previous pending intent. It must complete before a redirect is issued; no
// marker is written here.
func (s *IntentStore) Persist(ctx context.Context, intent OrderIntent, addr DeliveryAddressIntent) error {
	intentJSON, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "marshal order intent")
	}
	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return errors.Wrap(err, "marshal address intent")
	}

	if err := s.kv.Set(ctx, keyOrderIntent, string(intentJSON)); err != nil {
		return errors.Wrap(err, "persist order intent")
	}
	if err := s.kv.Set(ctx, keyAddressIntent, string(addrJSON)); err != nil {
		return errors.Wrap(err, "persist address intent")
	}
	return nil
}

// CacheCart stores the cart identifier and snapshot read at checkout time so
// a finalize after a process restart can still resubmit the same lines.
func (s *IntentStore) CacheCart(ctx context.Context, cartID string, snapshot CartSnapshot) error {
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal cart snapshot")
	}
	if err := s.kv.Set(ctx, keyCartID, cartID); err != nil {
		return errors.Wrap(err, "cache cart id")
	}
	if err := s.kv.Set(ctx, keyCartSnapshot, string(snapJSON)); err != nil {
		return errors.Wrap(err, "cache cart snapshot")
	}
	return nil
}

// LoadCartSnapshot returns the cached cart snapshot, or ErrNoPendingIntent
// when none is cached.
func (s *IntentStore) LoadCartSnapshot(ctx context.Context) (CartSnapshot, error) {
	raw, err := s.kv.Get(ctx, keyCartSnapshot)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNoPendingIntent
		}
		return nil, errors.Wrap(err, "load cart snapshot")
	}

	var snapshot CartSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart snapshot")
	}
	return snapshot, nil
}

// MarkPending writes the pending-payment marker for code. Its existence is
// the sole signal that a reconciliation is outstanding. Callers must have
// persisted the intents first.
func (s *IntentStore) MarkPending(ctx context.Context, code string) error {
	if err := s.kv.Set(ctx, keyPendingOrderCode, code); err != nil {
		return errors.Wrap(err, "persist pending marker")
	}
	return nil
}

// HasMarker reports whether the pending marker exists for exactly this code.
func (s *IntentStore) HasMarker(ctx context.Context, code string) (bool, error) {
	raw, err := s.kv.Get(ctx, keyPendingOrderCode)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "read pending marker")
	}
	return raw == code, nil
}

// LoadPending returns the order code with an outstanding reconciliation.
// A marker whose intents are missing or belong to a different code is crash
// residue and reported as no pending intent.
func (s *IntentStore) LoadPending(ctx context.Context) (string, bool, error) {
	code, err := s.kv.Get(ctx, keyPendingOrderCode)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "read pending marker")
	}

	if _, _, err := s.LoadIntents(ctx, code); err != nil {
		if errors.Is(err, ErrNoPendingIntent) {
			return "", false, nil
		}
		return "", false, err
	}
	return code, true, nil
}

// LoadIntents returns the persisted intents for code. It returns
// ErrNoPendingIntent when either intent is missing or was written for a
// different order code.
func (s *IntentStore) LoadIntents(ctx context.Context, code string) (OrderIntent, DeliveryAddressIntent, error) {
	var (
		intent OrderIntent
		addr   DeliveryAddressIntent
	)

	rawIntent, err := s.kv.Get(ctx, keyOrderIntent)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return intent, addr, ErrNoPendingIntent
		}
		return intent, addr, errors.Wrap(err, "load order intent")
	}
	if err := json.Unmarshal([]byte(rawIntent), &intent); err != nil {
		return intent, addr, errors.Wrap(err, "unmarshal order intent")
	}

	rawAddr, err := s.kv.Get(ctx, keyAddressIntent)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return intent, addr, ErrNoPendingIntent
		}
		return intent, addr, errors.Wrap(err, "load address intent")
	}
	if err := json.Unmarshal([]byte(rawAddr), &addr); err != nil {
		return intent, addr, errors.Wrap(err, "unmarshal address intent")
	}

	if intent.OrderCode != code || addr.OrderCode != code {
		return intent, addr, ErrNoPendingIntent
	}
	return intent, addr, nil
}

// Clear removes the marker, both intents, and the cached cart identifier and
// snapshot as one logical unit. The marker goes first so that a crash
// mid-clear leaves only marker-less residue, which every reader ignores.
func (s *IntentStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, keyPendingOrderCode); err != nil {
		return errors.Wrap(err, "remove pending marker")
	}
	if err := s.kv.Remove(ctx, keyOrderIntent, keyAddressIntent, keyCartID, keyCartSnapshot); err != nil {
		return errors.Wrap(err, "remove intents")
	}
	return nil
}
