package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/appmart/checkout-core/internal/domain/checkout"
	"github.com/appmart/checkout-core/internal/kv"
)

// statusBackend is a scripted checkout.PaymentBackend: it replays statuses in
// order, repeating the last one, and counts queries.
type statusBackend struct {
	mu       sync.Mutex
	statuses []string
	err      error
	calls    int

	// delay stalls each status query, for overlap tests.
	delay time.Duration
}

func (b *statusBackend) InitiatePayment(_ context.Context, _ decimal.Decimal, _ checkout.CartSnapshot, _ string) (string, error) {
	return "https://pay.example.com/session/abc", nil
}

func (b *statusBackend) PaymentStatus(_ context.Context, _ string) (string, error) {
	b.mu.Lock()
	b.calls++
	status := "1111"
	if len(b.statuses) > 0 {
		status = b.statuses[0]
		if len(b.statuses) > 1 {
			b.statuses = b.statuses[1:]
		}
	}
	err := b.err
	delay := b.delay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func (b *statusBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type orderBackendStub struct {
	mu      sync.Mutex
	submits int
}

func (o *orderBackendStub) SubmitOrderCheckout(_ context.Context, _ checkout.CheckoutSubmission) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submits++
	return nil
}

func (o *orderBackendStub) RegisterDeliveryAddress(_ context.Context, _ checkout.AddressSubmission) error {
	return nil
}

func (o *orderBackendStub) submitCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.submits
}

type cartStoreStub struct {
	mu      sync.Mutex
	cleared int
}

func (c *cartStoreStub) Lines(_ context.Context, _ string) (string, checkout.CartSnapshot, error) {
	return "cart-1", nil, nil
}

func (c *cartStoreStub) Clear(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
	return nil
}

func (c *cartStoreStub) clearCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared
}

// fixture wires a real gate, finalizer, and intent store over an in-memory
// key-value store, with one pending online-payment order.
type fixture struct {
	store    *checkout.IntentStore
	gate     *checkout.Gate
	orders   *orderBackendStub
	cart     *cartStoreStub
	payments *statusBackend
}

func newFixture(t *testing.T, code string) *fixture {
	t.Helper()
	ctx := context.Background()

	store := checkout.NewIntentStore(kv.NewMemory())
	orders := &orderBackendStub{}
	cart := &cartStoreStub{}
	payments := &statusBackend{}

	finalizer := checkout.NewOrderFinalizer(store, orders, cart)
	gate := checkout.NewGate(finalizer, checkout.NewCancellationHandler(store))

	require.NoError(t, store.Persist(ctx,
		checkout.OrderIntent{
			OrderCode:   code,
			IntentID:    "intent-1",
			CustomerID:  "cust-1",
			PaymentMode: checkout.ModeOnlinePayment,
			TotalAmount: decimal.RequireFromString("32.50"),
		},
		checkout.DeliveryAddressIntent{OrderCode: code, Address: "12 Galle Road"},
	))
	require.NoError(t, store.CacheCart(ctx, "cart-1", checkout.CartSnapshot{
		{CartID: "cart-1", ProductID: "p1", Price: decimal.RequireFromString("30.00"), Quantity: 1},
	}))
	require.NoError(t, store.MarkPending(ctx, code))

	return &fixture{store: store, gate: gate, orders: orders, cart: cart, payments: payments}
}

func (f *fixture) startGate(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = f.gate.Run(ctx) }()
}
