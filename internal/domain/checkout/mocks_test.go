package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// --- Shared mock collaborators ---

type mockCartStore struct {
	mu       sync.Mutex
	cartID   string
	lines    CartSnapshot
	linesErr error
	cleared  int
	clearErr error
}

func (m *mockCartStore) Lines(_ context.Context, _ string) (string, CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linesErr != nil {
		return "", nil, m.linesErr
	}
	return m.cartID, m.lines, nil
}

func (m *mockCartStore) Clear(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared++
	return nil
}

func (m *mockCartStore) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

type mockOrderBackend struct {
	mu          sync.Mutex
	submissions []CheckoutSubmission
	addresses   []AddressSubmission
	submitErr   error
	addressErr  error
}

func (m *mockOrderBackend) SubmitOrderCheckout(_ context.Context, sub CheckoutSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submissions = append(m.submissions, sub)
	return nil
}

func (m *mockOrderBackend) RegisterDeliveryAddress(_ context.Context, sub AddressSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addressErr != nil {
		return m.addressErr
	}
	m.addresses = append(m.addresses, sub)
	return nil
}

func (m *mockOrderBackend) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

type mockPaymentBackend struct {
	redirect string
	initErr  error

	mu          sync.Mutex
	statuses    []string
	statusErr   error
	statusCalls int
}

func (m *mockPaymentBackend) InitiatePayment(_ context.Context, _ decimal.Decimal, _ CartSnapshot, _ string) (string, error) {
	if m.initErr != nil {
		return "", m.initErr
	}
	return m.redirect, nil
}

func (m *mockPaymentBackend) PaymentStatus(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return "", m.statusErr
	}
	m.statusCalls++
	if len(m.statuses) == 0 {
		return "1111", nil
	}
	status := m.statuses[0]
	if len(m.statuses) > 1 {
		m.statuses = m.statuses[1:]
	}
	return status, nil
}

type countingFinalizer struct {
	calls atomic.Int32
	err   error
}

func (f *countingFinalizer) Finalize(_ context.Context, _ string) error {
	f.calls.Add(1)
	return f.err
}

type countingCanceller struct {
	calls atomic.Int32
	err   error
}

func (c *countingCanceller) Cancel(_ context.Context, _ string) error {
	c.calls.Add(1)
	return c.err
}

type recordingPollers struct {
	mu      sync.Mutex
	started []string
}

func (p *recordingPollers) StartPolling(orderCode string, _ PaymentMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, orderCode)
}

func (p *recordingPollers) startedCodes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.started...)
}

// testLines builds a two-line cart totaling 30.00.
func testLines() CartSnapshot {
	return CartSnapshot{
		{CartID: "c1", ProductID: "p1", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		{CartID: "c1", ProductID: "p2", Price: decimal.RequireFromString("10.00"), Quantity: 1},
	}
}
