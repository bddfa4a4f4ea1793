package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appmart/checkout-core/internal/domain/checkout"
	"github.com/appmart/checkout-core/internal/kv"
	"github.com/appmart/checkout-core/internal/observer"
)

type stubCart struct {
	mu      sync.Mutex
	lines   checkout.CartSnapshot
	cleared int
}

func (s *stubCart) Lines(_ context.Context, _ string) (string, checkout.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "cart-1", s.lines, nil
}

func (s *stubCart) Clear(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return nil
}

type stubOrders struct {
	mu      sync.Mutex
	submits int
}

func (s *stubOrders) SubmitOrderCheckout(_ context.Context, _ checkout.CheckoutSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	return nil
}

func (s *stubOrders) RegisterDeliveryAddress(_ context.Context, _ checkout.AddressSubmission) error {
	return nil
}

func (s *stubOrders) submitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

type stubPayments struct {
	mu       sync.Mutex
	redirect string
	status   string
}

func (s *stubPayments) InitiatePayment(_ context.Context, _ decimal.Decimal, _ checkout.CartSnapshot, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirect, nil
}

func (s *stubPayments) PaymentStatus(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

type testAPI struct {
	server   *httptest.Server
	gate     *checkout.Gate
	store    *checkout.IntentStore
	cart     *stubCart
	orders   *stubOrders
	payments *stubPayments
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := checkout.NewIntentStore(kv.NewMemory())
	cart := &stubCart{lines: checkout.CartSnapshot{
		{CartID: "cart-1", ProductID: "p1", Price: decimal.RequireFromString("30.00"), Quantity: 1},
	}}
	orders := &stubOrders{}
	payments := &stubPayments{redirect: "https://pay.example.com/session/abc", status: "1111"}

	finalizer := checkout.NewOrderFinalizer(store, orders, cart)
	gate := checkout.NewGate(finalizer, checkout.NewCancellationHandler(store))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = gate.Run(ctx) }()

	flow := checkout.NewFlow(
		checkout.NewCodeFactory(),
		store,
		checkout.NewPaymentInitiator(payments),
		cart,
		gate,
		finalizer,
		nil,
	)
	surface := observer.NewSurface(gate, store)
	resume := observer.NewResumeWatcher(gate, store, payments)

	mux := http.NewServeMux()
	New(flow, surface, resume).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testAPI{server: srv, gate: gate, store: store, cart: cart, orders: orders, payments: payments}
}

func (a *testAPI) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(a.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (a *testAPI) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(a.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

const validCheckoutBody = `{
	"customerId": "cust-1",
	"paymentMode": "online-payment",
	"paymentService": "wallet",
	"paymentAccountNumber": "0771234567",
	"recipientName": "Amal Perera",
	"recipientContactNumber": "0771234567",
	"address": "12 Galle Road",
	"deliveryFee": "2.50",
	"geoLocation": {"latitude": 6.9271, "longitude": 79.8612}
}`

func TestAPI_BeginCheckout_Online(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Regexp(t, `^APP-\d{3}-\d{3}$`, body["orderCode"])
	assert.Equal(t, "32.5", body["totalAmount"])
	assert.Equal(t, "awaiting-payment", body["state"])
	assert.Equal(t, "https://pay.example.com/session/abc", body["redirectUrl"])
}

func TestAPI_BeginCheckout_CashOnDelivery(t *testing.T) {
	api := newTestAPI(t)

	body := strings.Replace(validCheckoutBody, "online-payment", "cash-on-delivery", 1)
	resp, decoded := api.post(t, "/api/checkout", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "finalized", decoded["state"])
	assert.NotContains(t, decoded, "redirectUrl")
	assert.Equal(t, 1, api.orders.submitCount())
}

func TestAPI_BeginCheckout_MissingFields(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.post(t, "/api/checkout", `{"paymentMode": "online-payment"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "customerId")
}

func TestAPI_BeginCheckout_MissingPaymentService(t *testing.T) {
	api := newTestAPI(t)

	body := strings.Replace(validCheckoutBody, `"paymentService": "wallet",`, "", 1)
	resp, decoded := api.post(t, "/api/checkout", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["message"], "paymentService")
}

func TestAPI_BeginCheckout_UnknownMode(t *testing.T) {
	api := newTestAPI(t)

	body := strings.Replace(validCheckoutBody, "online-payment", "store-credit", 1)
	resp, decoded := api.post(t, "/api/checkout", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["message"], "payment mode")
}

func TestAPI_BeginCheckout_EmptyCart(t *testing.T) {
	api := newTestAPI(t)
	api.cart.mu.Lock()
	api.cart.lines = nil
	api.cart.mu.Unlock()

	resp, decoded := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decoded["message"], "cart is empty")
}

func TestAPI_BeginCheckout_ScriptRedirect(t *testing.T) {
	api := newTestAPI(t)
	api.payments.mu.Lock()
	api.payments.redirect = "javascript:alert(1)"
	api.payments.mu.Unlock()

	resp, decoded := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decoded["message"], "redirect url")
}

func TestAPI_BeginCheckout_MalformedJSON(t *testing.T) {
	api := newTestAPI(t)

	resp, decoded := api.post(t, "/api/checkout", `{"customerId": `)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["message"], "malformed")
}

func TestAPI_PendingCheckout(t *testing.T) {
	api := newTestAPI(t)

	resp, decoded := api.get(t, "/api/checkout/pending")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decoded["pending"])

	beginResp, beginBody := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusCreated, beginResp.StatusCode)

	resp, decoded = api.get(t, "/api/checkout/pending")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["pending"])
	assert.Equal(t, beginBody["orderCode"], decoded["orderCode"])
	assert.Equal(t, "awaiting-payment", decoded["state"])
}

func TestAPI_NavigationEvent_Success(t *testing.T) {
	api := newTestAPI(t)

	beginResp, beginBody := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusCreated, beginResp.StatusCode)
	code := beginBody["orderCode"].(string)

	resp, decoded := api.post(t, "/api/checkout/"+code+"/navigation",
		`{"url": "https://pay.example.com/return/order-success"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "success", decoded["outcome"])

	require.Eventually(t, func() bool {
		return api.orders.submitCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAPI_NavigationEvent_Indeterminate(t *testing.T) {
	api := newTestAPI(t)

	beginResp, beginBody := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusCreated, beginResp.StatusCode)
	code := beginBody["orderCode"].(string)

	resp, decoded := api.post(t, "/api/checkout/"+code+"/navigation",
		`{"url": "https://bank.example.com/3ds-challenge"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "pending", decoded["outcome"])
	assert.False(t, api.gate.Resolved(code))
}

func TestAPI_NavigationEvent_MissingURL(t *testing.T) {
	api := newTestAPI(t)

	resp, decoded := api.post(t, "/api/checkout/APP-001-002/navigation", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["message"], "url")
}

func TestAPI_LifecycleEvent_ResumeFinalizes(t *testing.T) {
	api := newTestAPI(t)
	api.payments.mu.Lock()
	api.payments.status = "0000"
	api.payments.mu.Unlock()

	beginResp, _ := api.post(t, "/api/checkout", validCheckoutBody)
	require.Equal(t, http.StatusCreated, beginResp.StatusCode)

	resp, _ := api.post(t, "/api/lifecycle", `{"state": "background"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = api.post(t, "/api/lifecycle", `{"state": "active"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return api.orders.submitCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAPI_LifecycleEvent_InvalidState(t *testing.T) {
	api := newTestAPI(t)

	resp, decoded := api.post(t, "/api/lifecycle", `{"state": "suspended"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["message"], "active or background")
}
