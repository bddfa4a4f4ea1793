// Package handler exposes the checkout core over HTTP to the mobile app:
// begin checkout, ingest browser navigation events, ingest app lifecycle
// transitions, and query pending reconciliation state.
package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/appmart/checkout-core/internal/domain/checkout"
	"github.com/appmart/checkout-core/internal/observer"
)

// maxBodySize caps request bodies; checkout payloads are small.
const maxBodySize = 1 << 20

// Handler wires the HTTP surface to the checkout flow and observers.
type Handler struct {
	flow    *checkout.Flow
	surface *observer.Surface
	resume  *observer.ResumeWatcher
}

// New constructs a Handler.
func New(flow *checkout.Flow, surface *observer.Surface, resume *observer.ResumeWatcher) *Handler {
	return &Handler{flow: flow, surface: surface, resume: resume}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.beginCheckout)
	mux.HandleFunc("GET /api/checkout/pending", h.pendingCheckout)
	mux.HandleFunc("POST /api/checkout/{code}/navigation", h.navigationEvent)
	mux.HandleFunc("POST /api/lifecycle", h.lifecycleEvent)
}

// readBody reads at most maxBodySize bytes of the request body.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

// writeJSON writes an encoded jx object with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeInternalError logs err and hides the detail from the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Handler error",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
