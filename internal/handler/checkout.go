package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/appmart/checkout-core/internal/domain/checkout"
	"github.com/appmart/checkout-core/internal/observer"
)

// beginRequest mirrors checkout.BeginRequest on the wire.
type beginRequest struct {
	CustomerID             string
	PaymentMode            string
	PaymentService         string
	PaymentAccountNumber   string
	RecipientName          string
	RecipientContactNumber string
	OrderNote              string
	Address                string
	Latitude               float64
	Longitude              float64
	DeliveryFee            decimal.Decimal
}

func decodeBeginRequest(data []byte) (beginRequest, error) {
	var req beginRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customerId":
			v, err := d.Str()
			req.CustomerID = v
			return err
		case "paymentMode":
			v, err := d.Str()
			req.PaymentMode = v
			return err
		case "paymentService":
			v, err := d.Str()
			req.PaymentService = v
			return err
		case "paymentAccountNumber":
			v, err := d.Str()
			req.PaymentAccountNumber = v
			return err
		case "recipientName":
			v, err := d.Str()
			req.RecipientName = v
			return err
		case "recipientContactNumber":
			v, err := d.Str()
			req.RecipientContactNumber = v
			return err
		case "orderNote":
			v, err := d.Str()
			req.OrderNote = v
			return err
		case "address":
			v, err := d.Str()
			req.Address = v
			return err
		case "deliveryFee":
			v, err := d.Str()
			if err != nil {
				return err
			}
			fee, err := decimal.NewFromString(v)
			if err != nil {
				return errors.Wrap(err, "parse delivery fee")
			}
			req.DeliveryFee = fee
			return nil
		case "geoLocation":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "latitude":
					v, err := d.Float64()
					req.Latitude = v
					return err
				case "longitude":
					v, err := d.Float64()
					req.Longitude = v
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}

// validate performs the caller-side input validation the core expects to have
// happened before it is invoked.
func (r beginRequest) validate() string {
	switch {
	case strings.TrimSpace(r.CustomerID) == "":
		return "customerId is required"
	case strings.TrimSpace(r.PaymentMode) == "":
		return "paymentMode is required"
	case strings.TrimSpace(r.RecipientName) == "":
		return "recipientName is required"
	case strings.TrimSpace(r.RecipientContactNumber) == "":
		return "recipientContactNumber is required"
	case strings.TrimSpace(r.Address) == "":
		return "address is required"
	case checkout.PaymentMode(r.PaymentMode) == checkout.ModeOnlinePayment &&
		strings.TrimSpace(r.PaymentService) == "":
		return "paymentService is required for online payment"
	default:
		return ""
	}
}

func (h *Handler) beginCheckout(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	req, err := decodeBeginRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.flow.Begin(r.Context(), checkout.BeginRequest{
		CustomerID:             req.CustomerID,
		PaymentMode:            checkout.PaymentMode(req.PaymentMode),
		PaymentService:         req.PaymentService,
		PaymentAccountNumber:   req.PaymentAccountNumber,
		RecipientName:          req.RecipientName,
		RecipientContactNumber: req.RecipientContactNumber,
		OrderNote:              req.OrderNote,
		Address:                req.Address,
		GeoLocation:            checkout.GeoLocation{Latitude: req.Latitude, Longitude: req.Longitude},
		DeliveryFee:            req.DeliveryFee,
	})
	if err != nil {
		h.writeBeginError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderCode")
	e.Str(result.OrderCode)
	e.FieldStart("totalAmount")
	e.Str(result.TotalAmount.String())
	e.FieldStart("state")
	e.Str(string(result.State))
	if result.RedirectURL != "" {
		e.FieldStart("redirectUrl")
		e.Str(result.RedirectURL)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) writeBeginError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		initErr  *checkout.InitiationError
		finalErr *checkout.FinalizationError
	)
	switch {
	case errors.Is(err, checkout.ErrInvalidPaymentMode):
		writeError(w, http.StatusBadRequest, "invalid payment mode")
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, checkout.ErrInvalidPaymentURL):
		writeError(w, http.StatusBadGateway, "payment provider returned an invalid redirect url")
	case errors.As(err, &initErr):
		writeError(w, http.StatusBadGateway, "payment initiation failed")
	case errors.As(err, &finalErr):
		// Order data stays persisted; the client may retry checkout.
		writeError(w, http.StatusBadGateway, finalErr.Error())
	default:
		writeInternalError(w, r, err)
	}
}

func (h *Handler) pendingCheckout(w http.ResponseWriter, r *http.Request) {
	status, ok, err := h.flow.Pending(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("pending")
	e.Bool(ok)
	if ok {
		e.FieldStart("orderCode")
		e.Str(status.OrderCode)
		e.FieldStart("state")
		e.Str(string(status.State))
		if status.FinalizeError != "" {
			e.FieldStart("finalizeError")
			e.Str(status.FinalizeError)
		}
		if status.CancelError != "" {
			e.FieldStart("cancelError")
			e.Str(status.CancelError)
		}
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) navigationEvent(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "order code is required")
		return
	}

	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var navURL string
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "url":
			v, err := d.Str()
			navURL = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil || navURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	outcome, err := h.surface.Observe(r.Context(), code, navURL)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("outcome")
	e.Str(outcome.String())
	e.ObjEnd()
	writeJSON(w, http.StatusAccepted, &e)
}

func (h *Handler) lifecycleEvent(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var state string
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "state":
			v, err := d.Str()
			state = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if state != observer.LifecycleActive && state != observer.LifecycleBackground {
		writeError(w, http.StatusBadRequest, "state must be active or background")
		return
	}

	if err := h.resume.Transition(r.Context(), state); err != nil {
		writeInternalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("accepted")
	e.ObjEnd()
	writeJSON(w, http.StatusAccepted, &e)
}
