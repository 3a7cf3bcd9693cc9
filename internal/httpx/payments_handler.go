package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	"github.com/localchefbazaar/bazaar/internal/payments"
)

type CheckoutStarter interface {
	InitiateCheckout(ctx context.Context, orderID string) (*payments.Checkout, error)
	CheckoutQR(ctx context.Context, orderID string) ([]byte, error)
}

type EventReceiver interface {
	HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (payments.Ack, error)
}

var (
	_ CheckoutStarter = (*payments.Initiator)(nil)
	_ EventReceiver   = (*payments.WebhookHandler)(nil)
)

type PaymentsHandler struct {
	Checkout CheckoutStarter
	Webhook  EventReceiver
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/orders/{id}/checkout", h.checkout)
	r.Get("/orders/{id}/checkout/qr", h.checkoutQR)
	r.Post("/webhook", h.webhook)
}

type checkoutResp struct {
	Success bool `json:"success"`
	*payments.Checkout
}

func (h *PaymentsHandler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, err := h.Checkout.InitiateCheckout(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{Success: true, Checkout: c})
}

func (h *PaymentsHandler) checkoutQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	png, err := h.Checkout.CheckoutQR(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// webhook needs the raw body; the signature covers the exact bytes.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, r, apperr.Validation("unreadable body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ack, err := h.Webhook.HandlePaymentEvent(ctx, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
