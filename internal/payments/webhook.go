package payments

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	"github.com/localchefbazaar/bazaar/internal/orders"
)

type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Ack is what the processor sees. Outcome stays internal.
type Ack struct {
	Received bool    `json:"received"`
	Outcome  Outcome `json:"-"`
}

// EventMarker remembers processor event ids that were already reconciled.
type EventMarker interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type WebhookHandler struct {
	Orders    OrderService
	Processor Processor
	Marker    EventMarker // optional
}

// HandlePaymentEvent returns an error only when the signature does not verify.
// Every verified event is acknowledged; reconciliation failures are logged.
func (h *WebhookHandler) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (Ack, error) {
	ev, err := h.Processor.ParseEvent(payload, signature)
	if errors.Is(err, apperr.ErrSignature) {
		log.Printf("layer=service component=webhook outcome=%s err=%v", OutcomeRejected, err)
		return Ack{Outcome: OutcomeRejected}, err
	}
	if err != nil {
		log.Printf("layer=service component=webhook event_id=%s outcome=%s reason=undecodable err=%v", ev.ID, OutcomeFailed, err)
		return Ack{Received: true, Outcome: OutcomeFailed}, nil
	}

	if !ev.settles() {
		log.Printf("layer=service component=webhook event_id=%s kind=%s paid=%t outcome=%s", ev.ID, ev.Kind, ev.Paid, OutcomeIgnored)
		return Ack{Received: true, Outcome: OutcomeIgnored}, nil
	}

	if h.seen(ctx, ev.ID) {
		log.Printf("layer=service component=webhook event_id=%s outcome=%s reason=event_seen", ev.ID, OutcomeDuplicate)
		return Ack{Received: true, Outcome: OutcomeDuplicate}, nil
	}

	outcome := h.reconcile(ctx, ev)
	if outcome != OutcomeFailed {
		h.mark(ctx, ev.ID)
	}
	return Ack{Received: true, Outcome: outcome}, nil
}

func (h *WebhookHandler) reconcile(ctx context.Context, ev Event) Outcome {
	orderID := strings.TrimSpace(ev.Metadata[MetaOrderID])
	if orderID == "" {
		log.Printf("layer=service component=webhook event_id=%s session_id=%s outcome=%s reason=missing_order_id",
			ev.ID, ev.SessionID, OutcomeFailed)
		return OutcomeFailed
	}
	payer := ev.Metadata[MetaUserEmail]
	if payer == "" {
		payer = ev.PayerEmail
	}

	o, dup, err := h.Orders.ConfirmPayment(ctx, orderID, orders.Confirmation{
		SessionID:       ev.SessionID,
		PaymentIntentID: ev.PaymentIntentID,
		AmountCents:     ev.AmountCents,
		Currency:        ev.Currency,
		PaymentMethod:   ev.PaymentMethod,
		PayerEmail:      payer,
	})
	if err != nil {
		log.Printf("layer=service component=webhook event_id=%s order_id=%s session_id=%s outcome=%s reason=%s err=%v",
			ev.ID, orderID, ev.SessionID, OutcomeFailed, failureReason(err), err)
		return OutcomeFailed
	}
	if dup {
		log.Printf("layer=service component=webhook event_id=%s order_id=%s session_id=%s outcome=%s reason=session_recorded",
			ev.ID, orderID, ev.SessionID, OutcomeDuplicate)
		return OutcomeDuplicate
	}

	if want := o.TotalCents(); want != ev.AmountCents {
		log.Printf("layer=service component=webhook event_id=%s order_id=%s reason=amount_mismatch expected=%d settled=%d",
			ev.ID, orderID, want, ev.AmountCents)
	}
	log.Printf("layer=service component=webhook event_id=%s order_id=%s session_id=%s amount=%d currency=%s outcome=%s",
		ev.ID, orderID, ev.SessionID, ev.AmountCents, ev.Currency, OutcomeApplied)
	return OutcomeApplied
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, orders.ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, orders.ErrNotAccepted):
		return "not_accepted"
	case errors.Is(err, orders.ErrSessionReused):
		return "session_reused"
	default:
		return apperr.Kind(err)
	}
}

func (h *WebhookHandler) seen(ctx context.Context, id string) bool {
	if h.Marker == nil || id == "" {
		return false
	}
	ok, err := h.Marker.Seen(ctx, id)
	if err != nil {
		log.Printf("layer=service component=webhook event_id=%s method=seen err=%v", id, err)
		return false
	}
	return ok
}

func (h *WebhookHandler) mark(ctx context.Context, id string) {
	if h.Marker == nil || id == "" {
		return
	}
	if err := h.Marker.Mark(ctx, id); err != nil {
		log.Printf("layer=service component=webhook event_id=%s method=mark err=%v", id, err)
	}
}
