// Package stripex adapts Stripe Checkout to payments.Processor.
package stripex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	"github.com/localchefbazaar/bazaar/internal/payments"
)

type Client struct {
	sessions      session.Client
	webhookSecret string
}

var _ payments.Processor = (*Client)(nil)

func New(secretKey, webhookSecret string) *Client {
	return NewWithBackend(stripe.GetBackend(stripe.APIBackend), secretKey, webhookSecret)
}

// NewWithBackend lets tests point the client at a local server.
func NewWithBackend(b stripe.Backend, secretKey, webhookSecret string) *Client {
	return &Client{
		sessions:      session.Client{B: b, Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (payments.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.MealName),
				},
			},
			Quantity: stripe.Int64(req.Quantity),
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := c.sessions.New(params)
	if err != nil {
		return payments.Session{}, err
	}
	return payments.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) ParseEvent(payload []byte, signature string) (payments.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return payments.Event{}, apperr.Signature(err)
	}

	out := payments.Event{ID: ev.ID, Kind: string(ev.Type)}
	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		return out, nil
	}
	if ev.Data == nil {
		return out, fmt.Errorf("event %s has no data", ev.ID)
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return out, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = s.ID
	out.AmountCents = s.AmountTotal
	out.Currency = string(s.Currency)
	out.Metadata = s.Metadata
	out.Paid = s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	out.PaymentMethod = "card"
	if len(s.PaymentMethodTypes) > 0 {
		out.PaymentMethod = s.PaymentMethodTypes[0]
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	out.PayerEmail = s.CustomerEmail
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.PayerEmail = s.CustomerDetails.Email
	}
	return out, nil
}
