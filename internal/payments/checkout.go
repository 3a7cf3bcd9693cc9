package payments

import (
	"context"
	"errors"
	"log"

	"github.com/skip2/go-qrcode"

	"github.com/localchefbazaar/bazaar/internal/apperr"
)

var errEmptyURL = errors.New("processor returned no redirect url")

// Initiator opens hosted checkout sessions. It never mutates the order.
type Initiator struct {
	Orders     OrderService
	Processor  Processor
	Currency   string
	SuccessURL string
	CancelURL  string
}

type Checkout struct {
	URL         string `json:"url"`
	SessionID   string `json:"sessionId"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
}

func (i *Initiator) InitiateCheckout(ctx context.Context, orderID string) (*Checkout, error) {
	o, err := i.Orders.CheckoutOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	req := CheckoutRequest{
		OrderID:         o.ID,
		MealName:        o.MealName,
		UnitAmountCents: o.PriceCents,
		Quantity:        int64(o.Quantity),
		AmountCents:     o.TotalCents(),
		Currency:        i.Currency,
		CustomerEmail:   o.UserEmail,
		Metadata: map[string]string{
			MetaOrderID:   o.ID,
			MetaUserEmail: o.UserEmail,
		},
		SuccessURL: i.SuccessURL,
		CancelURL:  i.CancelURL,
	}
	sess, err := i.Processor.CreateCheckoutSession(ctx, req)
	if err != nil {
		log.Printf("layer=service component=payments method=InitiateCheckout order_id=%s err=%v", o.ID, err)
		return nil, apperr.Upstream("create checkout session", err)
	}
	if sess.URL == "" {
		return nil, apperr.Upstream("create checkout session", errEmptyURL)
	}

	log.Printf("layer=service component=payments method=InitiateCheckout order_id=%s session_id=%s amount=%d currency=%s",
		o.ID, sess.ID, req.AmountCents, req.Currency)
	return &Checkout{URL: sess.URL, SessionID: sess.ID, AmountCents: req.AmountCents, Currency: req.Currency}, nil
}

// CheckoutQR opens a session and encodes its URL as a PNG, for paying from a phone.
func (i *Initiator) CheckoutQR(ctx context.Context, orderID string) ([]byte, error) {
	c, err := i.InitiateCheckout(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(c.URL, qrcode.Medium, 256)
}
