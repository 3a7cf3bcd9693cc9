package payments

import (
	"context"

	"github.com/localchefbazaar/bazaar/internal/orders"
)

// Metadata keys attached to every checkout session; the webhook reads them back.
const (
	MetaOrderID   = "orderId"
	MetaUserEmail = "userEmail"
)

// Only these kinds can move an order to paid. A completed session whose payment
// is still settling (Paid=false) waits for the async success event.
const (
	KindCheckoutCompleted     = "checkout.session.completed"
	KindAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

type CheckoutRequest struct {
	OrderID         string
	MealName        string
	UnitAmountCents int64
	Quantity        int64
	AmountCents     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
	SuccessURL      string
	CancelURL       string
}

type Session struct {
	ID  string
	URL string
}

// Event is a verified processor notification, reduced to what reconciliation needs.
type Event struct {
	ID              string
	Kind            string
	SessionID       string
	PaymentIntentID string
	AmountCents     int64
	Currency        string
	PaymentMethod   string
	PayerEmail      string
	Paid            bool
	Metadata        map[string]string
}

func (e Event) settles() bool {
	return (e.Kind == KindCheckoutCompleted || e.Kind == KindAsyncPaymentSucceeded) && e.Paid
}

// Processor is the hosted checkout provider.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	// ParseEvent verifies the signature before decoding anything. Signature
	// failures wrap apperr.ErrSignature; other errors mean a verified but
	// undecodable event.
	ParseEvent(payload []byte, signature string) (Event, error)
}

// OrderService is the slice of the order state machine payments depend on.
type OrderService interface {
	CheckoutOrder(ctx context.Context, id string) (*orders.Order, error)
	ConfirmPayment(ctx context.Context, id string, c orders.Confirmation) (*orders.Order, bool, error)
}

var _ OrderService = (*orders.Service)(nil)
