package orders

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	kafkax "github.com/localchefbazaar/bazaar/internal/kafka"
)

// Service is the order state machine. It is the only writer of orderStatus and
// paymentStatus; ConfirmPayment is the only path to paid.
type Service struct {
	Store       Store
	Accounts    AccountLookup
	Producer    Publisher     // optional
	Cache       SnapshotCache // optional
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func validateDraft(d Draft) error {
	required := []struct {
		name    string
		missing bool
	}{
		{"foodId", strings.TrimSpace(d.FoodID) == ""},
		{"mealName", strings.TrimSpace(d.MealName) == ""},
		{"price", d.Price == nil || d.Price.IsZero()},
		{"chefId", strings.TrimSpace(d.ChefID) == ""},
		{"userEmail", strings.TrimSpace(d.UserEmail) == ""},
		{"userAddress", strings.TrimSpace(d.UserAddress) == ""},
	}
	for _, f := range required {
		if f.missing {
			return apperr.Validation("missing required field: %s", f.name)
		}
	}
	if d.Price.IsNegative() {
		return apperr.Validation("price must be positive")
	}
	if !CentsFit(*d.Price) {
		return apperr.Validation("price is too large")
	}
	cents := ToCents(*d.Price)
	if cents <= 0 {
		return apperr.Validation("price must be positive")
	}
	if d.Quantity < 0 {
		return apperr.Validation("quantity must be positive")
	}
	if !MulFits(cents, d.Quantity) {
		return apperr.Validation("order total is too large")
	}
	return nil
}

// Place creates an order in (pending, pending).
func (s *Service) Place(ctx context.Context, d Draft) (*Order, error) {
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	fraud, err := s.Accounts.IsFraud(ctx, d.UserEmail)
	if err != nil {
		log.Printf("layer=service component=orders method=Place user_email=%s err=%v", d.UserEmail, err)
		return nil, err
	}
	if fraud {
		return nil, apperr.Forbidden("fraud users cannot place orders")
	}

	qty := d.Quantity
	if qty == 0 {
		qty = 1
	}
	o := &Order{
		ID:            uuid.NewString(),
		FoodID:        d.FoodID,
		MealName:      d.MealName,
		PriceCents:    ToCents(*d.Price),
		Quantity:      qty,
		ChefID:        d.ChefID,
		ChefName:      d.ChefName,
		UserEmail:     d.UserEmail,
		UserName:      d.UserName,
		UserAddress:   d.UserAddress,
		OrderStatus:   StatusPending,
		PaymentStatus: PaymentPending,
		OrderTime:     s.now(),
	}
	if err := s.Store.Insert(ctx, o); err != nil {
		log.Printf("layer=service component=orders method=Place order_id=%s err=%v", o.ID, err)
		return nil, err
	}

	s.publish(ctx, TopicOrderPlaced, EventOrderPlaced, o.ID, OrderPlacedPayload{
		Snapshot:   SnapshotOf(*o),
		ChefID:     o.ChefID,
		UserEmail:  o.UserEmail,
		TotalCents: o.TotalCents(),
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("order id is required")
	}
	return s.Store.Get(ctx, id)
}

// SetStatus applies a chef decision. Only delivered carries a timestamp.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("order id is required")
	}
	st, err := ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	var deliveredAt *time.Time
	if st == StatusDelivered {
		t := s.now()
		deliveredAt = &t
	}
	o, err := s.Store.UpdateStatus(ctx, id, st, deliveredAt)
	if err != nil {
		log.Printf("layer=service component=orders method=SetStatus order_id=%s status=%s err=%v", id, st, err)
		return nil, err
	}

	s.dropSnapshot(ctx, o.ID)
	s.publish(ctx, TopicOrderStatus, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		Snapshot:     SnapshotOf(*o),
		DeliveryTime: o.DeliveryTime,
	})
	return o, nil
}

// CheckoutOrder returns the order if it may be sent to checkout right now.
func (s *Service) CheckoutOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckCheckout(*o); err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmPayment marks the order paid and appends one ledger entry. A repeat
// with the same session id returns duplicate=true and changes nothing.
func (s *Service) ConfirmPayment(ctx context.Context, id string, c Confirmation) (*Order, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, apperr.Validation("order id is required")
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return nil, false, apperr.Validation("session id is required")
	}

	entry := LedgerEntry{
		ID:              uuid.NewString(),
		OrderID:         id,
		AmountCents:     c.AmountCents,
		Currency:        c.Currency,
		PaymentMethod:   c.PaymentMethod,
		PayerEmail:      c.PayerEmail,
		SessionID:       c.SessionID,
		PaymentIntentID: c.PaymentIntentID,
		PaidAt:          s.now(),
	}
	o, dup, err := s.Store.ConfirmPayment(ctx, id, entry)
	if err != nil {
		return nil, false, err
	}
	if dup {
		return o, true, nil
	}

	s.dropSnapshot(ctx, o.ID)
	s.publish(ctx, TopicPaymentConfirmed, EventPaymentConfirmed, o.ID, PaymentConfirmedPayload{
		Snapshot:    SnapshotOf(*o),
		SessionID:   c.SessionID,
		AmountCents: c.AmountCents,
		Currency:    c.Currency,
	})
	return o, false, nil
}

func (s *Service) ListByCustomer(ctx context.Context, email string) ([]Order, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.Validation("email is required")
	}
	return s.Store.ListByCustomer(ctx, email)
}

func (s *Service) ListByChef(ctx context.Context, chefID string) ([]Order, error) {
	if strings.TrimSpace(chefID) == "" {
		return nil, apperr.Validation("chefId is required")
	}
	return s.Store.ListByChef(ctx, chefID)
}

func (s *Service) ListPayments(ctx context.Context, email string) ([]LedgerEntry, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.Validation("email is required")
	}
	return s.Store.ListPayments(ctx, email)
}

func (s *Service) dropSnapshot(ctx context.Context, orderID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Drop(ctx, orderID); err != nil {
		log.Printf("layer=service component=orders method=dropSnapshot order_id=%s err=%v", orderID, err)
	}
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if s.Producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		TraceID:       TraceID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Producer.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

type traceKey struct{}

// WithTraceID attaches the request id that ends up in published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
