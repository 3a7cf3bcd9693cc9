package payments

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	"github.com/localchefbazaar/bazaar/internal/orders"
)

// fakeProcessor accepts payloads that are JSON-encoded Events signed "valid".
type fakeProcessor struct {
	mu       sync.Mutex
	requests []CheckoutRequest
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return Session{ID: "cs_" + req.OrderID, URL: "https://pay.example/cs_" + req.OrderID}, nil
}

func (f *fakeProcessor) ParseEvent(payload []byte, signature string) (Event, error) {
	if signature != "valid" {
		return Event{}, apperr.Signature(errors.New("no signatures found matching the expected signature"))
	}
	var ev Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

func newFlow() (*orders.Service, *orders.MemoryStore, *Initiator, *WebhookHandler, *fakeProcessor) {
	store := orders.NewMemoryStore()
	svc := &orders.Service{Store: store, Accounts: orders.MemoryAccounts{}}
	proc := &fakeProcessor{}
	initiator := &Initiator{Orders: svc, Processor: proc, Currency: "usd"}
	wh := &WebhookHandler{Orders: svc, Processor: proc}
	return svc, store, initiator, wh, proc
}

func placeCurry(t *testing.T, svc *orders.Service) *orders.Order {
	t.Helper()
	price := decimal.NewFromInt(10)
	o, err := svc.Place(context.Background(), orders.Draft{
		FoodID: "m1", MealName: "Curry", Price: &price, ChefID: "c1", UserEmail: "u@x.com", UserAddress: "Addr",
	})
	require.NoError(t, err)
	return o
}

func completionFor(t *testing.T, orderID, session string, amount int64) []byte {
	t.Helper()
	b, err := json.Marshal(Event{
		ID: "evt_" + session, Kind: KindCheckoutCompleted, SessionID: session, AmountCents: amount,
		Currency: "usd", PaymentMethod: "card", Paid: true,
		Metadata: map[string]string{MetaOrderID: orderID, MetaUserEmail: "u@x.com"},
	})
	require.NoError(t, err)
	return b
}

func TestOrderToPaidScenario(t *testing.T) {
	ctx := context.Background()
	svc, store, initiator, wh, proc := newFlow()

	o := placeCurry(t, svc)
	assert.Equal(t, orders.StatusPending, o.OrderStatus)
	assert.Equal(t, orders.PaymentPending, o.PaymentStatus)

	_, err := initiator.InitiateCheckout(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrNotAccepted)
	assert.EqualError(t, err, "order must be accepted before payment")

	_, err = svc.SetStatus(ctx, o.ID, "accepted")
	require.NoError(t, err)

	c, err := initiator.InitiateCheckout(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_"+o.ID, c.URL)
	assert.Equal(t, int64(1000), c.AmountCents)
	require.Len(t, proc.requests, 1)
	assert.Equal(t, map[string]string{MetaOrderID: o.ID, MetaUserEmail: "u@x.com"}, proc.requests[0].Metadata)

	ack, err := wh.HandlePaymentEvent(ctx, completionFor(t, o.ID, c.SessionID, c.AmountCents), "valid")
	require.NoError(t, err)
	assert.Equal(t, Ack{Received: true, Outcome: OutcomeApplied}, ack)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentTime)

	ledger := store.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, "10.00", orders.Major(ledger[0].AmountCents))

	_, err = initiator.InitiateCheckout(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrAlreadyPaid)

	_, err = svc.SetStatus(ctx, o.ID, "delivered")
	require.NoError(t, err)
}

func TestRedeliveredCompletionRecordsOnce(t *testing.T) {
	ctx := context.Background()
	svc, store, _, wh, _ := newFlow()
	o := placeCurry(t, svc)
	_, err := svc.SetStatus(ctx, o.ID, "accepted")
	require.NoError(t, err)

	payload := completionFor(t, o.ID, "cs_once", 1000)

	var wg sync.WaitGroup
	acks := make([]Ack, 8)
	for i := range acks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acks[i], _ = wh.HandlePaymentEvent(ctx, payload, "valid")
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, a := range acks {
		assert.True(t, a.Received)
		if a.Outcome == OutcomeApplied {
			applied++
		} else {
			assert.Equal(t, OutcomeDuplicate, a.Outcome)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Len(t, store.Ledger(), 1)
}

func TestForgedCompletionChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, _, wh, _ := newFlow()
	o := placeCurry(t, svc)
	_, err := svc.SetStatus(ctx, o.ID, "accepted")
	require.NoError(t, err)

	ack, err := wh.HandlePaymentEvent(ctx, completionFor(t, o.ID, "cs_forged", 500), "t=0,v1=deadbeef")
	require.ErrorIs(t, err, apperr.ErrSignature)
	assert.False(t, ack.Received)
	assert.Equal(t, OutcomeRejected, ack.Outcome)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, got.PaymentStatus)
	assert.Empty(t, store.Ledger())
}

func TestCompletionBeforeAcceptanceIsNotApplied(t *testing.T) {
	ctx := context.Background()
	svc, store, _, wh, _ := newFlow()
	o := placeCurry(t, svc)

	ack, err := wh.HandlePaymentEvent(ctx, completionFor(t, o.ID, "cs_early", 1000), "valid")
	require.NoError(t, err)
	assert.Equal(t, Ack{Received: true, Outcome: OutcomeFailed}, ack)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, got.PaymentStatus)
	assert.Empty(t, store.Ledger())
}

func TestSessionOfAnotherOrderDoesNotPay(t *testing.T) {
	ctx := context.Background()
	svc, store, _, wh, _ := newFlow()
	a, b := placeCurry(t, svc), placeCurry(t, svc)
	for _, id := range []string{a.ID, b.ID} {
		_, err := svc.SetStatus(ctx, id, "accepted")
		require.NoError(t, err)
	}

	ack, err := wh.HandlePaymentEvent(ctx, completionFor(t, a.ID, "cs_shared", 1000), "valid")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, ack.Outcome)

	ack, err = wh.HandlePaymentEvent(ctx, completionFor(t, b.ID, "cs_shared", 1000), "valid")
	require.NoError(t, err)
	assert.Equal(t, Ack{Received: true, Outcome: OutcomeFailed}, ack)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, got.PaymentStatus)
	require.Len(t, store.Ledger(), 1)
	assert.Equal(t, a.ID, store.Ledger()[0].OrderID)
}
