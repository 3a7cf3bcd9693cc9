package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	"github.com/localchefbazaar/bazaar/internal/orders"
	"github.com/localchefbazaar/bazaar/internal/payments"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (c *memCache) Get(_ context.Context, id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[id]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, id string, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[id] = b
	c.sets++
	return nil
}

func (c *memCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func (c *memCache) Drop(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
	return nil
}

type stubProcessor struct{}

func (stubProcessor) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (payments.Session, error) {
	return payments.Session{ID: "cs_" + req.OrderID, URL: "https://pay.example/cs_" + req.OrderID}, nil
}

func (stubProcessor) ParseEvent(payload []byte, signature string) (payments.Event, error) {
	if signature != "valid" {
		return payments.Event{}, apperr.Signature(errors.New("bad signature"))
	}
	var ev payments.Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

type fixture struct {
	srv   *httptest.Server
	cache *memCache
	store *orders.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := orders.NewMemoryStore()
	cache := &memCache{data: map[string][]byte{}}
	svc := &orders.Service{
		Store:    store,
		Accounts: orders.MemoryAccounts{Fraud: map[string]bool{"fraud@x.com": true}},
		Cache:    cache,
	}
	initiator := &payments.Initiator{Orders: svc, Processor: stubProcessor{}, Currency: "usd"}
	wh := &payments.WebhookHandler{Orders: svc, Processor: stubProcessor{}}

	r := NewRouter(nil)
	(&OrdersHandler{Orders: svc, Cache: cache}).Register(r)
	(&PaymentsHandler{Checkout: initiator, Webhook: wh}).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, cache: cache, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

const curryJSON = `{"foodId":"m1","mealName":"Curry","price":10,"chefId":"c1","userEmail":"u@x.com","userAddress":"Addr"}`

func (f *fixture) place(t *testing.T) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/orders", curryJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.True(t, out.Success)
	require.NotEmpty(t, out.Data.OrderID)
	return out.Data.OrderID
}

func decodeErr(t *testing.T, body []byte) errorResp {
	t.Helper()
	var e errorResp
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestPlaceOrderErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{name: "bad_json", body: `{`, wantCode: http.StatusBadRequest, wantKind: "validation", wantMsg: "invalid json"},
		{name: "missing_price", body: `{"foodId":"m1","mealName":"Curry","chefId":"c1","userEmail":"u@x.com","userAddress":"Addr"}`, wantCode: http.StatusBadRequest, wantKind: "validation", wantMsg: "missing required field: price"},
		{name: "fraud", body: strings.Replace(curryJSON, "u@x.com", "fraud@x.com", 1), wantCode: http.StatusForbidden, wantKind: "forbidden", wantMsg: "fraud users cannot place orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			e := decodeErr(t, body)
			assert.False(t, e.Success)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	id := f.place(t)

	resp, body := f.do(t, http.MethodGet, "/orders/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, id, out.Data["id"])
	assert.Equal(t, "10.00", out.Data["price"])
	assert.Equal(t, float64(1000), out.Data["priceCents"])
	assert.Equal(t, "pending", out.Data["orderStatus"])
	assert.Equal(t, "pending", out.Data["paymentStatus"])

	resp, body = f.do(t, http.MethodGet, "/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeErr(t, body).Kind)
}

func TestSetStatusRoute(t *testing.T) {
	f := newFixture(t)
	id := f.place(t)

	resp, body := f.do(t, http.MethodPut, "/orders/status/"+id, `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out dataResp
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Order accepted successfully", out.Message)

	resp, body = f.do(t, http.MethodPut, "/orders/status/"+id, `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decodeErr(t, body).Kind)

	resp, _ = f.do(t, http.MethodPut, "/orders/status/nope", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusUsesCache(t *testing.T) {
	f := newFixture(t)
	id := f.place(t)

	resp, body := f.do(t, http.MethodGet, "/orders/"+id+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v orders.StatusView
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, orders.StatusPending, v.OrderStatus)
	assert.Equal(t, 1, f.cache.setCount())

	require.NoError(t, f.cache.Set(context.Background(), id, []byte(`{"orderStatus":"accepted","paymentStatus":"paid"}`)))
	_, body = f.do(t, http.MethodGet, "/orders/"+id+"/status", "")
	assert.JSONEq(t, `{"orderStatus":"accepted","paymentStatus":"paid"}`, string(body))

	// SetStatus drops the snapshot, the next read goes back to the store.
	f.do(t, http.MethodPut, "/orders/status/"+id, `{"status":"cancelled"}`)
	_, body = f.do(t, http.MethodGet, "/orders/"+id+"/status", "")
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, orders.StatusCancelled, v.OrderStatus)
	assert.Equal(t, orders.PaymentPending, v.PaymentStatus)
}

func TestCheckoutAndWebhook(t *testing.T) {
	f := newFixture(t)
	id := f.place(t)

	resp, body := f.do(t, http.MethodPost, "/orders/"+id+"/checkout", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	e := decodeErr(t, body)
	assert.Equal(t, "invalid_state", e.Kind)
	assert.Equal(t, "order must be accepted before payment", e.Message)

	f.do(t, http.MethodPut, "/orders/status/"+id, `{"status":"accepted"}`)

	resp, body = f.do(t, http.MethodPost, "/orders/"+id+"/checkout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"success":true,"url":"https://pay.example/cs_`+id+`","sessionId":"cs_`+id+`","amount":1000,"currency":"usd"}`, string(body))

	resp, body = f.do(t, http.MethodGet, "/orders/"+id+"/checkout/qr", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	ev, err := json.Marshal(payments.Event{
		ID: "evt_1", Kind: payments.KindCheckoutCompleted, SessionID: "cs_" + id, AmountCents: 1000,
		Currency: "usd", PaymentMethod: "card", Paid: true,
		Metadata: map[string]string{payments.MetaOrderID: id, payments.MetaUserEmail: "u@x.com"},
	})
	require.NoError(t, err)

	resp, body = f.do(t, http.MethodPost, "/webhook", string(ev), "Stripe-Signature", "forged")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "signature", decodeErr(t, body).Kind)
	assert.Empty(t, f.store.Ledger())

	for i := 0; i < 2; i++ {
		resp, body = f.do(t, http.MethodPost, "/webhook", string(ev), "Stripe-Signature", "valid")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"received":true}`, string(body))
	}
	require.Len(t, f.store.Ledger(), 1)

	resp, body = f.do(t, http.MethodPost, "/orders/"+id+"/checkout", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "order is already paid", decodeErr(t, body).Message)

	resp, body = f.do(t, http.MethodGet, "/payment-history?email=u@x.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &hist))
	require.Len(t, hist.Data, 1)
	assert.Equal(t, "10.00", hist.Data[0]["amountMajor"])
	assert.Equal(t, id, hist.Data[0]["orderId"])
}

func TestListRoutes(t *testing.T) {
	f := newFixture(t)
	id := f.place(t)

	resp, body := f.do(t, http.MethodGet, "/orders?email=u@x.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, id, out.Data[0]["id"])

	resp, body = f.do(t, http.MethodGet, "/chef-orders?chefId=other", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(body))

	resp, _ = f.do(t, http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/payment-history", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// slowReads advances the clock while an order is being read.
type slowReads struct {
	*orders.Service
	clock *time.Time
}

func (s slowReads) Get(ctx context.Context, id string) (*orders.Order, error) {
	o, err := s.Service.Get(ctx, id)
	*s.clock = s.clock.Add(time.Minute)
	return o, err
}

func TestStatusFallbackStampsBeforeRead(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	svc := &orders.Service{Store: store, Accounts: orders.MemoryAccounts{}}
	var d orders.Draft
	require.NoError(t, json.Unmarshal([]byte(curryJSON), &d))
	o, err := svc.Place(ctx, d)
	require.NoError(t, err)

	clock := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	readStart := clock
	cache := &memCache{data: map[string][]byte{}}
	r := NewRouter(nil)
	(&OrdersHandler{
		Orders: slowReads{Service: svc, clock: &clock},
		Cache:  cache,
		Now:    func() time.Time { return clock },
	}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/orders/" + o.ID + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, ok, err := cache.Get(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, ok)
	var v orders.StatusView
	require.NoError(t, json.Unmarshal(b, &v))
	assert.Equal(t, readStart, v.UpdatedAt)
}
