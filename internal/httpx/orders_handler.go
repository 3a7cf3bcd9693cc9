package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/localchefbazaar/bazaar/internal/apperr"
	"github.com/localchefbazaar/bazaar/internal/orders"
)

const maxBodyBytes = 1 << 16

// OrderAPI is what the order routes need from orders.Service.
type OrderAPI interface {
	Place(ctx context.Context, d orders.Draft) (*orders.Order, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	SetStatus(ctx context.Context, id, status string) (*orders.Order, error)
	ListByCustomer(ctx context.Context, email string) ([]orders.Order, error)
	ListByChef(ctx context.Context, chefID string) ([]orders.Order, error)
	ListPayments(ctx context.Context, email string) ([]orders.LedgerEntry, error)
}

var _ OrderAPI = (*orders.Service)(nil)

// StatusStore is the status snapshot cache (redisx.StatusCache).
type StatusStore interface {
	Get(ctx context.Context, orderID string) ([]byte, bool, error)
	Set(ctx context.Context, orderID string, snapshot []byte) error
}

type OrdersHandler struct {
	Orders OrderAPI
	Cache  StatusStore // optional
	Now    func() time.Time
}

func (h *OrdersHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listByCustomer)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Put("/orders/status/{id}", h.setStatus)
	r.Get("/chef-orders", h.listByChef)
	r.Get("/payment-history", h.listPayments)
}

type dataResp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// orderView adds major-unit renderings next to the stored cents.
type orderView struct {
	orders.Order
	Price string `json:"price"`
	Total string `json:"total"`
}

func viewOrder(o orders.Order) orderView {
	return orderView{Order: o, Price: orders.Major(o.PriceCents), Total: orders.Major(o.TotalCents())}
}

func viewOrders(list []orders.Order) []orderView {
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOrder(o))
	}
	return out
}

type ledgerView struct {
	orders.LedgerEntry
	AmountMajor string `json:"amountMajor"`
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var d orders.Draft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&d); err != nil {
		writeErr(w, r, apperr.Validation("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Place(ctx, d)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResp{
		Success: true,
		Message: "Order placed successfully",
		Data:    map[string]string{"orderId": o.ID},
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Success: true, Data: viewOrder(*o)})
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		b, ok, err := h.Cache.Get(ctx, orderID)
		if err != nil {
			log.Printf("layer=http component=orders method=getStatus order_id=%s cache_err=%v", orderID, err)
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	// 2) fallback store. Stamp before the read so a mutation committed after it
	// carries a later OccurredAt and the projector still applies it.
	readAt := h.now()
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	b, _ := json.Marshal(orders.ViewOf(*o, readAt))
	if h.Cache != nil {
		_ = h.Cache.Set(ctx, orderID, b)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErr(w, r, apperr.Validation("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.SetStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{
		Success: true,
		Message: "Order " + o.OrderStatus.String() + " successfully",
		Data:    viewOrder(*o),
	})
}

func (h *OrdersHandler) listByCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListByCustomer(ctx, r.URL.Query().Get("email"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Success: true, Data: viewOrders(list)})
}

func (h *OrdersHandler) listByChef(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListByChef(ctx, r.URL.Query().Get("chefId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResp{Success: true, Data: viewOrders(list)})
}

func (h *OrdersHandler) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Orders.ListPayments(ctx, r.URL.Query().Get("email"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]ledgerView, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerView{LedgerEntry: e, AmountMajor: orders.Major(e.AmountCents)})
	}
	writeJSON(w, http.StatusOK, dataResp{Success: true, Data: out})
}
