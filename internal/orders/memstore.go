package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/localchefbazaar/bazaar/internal/apperr"
)

// MemoryStore is a mutex-guarded Store for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[string]Order
	ledger   []LedgerEntry
	sessions map[string]string // session id -> order id
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]Order{}, sessions: map[string]string{}}
}

func (m *MemoryStore) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return apperr.InvalidState("order %s already exists", o.ID)
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	return &o, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status OrderStatus, deliveryTime *time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	o.OrderStatus, o.DeliveryTime = status, deliveryTime
	m.orders[id] = o
	return &o, nil
}

func (m *MemoryStore) ConfirmPayment(_ context.Context, id string, e LedgerEntry) (*Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false, apperr.NotFound("order not found")
	}
	dup, err := CheckConfirm(o, m.sessions[e.SessionID])
	if err != nil {
		return nil, false, err
	}
	if dup {
		return &o, true, nil
	}

	e.OrderID = id
	m.ledger = append(m.ledger, e)
	m.sessions[e.SessionID] = id

	paidAt := e.PaidAt
	o.PaymentStatus, o.PaymentTime = PaymentPaid, &paidAt
	m.orders[id] = o
	return &o, false, nil
}

func (m *MemoryStore) ListByCustomer(_ context.Context, email string) ([]Order, error) {
	return m.filter(func(o Order) bool { return o.UserEmail == email }), nil
}

func (m *MemoryStore) ListByChef(_ context.Context, chefID string) ([]Order, error) {
	return m.filter(func(o Order) bool { return o.ChefID == chefID }), nil
}

func (m *MemoryStore) filter(keep func(Order) bool) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderTime.After(out[j].OrderTime) })
	return out
}

func (m *MemoryStore) ListPayments(_ context.Context, email string) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []LedgerEntry{}
	for _, e := range m.ledger {
		if e.PayerEmail == email {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

// Ledger returns a copy of every entry, oldest first.
func (m *MemoryStore) Ledger() []LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LedgerEntry(nil), m.ledger...)
}

// MemoryAccounts flags the listed emails as fraudulent.
type MemoryAccounts struct {
	Fraud map[string]bool
}

func (a MemoryAccounts) IsFraud(_ context.Context, email string) (bool, error) {
	return a.Fraud[email], nil
}
