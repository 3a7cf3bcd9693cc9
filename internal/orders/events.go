package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentConfirmed   = "PaymentConfirmed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// Snapshot is the status pair every lifecycle payload carries.
type Snapshot struct {
	OrderID       string        `json:"order_id"`
	OrderStatus   OrderStatus   `json:"order_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

func SnapshotOf(o Order) Snapshot {
	return Snapshot{OrderID: o.ID, OrderStatus: o.OrderStatus, PaymentStatus: o.PaymentStatus}
}

type OrderPlacedPayload struct {
	Snapshot
	ChefID     string `json:"chef_id"`
	UserEmail  string `json:"user_email"`
	TotalCents int64  `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	Snapshot
	DeliveryTime *time.Time `json:"delivery_time,omitempty"`
}

type PaymentConfirmedPayload struct {
	Snapshot
	SessionID   string `json:"session_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}
