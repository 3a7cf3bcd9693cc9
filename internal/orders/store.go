package orders

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Store persists orders and the payment ledger. ConfirmPayment must apply
// CheckConfirm and the ledger append atomically for one order.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus, deliveryTime *time.Time) (*Order, error)
	ConfirmPayment(ctx context.Context, id string, entry LedgerEntry) (o *Order, duplicate bool, err error)
	ListByCustomer(ctx context.Context, email string) ([]Order, error)
	ListByChef(ctx context.Context, chefID string) ([]Order, error)
	ListPayments(ctx context.Context, email string) ([]LedgerEntry, error)
}

type AccountLookup interface {
	IsFraud(ctx context.Context, email string) (bool, error)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// SnapshotCache holds the read-side status snapshot; mutations drop it.
type SnapshotCache interface {
	Drop(ctx context.Context, orderID string) error
}
