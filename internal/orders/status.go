package orders

import (
	"strings"

	"github.com/localchefbazaar/bazaar/internal/apperr"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusCancelled OrderStatus = "cancelled"
	StatusDelivered OrderStatus = "delivered"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

var (
	ErrNotAccepted = apperr.InvalidState("order must be accepted before payment")
	ErrAlreadyPaid = apperr.InvalidState("order is already paid")
	// session id sudah tercatat untuk order lain
	ErrSessionReused = apperr.InvalidState("payment session belongs to another order")
)

// ParseOrderStatus accepts only the four known order states.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusAccepted, StatusCancelled, StatusDelivered:
		return st, nil
	case "":
		return "", apperr.Validation("status is required")
	default:
		return "", apperr.Validation("unknown order status: %q", s)
	}
}

func (s OrderStatus) String() string   { return string(s) }
func (s PaymentStatus) String() string { return string(s) }

// CheckCheckout: checkout hanya boleh untuk order accepted yang belum dibayar.
func CheckCheckout(o Order) error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if o.OrderStatus != StatusAccepted {
		return ErrNotAccepted
	}
	return nil
}

// CheckConfirm guards the only transition that may set paid. recordedFor is the
// order id a ledger entry with the confirmation's session id already belongs to,
// or "" when the session is new. The same session for the same order is a no-op
// success; for another order it is ErrSessionReused.
func CheckConfirm(o Order, recordedFor string) (duplicate bool, err error) {
	switch recordedFor {
	case "":
	case o.ID:
		return true, nil
	default:
		return false, ErrSessionReused
	}
	if err := CheckCheckout(o); err != nil {
		return false, err
	}
	return false, nil
}
