package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string        `json:"id"`
	FoodID        string        `json:"foodId"`
	MealName      string        `json:"mealName"`
	PriceCents    int64         `json:"priceCents"`
	Quantity      int           `json:"quantity"`
	ChefID        string        `json:"chefId"`
	ChefName      string        `json:"chefName,omitempty"`
	UserEmail     string        `json:"userEmail"`
	UserName      string        `json:"userName,omitempty"`
	UserAddress   string        `json:"userAddress"`
	OrderStatus   OrderStatus   `json:"orderStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	OrderTime     time.Time     `json:"orderTime"`
	DeliveryTime  *time.Time    `json:"deliveryTime"`
	PaymentTime   *time.Time    `json:"paymentTime"`
}

// TotalCents is what the customer is charged at checkout.
func (o Order) TotalCents() int64 { return o.PriceCents * int64(o.Quantity) }

// Draft is the customer's order request as it arrives on the wire.
type Draft struct {
	FoodID      string           `json:"foodId"`
	MealName    string           `json:"mealName"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    int              `json:"quantity"`
	ChefID      string           `json:"chefId"`
	ChefName    string           `json:"chefName"`
	UserEmail   string           `json:"userEmail"`
	UserName    string           `json:"userName"`
	UserAddress string           `json:"userAddress"`
}

// Confirmation carries what the processor reported for one settled checkout.
type Confirmation struct {
	SessionID       string
	PaymentIntentID string
	AmountCents     int64
	Currency        string
	PaymentMethod   string
	PayerEmail      string
}

// LedgerEntry is append-only; SessionID is the dedupe key.
type LedgerEntry struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"orderId"`
	AmountCents     int64     `json:"amountCents"`
	Currency        string    `json:"currency"`
	PaymentMethod   string    `json:"paymentMethod"`
	PayerEmail      string    `json:"payerEmail"`
	SessionID       string    `json:"sessionId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	PaidAt          time.Time `json:"paidAt"`
}

// StatusView is the cached status snapshot served by GET /orders/{id}/status.
type StatusView struct {
	OrderStatus   OrderStatus   `json:"orderStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func ViewOf(o Order, at time.Time) StatusView {
	return StatusView{OrderStatus: o.OrderStatus, PaymentStatus: o.PaymentStatus, UpdatedAt: at.UTC()}
}
