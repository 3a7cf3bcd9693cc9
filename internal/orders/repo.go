package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localchefbazaar/bazaar/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `id, food_id, meal_name, price_cents, quantity, chef_id, chef_name,
	user_email, user_name, user_address, order_status, payment_status,
	order_time, delivery_time, payment_time`

const ledgerColumns = `id, order_id, amount_cents, currency, payment_method, payer_email,
	session_id, payment_intent_id, paid_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		st, ps string
	)
	err := row.Scan(&o.ID, &o.FoodID, &o.MealName, &o.PriceCents, &o.Quantity, &o.ChefID, &o.ChefName,
		&o.UserEmail, &o.UserName, &o.UserAddress, &st, &ps,
		&o.OrderTime, &o.DeliveryTime, &o.PaymentTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	o.OrderStatus, o.PaymentStatus = OrderStatus(st), PaymentStatus(ps)
	return &o, nil
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.FoodID, o.MealName, o.PriceCents, o.Quantity, o.ChefID, o.ChefName,
		o.UserEmail, o.UserName, o.UserAddress, string(o.OrderStatus), string(o.PaymentStatus),
		o.OrderTime, o.DeliveryTime, o.PaymentTime,
	)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// UpdateStatus is a single-row update; delivery_time ikut di-set/di-clear bersama status.
func (r *Repo) UpdateStatus(ctx context.Context, id string, status OrderStatus, deliveryTime *time.Time) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET order_status=$2, delivery_time=$3
		WHERE id=$1
		RETURNING `+orderColumns,
		id, string(status), deliveryTime,
	))
}

// ConfirmPayment locks the order row (FOR UPDATE) so concurrent confirmations
// for one order serialize, then dedupes on session_id before appending.
func (r *Repo) ConfirmPayment(ctx context.Context, id string, e LedgerEntry) (*Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, false, err
	}

	owner, err := sessionOwner(ctx, tx, e.SessionID)
	if err != nil {
		return nil, false, err
	}
	dup, err := CheckConfirm(*o, owner)
	if err != nil {
		return nil, false, err
	}
	if dup {
		return o, true, tx.Commit(ctx)
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO payments(`+ledgerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (session_id) DO NOTHING`,
		e.ID, id, e.AmountCents, e.Currency, e.PaymentMethod, e.PayerEmail,
		e.SessionID, e.PaymentIntentID, e.PaidAt,
	)
	if err != nil {
		return nil, false, err
	}
	if ct.RowsAffected() == 0 {
		// session yang sama sudah tercatat oleh transaksi lain (bisa untuk order lain)
		if owner, err = sessionOwner(ctx, tx, e.SessionID); err != nil {
			return nil, false, err
		}
		if owner != id {
			return nil, false, ErrSessionReused
		}
		return o, true, tx.Commit(ctx)
	}

	paid, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET payment_status=$2, payment_time=$3
		WHERE id=$1
		RETURNING `+orderColumns,
		id, string(PaymentPaid), e.PaidAt,
	))
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return paid, false, nil
}

// sessionOwner returns the order id already holding sessionID, or "".
func sessionOwner(ctx context.Context, tx pgx.Tx, sessionID string) (string, error) {
	var orderID string
	err := tx.QueryRow(ctx, `SELECT order_id FROM payments WHERE session_id=$1`, sessionID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return orderID, err
}

func (r *Repo) ListByCustomer(ctx context.Context, email string) ([]Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_email=$1 ORDER BY order_time DESC`, email)
}

func (r *Repo) ListByChef(ctx context.Context, chefID string) ([]Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE chef_id=$1 ORDER BY order_time DESC`, chefID)
}

func (r *Repo) listOrders(ctx context.Context, q string, arg string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repo) ListPayments(ctx context.Context, email string) ([]LedgerEntry, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+ledgerColumns+` FROM payments WHERE payer_email=$1 ORDER BY paid_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.AmountCents, &e.Currency, &e.PaymentMethod, &e.PayerEmail,
			&e.SessionID, &e.PaymentIntentID, &e.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AccountRepo reads the fraud flag from the users collection owned elsewhere.
type AccountRepo struct{ DB *pgxpool.Pool }

func (r *AccountRepo) IsFraud(ctx context.Context, email string) (bool, error) {
	var status string
	err := r.DB.QueryRow(ctx, `SELECT status FROM users WHERE email=$1`, email).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == "fraud", nil
}
