package projector

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/localchefbazaar/bazaar/internal/kafka"
	"github.com/localchefbazaar/bazaar/internal/orders"
)

var errNoOrderID = errors.New("payload has no order_id")

// Dedup is redisx.Marker.
type Dedup interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// Snapshots is redisx.StatusCache.
type Snapshots interface {
	Get(ctx context.Context, orderID string) ([]byte, bool, error)
	Set(ctx context.Context, orderID string, snapshot []byte) error
}

// Service keeps order_status:{id} in step with the lifecycle topics.
type Service struct {
	Marker Dedup
	Cache  Snapshots
}

// HandleEvent dipasang sebagai handler consumer. A nil return commits the offset.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	switch env.EventType {
	case orders.EventOrderPlaced, orders.EventOrderStatusChanged, orders.EventPaymentConfirmed:
	default:
		return nil // ignore
	}

	// 2) dedup via Redis (pakai event_id)
	seen, err := s.Marker.Seen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	// 3) decode payload; every lifecycle payload embeds the snapshot
	snap, err := kafkax.UnwrapPayload[orders.Snapshot](env.Payload)
	if err != nil {
		return err
	}
	if snap.OrderID == "" {
		return errNoOrderID
	}

	// 4) tulis snapshot, kecuali yang di cache sudah lebih baru
	if s.newerCached(ctx, snap.OrderID, env) {
		log.Printf("layer=projector order_id=%s event_id=%s skipped=stale", snap.OrderID, env.EventID)
	} else {
		view := orders.StatusView{OrderStatus: snap.OrderStatus, PaymentStatus: snap.PaymentStatus, UpdatedAt: env.OccurredAt.UTC()}
		if err := s.Cache.Set(ctx, snap.OrderID, kafkax.MustMarshal(view)); err != nil {
			return err
		}
		log.Printf("layer=projector order_id=%s event=%s order_status=%s payment_status=%s",
			snap.OrderID, env.EventType, snap.OrderStatus, snap.PaymentStatus)
	}

	return s.Marker.Mark(ctx, env.EventID)
}

// newerCached reports whether the cached snapshot was taken after env.
// The topics are separate so cross-topic delivery order is not guaranteed.
func (s *Service) newerCached(ctx context.Context, orderID string, env orders.Envelope) bool {
	b, ok, err := s.Cache.Get(ctx, orderID)
	if err != nil || !ok {
		return false
	}
	var cur orders.StatusView
	if json.Unmarshal(b, &cur) != nil {
		return false
	}
	return cur.UpdatedAt.After(env.OccurredAt)
}
