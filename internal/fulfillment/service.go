package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// StatusStore advances an order along its lifecycle.
type StatusStore interface {
	UpdateStatus(ctx context.Context, code string, next orders.Status) (orders.Status, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Deduper remembers event ids that were already handled.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Service consumes order.placed events and confirms the orders. Stock was
// already taken synchronously at placement time, so the worker only moves
// PENDING orders to CONFIRMED and announces it.
type Service struct {
	Store       StatusStore
	Dedup       Deduper
	Producer    Publisher // publishes order.confirmed
	ServiceName string
}

// HandleOrderPlaced is installed as the consumer handler. Returning an error
// keeps the offset uncommitted so the message is retried.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil // ignore
	}

	seen, err := s.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		log.WithError(err).Warn("dedup lookup failed, processing anyway")
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	_, err = s.Store.UpdateStatus(ctx, p.Code, orders.StatusConfirmed)
	if err != nil {
		var ill *orders.IllegalTransitionError
		if errors.As(err, &ill) {
			// replay of an order that already moved past PENDING
			_ = s.Dedup.Mark(ctx, env.EventID)
			return nil
		}
		var nf *orders.NotFoundError
		if errors.As(err, &nf) {
			log.WithField("code", p.Code).Warn("placed event for unknown order, dropping")
			return nil
		}
		return err
	}

	if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
		log.WithError(err).Warn("dedup mark failed")
	}
	s.publishConfirmed(p, env.TraceID)
	return nil
}

func (s *Service) publishConfirmed(p orders.OrderPlacedPayload, trace string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderConfirmed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: p.Code,
		Payload:       kafkax.MustMarshal(orders.OrderConfirmedPayload{OrderID: p.OrderID, Code: p.Code}),
	}
	s.Producer.Publish(orders.PartitionKey(p.Code), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderConfirmed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
