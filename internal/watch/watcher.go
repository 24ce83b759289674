// Package watch follows the backend's event stream and feeds it into the
// store: session changes made elsewhere for this device, and status changes
// of the signed-in user's orders.
package watch

import (
	"context"
	"errors"
	"fmt"

	kafkax "github.com/ariefcatur/go-order-app/internal/kafka"
	"github.com/ariefcatur/go-order-app/internal/logger"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/ariefcatur/go-order-app/internal/redisx"
	"github.com/ariefcatur/go-order-app/internal/store"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Target is the part of the store the watcher drives.
type Target interface {
	HandleSessionEvent(ctx context.Context, ev store.SessionEvent) error
	FetchOrders(ctx context.Context) error
	Snapshot() store.State
}

// Deduper remembers which events were applied. Mark is only called after an
// event was applied, so failures are retried when the event comes again.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type redisDedup struct {
	rdb     *redis.Client
	service string
}

// RedisDedup keeps applied event ids per service in Redis.
func RedisDedup(rdb *redis.Client, service string) Deduper {
	return redisDedup{rdb: rdb, service: service}
}

func (d redisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Seen(ctx, d.rdb, d.service, eventID)
}

func (d redisDedup) Mark(ctx context.Context, eventID string) error {
	return redisx.MarkSeen(ctx, d.rdb, d.service, eventID)
}

type Watcher struct {
	Store    Target
	Dedup    Deduper // optional
	DeviceID string
	Log      *zap.Logger
}

// Topics are the topics Handle understands.
func Topics() []string {
	return []string{orders.TopicSession, orders.TopicOrderStatusChanged}
}

// Handle dipasang sebagai handler consumer. Returning nil commits the offset,
// so undecodable messages are logged and skipped instead of retried forever.
// An event that fails to apply returns its error and stays unmarked, so the
// consumer retries it.
func (w *Watcher) Handle(ctx context.Context, m kafkago.Message) error {
	log := logger.OrNop(w.Log)

	// 1) decode envelope
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Warn("skipping undecodable event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}
	if !handled(env.EventType) {
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	dedup := w.Dedup != nil && env.EventID != ""
	if dedup {
		seen, err := w.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if seen {
			log.Debug("duplicate event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	// 3) decode payload + apply
	var err error
	switch env.EventType {
	case orders.EventSessionSignedIn:
		err = w.signedIn(ctx, env)
	case orders.EventSessionSignedOut:
		err = w.signedOut(ctx, env)
	case orders.EventOrderStatusChanged:
		err = w.statusChanged(ctx, env)
	}
	var bad undecodable
	switch {
	case errors.As(err, &bad):
		log.Warn("skipping undecodable payload", zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType), zap.Error(err))
		return nil
	case err != nil:
		log.Warn("event not applied, will retry", zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType), zap.Error(err))
		return fmt.Errorf("apply %s: %w", env.EventID, err)
	}

	// 4) tandai setelah sukses
	if dedup {
		if err := w.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("event applied but not marked", zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	return nil
}

// undecodable wraps payload errors; those events can never succeed.
type undecodable struct{ err error }

func (u undecodable) Error() string { return "decode payload: " + u.err.Error() }
func (u undecodable) Unwrap() error { return u.err }

func handled(eventType string) bool {
	switch eventType {
	case orders.EventSessionSignedIn, orders.EventSessionSignedOut, orders.EventOrderStatusChanged:
		return true
	}
	return false
}

func (w *Watcher) signedIn(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.SessionSignedInPayload](env.Payload)
	if err != nil {
		return undecodable{err}
	}
	if p.Session.DeviceID != w.DeviceID {
		return nil
	}
	sess := p.Session
	return w.Store.HandleSessionEvent(ctx, store.SessionEvent{
		Kind:       store.SignedIn,
		Session:    &sess,
		OccurredAt: env.OccurredAt,
	})
}

func (w *Watcher) signedOut(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.SessionSignedOutPayload](env.Payload)
	if err != nil {
		return undecodable{err}
	}
	if p.DeviceID != w.DeviceID {
		return nil
	}
	return w.Store.HandleSessionEvent(ctx, store.SessionEvent{
		Kind:       store.SignedOut,
		OccurredAt: env.OccurredAt,
	})
}

// statusChanged refetches rather than patching one order, so the ledger
// always mirrors the backend.
func (w *Watcher) statusChanged(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return undecodable{err}
	}
	st := w.Store.Snapshot()
	if st.User == nil || st.User.ID != p.UserID {
		return nil
	}
	logger.OrNop(w.Log).Info("order status changed, refreshing",
		zap.String("order_id", p.OrderID), zap.String("to", string(p.To)))
	return w.Store.FetchOrders(ctx)
}
