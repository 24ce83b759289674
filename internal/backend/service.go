// Package backend is the hosted collaborator behind the store: accounts and
// orders in Postgres, device sessions in Redis, and session/order events on
// Kafka so other devices and services can follow along.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	kafkax "github.com/ariefcatur/go-order-app/internal/kafka"
	"github.com/ariefcatur/go-order-app/internal/logger"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Repository is the account and order storage; *orders.Repo implements it.
type Repository interface {
	CreateUser(ctx context.Context, in orders.NewUser) (orders.User, error)
	Authenticate(ctx context.Context, email, password string) (orders.User, error)
	VerifyPassword(ctx context.Context, userID, password string) error
	GetUser(ctx context.Context, id string) (orders.User, error)
	UpdateUser(ctx context.Context, id string, p orders.ProfileUpdate) (orders.User, error)
	UpdatePassword(ctx context.Context, id, newPassword string) (orders.User, error)
	CreateOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Status, orders.Order, error)
}

// Sessions keeps one active session per device; *redisx.SessionStore implements it.
type Sessions interface {
	Create(ctx context.Context, userID, deviceID string) (orders.Session, error)
	Current(ctx context.Context, deviceID string) (*orders.Session, error)
	Revoke(ctx context.Context, deviceID string) (*orders.Session, error)
}

// Publisher is a fire-and-forget event sink; *kafka.Producer implements it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Repo     Repository
	Sessions Sessions

	// nil publishers are skipped
	SessionEvents Publisher
	OrderEvents   Publisher
	StatusEvents  Publisher

	DeviceID    string
	ServiceName string
	Log         *zap.Logger
}

func (s *Service) log() *zap.Logger { return logger.OrNop(s.Log) }

// mapErr turns repository errors into the kinds the store reports.
func mapErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orders.ErrInvalidCredentials):
		return apperr.Auth("Invalid email or password", err)
	case errors.Is(err, orders.ErrEmailTaken):
		return apperr.Conflict("Email is already registered", err)
	case errors.Is(err, orders.ErrNotFound):
		return apperr.Persistence(msg, err)
	case errors.Is(err, orders.ErrInvalidTransition):
		return apperr.Conflict("Order status cannot change that way", err)
	case errors.Is(err, context.DeadlineExceeded):
		// the store classifies deadlines itself
		return err
	}
	return apperr.Persistence(msg, err)
}

func (s *Service) publish(p Publisher, key, eventType, correlation string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: correlation,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(key), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType)...)
}

// Login checks the credentials and opens a session for this device.
func (s *Service) Login(ctx context.Context, email, password string) (orders.User, error) {
	u, err := s.Repo.Authenticate(ctx, email, password)
	if err != nil {
		return orders.User{}, mapErr(err, "Login failed")
	}
	if err := s.openSession(ctx, u.ID); err != nil {
		return orders.User{}, err
	}
	return u, nil
}

func (s *Service) openSession(ctx context.Context, userID string) error {
	sess, err := s.Sessions.Create(ctx, userID, s.DeviceID)
	if err != nil {
		return mapErr(err, "Could not start a session")
	}
	s.publish(s.SessionEvents, s.DeviceID, orders.EventSessionSignedIn, s.DeviceID,
		orders.SessionSignedInPayload{Session: sess})
	s.log().Info("session opened", zap.String("user_id", userID), zap.String("device_id", s.DeviceID))
	return nil
}

func (s *Service) VerifyPassword(ctx context.Context, userID, password string) error {
	return mapErr(s.Repo.VerifyPassword(ctx, userID, password), "Could not verify password")
}

// CreateUser registers the account and signs it in on this device.
func (s *Service) CreateUser(ctx context.Context, in orders.NewUser) (orders.User, error) {
	u, err := s.Repo.CreateUser(ctx, in)
	if err != nil {
		return orders.User{}, mapErr(err, "Registration failed")
	}
	if err := s.openSession(ctx, u.ID); err != nil {
		return orders.User{}, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (orders.User, error) {
	u, err := s.Repo.GetUser(ctx, id)
	return u, mapErr(err, "User not found")
}

func (s *Service) UpdateUser(ctx context.Context, userID string, p orders.ProfileUpdate) (orders.User, error) {
	u, err := s.Repo.UpdateUser(ctx, userID, p)
	return u, mapErr(err, "Could not update profile")
}

func (s *Service) UpdateUserPassword(ctx context.Context, userID, newPassword string) (orders.User, error) {
	u, err := s.Repo.UpdatePassword(ctx, userID, newPassword)
	return u, mapErr(err, "Could not change password")
}

func (s *Service) OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	list, err := s.Repo.ListByUser(ctx, userID)
	return list, mapErr(err, "Could not load your orders")
}

// CreateOrder stores the order and announces it on order.created.
func (s *Service) CreateOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error) {
	o, err := s.Repo.CreateOrder(ctx, in)
	if err != nil {
		return orders.Order{}, mapErr(err, "Could not place your order. Please try again.")
	}
	s.publish(s.OrderEvents, o.ID, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      o.Items,
		TotalPrice: o.TotalPrice,
	})
	return o, nil
}

// UpdateStatus moves an order along its lifecycle and announces the change.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Order, error) {
	from, o, err := s.Repo.UpdateStatus(ctx, orderID, to)
	if err != nil {
		return orders.Order{}, mapErr(err, "Order not found")
	}
	s.publish(s.StatusEvents, o.ID, orders.EventOrderStatusChanged, o.ID, orders.OrderStatusChangedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		From:    from,
		To:      to,
	})
	s.log().Info("order status changed", zap.String("order_id", o.ID),
		zap.String("from", string(from)), zap.String("to", string(to)))
	return o, nil
}

// CurrentSession returns this device's session, or nil when signed out.
func (s *Service) CurrentSession(ctx context.Context) (*orders.Session, error) {
	sess, err := s.Sessions.Current(ctx, s.DeviceID)
	return sess, mapErr(err, "Could not read session")
}

// SignOut revokes this device's session. Signing out with no session is fine.
func (s *Service) SignOut(ctx context.Context) error {
	sess, err := s.Sessions.Revoke(ctx, s.DeviceID)
	if err != nil {
		return mapErr(err, "Logout failed")
	}
	if sess == nil {
		return nil
	}
	s.publish(s.SessionEvents, s.DeviceID, orders.EventSessionSignedOut, s.DeviceID,
		orders.SessionSignedOutPayload{DeviceID: s.DeviceID, Token: sess.Token, UserID: sess.UserID})
	s.log().Info("session closed", zap.String("user_id", sess.UserID), zap.String("device_id", s.DeviceID))
	return nil
}
