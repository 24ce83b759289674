package store

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/ariefcatur/go-order-app/internal/notify"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderRequest is what the payment screen collects.
type OrderRequest struct {
	PaymentMethod orders.PaymentMethod `json:"payment_method"`
	SenderAccount string               `json:"sender_account"`
}

// buildOrderLocked validates the checkout and snapshots the cart.
func (s *Store) buildOrderLocked(req OrderRequest) (orders.NewOrder, error) {
	if s.user == nil {
		return orders.NewOrder{}, apperr.Auth("Please log in first", nil)
	}
	if s.cart.Len() == 0 {
		return orders.NewOrder{}, apperr.Validation("Your cart is empty")
	}
	if strings.TrimSpace(s.user.Address) == "" {
		return orders.NewOrder{}, apperr.Validation("Delivery address is not set. Please complete your profile first.")
	}
	if !req.PaymentMethod.Valid() {
		return orders.NewOrder{}, apperr.Validation("Please choose a payment method")
	}
	sender := orders.NoSenderAccount
	if req.PaymentMethod == orders.PaymentTransfer {
		sender = strings.TrimSpace(req.SenderAccount)
		if sender == "" {
			return orders.NewOrder{}, apperr.Validation("Please enter the sender account number")
		}
	}
	if s.creating {
		return orders.NewOrder{}, ErrBusy
	}
	return orders.NewOrder{
		UserID:        s.user.ID,
		Items:         s.cart.Items(),
		TotalPrice:    s.cart.Total(),
		Status:        orders.StatusProcessing,
		PaymentMethod: req.PaymentMethod,
		SenderAccount: sender,
		Address:       s.user.Address,
	}, nil
}

// CreateOrder submits the current cart as an order and, once the backend
// confirms it, puts it at the front of the order list. The cart is left
// untouched; see Checkout. Nothing is shown locally unless the backend
// accepted the order.
func (s *Store) CreateOrder(ctx context.Context, req OrderRequest) (orders.Order, error) {
	s.mu.Lock()
	in, err := s.buildOrderLocked(req)
	if err == nil {
		s.creating = true
	}
	s.mu.Unlock()
	if err != nil {
		return orders.Order{}, s.fail("create_order", err)
	}
	defer func() {
		s.mu.Lock()
		s.creating = false
		s.mu.Unlock()
	}()

	s.begin()
	defer s.end()

	o, err := call(s, ctx, "Could not place your order. Please try again.", func(ctx context.Context) (orders.Order, error) {
		return s.backend.CreateOrder(ctx, in)
	})
	if err != nil {
		return orders.Order{}, s.fail("create_order", err)
	}
	s.update(func() {
		if s.user == nil || s.user.ID != in.UserID {
			return
		}
		s.orders = append([]orders.Order{o.Clone()}, s.orders...)
		s.created = append(s.created, o.Clone())
	})
	s.log.Info("order created", zap.String("order_id", o.ID), zap.String("user_id", o.UserID),
		zap.String("total", o.TotalPrice.String()))
	return o, nil
}

// Checkout places the order and then empties the cart. The order is the
// point of no return: once it exists, clearing the cart is cleanup.
func (s *Store) Checkout(ctx context.Context, req OrderRequest) (orders.Order, error) {
	o, err := s.CreateOrder(ctx, req)
	if err != nil {
		return orders.Order{}, err
	}
	s.ClearCart()
	return o, nil
}

// FetchOrders reloads the current user's orders, newest first. A newer fetch
// or a change of user supersedes one still in flight; superseded results are
// dropped and the call returns nil. Orders placed while the fetch was running
// survive it even when the backend answered without them.
func (s *Store) FetchOrders(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	userID := s.user.ID
	if s.fetchCancel != nil {
		s.fetchCancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.fetchCancel = cancel
	s.ordersGen++
	gen := s.ordersGen
	mark := len(s.created)
	s.mu.Unlock()
	defer cancel()

	s.begin()
	defer s.end()

	list, err := call(s, fctx, "Could not load your orders", func(ctx context.Context) ([]orders.Order, error) {
		return s.backend.OrdersByUser(ctx, userID)
	})

	s.mu.Lock()
	current := s.ordersGen == gen && s.user != nil && s.user.ID == userID
	if current {
		s.fetchCancel = nil
	}
	s.mu.Unlock()
	if !current {
		s.log.Debug("superseded order fetch dropped", zap.String("user_id", userID))
		return nil
	}
	if err != nil {
		return s.fail("fetch_orders", err)
	}

	applied := false
	s.update(func() {
		if s.ordersGen == gen {
			s.landOrdersLocked(list, mark)
			applied = true
		}
	})
	if !applied {
		s.log.Debug("superseded order fetch dropped", zap.String("user_id", userID))
	}
	return nil
}

// Notifications derives the feed from the current orders.
func (s *Store) Notifications() []notify.Notification {
	s.mu.Lock()
	list := cloneOrders(s.orders)
	s.mu.Unlock()
	return notify.Project(list, s.notifyOpts...)
}

func (s *Store) AddToCart(item orders.LineItem) {
	s.update(func() { s.cart.Add(item) })
}

func (s *Store) RemoveFromCart(id string) {
	s.update(func() { s.cart.Remove(id) })
}

// UpdateQuantity refuses quantities below 1 without changing anything.
// Listeners are only told about calls that changed the cart.
func (s *Store) UpdateQuantity(id string, quantity int) {
	s.updateIf(func() bool { return s.cart.UpdateQuantity(id, quantity) })
}

func (s *Store) ClearCart() {
	s.update(s.cart.Clear)
}

func (s *Store) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// CartCount is the number of units in the cart.
func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}
