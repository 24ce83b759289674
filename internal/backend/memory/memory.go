// Package memory is an in-process backend for tests and BACKEND=memory
// development runs. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	user orders.User
	hash []byte
}

type Backend struct {
	mu       sync.Mutex
	accounts map[string]*account // by id
	byEmail  map[string]string
	orders   []orders.Order // insertion order
	session  *orders.Session
	deviceID string
	cost     int
	now      func() time.Time
}

type Option func(*Backend)

// WithHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(b *Backend) { b.cost = cost }
}

func WithDeviceID(id string) Option {
	return func(b *Backend) { b.deviceID = id }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		accounts: map[string]*account{},
		byEmail:  map[string]string{},
		deviceID: "local",
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (b *Backend) openSessionLocked(userID string) {
	b.session = &orders.Session{
		Token:    uuid.NewString(),
		UserID:   userID,
		DeviceID: b.deviceID,
		IssuedAt: b.now().UTC(),
	}
}

func (b *Backend) CreateUser(ctx context.Context, in orders.NewUser) (orders.User, error) {
	if err := ctx.Err(); err != nil {
		return orders.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), b.cost)
	if err != nil {
		return orders.User{}, apperr.Persistence("Registration failed", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email := normEmail(in.Email)
	if _, ok := b.byEmail[email]; ok {
		return orders.User{}, apperr.Conflict("Email is already registered", orders.ErrEmailTaken)
	}
	now := b.now().UTC()
	u := orders.User{
		ID:        uuid.NewString(),
		Email:     email,
		FullName:  in.FullName,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.accounts[u.ID] = &account{user: u, hash: hash}
	b.byEmail[email] = u.ID
	b.openSessionLocked(u.ID)
	return u, nil
}

func (b *Backend) Login(ctx context.Context, email, password string) (orders.User, error) {
	if err := ctx.Err(); err != nil {
		return orders.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.byEmail[normEmail(email)]
	if !ok {
		return orders.User{}, apperr.Auth("Invalid email or password", orders.ErrInvalidCredentials)
	}
	acc := b.accounts[id]
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return orders.User{}, apperr.Auth("Invalid email or password", orders.ErrInvalidCredentials)
	}
	b.openSessionLocked(id)
	return acc.user, nil
}

func (b *Backend) VerifyPassword(ctx context.Context, userID, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[userID]
	if !ok {
		return apperr.Persistence("User not found", orders.ErrNotFound)
	}
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return apperr.Auth("Invalid email or password", orders.ErrInvalidCredentials)
	}
	return nil
}

func (b *Backend) GetUser(ctx context.Context, id string) (orders.User, error) {
	if err := ctx.Err(); err != nil {
		return orders.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[id]
	if !ok {
		return orders.User{}, apperr.Persistence("User not found", orders.ErrNotFound)
	}
	return acc.user, nil
}

func (b *Backend) UpdateUser(ctx context.Context, userID string, p orders.ProfileUpdate) (orders.User, error) {
	if err := ctx.Err(); err != nil {
		return orders.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[userID]
	if !ok {
		return orders.User{}, apperr.Persistence("User not found", orders.ErrNotFound)
	}
	email := normEmail(p.Email)
	if owner, taken := b.byEmail[email]; taken && owner != userID {
		return orders.User{}, apperr.Conflict("Email is already registered", orders.ErrEmailTaken)
	}
	delete(b.byEmail, acc.user.Email)
	b.byEmail[email] = userID
	acc.user.FullName = p.FullName
	acc.user.Email = email
	acc.user.Phone = p.Phone
	acc.user.Address = p.Address
	acc.user.UpdatedAt = b.now().UTC()
	return acc.user, nil
}

func (b *Backend) UpdateUserPassword(ctx context.Context, userID, newPassword string) (orders.User, error) {
	if err := ctx.Err(); err != nil {
		return orders.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), b.cost)
	if err != nil {
		return orders.User{}, apperr.Persistence("Could not change password", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[userID]
	if !ok {
		return orders.User{}, apperr.Persistence("User not found", orders.ErrNotFound)
	}
	acc.hash = hash
	acc.user.UpdatedAt = b.now().UTC()
	return acc.user, nil
}

// OrdersByUser returns the user's orders, newest first.
func (b *Backend) OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []orders.Order{}
	for i := len(b.orders) - 1; i >= 0; i-- {
		if b.orders[i].UserID == userID {
			out = append(out, b.orders[i].Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *Backend) CreateOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return orders.Order{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[in.UserID]; !ok {
		return orders.Order{}, apperr.Persistence("User not found", orders.ErrNotFound)
	}
	now := b.now().UTC()
	o := orders.Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Items:         in.Items.Clone(),
		TotalPrice:    in.TotalPrice,
		Status:        in.Status,
		PaymentMethod: in.PaymentMethod,
		SenderAccount: in.SenderAccount,
		Address:       in.Address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.orders = append(b.orders, o)
	return o.Clone(), nil
}

// UpdateStatus applies a lifecycle transition, as the hosted backend does
// when an order is fulfilled or cancelled.
func (b *Backend) UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return orders.Order{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID != orderID {
			continue
		}
		if !orders.CanTransition(b.orders[i].Status, to) {
			return orders.Order{}, apperr.Conflict("Order status cannot change that way", orders.ErrInvalidTransition)
		}
		b.orders[i].Status = to
		b.orders[i].UpdatedAt = b.now().UTC()
		return b.orders[i].Clone(), nil
	}
	return orders.Order{}, apperr.Persistence("Order not found", orders.ErrNotFound)
}

func (b *Backend) CurrentSession(ctx context.Context) (*orders.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil, nil
	}
	cp := *b.session
	return &cp, nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	return nil
}
