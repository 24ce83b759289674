package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/ariefcatur/go-order-app/internal/backend/memory"
	"github.com/ariefcatur/go-order-app/internal/menu"
	"github.com/ariefcatur/go-order-app/internal/notify"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/ariefcatur/go-order-app/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var _ store.Backend = (*memory.Backend)(nil)

// gated wraps the memory backend so a test can hold a call open.
type gated struct {
	*memory.Backend
	mu         sync.Mutex
	fetchHook  func(ctx context.Context) error
	createHook func(ctx context.Context) error
}

func (g *gated) setFetchHook(h func(ctx context.Context) error) {
	g.mu.Lock()
	g.fetchHook = h
	g.mu.Unlock()
}

func (g *gated) setCreateHook(h func(ctx context.Context) error) {
	g.mu.Lock()
	g.createHook = h
	g.mu.Unlock()
}

func (g *gated) OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	g.mu.Lock()
	h := g.fetchHook
	g.mu.Unlock()
	if h != nil {
		if err := h(ctx); err != nil {
			return nil, err
		}
	}
	return g.Backend.OrdersByUser(ctx, userID)
}

func (g *gated) CreateOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error) {
	g.mu.Lock()
	h := g.createHook
	g.mu.Unlock()
	if h != nil {
		if err := h(ctx); err != nil {
			return orders.Order{}, err
		}
	}
	return g.Backend.CreateOrder(ctx, in)
}

type mockBackend struct{ mock.Mock }

func (m *mockBackend) Login(ctx context.Context, email, password string) (orders.User, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(orders.User), args.Error(1)
}

func (m *mockBackend) VerifyPassword(ctx context.Context, userID, password string) error {
	return m.Called(ctx, userID, password).Error(0)
}

func (m *mockBackend) CreateUser(ctx context.Context, in orders.NewUser) (orders.User, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(orders.User), args.Error(1)
}

func (m *mockBackend) GetUser(ctx context.Context, id string) (orders.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(orders.User), args.Error(1)
}

func (m *mockBackend) UpdateUser(ctx context.Context, userID string, p orders.ProfileUpdate) (orders.User, error) {
	args := m.Called(ctx, userID, p)
	return args.Get(0).(orders.User), args.Error(1)
}

func (m *mockBackend) UpdateUserPassword(ctx context.Context, userID, pw string) (orders.User, error) {
	args := m.Called(ctx, userID, pw)
	return args.Get(0).(orders.User), args.Error(1)
}

func (m *mockBackend) OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]orders.Order)
	return list, args.Error(1)
}

func (m *mockBackend) CreateOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(orders.Order), args.Error(1)
}

func (m *mockBackend) CurrentSession(ctx context.Context) (*orders.Session, error) {
	args := m.Called(ctx)
	sess, _ := args.Get(0).(*orders.Session)
	return sess, args.Error(1)
}

func (m *mockBackend) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newStore(t *testing.T, b store.Backend, opts ...store.Option) *store.Store {
	t.Helper()
	s := store.New(b, opts...)
	t.Cleanup(s.Close)
	return s
}

func newMemory() *memory.Backend {
	return memory.New(memory.WithHashCost(bcrypt.MinCost))
}

// signedIn registers budi on b and logs in through a fresh store.
func signedIn(t *testing.T, b store.Backend, opts ...store.Option) *store.Store {
	t.Helper()
	s := newStore(t, b, opts...)
	require.NoError(t, s.Register(context.Background(), orders.NewUser{
		Email:    "budi@example.com",
		Password: "secret1",
		FullName: "Budi",
		Address:  "Jl. Merdeka 1",
	}))
	return s
}

func menuItem(t *testing.T, id string) orders.LineItem {
	t.Helper()
	it, ok := menu.Find(id)
	require.True(t, ok)
	return it.LineItem()
}

func TestCartScenario(t *testing.T) {
	s := newStore(t, newMemory())

	s.AddToCart(menuItem(t, "1"))
	s.AddToCart(menuItem(t, "1"))
	s.AddToCart(menuItem(t, "2"))

	assert.True(t, decimal.NewFromInt(80000).Equal(s.CartTotal()), s.CartTotal().String())
	assert.Equal(t, 3, s.CartCount())

	cart := s.Snapshot().Cart
	require.Len(t, cart, 2)
	assert.Equal(t, "1", cart[0].ID)
	assert.Equal(t, 2, cart[0].Quantity)

	s.UpdateQuantity("1", 0)
	assert.Equal(t, 2, s.Snapshot().Cart[0].Quantity)

	s.RemoveFromCart("1")
	s.RemoveFromCart("missing")
	assert.True(t, decimal.NewFromInt(30000).Equal(s.CartTotal()))

	s.ClearCart()
	assert.Empty(t, s.Snapshot().Cart)
	assert.True(t, s.CartTotal().IsZero())
}

func TestLoginBadCredentials(t *testing.T) {
	b := newMemory()
	_, err := b.CreateUser(context.Background(), orders.NewUser{Email: "budi@example.com", Password: "secret1", FullName: "Budi"})
	require.NoError(t, err)
	s := newStore(t, b)

	err = s.Login(context.Background(), "budi@example.com", "wrong-password")
	assert.True(t, errors.Is(err, apperr.ErrAuth))

	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.Equal(t, "Invalid email or password", st.Error)
	assert.False(t, st.IsLoading)

	s.ClearError()
	assert.Empty(t, s.Snapshot().Error)
}

func TestLoginBlankInputNeverReachesBackend(t *testing.T) {
	m := &mockBackend{}
	s := newStore(t, m)

	err := s.Login(context.Background(), "  ", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	m.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginLoadsOrders(t *testing.T) {
	b := newMemory()
	ctx := context.Background()
	u, err := b.CreateUser(ctx, orders.NewUser{Email: "budi@example.com", Password: "secret1", FullName: "Budi"})
	require.NoError(t, err)
	_, err = b.CreateOrder(ctx, orders.NewOrder{UserID: u.ID, TotalPrice: decimal.NewFromInt(25000), Status: orders.StatusProcessing})
	require.NoError(t, err)

	s := newStore(t, b)
	require.NoError(t, s.Login(ctx, "budi@example.com", "secret1"))
	st := s.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, u.ID, st.User.ID)
	assert.Len(t, st.Orders, 1)
}

func TestLoginKeepsUserWhenOrderLoadFails(t *testing.T) {
	m := &mockBackend{}
	u := orders.User{ID: "u1", Email: "budi@example.com"}
	m.On("Login", mock.Anything, "budi@example.com", "secret1").Return(u, nil)
	m.On("OrdersByUser", mock.Anything, "u1").Return(nil, errors.New("db down"))
	s := newStore(t, m)

	err := s.Login(context.Background(), "budi@example.com", "secret1")
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	st := s.Snapshot()
	require.NotNil(t, st.User)
	assert.Empty(t, st.Orders)
	assert.Equal(t, "Could not load your orders", st.Error)
}

func TestCreateOrderLeavesCartAlone(t *testing.T) {
	s := signedIn(t, newMemory())
	ctx := context.Background()
	s.AddToCart(menuItem(t, "1"))
	s.AddToCart(menuItem(t, "3"))

	o, err := s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, o.Status)
	assert.Equal(t, orders.NoSenderAccount, o.SenderAccount)
	assert.Equal(t, "Jl. Merdeka 1", o.Address)
	assert.True(t, decimal.NewFromInt(53000).Equal(o.TotalPrice))

	st := s.Snapshot()
	assert.Len(t, st.Cart, 2)
	require.Len(t, st.Orders, 1)
	assert.Equal(t, o.ID, st.Orders[0].ID)

	o2, err := s.Checkout(ctx, store.OrderRequest{PaymentMethod: orders.PaymentTransfer, SenderAccount: " 1234567890 "})
	require.NoError(t, err)
	assert.Equal(t, "1234567890", o2.SenderAccount)

	st = s.Snapshot()
	assert.Empty(t, st.Cart)
	require.Len(t, st.Orders, 2)
	assert.Equal(t, o2.ID, st.Orders[0].ID)
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()

	anon := newStore(t, newMemory())
	anon.AddToCart(menuItem(t, "1"))
	_, err := anon.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	assert.True(t, errors.Is(err, apperr.ErrAuth))

	s := signedIn(t, newMemory())
	_, err = s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "empty cart")

	s.AddToCart(menuItem(t, "1"))
	_, err = s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: "cash"})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "unknown method")

	_, err = s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentTransfer, SenderAccount: "  "})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "blank sender")
	assert.Empty(t, s.Snapshot().Orders)

	noAddr := newStore(t, newMemory())
	require.NoError(t, noAddr.Register(ctx, orders.NewUser{Email: "x@y.z", Password: "secret1", FullName: "X"}))
	noAddr.AddToCart(menuItem(t, "1"))
	_, err = noAddr.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "missing address")
}

func TestCreateOrderRejectsConcurrentSubmit(t *testing.T) {
	g := &gated{Backend: newMemory()}
	s := signedIn(t, g)
	s.AddToCart(menuItem(t, "1"))

	entered := make(chan struct{})
	release := make(chan struct{})
	g.setCreateHook(func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	errc := make(chan error, 1)
	go func() {
		_, err := s.CreateOrder(context.Background(), store.OrderRequest{PaymentMethod: orders.PaymentCOD})
		errc <- err
	}()
	<-entered

	_, err := s.CreateOrder(context.Background(), store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	assert.ErrorIs(t, err, store.ErrBusy)
	assert.True(t, s.Snapshot().IsLoading)

	close(release)
	require.NoError(t, <-errc)
	st := s.Snapshot()
	assert.Len(t, st.Orders, 1)
	assert.False(t, st.IsLoading)
}

func TestCreateOrderFailureLeavesStateUnchanged(t *testing.T) {
	m := &mockBackend{}
	u := orders.User{ID: "u1", Address: "Jl. Merdeka 1"}
	m.On("CreateOrder", mock.Anything, mock.Anything).Return(orders.Order{}, errors.New("db down"))
	s := newStore(t, m)
	s.SetUser(&u)
	s.AddToCart(menuItem(t, "2"))
	before := s.Snapshot()

	_, err := s.CreateOrder(context.Background(), store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	assert.True(t, errors.Is(err, apperr.ErrPersistence))

	after := s.Snapshot()
	assert.Equal(t, before.Cart, after.Cart)
	assert.Empty(t, after.Orders)
	assert.NotEmpty(t, after.Error)
}

func TestBackendTimeoutIsReported(t *testing.T) {
	m := &mockBackend{}
	m.On("OrdersByUser", mock.Anything, "u1").
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.DeadlineExceeded)
	s := newStore(t, m, store.WithCallTimeout(20*time.Millisecond))
	s.SetUser(&orders.User{ID: "u1"})

	err := s.FetchOrders(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrTimeout))
	assert.NotEmpty(t, s.Snapshot().Error)
}

func TestFetchOrdersWithoutUserIsNoop(t *testing.T) {
	m := &mockBackend{}
	s := newStore(t, m)
	assert.NoError(t, s.FetchOrders(context.Background()))
	m.AssertNotCalled(t, "OrdersByUser", mock.Anything, mock.Anything)
}

func TestNewerFetchSupersedesOlder(t *testing.T) {
	g := &gated{Backend: newMemory()}
	s := signedIn(t, g)
	ctx := context.Background()
	uid := s.Snapshot().User.ID

	var calls int32
	entered := make(chan struct{})
	g.setFetchHook(func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	errc := make(chan error, 1)
	go func() { errc <- s.FetchOrders(ctx) }()
	<-entered

	_, err := g.Backend.CreateOrder(ctx, orders.NewOrder{UserID: uid, TotalPrice: decimal.NewFromInt(1), Status: orders.StatusProcessing})
	require.NoError(t, err)
	require.NoError(t, s.FetchOrders(ctx))
	assert.NoError(t, <-errc)

	st := s.Snapshot()
	assert.Len(t, st.Orders, 1)
	assert.Empty(t, st.Error)
}

func TestCheckoutDuringLoginKeepsHistory(t *testing.T) {
	g := &gated{Backend: newMemory()}
	ctx := context.Background()
	u, err := g.Backend.CreateUser(ctx, orders.NewUser{
		Email: "budi@example.com", Password: "secret1", FullName: "Budi", Address: "Jl. Merdeka 1",
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = g.Backend.CreateOrder(ctx, orders.NewOrder{UserID: u.ID, TotalPrice: decimal.NewFromInt(25000), Status: orders.StatusProcessing})
		require.NoError(t, err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	g.setFetchHook(func(ctx context.Context) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})

	s := newStore(t, g)
	s.AddToCart(menuItem(t, "1"))
	errc := make(chan error, 1)
	go func() { errc <- s.Login(ctx, "budi@example.com", "secret1") }()
	<-entered

	o, err := s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-errc)

	st := s.Snapshot()
	require.Len(t, st.Orders, 4)
	assert.Equal(t, o.ID, st.Orders[0].ID)
}

func TestFetchKeepsOrderPlacedWhileInFlight(t *testing.T) {
	m := &mockBackend{}
	u := orders.User{ID: "u1", Email: "budi@example.com", Address: "Jl. Merdeka 1"}
	old := []orders.Order{
		{ID: "o2", UserID: "u1", Status: orders.StatusDelivered},
		{ID: "o1", UserID: "u1", Status: orders.StatusDelivered},
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	m.On("OrdersByUser", mock.Anything, "u1").Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(old, nil).Once()
	placed := orders.Order{ID: "o3", UserID: "u1", Status: orders.StatusProcessing}
	m.On("CreateOrder", mock.Anything, mock.Anything).Return(placed, nil)

	s := newStore(t, m)
	s.SetUser(&u)
	s.AddToCart(menuItem(t, "1"))
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- s.FetchOrders(ctx) }()
	<-entered
	_, err := s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-errc)

	st := s.Snapshot()
	require.Len(t, st.Orders, 3)
	assert.Equal(t, []string{"o3", "o2", "o1"}, []string{st.Orders[0].ID, st.Orders[1].ID, st.Orders[2].ID})
	m.AssertExpectations(t)
}

func TestStaleSignedOutIsDropped(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := signedIn(t, newMemory(), store.WithClock(func() time.Time { return t1 }))
	ctx := context.Background()

	require.NoError(t, s.HandleSessionEvent(ctx, store.SessionEvent{Kind: store.SignedOut, OccurredAt: t1.Add(-time.Second)}))
	assert.NotNil(t, s.Snapshot().User)

	require.NoError(t, s.HandleSessionEvent(ctx, store.SessionEvent{Kind: store.SignedOut, OccurredAt: t1.Add(time.Second)}))
	assert.Nil(t, s.Snapshot().User)
}

func TestSignedInEventSwitchesUser(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	b := newMemory()
	s := signedIn(t, b, store.WithClock(func() time.Time { return t1 }))
	ctx := context.Background()
	s.AddToCart(menuItem(t, "1"))
	_, err := s.CreateOrder(ctx, store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	require.NoError(t, err)

	other, err := b.CreateUser(ctx, orders.NewUser{Email: "sari@example.com", Password: "secret1", FullName: "Sari"})
	require.NoError(t, err)

	require.NoError(t, s.HandleSessionEvent(ctx, store.SessionEvent{
		Kind:       store.SignedIn,
		Session:    &orders.Session{UserID: other.ID},
		OccurredAt: t1.Add(time.Minute),
	}))
	st := s.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, other.ID, st.User.ID)
	assert.Empty(t, st.Orders)
}

func TestLogoutKeepsCartByDefault(t *testing.T) {
	s := signedIn(t, newMemory())
	s.AddToCart(menuItem(t, "1"))
	require.NoError(t, s.Logout(context.Background()))

	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.Empty(t, st.Orders)
	assert.Len(t, st.Cart, 1)
}

func TestLogoutClearsCartWhenConfigured(t *testing.T) {
	s := signedIn(t, newMemory(), store.WithLogoutClearsCart(true))
	s.AddToCart(menuItem(t, "1"))
	require.NoError(t, s.Logout(context.Background()))
	assert.Empty(t, s.Snapshot().Cart)
}

func TestLogoutFailureKeepsSession(t *testing.T) {
	m := &mockBackend{}
	m.On("SignOut", mock.Anything).Return(errors.New("network down"))
	s := newStore(t, m)
	s.SetUser(&orders.User{ID: "u1"})

	err := s.Logout(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, s.Snapshot().User)
}

func TestSetUserResetsOrdersOnUserChange(t *testing.T) {
	s := signedIn(t, newMemory())
	s.AddToCart(menuItem(t, "1"))
	_, err := s.CreateOrder(context.Background(), store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	require.NoError(t, err)

	same := *s.Snapshot().User
	same.FullName = "Budi S"
	s.SetUser(&same)
	assert.Len(t, s.Snapshot().Orders, 1)

	s.SetUser(&orders.User{ID: "someone-else"})
	assert.Empty(t, s.Snapshot().Orders)

	s.SetUser(nil)
	assert.Nil(t, s.Snapshot().User)
}

func TestRestoreSession(t *testing.T) {
	b := newMemory()
	u, err := b.CreateUser(context.Background(), orders.NewUser{Email: "budi@example.com", Password: "secret1", FullName: "Budi"})
	require.NoError(t, err)

	s := newStore(t, b)
	var sawRestoring atomic.Bool
	s.Subscribe(func(st store.State) {
		if st.Restoring {
			sawRestoring.Store(true)
		}
	})
	require.NoError(t, s.RestoreSession(context.Background()))

	st := s.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, u.ID, st.User.ID)
	assert.False(t, st.Restoring)
	assert.True(t, sawRestoring.Load())
}

func TestRestoreWithoutSessionStaysSignedOut(t *testing.T) {
	s := newStore(t, newMemory())
	require.NoError(t, s.RestoreSession(context.Background()))
	assert.Nil(t, s.Snapshot().User)
}

func TestListenersSeeEveryMutation(t *testing.T) {
	s := newStore(t, newMemory())
	var got []store.State
	unsubscribe := s.Subscribe(func(st store.State) { got = append(got, st) })

	s.AddToCart(menuItem(t, "1"))
	s.AddToCart(menuItem(t, "1"))
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Cart[0].Quantity)
	assert.Greater(t, got[1].Version, got[0].Version)

	unsubscribe()
	s.ClearCart()
	assert.Len(t, got, 2)
}

func TestUpdateQuantityNoopIsSilent(t *testing.T) {
	s := newStore(t, newMemory())
	s.AddToCart(menuItem(t, "1"))
	var calls int
	defer s.Subscribe(func(store.State) { calls++ })()
	before := s.Snapshot().Version

	s.UpdateQuantity("1", 0)
	s.UpdateQuantity("1", 1)
	s.UpdateQuantity("99", 4)
	assert.Zero(t, calls)
	assert.Equal(t, before, s.Snapshot().Version)

	s.UpdateQuantity("1", 3)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, s.CartCount())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := newStore(t, newMemory())
	s.AddToCart(menuItem(t, "1"))

	snap := s.Snapshot()
	snap.Cart[0].Quantity = 99
	snap.Cart = append(snap.Cart, menuItem(t, "2"))

	again := s.Snapshot()
	require.Len(t, again.Cart, 1)
	assert.Equal(t, 1, again.Cart[0].Quantity)
}

func TestNotificationsFollowOrders(t *testing.T) {
	s := signedIn(t, newMemory(), store.WithNotifyOptions(notify.WithLocation(time.UTC)))
	s.AddToCart(menuItem(t, "1"))
	o, err := s.CreateOrder(context.Background(), store.OrderRequest{PaymentMethod: orders.PaymentCOD})
	require.NoError(t, err)

	ns := s.Notifications()
	require.Len(t, ns, 2)
	for _, n := range ns {
		assert.Equal(t, o.ID, n.OrderID)
	}
}

func TestUpdateProfile(t *testing.T) {
	s := signedIn(t, newMemory())
	ctx := context.Background()

	_, err := s.UpdateProfile(ctx, orders.ProfileUpdate{FullName: "", Email: "budi@example.com"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	u, err := s.UpdateProfile(ctx, orders.ProfileUpdate{FullName: "Budi Santoso", Email: "budi@example.com", Phone: "0812", Address: "Jl. Sudirman 2"})
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", u.FullName)
	assert.Equal(t, "Jl. Sudirman 2", s.Snapshot().User.Address)
}

func TestUpdatePassword(t *testing.T) {
	s := signedIn(t, newMemory())
	ctx := context.Background()

	err := s.UpdatePassword(ctx, store.PasswordChange{Current: "secret1", New: "secret2", Confirm: "secret3"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	err = s.UpdatePassword(ctx, store.PasswordChange{Current: "wrong", New: "secret2", Confirm: "secret2"})
	assert.True(t, errors.Is(err, apperr.ErrAuth))
	assert.Equal(t, "Current password is incorrect", s.Snapshot().Error)

	require.NoError(t, s.UpdatePassword(ctx, store.PasswordChange{Current: "secret1", New: "secret2", Confirm: "secret2"}))

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Login(ctx, "budi@example.com", "secret2"))
}

func TestValidateRegistration(t *testing.T) {
	assert.True(t, errors.Is(store.ValidateRegistration(orders.NewUser{Email: "a@b.c", Password: "secret1"}), apperr.ErrValidation))
	assert.True(t, errors.Is(store.ValidateRegistration(orders.NewUser{Email: "a@b.c", Password: "12345", FullName: "A"}), apperr.ErrValidation))
	assert.NoError(t, store.ValidateRegistration(orders.NewUser{Email: "a@b.c", Password: "123456", FullName: "A"}))
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	b := newMemory()
	signedIn(t, b)
	s := newStore(t, b)
	err := s.Register(context.Background(), orders.NewUser{Email: "budi@example.com", Password: "secret1", FullName: "Other"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Nil(t, s.Snapshot().User)
}
