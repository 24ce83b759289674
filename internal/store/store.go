// Package store is the client-side application store: the signed-in user,
// the cart, the user's orders and the notification feed derived from them.
//
// A Store is created explicitly with New and handed to whatever renders it.
// Observers subscribe to whole-state snapshots; every mutation publishes one
// snapshot after the change is complete, so no observer sees a half-applied
// update.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/ariefcatur/go-order-app/internal/cart"
	"github.com/ariefcatur/go-order-app/internal/logger"
	"github.com/ariefcatur/go-order-app/internal/notify"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"go.uber.org/zap"
)

// Backend is the persistence and auth collaborator. Implementations return
// *apperr.Error values for failures they can classify.
type Backend interface {
	Login(ctx context.Context, email, password string) (orders.User, error)
	VerifyPassword(ctx context.Context, userID, password string) error
	CreateUser(ctx context.Context, in orders.NewUser) (orders.User, error)
	GetUser(ctx context.Context, id string) (orders.User, error)
	UpdateUser(ctx context.Context, userID string, p orders.ProfileUpdate) (orders.User, error)
	UpdateUserPassword(ctx context.Context, userID, newPassword string) (orders.User, error)
	OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error)
	CreateOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error)
	CurrentSession(ctx context.Context) (*orders.Session, error)
	SignOut(ctx context.Context) error
}

// State is a point-in-time copy of the store. It shares no memory with the
// store or with other snapshots.
type State struct {
	User      *orders.User   `json:"user"`
	Cart      orders.Items   `json:"cart"`
	Orders    []orders.Order `json:"orders"`
	IsLoading bool           `json:"is_loading"`
	Restoring bool           `json:"restoring"`
	Error     string         `json:"error,omitempty"`
	Version   uint64         `json:"version"`
}

// Listener receives the state after each mutation. Listeners run on the
// goroutine that made the change and must not block. Under concurrent
// mutations a listener may see versions out of order; compare Version.
type Listener func(State)

var (
	// ErrBusy rejects a second checkout while one is still being submitted.
	ErrBusy = apperr.Validation("An order is already being placed")

	ErrClosed = errors.New("store closed")
)

type Store struct {
	backend          Backend
	log              *zap.Logger
	callTimeout      time.Duration
	logoutClearsCart bool
	notifyOpts       []notify.Option
	now              func() time.Time

	mu        sync.Mutex
	user      *orders.User
	cart      *cart.Ledger
	orders    []orders.Order
	pending   int
	restoring bool
	errMsg    string
	version   uint64

	// ordersGen changes whenever a newer fetch starts or the owner changes; a
	// fetch only lands if the generation it started with is current.
	ordersGen   uint64
	fetchCancel context.CancelFunc
	// created holds orders placed by this store since the owner last changed,
	// oldest first. A landing fetch keeps the ones it started too early to see.
	created []orders.Order
	creating    bool

	// session transitions run one at a time on the loop goroutine.
	queue          chan func()
	quit           chan struct{}
	done           chan struct{}
	closeOnce      sync.Once
	lastTransition time.Time

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = logger.OrNop(l) }
}

// WithCallTimeout bounds every backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithLogoutClearsCart decides whether signing out also empties the cart.
func WithLogoutClearsCart(clear bool) Option {
	return func(s *Store) { s.logoutClearsCart = clear }
}

func WithNotifyOptions(opts ...notify.Option) Option {
	return func(s *Store) { s.notifyOpts = append(s.notifyOpts, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store and starts its session loop. Close stops it.
func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend:     b,
		log:         zap.NewNop(),
		callTimeout: 10 * time.Second,
		now:         time.Now,
		cart:        cart.New(),
		orders:      []orders.Order{},
		queue:       make(chan func()),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		listeners:   map[int]Listener{},
	}
	for _, o := range opts {
		o(s)
	}
	go s.loop()
	return s
}

// Close stops the session loop after the transition in progress, if any.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
	s.mu.Lock()
	if s.fetchCancel != nil {
		s.fetchCancel()
	}
	s.mu.Unlock()
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case job := <-s.queue:
			job()
		case <-s.quit:
			return
		}
	}
}

// serialize runs fn on the session loop and waits for it.
func (s *Store) serialize(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	job := func() {
		if err := ctx.Err(); err != nil {
			errc <- err
			return
		}
		errc <- fn()
	}
	select {
	case s.queue <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	}
	return <-errc
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{
		Cart:      s.cart.Items(),
		Orders:    cloneOrders(s.orders),
		IsLoading: s.pending > 0,
		Restoring: s.restoring,
		Error:     s.errMsg,
		Version:   s.version,
	}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// landOrdersLocked replaces the ledger with list plus any order created since
// mark that list does not carry yet.
func (s *Store) landOrdersLocked(list []orders.Order, mark int) {
	out := cloneOrders(list)
	have := make(map[string]bool, len(out))
	for _, o := range out {
		have[o.ID] = true
	}
	var missing []orders.Order
	for i := len(s.created) - 1; i >= mark; i-- {
		if o := s.created[i]; !have[o.ID] {
			missing = append(missing, o.Clone())
		}
	}
	if len(missing) > 0 {
		out = append(missing, out...)
	}
	s.orders = out
}

func cloneOrders(list []orders.Order) []orders.Order {
	out := make([]orders.Order, len(list))
	for i, o := range list {
		out[i] = o.Clone()
	}
	return out
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

// update applies fn under the state lock and publishes the result.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(st)
}

// updateIf is update for mutations that may turn out to be no-ops; nothing
// is emitted when fn reports no change.
func (s *Store) updateIf(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(st)
}

func (s *Store) emit(st State) {
	s.lmu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	s.lmu.Unlock()
	for _, l := range ls {
		l(st)
	}
}

func (s *Store) ClearError() {
	s.update(func() { s.errMsg = "" })
}

// begin marks a backend operation as in flight and clears the previous error.
func (s *Store) begin() {
	s.update(func() {
		s.pending++
		s.errMsg = ""
	})
}

func (s *Store) end() {
	s.update(func() { s.pending-- })
}

// fail records err for display and returns it. Cancellations are not
// failures of the operation and are not recorded.
func (s *Store) fail(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	s.log.Warn("store operation failed", zap.String("op", op),
		zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
	s.update(func() { s.errMsg = apperr.Message(err) })
	return err
}

// call runs fn with the store's timeout and classifies its error.
func call[T any](s *Store, ctx context.Context, msg string, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	v, err := fn(cctx)
	if err == nil {
		return v, nil
	}
	return v, classify(ctx, msg, err)
}

func callErr(s *Store, ctx context.Context, msg string, fn func(context.Context) error) error {
	_, err := call(s, ctx, msg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func classify(parent context.Context, msg string, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("The server took too long to respond. Please try again.", err)
	}
	return apperr.Persistence(msg, err)
}
