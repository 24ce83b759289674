package store

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"go.uber.org/zap"
)

const MinPasswordLength = 6

type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent is a sign-in or sign-out reported by the backend on its own,
// independent of calls made through the store.
type SessionEvent struct {
	Kind       SessionEventKind
	Session    *orders.Session
	OccurredAt time.Time
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

// ValidateRegistration checks a registration form before it is submitted.
func ValidateRegistration(in orders.NewUser) error {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return apperr.Validation("Full name, email and password are required")
	}
	if len(in.Password) < MinPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}
	return nil
}

func validatePasswordChange(pc PasswordChange) error {
	if pc.Current == "" || pc.New == "" || pc.Confirm == "" {
		return apperr.Validation("All fields are required")
	}
	if pc.New != pc.Confirm {
		return apperr.Validation("New password and confirmation do not match")
	}
	if len(pc.New) < MinPasswordLength {
		return apperr.Validation("New password must be at least 6 characters")
	}
	return nil
}

// Login authenticates and loads the user's orders. If the user is
// authenticated but the orders cannot be loaded, the user stays signed in
// with an empty order list and the load error is returned.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return s.fail("login", apperr.Validation("Email and password are required"))
	}
	return s.serialize(ctx, func() error {
		s.lastTransition = s.now()
		s.begin()
		defer s.end()

		u, err := call(s, ctx, "Login failed", func(ctx context.Context) (orders.User, error) {
			return s.backend.Login(ctx, email, password)
		})
		if err != nil {
			return s.fail("login", err)
		}
		var (
			gen  uint64
			mark int
		)
		s.update(func() {
			gen = s.setUserLocked(&u)
			mark = len(s.created)
		})
		s.log.Info("logged in", zap.String("user_id", u.ID))

		list, err := call(s, ctx, "Could not load your orders", func(ctx context.Context) ([]orders.Order, error) {
			return s.backend.OrdersByUser(ctx, u.ID)
		})
		if err != nil {
			return s.fail("login", err)
		}
		s.update(func() {
			if s.ordersGen == gen {
				s.landOrdersLocked(list, mark)
			}
		})
		return nil
	})
}

// Register creates the account and signs it in with an empty order list.
// Field validation is the caller's job; see ValidateRegistration.
func (s *Store) Register(ctx context.Context, in orders.NewUser) error {
	return s.serialize(ctx, func() error {
		s.lastTransition = s.now()
		s.begin()
		defer s.end()

		u, err := call(s, ctx, "Registration failed", func(ctx context.Context) (orders.User, error) {
			return s.backend.CreateUser(ctx, in)
		})
		if err != nil {
			return s.fail("register", err)
		}
		s.update(func() {
			s.setUserLocked(&u)
			s.orders = []orders.Order{}
		})
		s.log.Info("registered", zap.String("user_id", u.ID))
		return nil
	})
}

// Logout ends the remote session first; the local session is only cleared
// once that succeeds.
func (s *Store) Logout(ctx context.Context) error {
	return s.serialize(ctx, func() error {
		s.lastTransition = s.now()
		s.begin()
		defer s.end()

		err := callErr(s, ctx, "Logout failed", s.backend.SignOut)
		if err != nil {
			return s.fail("logout", err)
		}
		s.update(s.clearSessionLocked)
		s.log.Info("logged out")
		return nil
	})
}

// SetUser replaces the current user directly. Switching to a different user
// (or to none) drops the previous user's orders.
func (s *Store) SetUser(u *orders.User) {
	_ = s.serialize(context.Background(), func() error {
		s.lastTransition = s.now()
		s.update(func() { s.setUserLocked(u) })
		return nil
	})
}

// setUserLocked returns the order generation current after the change.
func (s *Store) setUserLocked(u *orders.User) uint64 {
	if u == nil {
		s.user = nil
		s.resetOrdersLocked()
		return s.ordersGen
	}
	cp := *u
	if s.user == nil || s.user.ID != cp.ID {
		s.resetOrdersLocked()
	}
	s.user = &cp
	return s.ordersGen
}

func (s *Store) resetOrdersLocked() {
	s.orders = []orders.Order{}
	s.created = nil
	s.ordersGen++
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
}

func (s *Store) clearSessionLocked() {
	s.user = nil
	s.resetOrdersLocked()
	if s.logoutClearsCart {
		s.cart.Clear()
	}
}

// RestoreSession picks up a session left by a previous run. Failures are
// logged only; the app simply starts signed out.
func (s *Store) RestoreSession(ctx context.Context) error {
	return s.serialize(ctx, func() error {
		s.update(func() { s.restoring = true })
		defer s.update(func() { s.restoring = false })

		sess, err := call(s, ctx, "Could not restore session", s.backend.CurrentSession)
		if err != nil {
			s.log.Warn("session restore failed", zap.Error(err))
			return err
		}
		if sess == nil {
			return nil
		}
		u, err := call(s, ctx, "Could not restore session", func(ctx context.Context) (orders.User, error) {
			return s.backend.GetUser(ctx, sess.UserID)
		})
		if err != nil {
			s.log.Warn("session restore failed", zap.String("user_id", sess.UserID), zap.Error(err))
			return err
		}
		s.lastTransition = s.now()
		s.update(func() { s.setUserLocked(&u) })
		s.log.Info("session restored", zap.String("user_id", u.ID))
		return nil
	})
}

// HandleSessionEvent applies a backend session event in order with explicit
// logins and logouts. Events that happened before the latest explicit
// transition began are stale and ignored.
func (s *Store) HandleSessionEvent(ctx context.Context, ev SessionEvent) error {
	return s.serialize(ctx, func() error {
		if ev.OccurredAt.Before(s.lastTransition) {
			s.log.Debug("stale session event dropped", zap.String("kind", string(ev.Kind)),
				zap.Time("occurred_at", ev.OccurredAt))
			return nil
		}
		switch ev.Kind {
		case SignedIn:
			if ev.Session == nil {
				return nil
			}
			s.mu.Lock()
			same := s.user != nil && s.user.ID == ev.Session.UserID
			s.mu.Unlock()
			if same {
				return nil
			}
			u, err := call(s, ctx, "Could not load user", func(ctx context.Context) (orders.User, error) {
				return s.backend.GetUser(ctx, ev.Session.UserID)
			})
			if err != nil {
				s.log.Warn("signed_in event: user lookup failed", zap.String("user_id", ev.Session.UserID), zap.Error(err))
				return err
			}
			s.update(func() { s.setUserLocked(&u) })
		case SignedOut:
			s.mu.Lock()
			had := s.user != nil
			s.mu.Unlock()
			if had {
				s.update(s.clearSessionLocked)
			}
		}
		return nil
	})
}

// UpdateProfile saves the editable profile fields of the current user.
func (s *Store) UpdateProfile(ctx context.Context, p orders.ProfileUpdate) (orders.User, error) {
	if strings.TrimSpace(p.FullName) == "" || strings.TrimSpace(p.Email) == "" {
		return orders.User{}, s.fail("update_profile", apperr.Validation("Full name and email are required"))
	}
	uid, err := s.currentUserID()
	if err != nil {
		return orders.User{}, s.fail("update_profile", err)
	}
	s.begin()
	defer s.end()

	u, err := call(s, ctx, "Could not update profile", func(ctx context.Context) (orders.User, error) {
		return s.backend.UpdateUser(ctx, uid, p)
	})
	if err != nil {
		return orders.User{}, s.fail("update_profile", err)
	}
	s.update(func() {
		if s.user != nil && s.user.ID == uid {
			cp := u
			s.user = &cp
		}
	})
	return u, nil
}

// UpdatePassword checks the current password with the backend before
// replacing it.
func (s *Store) UpdatePassword(ctx context.Context, pc PasswordChange) error {
	if err := validatePasswordChange(pc); err != nil {
		return s.fail("update_password", err)
	}
	uid, err := s.currentUserID()
	if err != nil {
		return s.fail("update_password", err)
	}
	s.begin()
	defer s.end()

	err = callErr(s, ctx, "Could not verify password", func(ctx context.Context) error {
		return s.backend.VerifyPassword(ctx, uid, pc.Current)
	})
	if apperr.KindOf(err) == apperr.KindAuth {
		return s.fail("update_password", apperr.Auth("Current password is incorrect", err))
	}
	if err != nil {
		return s.fail("update_password", err)
	}
	_, err = call(s, ctx, "Could not change password", func(ctx context.Context) (orders.User, error) {
		return s.backend.UpdateUserPassword(ctx, uid, pc.New)
	})
	if err != nil {
		return s.fail("update_password", err)
	}
	return nil
}

func (s *Store) currentUserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return "", apperr.Auth("Please log in first", nil)
	}
	return s.user.ID, nil
}
