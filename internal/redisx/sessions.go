package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps backend sessions in Redis: one record per token and a
// pointer from each device to its active token.
type SessionStore struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = TTLSession
	}
	return &SessionStore{RDB: rdb, TTL: ttl}
}

// Create issues a new session for userID on deviceID, replacing whatever the
// device had before.
func (s *SessionStore) Create(ctx context.Context, userID, deviceID string) (orders.Session, error) {
	sess := orders.Session{
		Token:    uuid.NewString(),
		UserID:   userID,
		DeviceID: deviceID,
		IssuedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return orders.Session{}, err
	}
	prev, _ := s.RDB.Get(ctx, fmt.Sprintf(KeyDeviceSession, deviceID)).Result()

	_, err = s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if prev != "" {
			p.Del(ctx, fmt.Sprintf(KeySession, prev))
		}
		p.Set(ctx, fmt.Sprintf(KeySession, sess.Token), b, s.TTL)
		p.Set(ctx, fmt.Sprintf(KeyDeviceSession, deviceID), sess.Token, s.TTL)
		return nil
	})
	if err != nil {
		return orders.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Get returns the session for token, or nil when it does not exist or expired.
func (s *SessionStore) Get(ctx context.Context, token string) (*orders.Session, error) {
	b, err := s.RDB.Get(ctx, fmt.Sprintf(KeySession, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess orders.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Current returns the device's active session, or nil.
func (s *SessionStore) Current(ctx context.Context, deviceID string) (*orders.Session, error) {
	token, err := s.RDB.Get(ctx, fmt.Sprintf(KeyDeviceSession, deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.Get(ctx, token)
	if err != nil || sess != nil {
		return sess, err
	}
	// pointer tanpa session (sudah expired) -> bersihkan
	_ = s.RDB.Del(ctx, fmt.Sprintf(KeyDeviceSession, deviceID)).Err()
	return nil, nil
}

// Revoke drops the device's session and returns it, or nil when there was none.
func (s *SessionStore) Revoke(ctx context.Context, deviceID string) (*orders.Session, error) {
	sess, err := s.Current(ctx, deviceID)
	if err != nil || sess == nil {
		return nil, err
	}
	_, err = s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, fmt.Sprintf(KeySession, sess.Token))
		p.Del(ctx, fmt.Sprintf(KeyDeviceSession, deviceID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	return sess, nil
}
