package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Seen reports whether service already processed eventID.
func Seen(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	n, err := rdb.Exists(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Result()
	return n > 0, err
}

// MarkSeen records eventID as processed. Call it only once processing
// succeeded, so a failed event is retried on redelivery.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, eventID string) error {
	return rdb.Set(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Err()
}
