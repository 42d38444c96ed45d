package deckcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deckray/models"
)

const deckKeyPrefix = "deck:"

// Redis implements Store on a redis client. Insert-if-absent maps onto
// SETNX and expiry onto the key TTL, so the single-writer-per-key
// discipline holds across processes too.
type Redis struct {
	client *redis.Client
}

// Conn opens and pings a redis client.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// NewRedis constructs a redis-backed Store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error) {
	val, err := r.client.Get(ctx, deckKeyPrefix+fingerprint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, err
	}
	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return models.CacheEntry{}, false, err
	}
	return entry, true, nil
}

func (r *Redis) PutIfAbsent(ctx context.Context, fingerprint string, result models.DeckResult, ttl time.Duration) (bool, error) {
	entry := models.CacheEntry{
		Fingerprint: fingerprint,
		Result:      result,
		CreatedAt:   time.Now(),
		TTL:         ttl,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, deckKeyPrefix+fingerprint, data, ttl).Result()
}
