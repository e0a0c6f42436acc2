package metadatacache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// hotCache wraps an optional Redis client providing a fast path in front
// of Store. A nil *hotCache is valid and simply always misses, so the
// Redis tier can be omitted entirely without branching at every call
// site.
type hotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newHotCache(addr, password string, db int) (*hotCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &hotCache{client: client, ttl: 1 * time.Hour}, nil
}

func (h *hotCache) get(ctx context.Context, crateName string) (string, bool) {
	if h == nil {
		return "", false
	}
	val, err := h.client.Get(ctx, redisKey(crateName)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (h *hotCache) set(ctx context.Context, crateName, description string) {
	if h == nil {
		return
	}
	h.client.Set(ctx, redisKey(crateName), description, h.ttl)
}

func (h *hotCache) close() error {
	if h == nil {
		return nil
	}
	return h.client.Close()
}

func redisKey(crateName string) string {
	return "palletizer:description:" + crateName
}
