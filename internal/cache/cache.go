package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"llm-gateway/internal/config"
	"llm-gateway/internal/llm"
)

// NewClient builds a redis client from config
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ResponseCache stores chat responses keyed by the full request shape,
// so identical submissions skip the queue entirely. Misses and redis
// failures both degrade to "not cached".
type ResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewResponseCache(rdb *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{rdb: rdb, ttl: ttl}
}

// Key derives a stable cache key from everything that influences the
// completion: model, messages, token budget and temperature.
func Key(req *llm.ChatRequest) string {
	payload, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return "llmgw:chat:" + hex.EncodeToString(sum[:])
}

// Get returns a cached response, or false on miss or any redis error
func (c *ResponseCache) Get(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, bool) {
	key := Key(req)
	if key == "" {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Cache] Lookup failed: %v", err)
		}
		return nil, false
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Printf("[Cache] Dropping corrupt entry %s: %v", key, err)
		c.rdb.Del(ctx, key)
		return nil, false
	}
	return &resp, true
}

// Set stores a response with the configured TTL. Failures are logged,
// never propagated; caching is best effort.
func (c *ResponseCache) Set(ctx context.Context, req *llm.ChatRequest, resp *llm.ChatResponse) {
	key := Key(req)
	if key == "" {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("[Cache] Store failed: %v", err)
	}
}
