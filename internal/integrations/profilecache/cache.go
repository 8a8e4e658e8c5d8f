package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"jobboard-messaging/internal/domain"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultMissingTTL = time.Minute
	keyPrefix         = "profile:"
	missingMarker     = "null"
)

// Source is the identity collaborator the cache sits in front of.
type Source interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// redisAPI is the subset of *redis.Client the cache uses.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache is a read-through profile cache. Unknown users are cached for a
// shorter time so a newly registered user shows up promptly. Redis failures
// degrade to calling the source directly.
type Cache struct {
	source     Source
	rdb        redisAPI
	ttl        time.Duration
	missingTTL time.Duration
	logger     *slog.Logger
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithMissingTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.missingTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(source Source, rdb redisAPI, opts ...Option) (*Cache, error) {
	if source == nil {
		return nil, errors.New("profilecache: source must not be nil")
	}
	if rdb == nil {
		return nil, errors.New("profilecache: redis client must not be nil")
	}
	c := &Cache{
		source:     source,
		rdb:        rdb,
		ttl:        DefaultTTL,
		missingTTL: DefaultMissingTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "profilecache")
	return c, nil
}

func (c *Cache) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	key := keyPrefix + strings.TrimSpace(userID)

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == missingMarker {
			return nil, nil
		}
		var p domain.UserProfile
		if decErr := json.Unmarshal([]byte(raw), &p); decErr == nil {
			return &p, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache read failed", "key", key, "err", err)
	}

	p, err := c.source.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, p)
	return p, nil
}

// Invalidate drops the cached profile for userID.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, keyPrefix+strings.TrimSpace(userID)).Err(); err != nil {
		return fmt.Errorf("profilecache: invalidate: %w", err)
	}
	return nil
}

func (c *Cache) store(ctx context.Context, key string, p *domain.UserProfile) {
	value, ttl := missingMarker, c.missingTTL
	if p != nil {
		b, err := json.Marshal(p)
		if err != nil {
			return
		}
		value, ttl = string(b), c.ttl
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("profilecache: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("profilecache: ping: %w", err)
	}
	return client, nil
}
