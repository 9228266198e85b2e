// Package sitecache puts a Redis read-through cache in front of the site
// and goal-rule lookups every tracker request performs.
package sitecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "spectre:"
	// negativeTTLDivisor shortens the TTL of "unknown site" entries so a
	// newly registered site becomes valid quickly.
	negativeTTLDivisor = 10
	connectionTimeout  = 5 * time.Second

	siteKnown   = "1"
	siteUnknown = "0"
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Source is the authoritative lookup behind the cache.
type Source interface {
	SiteExists(ctx context.Context, siteID string) (bool, error)
	ActiveGoals(ctx context.Context, siteID string) ([]domain.GoalRule, error)
}

// Cache is a read-through cache over Source. Redis failures are logged and
// the lookup falls through to Source.
type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	log    logger.Logger
}

// NewClient opens and pings a Redis client.
func NewClient(address, password string, db int) (*redis.Client, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// New creates a Cache.
func New(client *redis.Client, source Source, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{client: client, source: source, ttl: ttl, log: log}
}

// SiteExists reports whether siteID is registered.
func (c *Cache) SiteExists(ctx context.Context, siteID string) (bool, error) {
	key := keyPrefix + "site:" + siteID

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == siteKnown, nil
	case !errors.Is(err, redis.Nil):
		c.log.Warn("Site cache read failed", logger.String("site_id", siteID), logger.Error(err))
	}

	exists, err := c.source.SiteExists(ctx, siteID)
	if err != nil {
		return false, err
	}

	stored, ttl := siteUnknown, c.ttl/negativeTTLDivisor
	if exists {
		stored, ttl = siteKnown, c.ttl
	}
	if setErr := c.client.Set(ctx, key, stored, ttl).Err(); setErr != nil {
		c.log.Warn("Site cache write failed", logger.String("site_id", siteID), logger.Error(setErr))
	}
	return exists, nil
}

// ActiveGoals returns the active goal rules for siteID.
func (c *Cache) ActiveGoals(ctx context.Context, siteID string) ([]domain.GoalRule, error) {
	key := keyPrefix + "goals:" + siteID

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var goals []domain.GoalRule
		if jsonErr := json.Unmarshal(raw, &goals); jsonErr == nil {
			return goals, nil
		}
		c.log.Warn("Discarding corrupt goal cache entry", logger.String("site_id", siteID))
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("Goal cache read failed", logger.String("site_id", siteID), logger.Error(err))
	}

	goals, err := c.source.ActiveGoals(ctx, siteID)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(goals); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.log.Warn("Goal cache write failed", logger.String("site_id", siteID), logger.Error(setErr))
		}
	}
	return goals, nil
}

// Invalidate drops cached entries for siteID.
func (c *Cache) Invalidate(ctx context.Context, siteID string) error {
	if err := c.client.Del(ctx, keyPrefix+"site:"+siteID, keyPrefix+"goals:"+siteID).Err(); err != nil {
		return fmt.Errorf("invalidate site cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
