// Package identity resolves opaque user identifiers and email addresses to profiles.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinefriends/backend/internal/logging"
	"github.com/cinefriends/backend/internal/models"
)

const (
	emailKeyPrefix = "profile:email:"
	idKeyPrefix    = "profile:id:"
)

// Resolver looks up profiles by email or identifier.
type Resolver interface {
	ByEmail(ctx context.Context, email string) (models.Profile, error)
	ByID(ctx context.Context, id string) (models.Profile, error)
}

// CachingResolver wraps another Resolver with a Redis-backed TTL cache. Only successful
// lookups are cached; cache failures fall through to the base resolver.
type CachingResolver struct {
	base   Resolver
	client redis.Cmdable
	ttl    time.Duration
}

// NewCachingResolver returns a Resolver that caches lookups for the provided TTL.
func NewCachingResolver(base Resolver, client redis.Cmdable, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingResolver{base: base, client: client, ttl: ttl}
}

// ByEmail returns the cached profile for email when available, otherwise it delegates to
// the base resolver and stores the result under both keys.
func (c *CachingResolver) ByEmail(ctx context.Context, email string) (models.Profile, error) {
	email = models.NormalizeEmail(email)
	return c.lookup(ctx, emailKeyPrefix+email, func() (models.Profile, error) {
		return c.base.ByEmail(ctx, email)
	})
}

// ByID returns the cached profile for id when available, otherwise it delegates to the
// base resolver and stores the result under both keys.
func (c *CachingResolver) ByID(ctx context.Context, id string) (models.Profile, error) {
	return c.lookup(ctx, idKeyPrefix+id, func() (models.Profile, error) {
		return c.base.ByID(ctx, id)
	})
}

func (c *CachingResolver) lookup(ctx context.Context, key string, load func() (models.Profile, error)) (models.Profile, error) {
	logger := logging.FromContext(ctx)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var profile models.Profile
		if err := json.Unmarshal(data, &profile); err == nil {
			return profile, nil
		}
		logger.Warn("discarding malformed cached profile", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		logger.Warn("profile cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	profile, err := load()
	if err != nil {
		return models.Profile{}, err
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return profile, nil
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, emailKeyPrefix+profile.Email, payload, c.ttl)
	pipe.Set(ctx, idKeyPrefix+profile.ID, payload, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("profile cache write failed", slog.String("profile_id", profile.ID), slog.Any("error", err))
	}

	return profile, nil
}

var _ Resolver = (*CachingResolver)(nil)
