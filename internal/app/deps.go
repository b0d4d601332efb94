package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/cinefriends/backend/internal/config"
	"github.com/cinefriends/backend/internal/db"
	"github.com/cinefriends/backend/internal/export"
	"github.com/cinefriends/backend/internal/identity"
	"github.com/cinefriends/backend/internal/repositories"
	"github.com/cinefriends/backend/internal/social"
	"github.com/cinefriends/backend/internal/storage"
)

// Dependencies holds the wired services the commands run against.
type Dependencies struct {
	Profiles repositories.ProfileRepository
	Resolver social.ProfileResolver
	Social   *social.Service
	// Exporter is nil when no object store is configured.
	Exporter *export.Exporter
}

type cleanupFunc func(context.Context) error

// buildDependencies wires together concrete implementations used by the commands.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (Dependencies, cleanupFunc, error) {
	profiles := repositories.NewPostgresProfileRepository(pool)
	watchRecords := repositories.NewPostgresWatchRecordRepository(pool)
	ratings := repositories.NewPostgresRatingRepository(pool)
	friendships := repositories.NewPostgresFriendshipRepository(pool)

	var (
		resolver social.ProfileResolver = profiles
		closers  []func() error
	)
	cleanup := func(context.Context) error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return Dependencies{}, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, client.Close)
		resolver = identity.NewCachingResolver(profiles, client, cfg.Redis.ProfileTTL)
	}

	svc, err := social.New(social.Dependencies{
		Profiles:        resolver,
		WatchRecords:    watchRecords,
		Ratings:         ratings,
		FriendRequests:  repositories.NewPostgresFriendRequestRepository(pool),
		Friendships:     friendships,
		Recommendations: repositories.NewPostgresRecommendationRepository(pool),
	})
	if err != nil {
		_ = cleanup(ctx)
		return Dependencies{}, nil, err
	}

	deps := Dependencies{
		Profiles: profiles,
		Resolver: resolver,
		Social:   svc,
	}

	if cfg.ObjectStore.Enabled() {
		store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			_ = cleanup(ctx)
			return Dependencies{}, nil, err
		}
		deps.Exporter = &export.Exporter{
			Profiles:     profiles,
			WatchRecords: watchRecords,
			Ratings:      ratings,
			Friendships:  friendships,
			Store:        store,
			Limiter:      rate.NewLimiter(rate.Limit(cfg.Export.PerSecond), cfg.Export.Burst),
		}
	}

	return deps, cleanup, nil
}
