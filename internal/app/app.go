package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cinefriends/backend/internal/config"
	"github.com/cinefriends/backend/internal/db"
	"github.com/cinefriends/backend/internal/logging"
)

const usage = "expected command: migrate, seed, export, friends, recs, or movies"

// Run bootstraps the cinefriends command line and dispatches to the requested command.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "migrate", "seed", "export", "friends", "recs", "movies":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	switch args[0] {
	case "migrate":
		return runMigrations(ctx, cfg, args[1:], out)
	case "seed":
		return runSeed(ctx, cfg, args[1:], out)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(context.Background()); err != nil {
			logger.Warn("cleanup failed", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "export":
		return runExport(ctx, deps, args[1:], out)
	case "friends":
		return runFriends(ctx, deps, args[1:], out)
	case "recs":
		return runRecommendations(ctx, deps, args[1:], out)
	default:
		return runMovies(ctx, deps, args[1:], out)
	}
}
