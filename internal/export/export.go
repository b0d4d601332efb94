// Package export writes JSON snapshots of users' watch lists to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/cinefriends/backend/internal/logging"
	"github.com/cinefriends/backend/internal/metrics"
	"github.com/cinefriends/backend/internal/models"
	"github.com/cinefriends/backend/internal/storage"
)

const contentType = "application/json"

// ProfileLister resolves the users to export.
type ProfileLister interface {
	ByID(ctx context.Context, id string) (models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
}

// WatchRecordReader reads a user's watch list.
type WatchRecordReader interface {
	List(ctx context.Context, ownerID string) ([]models.WatchRecordSummary, error)
	Get(ctx context.Context, ownerID, id string) (models.WatchRecord, error)
}

// RatingReader reads a user's ratings.
type RatingReader interface {
	Get(ctx context.Context, userID, movieID string) (models.Rating, error)
}

// FriendLister lists a user's friends.
type FriendLister interface {
	ListFriends(ctx context.Context, userID string) ([]models.Profile, error)
}

// Snapshot is the document uploaded for one user.
type Snapshot struct {
	Profile    ProfileView `json:"profile"`
	ExportedAt time.Time   `json:"exported_at"`
	Friends    []string    `json:"friends"`
	Movies     []MovieView `json:"movies"`
}

// ProfileView identifies the exported user.
type ProfileView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// MovieView is one watch record with its optional rating.
type MovieView struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	URL       string      `json:"url,omitempty"`
	Watched   bool        `json:"watched"`
	CreatedAt time.Time   `json:"created_at"`
	Rating    *RatingView `json:"rating,omitempty"`
}

// RatingView is the owner's rating of a movie.
type RatingView struct {
	Value     int       `json:"value"`
	Comment   string    `json:"comment,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result summarises a bulk export.
type Result struct {
	Uploaded int
	Failed   int
}

// Exporter builds and uploads watch list snapshots.
type Exporter struct {
	Profiles     ProfileLister
	WatchRecords WatchRecordReader
	Ratings      RatingReader
	Friendships  FriendLister
	Store        storage.ObjectStore
	// Limiter paces uploads during ExportAll. A nil limiter does not throttle.
	Limiter *rate.Limiter

	now func() time.Time
}

func (e *Exporter) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now().UTC()
}

// Build assembles the snapshot for userID without uploading it.
func (e *Exporter) Build(ctx context.Context, userID string) (Snapshot, error) {
	profile, err := e.Profiles.ByID(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolve profile: %w", err)
	}

	snap := Snapshot{
		Profile:    ProfileView{ID: profile.ID, Email: profile.Email},
		ExportedAt: e.clock(),
		Friends:    []string{},
		Movies:     []MovieView{},
	}

	friends, err := e.Friendships.ListFriends(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list friends: %w", err)
	}
	for _, f := range friends {
		snap.Friends = append(snap.Friends, f.Email)
	}

	summaries, err := e.WatchRecords.List(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list movies: %w", err)
	}
	for _, summary := range summaries {
		rec, err := e.WatchRecords.Get(ctx, userID, summary.ID)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted between list and get.
			continue
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("get movie %s: %w", summary.ID, err)
		}

		movie := MovieView{
			ID:        rec.ID,
			Title:     rec.Title,
			Body:      rec.Body,
			URL:       rec.URL,
			Watched:   rec.Watched,
			CreatedAt: rec.CreatedAt,
		}
		rating, err := e.Ratings.Get(ctx, userID, rec.ID)
		switch {
		case err == nil:
			movie.Rating = &RatingView{Value: rating.Value, Comment: rating.Comment, UpdatedAt: rating.UpdatedAt}
		case !errors.Is(err, models.ErrNotFound):
			return Snapshot{}, fmt.Errorf("get rating %s: %w", rec.ID, err)
		}
		snap.Movies = append(snap.Movies, movie)
	}

	return snap, nil
}

// Export uploads the snapshot for userID and returns its location.
func (e *Exporter) Export(ctx context.Context, userID string) (location string, err error) {
	ctx, span := logging.StartSpan(ctx, "export.user", slog.String("user_id", userID))
	defer func() { span.Finish(err, nil) }()

	snap, err := e.Build(ctx, userID)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("%s/%s.json", userID, snap.ExportedAt.Format("20060102T150405Z"))
	location, err = e.Store.Save(ctx, name, contentType, bytes.NewReader(payload))
	metrics.RecordExportUpload(err)
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	logging.FromContext(ctx).Info("watch list exported",
		slog.String("location", location), slog.Int("movies", len(snap.Movies)))
	return location, nil
}

// ExportAll exports every profile, pacing uploads with the limiter. Individual failures are
// logged and counted; the returned error joins them.
func (e *Exporter) ExportAll(ctx context.Context) (Result, error) {
	ctx, span := logging.StartSpan(ctx, "export.all")
	defer span.End()

	profiles, err := e.Profiles.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list profiles: %w", err)
	}

	var (
		result Result
		errs   []error
	)
	for _, p := range profiles {
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				return result, errors.Join(append(errs, err)...)
			}
		}
		if _, err := e.Export(ctx, p.ID); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("export %s: %w", p.ID, err))
			continue
		}
		result.Uploaded++
	}
	return result, errors.Join(errs...)
}
