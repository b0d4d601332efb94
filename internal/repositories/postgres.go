package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinefriends/backend/internal/db"
	"github.com/cinefriends/backend/internal/models"
)

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// Create persists a new profile. Profiles are normally provisioned by the account system;
// seeding and tests use this directly.
func (r *PostgresProfileRepository) Create(ctx context.Context, profile models.Profile) (err error) {
	defer track("profiles.create", time.Now(), &err)

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO profiles (id, email)
            VALUES ($1, $2)
        `, profile.ID, models.NormalizeEmail(profile.Email))
		return classify("insert profile", err)
	})
}

// ByEmail fetches a profile by its email address.
func (r *PostgresProfileRepository) ByEmail(ctx context.Context, email string) (profile models.Profile, err error) {
	defer track("profiles.by_email", time.Now(), &err)

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            SELECT id, email
            FROM profiles
            WHERE email = $1
        `, models.NormalizeEmail(email))
		return classify("select profile by email", row.Scan(&profile.ID, &profile.Email))
	})
	if err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// ByID fetches a profile by identifier.
func (r *PostgresProfileRepository) ByID(ctx context.Context, id string) (profile models.Profile, err error) {
	defer track("profiles.by_id", time.Now(), &err)

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            SELECT id, email
            FROM profiles
            WHERE id = $1
        `, id)
		return classify("select profile by id", row.Scan(&profile.ID, &profile.Email))
	})
	if err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// List returns every profile ordered by email.
func (r *PostgresProfileRepository) List(ctx context.Context) (profiles []models.Profile, err error) {
	defer track("profiles.list", time.Now(), &err)

	profiles = []models.Profile{}
	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT id, email FROM profiles ORDER BY email`)
		if err != nil {
			return classify("query profiles", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p models.Profile
			if err := rows.Scan(&p.ID, &p.Email); err != nil {
				return classify("scan profile", err)
			}
			profiles = append(profiles, p)
		}
		return classify("iterate profiles", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// PostgresWatchRecordRepository provides PostgreSQL-backed persistence for watch records.
type PostgresWatchRecordRepository struct {
	pool db.Pool
}

// NewPostgresWatchRecordRepository constructs a watch record repository backed by PostgreSQL.
func NewPostgresWatchRecordRepository(pool db.Pool) *PostgresWatchRecordRepository {
	return &PostgresWatchRecordRepository{pool: pool}
}

// List returns the owner's records, oldest first. An unknown owner yields an empty list.
func (r *PostgresWatchRecordRepository) List(ctx context.Context, ownerID string) (records []models.WatchRecordSummary, err error) {
	defer track("watch_records.list", time.Now(), &err)

	records = []models.WatchRecordSummary{}
	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
            SELECT id, title, url, watched
            FROM watch_records
            WHERE owner_id = $1
            ORDER BY created_at, id
        `, ownerID)
		if err != nil {
			return classify("query watch records", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.WatchRecordSummary
			if err := rows.Scan(&rec.ID, &rec.Title, &rec.URL, &rec.Watched); err != nil {
				return classify("scan watch record", err)
			}
			records = append(records, rec)
		}
		return classify("iterate watch records", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create stores a new record for ownerID. Blank titles or bodies are rejected.
func (r *PostgresWatchRecordRepository) Create(ctx context.Context, ownerID, title, body, url string, watched bool) (rec models.WatchRecord, err error) {
	defer track("watch_records.create", time.Now(), &err)

	rec, err = models.NewWatchRecord(ownerID, title, body, url, watched)
	if err != nil {
		return models.WatchRecord{}, err
	}

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		return insertWatchRecord(ctx, conn, rec)
	})
	if err != nil {
		return models.WatchRecord{}, err
	}
	return rec, nil
}

// Get fetches one of the owner's records.
func (r *PostgresWatchRecordRepository) Get(ctx context.Context, ownerID, id string) (rec models.WatchRecord, err error) {
	defer track("watch_records.get", time.Now(), &err)

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            SELECT id, owner_id, title, body, url, watched, created_at
            FROM watch_records
            WHERE owner_id = $1 AND id = $2
        `, ownerID, id)
		return classify("select watch record", row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Body, &rec.URL, &rec.Watched, &rec.CreatedAt))
	})
	if err != nil {
		return models.WatchRecord{}, err
	}
	return rec, nil
}

// Delete removes one of the owner's records together with the owner's rating for it.
func (r *PostgresWatchRecordRepository) Delete(ctx context.Context, ownerID, id string) (err error) {
	defer track("watch_records.delete", time.Now(), &err)

	return inTx(ctx, r.pool, "delete watch record", func(tx pgx.Tx) error {
		if err := deleteRating(ctx, tx, ownerID, id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
            DELETE FROM watch_records
            WHERE owner_id = $1 AND id = $2
        `, ownerID, id)
		if err != nil {
			return classify("delete watch record", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ToggleWatched flips the watched flag and returns the new value. Marking a movie unwatched
// drops the owner's rating for it.
func (r *PostgresWatchRecordRepository) ToggleWatched(ctx context.Context, ownerID, id string) (watched bool, err error) {
	defer track("watch_records.toggle_watched", time.Now(), &err)

	err = inTx(ctx, r.pool, "toggle watched", func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE watch_records
            SET watched = NOT watched
            WHERE owner_id = $1 AND id = $2
            RETURNING watched
        `, ownerID, id)
		if err := row.Scan(&watched); err != nil {
			return classify("update watched", err)
		}
		if watched {
			return nil
		}
		return deleteRating(ctx, tx, ownerID, id)
	})
	if err != nil {
		return false, err
	}
	return watched, nil
}

func insertWatchRecord(ctx context.Context, q db.Querier, rec models.WatchRecord) error {
	_, err := q.Exec(ctx, `
        INSERT INTO watch_records (id, owner_id, title, body, url, watched, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, rec.ID, rec.OwnerID, rec.Title, rec.Body, rec.URL, rec.Watched, rec.CreatedAt)
	return classify("insert watch record", err)
}

// PostgresRatingRepository provides PostgreSQL-backed persistence for ratings.
type PostgresRatingRepository struct {
	pool db.Pool
}

// NewPostgresRatingRepository constructs a rating repository backed by PostgreSQL.
func NewPostgresRatingRepository(pool db.Pool) *PostgresRatingRepository {
	return &PostgresRatingRepository{pool: pool}
}

// Get fetches the user's rating for a movie.
func (r *PostgresRatingRepository) Get(ctx context.Context, userID, movieID string) (rating models.Rating, err error) {
	defer track("ratings.get", time.Now(), &err)

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            SELECT user_id, movie_id, value, comment, updated_at
            FROM ratings
            WHERE user_id = $1 AND movie_id = $2
        `, userID, movieID)
		return classify("select rating", row.Scan(&rating.UserID, &rating.MovieID, &rating.Value, &rating.Comment, &rating.UpdatedAt))
	})
	if err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}

// Create stores the user's rating for a movie, replacing any previous one.
func (r *PostgresRatingRepository) Create(ctx context.Context, userID, movieID string, value int, comment string) (rating models.Rating, err error) {
	defer track("ratings.create", time.Now(), &err)

	rating, err = models.NewRating(userID, movieID, value, comment)
	if err != nil {
		return models.Rating{}, err
	}

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO ratings (user_id, movie_id, value, comment, updated_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (user_id, movie_id)
            DO UPDATE SET value = EXCLUDED.value, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
        `, rating.UserID, rating.MovieID, rating.Value, rating.Comment, rating.UpdatedAt)
		return classify("upsert rating", err)
	})
	if err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}

// Delete removes the user's rating for a movie. Deleting a missing rating is not an error.
func (r *PostgresRatingRepository) Delete(ctx context.Context, userID, movieID string) (err error) {
	defer track("ratings.delete", time.Now(), &err)

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		return deleteRating(ctx, conn, userID, movieID)
	})
}

func deleteRating(ctx context.Context, q db.Querier, userID, movieID string) error {
	_, err := q.Exec(ctx, `
        DELETE FROM ratings
        WHERE user_id = $1 AND movie_id = $2
    `, userID, movieID)
	return classify("delete rating", err)
}

var _ ProfileRepository = (*PostgresProfileRepository)(nil)
var _ WatchRecordRepository = (*PostgresWatchRecordRepository)(nil)
var _ RatingRepository = (*PostgresRatingRepository)(nil)
