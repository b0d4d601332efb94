package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinefriends/backend/internal/db"
	"github.com/cinefriends/backend/internal/models"
)

// PostgresFriendRequestRepository provides PostgreSQL-backed persistence for friend requests.
type PostgresFriendRequestRepository struct {
	pool db.Pool
}

// NewPostgresFriendRequestRepository constructs a friend request repository backed by PostgreSQL.
func NewPostgresFriendRequestRepository(pool db.Pool) *PostgresFriendRequestRepository {
	return &PostgresFriendRequestRepository{pool: pool}
}

// Send creates a pending request from requesterID to targetID. At most one request may
// exist per unordered pair, and none may be sent once the pair are friends.
func (r *PostgresFriendRequestRepository) Send(ctx context.Context, requesterID, targetID string) (req models.FriendRequest, err error) {
	defer track("friend_requests.send", time.Now(), &err)

	req, err = models.NewFriendRequest(requesterID, targetID)
	if err != nil {
		return models.FriendRequest{}, err
	}
	low, high := models.CanonicalPair(requesterID, targetID)

	err = inTx(ctx, r.pool, "send friend request", func(tx pgx.Tx) error {
		var friends bool
		if err := tx.QueryRow(ctx, `
            SELECT EXISTS (SELECT 1 FROM friendships WHERE a_id = $1 AND b_id = $2)
        `, low, high).Scan(&friends); err != nil {
			return classify("check friendship", err)
		}
		if friends {
			return ErrConflict
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO friend_requests (requester_id, target_id, pair_low, pair_high, state, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, req.RequesterID, req.TargetID, low, high, req.State, req.CreatedAt)
		return classify("insert friend request", err)
	})
	if err != nil {
		return models.FriendRequest{}, err
	}
	return req, nil
}

// ListPendingFor returns the requests still awaiting targetID's answer, oldest first.
func (r *PostgresFriendRequestRepository) ListPendingFor(ctx context.Context, targetID string) (pending []models.PendingRequest, err error) {
	defer track("friend_requests.list_pending", time.Now(), &err)

	pending = []models.PendingRequest{}
	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
            SELECT fr.requester_id, p.email, fr.created_at
            FROM friend_requests fr
            JOIN profiles p ON p.id = fr.requester_id
            WHERE fr.target_id = $1 AND fr.state = $2
            ORDER BY fr.created_at, fr.requester_id
        `, targetID, models.FriendRequestPending)
		if err != nil {
			return classify("query pending friend requests", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p models.PendingRequest
			if err := rows.Scan(&p.RequesterID, &p.RequesterEmail, &p.CreatedAt); err != nil {
				return classify("scan pending friend request", err)
			}
			pending = append(pending, p)
		}
		return classify("iterate pending friend requests", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Accept marks the pending request from requesterID to targetID as accepted and records the
// friendship in the same transaction.
func (r *PostgresFriendRequestRepository) Accept(ctx context.Context, targetID, requesterID string) (err error) {
	defer track("friend_requests.accept", time.Now(), &err)

	edge, err := models.NewFriendshipEdge(requesterID, targetID)
	if err != nil {
		return err
	}

	return inTx(ctx, r.pool, "accept friend request", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE friend_requests
            SET state = $3, responded_at = $4
            WHERE requester_id = $1 AND target_id = $2 AND state = $5
        `, requesterID, targetID, models.FriendRequestAccepted, time.Now().UTC(), models.FriendRequestPending)
		if err != nil {
			return classify("update friend request", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertFriendship(ctx, tx, edge)
	})
}

// Reject deletes the request from requesterID to targetID whatever its state.
func (r *PostgresFriendRequestRepository) Reject(ctx context.Context, targetID, requesterID string) (err error) {
	defer track("friend_requests.reject", time.Now(), &err)

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `
            DELETE FROM friend_requests
            WHERE requester_id = $1 AND target_id = $2
        `, requesterID, targetID)
		if err != nil {
			return classify("delete friend request", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Find fetches the request from requesterID to targetID.
func (r *PostgresFriendRequestRepository) Find(ctx context.Context, requesterID, targetID string) (req models.FriendRequest, err error) {
	defer track("friend_requests.find", time.Now(), &err)

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            SELECT requester_id, target_id, state, created_at, responded_at
            FROM friend_requests
            WHERE requester_id = $1 AND target_id = $2
        `, requesterID, targetID)
		return classify("select friend request", row.Scan(&req.RequesterID, &req.TargetID, &req.State, &req.CreatedAt, &req.RespondedAt))
	})
	if err != nil {
		return models.FriendRequest{}, err
	}
	return req, nil
}

// PostgresFriendshipRepository provides PostgreSQL-backed persistence for friendships.
type PostgresFriendshipRepository struct {
	pool db.Pool
}

// NewPostgresFriendshipRepository constructs a friendship repository backed by PostgreSQL.
func NewPostgresFriendshipRepository(pool db.Pool) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{pool: pool}
}

// ListFriends returns the profiles on the other end of userID's friendships, in the order
// the friendships were made.
func (r *PostgresFriendshipRepository) ListFriends(ctx context.Context, userID string) (friends []models.Profile, err error) {
	defer track("friendships.list", time.Now(), &err)

	friends = []models.Profile{}
	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
            WITH edges AS (
                SELECT b_id AS friend_id, created_at FROM friendships WHERE a_id = $1
                UNION ALL
                SELECT a_id AS friend_id, created_at FROM friendships WHERE b_id = $1
            )
            SELECT p.id, p.email
            FROM edges e
            JOIN profiles p ON p.id = e.friend_id
            ORDER BY e.created_at, p.id
        `, userID)
		if err != nil {
			return classify("query friendships", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p models.Profile
			if err := rows.Scan(&p.ID, &p.Email); err != nil {
				return classify("scan friend", err)
			}
			friends = append(friends, p)
		}
		return classify("iterate friendships", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return friends, nil
}

// Create records a friendship between aID and bID. Creating an existing friendship is a no-op.
func (r *PostgresFriendshipRepository) Create(ctx context.Context, aID, bID string) (err error) {
	defer track("friendships.create", time.Now(), &err)

	edge, err := models.NewFriendshipEdge(aID, bID)
	if err != nil {
		return err
	}

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		return insertFriendship(ctx, conn, edge)
	})
}

func insertFriendship(ctx context.Context, q db.Querier, edge models.FriendshipEdge) error {
	_, err := q.Exec(ctx, `
        INSERT INTO friendships (a_id, b_id, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (a_id, b_id) DO NOTHING
    `, edge.AID, edge.BID, edge.CreatedAt)
	return classify("insert friendship", err)
}

// PostgresRecommendationRepository provides PostgreSQL-backed persistence for recommendations.
type PostgresRecommendationRepository struct {
	pool db.Pool
}

// NewPostgresRecommendationRepository constructs a recommendation repository backed by PostgreSQL.
func NewPostgresRecommendationRepository(pool db.Pool) *PostgresRecommendationRepository {
	return &PostgresRecommendationRepository{pool: pool}
}

// ListFor returns the recommendations addressed to recipientID, oldest first.
func (r *PostgresRecommendationRepository) ListFor(ctx context.Context, recipientID string) (recs []models.Recommendation, err error) {
	defer track("recommendations.list", time.Now(), &err)

	recs = []models.Recommendation{}
	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
            SELECT recommender_id, recommendee_id, movie_id, comment, created_at
            FROM recommendations
            WHERE recommendee_id = $1
            ORDER BY created_at, recommender_id, movie_id
        `, recipientID)
		if err != nil {
			return classify("query recommendations", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.Recommendation
			if err := rows.Scan(&rec.RecommenderID, &rec.RecommendeeID, &rec.MovieID, &rec.Comment, &rec.CreatedAt); err != nil {
				return classify("scan recommendation", err)
			}
			recs = append(recs, rec)
		}
		return classify("iterate recommendations", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Create stores a recommendation. Recommending the same movie to the same user again
// replaces the comment.
func (r *PostgresRecommendationRepository) Create(ctx context.Context, recommenderID, recommendeeID, movieID, comment string) (rec models.Recommendation, err error) {
	defer track("recommendations.create", time.Now(), &err)

	rec, err = models.NewRecommendation(recommenderID, recommendeeID, movieID, comment)
	if err != nil {
		return models.Recommendation{}, err
	}

	err = withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            INSERT INTO recommendations (recommender_id, recommendee_id, movie_id, comment, created_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (recommender_id, recommendee_id, movie_id)
            DO UPDATE SET comment = EXCLUDED.comment
            RETURNING created_at
        `, rec.RecommenderID, rec.RecommendeeID, rec.MovieID, rec.Comment, rec.CreatedAt)
		return classify("upsert recommendation", row.Scan(&rec.CreatedAt))
	})
	if err != nil {
		return models.Recommendation{}, err
	}
	return rec, nil
}

// Delete removes a recommendation. Deleting a missing recommendation is not an error.
func (r *PostgresRecommendationRepository) Delete(ctx context.Context, recommenderID, recommendeeID, movieID string) (err error) {
	defer track("recommendations.delete", time.Now(), &err)

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := deleteRecommendation(ctx, conn, recommenderID, recommendeeID, movieID)
		return err
	})
}

// Accept turns a recommendation into a watch record owned by the recommendee and removes the
// recommendation. The comment becomes the record body; a blank comment falls back to the
// title. If the recommendation no longer exists nothing is written.
func (r *PostgresRecommendationRepository) Accept(ctx context.Context, recommenderID, recommendeeID, movieID, title, comment string) (rec models.WatchRecord, err error) {
	defer track("recommendations.accept", time.Now(), &err)

	body := comment
	if strings.TrimSpace(body) == "" {
		body = title
	}
	rec, err = models.NewWatchRecord(recommendeeID, title, body, "", false)
	if err != nil {
		return models.WatchRecord{}, err
	}

	err = inTx(ctx, r.pool, "accept recommendation", func(tx pgx.Tx) error {
		if err := insertWatchRecord(ctx, tx, rec); err != nil {
			return err
		}
		deleted, err := deleteRecommendation(ctx, tx, recommenderID, recommendeeID, movieID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return models.WatchRecord{}, err
	}
	return rec, nil
}

func deleteRecommendation(ctx context.Context, q db.Querier, recommenderID, recommendeeID, movieID string) (int64, error) {
	tag, err := q.Exec(ctx, `
        DELETE FROM recommendations
        WHERE recommender_id = $1 AND recommendee_id = $2 AND movie_id = $3
    `, recommenderID, recommendeeID, movieID)
	if err != nil {
		return 0, classify("delete recommendation", err)
	}
	return tag.RowsAffected(), nil
}

var _ FriendRequestRepository = (*PostgresFriendRequestRepository)(nil)
var _ FriendshipRepository = (*PostgresFriendshipRepository)(nil)
var _ RecommendationRepository = (*PostgresRecommendationRepository)(nil)
