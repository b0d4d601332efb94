package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cinefriends/backend/internal/validation"
)

// Profile is an account known to the platform. Profiles are provisioned outside the core.
type Profile struct {
	ID    string `db:"id" validate:"required"`
	Email string `db:"email" validate:"required,email"`
}

// WatchRecord is a movie on a user's list. Its ID doubles as the movie identifier used by
// ratings and recommendations.
type WatchRecord struct {
	ID        string `db:"id" validate:"required"`
	OwnerID   string `db:"owner_id" validate:"required"`
	Title     string `db:"title" validate:"notblank,max=500"`
	Body      string `db:"body" validate:"notblank,max=10000"`
	URL       string `db:"url" validate:"max=2048"`
	Watched   bool   `db:"watched"`
	CreatedAt time.Time
}

// WatchRecordSummary is the list view of a watch record.
type WatchRecordSummary struct {
	ID      string
	Title   string
	URL     string
	Watched bool
}

// FriendRequestState is the lifecycle state of a friend request. Rejected requests are
// deleted rather than kept in a terminal state.
type FriendRequestState string

const (
	FriendRequestPending  FriendRequestState = "pending"
	FriendRequestAccepted FriendRequestState = "accepted"
)

// FriendRequest is a directed invitation from Requester to Target.
type FriendRequest struct {
	RequesterID string             `db:"requester_id" validate:"required"`
	TargetID    string             `db:"target_id" validate:"required"`
	State       FriendRequestState `db:"state" validate:"oneof=pending accepted"`
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// PendingRequest is an incoming friend request with the requester's email resolved.
type PendingRequest struct {
	RequesterID    string
	RequesterEmail string
	CreatedAt      time.Time
}

// FriendshipEdge is a confirmed, undirected friendship. AID always sorts before BID.
type FriendshipEdge struct {
	AID       string `db:"a_id" validate:"required"`
	BID       string `db:"b_id" validate:"required"`
	CreatedAt time.Time
}

// Rating is a user's score for one movie.
type Rating struct {
	UserID    string `db:"user_id" validate:"required"`
	MovieID   string `db:"movie_id" validate:"required"`
	Value     int    `db:"value" validate:"min=0,max=5"`
	Comment   string `db:"comment" validate:"max=10000"`
	UpdatedAt time.Time
}

// Recommendation is a directed movie suggestion from one user to another.
type Recommendation struct {
	RecommenderID string `db:"recommender_id" validate:"required"`
	RecommendeeID string `db:"recommendee_id" validate:"required"`
	MovieID       string `db:"movie_id" validate:"required"`
	Comment       string `db:"comment" validate:"max=10000"`
	CreatedAt     time.Time
}

// NormalizeEmail trims and lower-cases an email address for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CanonicalPair orders two identifiers so that an unordered pair has a single representation.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// NewProfile builds a profile with a fresh identifier.
func NewProfile(email string) (Profile, error) {
	p := Profile{ID: uuid.NewString(), Email: NormalizeEmail(email)}
	if err := validation.Struct(p); err != nil {
		return Profile{}, invalid(err)
	}
	return p, nil
}

// NewWatchRecord builds a watch record owned by ownerID. Title and body must not be blank.
func NewWatchRecord(ownerID, title, body, url string, watched bool) (WatchRecord, error) {
	rec := WatchRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(title),
		Body:      body,
		URL:       strings.TrimSpace(url),
		Watched:   watched,
		CreatedAt: time.Now().UTC(),
	}
	if err := validation.Struct(rec); err != nil {
		return WatchRecord{}, invalid(err)
	}
	return rec, nil
}

// NewRating builds a rating; value must lie in [0, 5].
func NewRating(userID, movieID string, value int, comment string) (Rating, error) {
	r := Rating{
		UserID:    userID,
		MovieID:   movieID,
		Value:     value,
		Comment:   comment,
		UpdatedAt: time.Now().UTC(),
	}
	if err := validation.Struct(r); err != nil {
		return Rating{}, invalid(err)
	}
	return r, nil
}

// NewFriendRequest builds a pending request from requesterID to targetID.
func NewFriendRequest(requesterID, targetID string) (FriendRequest, error) {
	if requesterID == targetID {
		return FriendRequest{}, ErrSelfReference
	}
	req := FriendRequest{
		RequesterID: requesterID,
		TargetID:    targetID,
		State:       FriendRequestPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := validation.Struct(req); err != nil {
		return FriendRequest{}, invalid(err)
	}
	return req, nil
}

// NewFriendshipEdge builds the canonical edge for the unordered pair {a, b}.
func NewFriendshipEdge(a, b string) (FriendshipEdge, error) {
	if a == b {
		return FriendshipEdge{}, ErrSelfReference
	}
	low, high := CanonicalPair(a, b)
	edge := FriendshipEdge{AID: low, BID: high, CreatedAt: time.Now().UTC()}
	if err := validation.Struct(edge); err != nil {
		return FriendshipEdge{}, invalid(err)
	}
	return edge, nil
}

// NewRecommendation builds a recommendation of movieID from recommenderID to recommendeeID.
func NewRecommendation(recommenderID, recommendeeID, movieID, comment string) (Recommendation, error) {
	if recommenderID == recommendeeID {
		return Recommendation{}, ErrSelfReference
	}
	rec := Recommendation{
		RecommenderID: recommenderID,
		RecommendeeID: recommendeeID,
		MovieID:       movieID,
		Comment:       comment,
		CreatedAt:     time.Now().UTC(),
	}
	if err := validation.Struct(rec); err != nil {
		return Recommendation{}, invalid(err)
	}
	return rec, nil
}
