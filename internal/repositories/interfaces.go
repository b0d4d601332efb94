package repositories

import (
	"context"

	"github.com/cinefriends/backend/internal/models"
)

// ProfileRepository resolves and provisions user profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile models.Profile) error
	ByEmail(ctx context.Context, email string) (models.Profile, error)
	ByID(ctx context.Context, id string) (models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
}

// WatchRecordRepository stores the movies on each user's list.
type WatchRecordRepository interface {
	List(ctx context.Context, ownerID string) ([]models.WatchRecordSummary, error)
	Create(ctx context.Context, ownerID, title, body, url string, watched bool) (models.WatchRecord, error)
	Get(ctx context.Context, ownerID, id string) (models.WatchRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
	ToggleWatched(ctx context.Context, ownerID, id string) (bool, error)
}

// RatingRepository stores one rating per (user, movie).
type RatingRepository interface {
	Get(ctx context.Context, userID, movieID string) (models.Rating, error)
	Create(ctx context.Context, userID, movieID string, value int, comment string) (models.Rating, error)
	Delete(ctx context.Context, userID, movieID string) error
}

// FriendRequestRepository drives the friend request lifecycle.
type FriendRequestRepository interface {
	Send(ctx context.Context, requesterID, targetID string) (models.FriendRequest, error)
	ListPendingFor(ctx context.Context, targetID string) ([]models.PendingRequest, error)
	Accept(ctx context.Context, targetID, requesterID string) error
	Reject(ctx context.Context, targetID, requesterID string) error
	// Find reads a request in either state; accepted requests remain readable.
	Find(ctx context.Context, requesterID, targetID string) (models.FriendRequest, error)
}

// FriendshipRepository stores confirmed friendships.
type FriendshipRepository interface {
	ListFriends(ctx context.Context, userID string) ([]models.Profile, error)
	Create(ctx context.Context, aID, bID string) error
}

// RecommendationRepository stores movie recommendations between users.
type RecommendationRepository interface {
	ListFor(ctx context.Context, recipientID string) ([]models.Recommendation, error)
	Create(ctx context.Context, recommenderID, recommendeeID, movieID, comment string) (models.Recommendation, error)
	Delete(ctx context.Context, recommenderID, recommendeeID, movieID string) error
	Accept(ctx context.Context, recommenderID, recommendeeID, movieID, title, comment string) (models.WatchRecord, error)
}
