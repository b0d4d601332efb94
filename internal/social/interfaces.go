package social

import (
	"context"

	"github.com/cinefriends/backend/internal/models"
)

// ProfileResolver resolves users by email or identifier.
type ProfileResolver interface {
	ByEmail(ctx context.Context, email string) (models.Profile, error)
	ByID(ctx context.Context, id string) (models.Profile, error)
}

// WatchRecordStore captures the watch list operations used by the service.
type WatchRecordStore interface {
	List(ctx context.Context, ownerID string) ([]models.WatchRecordSummary, error)
	Create(ctx context.Context, ownerID, title, body, url string, watched bool) (models.WatchRecord, error)
	Get(ctx context.Context, ownerID, id string) (models.WatchRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
	ToggleWatched(ctx context.Context, ownerID, id string) (bool, error)
}

// RatingStore captures rating persistence.
type RatingStore interface {
	Get(ctx context.Context, userID, movieID string) (models.Rating, error)
	Create(ctx context.Context, userID, movieID string, value int, comment string) (models.Rating, error)
	Delete(ctx context.Context, userID, movieID string) error
}

// FriendRequestStore captures the friend request lifecycle.
type FriendRequestStore interface {
	Send(ctx context.Context, requesterID, targetID string) (models.FriendRequest, error)
	ListPendingFor(ctx context.Context, targetID string) ([]models.PendingRequest, error)
	Accept(ctx context.Context, targetID, requesterID string) error
	Reject(ctx context.Context, targetID, requesterID string) error
}

// FriendshipStore lists confirmed friends.
type FriendshipStore interface {
	ListFriends(ctx context.Context, userID string) ([]models.Profile, error)
}

// RecommendationStore captures recommendation persistence.
type RecommendationStore interface {
	ListFor(ctx context.Context, recipientID string) ([]models.Recommendation, error)
	Create(ctx context.Context, recommenderID, recommendeeID, movieID, comment string) (models.Recommendation, error)
	Delete(ctx context.Context, recommenderID, recommendeeID, movieID string) error
	Accept(ctx context.Context, recommenderID, recommendeeID, movieID, title, comment string) (models.WatchRecord, error)
}
