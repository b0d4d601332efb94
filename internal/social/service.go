// Package social composes the stores into the user-facing operations of the watchlist:
// friend requests addressed by email, the recommendation inbox, and rating rules that span
// more than one store.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cinefriends/backend/internal/logging"
	"github.com/cinefriends/backend/internal/models"
)

// Dependencies bundles the stores the service is built from.
type Dependencies struct {
	Profiles        ProfileResolver
	WatchRecords    WatchRecordStore
	Ratings         RatingStore
	FriendRequests  FriendRequestStore
	Friendships     FriendshipStore
	Recommendations RecommendationStore
}

// Service implements the social watchlist operations for an authenticated user.
type Service struct {
	profiles        ProfileResolver
	watchRecords    WatchRecordStore
	ratings         RatingStore
	friendRequests  FriendRequestStore
	friendships     FriendshipStore
	recommendations RecommendationStore
}

// InboxItem is a recommendation with the recommender and movie resolved for display.
type InboxItem struct {
	models.Recommendation
	RecommenderEmail string
	Title            string
}

// MovieDetail is a watch record together with the owner's rating, if any.
type MovieDetail struct {
	Record models.WatchRecord
	Rating *models.Rating
}

// New validates deps and builds a Service.
func New(deps Dependencies) (*Service, error) {
	var missing []error
	if deps.Profiles == nil {
		missing = append(missing, errors.New("profiles"))
	}
	if deps.WatchRecords == nil {
		missing = append(missing, errors.New("watch records"))
	}
	if deps.Ratings == nil {
		missing = append(missing, errors.New("ratings"))
	}
	if deps.FriendRequests == nil {
		missing = append(missing, errors.New("friend requests"))
	}
	if deps.Friendships == nil {
		missing = append(missing, errors.New("friendships"))
	}
	if deps.Recommendations == nil {
		missing = append(missing, errors.New("recommendations"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("social: missing dependencies: %w", errors.Join(missing...))
	}

	return &Service{
		profiles:        deps.Profiles,
		watchRecords:    deps.WatchRecords,
		ratings:         deps.Ratings,
		friendRequests:  deps.FriendRequests,
		friendships:     deps.Friendships,
		recommendations: deps.Recommendations,
	}, nil
}

// expected reports errors that describe the caller's input rather than a fault.
func expected(err error) bool {
	var storeErr *models.StoreError
	return models.IsDomainError(err) && !errors.As(err, &storeErr)
}

func finish(span *logging.Span, err error) {
	span.Finish(err, expected)
}

// SendFriendRequestByEmail sends a friend request to the user registered under email.
// An unknown email yields ErrNotFound, which callers may treat as a silent no-op.
func (s *Service) SendFriendRequestByEmail(ctx context.Context, requesterID, email string) (req models.FriendRequest, err error) {
	ctx, span := logging.StartSpan(ctx, "social.send_friend_request", slog.String("requester_id", requesterID))
	defer func() { finish(span, err) }()

	target, err := s.profiles.ByEmail(ctx, email)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("resolve friend email: %w", err)
	}

	req, err = s.friendRequests.Send(ctx, requesterID, target.ID)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("send friend request: %w", err)
	}
	logging.FromContext(ctx).Info("friend request sent", slog.String("target_id", target.ID))
	return req, nil
}

// PendingRequests lists the friend requests awaiting userID's answer.
func (s *Service) PendingRequests(ctx context.Context, userID string) (pending []models.PendingRequest, err error) {
	ctx, span := logging.StartSpan(ctx, "social.pending_requests", slog.String("user_id", userID))
	defer func() { finish(span, err) }()

	return s.friendRequests.ListPendingFor(ctx, userID)
}

// AcceptFriendRequest accepts the pending request from requesterID.
func (s *Service) AcceptFriendRequest(ctx context.Context, userID, requesterID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "social.accept_friend_request",
		slog.String("user_id", userID), slog.String("requester_id", requesterID))
	defer func() { finish(span, err) }()

	if err := s.friendRequests.Accept(ctx, userID, requesterID); err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	return nil
}

// RejectFriendRequest discards the request from requesterID.
func (s *Service) RejectFriendRequest(ctx context.Context, userID, requesterID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "social.reject_friend_request",
		slog.String("user_id", userID), slog.String("requester_id", requesterID))
	defer func() { finish(span, err) }()

	if err := s.friendRequests.Reject(ctx, userID, requesterID); err != nil {
		return fmt.Errorf("reject friend request: %w", err)
	}
	return nil
}

// Friends lists userID's confirmed friends.
func (s *Service) Friends(ctx context.Context, userID string) (friends []models.Profile, err error) {
	ctx, span := logging.StartSpan(ctx, "social.friends", slog.String("user_id", userID))
	defer func() { finish(span, err) }()

	return s.friendships.ListFriends(ctx, userID)
}

// Movies lists the movies on userID's list.
func (s *Service) Movies(ctx context.Context, userID string) (movies []models.WatchRecordSummary, err error) {
	ctx, span := logging.StartSpan(ctx, "social.movies", slog.String("user_id", userID))
	defer func() { finish(span, err) }()

	return s.watchRecords.List(ctx, userID)
}

// AddMovie puts a movie on userID's list.
func (s *Service) AddMovie(ctx context.Context, userID, title, body, url string, watched bool) (rec models.WatchRecord, err error) {
	ctx, span := logging.StartSpan(ctx, "social.add_movie", slog.String("user_id", userID))
	defer func() { finish(span, err) }()

	rec, err = s.watchRecords.Create(ctx, userID, title, body, url, watched)
	if err != nil {
		return models.WatchRecord{}, fmt.Errorf("add movie: %w", err)
	}
	return rec, nil
}

// Movie returns one of userID's movies with its rating.
func (s *Service) Movie(ctx context.Context, userID, movieID string) (detail MovieDetail, err error) {
	ctx, span := logging.StartSpan(ctx, "social.movie", slog.String("user_id", userID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	rec, err := s.watchRecords.Get(ctx, userID, movieID)
	if err != nil {
		return MovieDetail{}, fmt.Errorf("get movie: %w", err)
	}
	detail.Record = rec

	rating, err := s.ratings.Get(ctx, userID, movieID)
	switch {
	case err == nil:
		detail.Rating = &rating
	case !errors.Is(err, models.ErrNotFound):
		return MovieDetail{}, fmt.Errorf("get rating: %w", err)
	}
	return detail, nil
}

// DeleteMovie removes a movie and its rating from userID's list.
func (s *Service) DeleteMovie(ctx context.Context, userID, movieID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "social.delete_movie", slog.String("user_id", userID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	if err := s.watchRecords.Delete(ctx, userID, movieID); err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	return nil
}

// ToggleWatched flips the watched flag of a movie and returns the new value.
func (s *Service) ToggleWatched(ctx context.Context, userID, movieID string) (watched bool, err error) {
	ctx, span := logging.StartSpan(ctx, "social.toggle_watched", slog.String("user_id", userID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	watched, err = s.watchRecords.ToggleWatched(ctx, userID, movieID)
	if err != nil {
		return false, fmt.Errorf("toggle watched: %w", err)
	}
	return watched, nil
}

// RateMovie rates a movie on userID's list. Only watched movies can be rated.
func (s *Service) RateMovie(ctx context.Context, userID, movieID string, value int, comment string) (rating models.Rating, err error) {
	ctx, span := logging.StartSpan(ctx, "social.rate_movie", slog.String("user_id", userID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	rec, err := s.watchRecords.Get(ctx, userID, movieID)
	if err != nil {
		return models.Rating{}, fmt.Errorf("get movie: %w", err)
	}
	if !rec.Watched {
		return models.Rating{}, fmt.Errorf("%w: movie %s has not been watched", models.ErrValidation, movieID)
	}

	rating, err = s.ratings.Create(ctx, userID, movieID, value, comment)
	if err != nil {
		return models.Rating{}, fmt.Errorf("rate movie: %w", err)
	}
	return rating, nil
}

// RecommendByEmail recommends one of the recommender's movies to the user registered under
// email. The two users do not need to be friends.
func (s *Service) RecommendByEmail(ctx context.Context, recommenderID, email, movieID, comment string) (rec models.Recommendation, err error) {
	ctx, span := logging.StartSpan(ctx, "social.recommend",
		slog.String("recommender_id", recommenderID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	recipient, err := s.profiles.ByEmail(ctx, email)
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("resolve recipient email: %w", err)
	}
	if _, err := s.watchRecords.Get(ctx, recommenderID, movieID); err != nil {
		return models.Recommendation{}, fmt.Errorf("get recommended movie: %w", err)
	}

	rec, err = s.recommendations.Create(ctx, recommenderID, recipient.ID, movieID, comment)
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("create recommendation: %w", err)
	}
	logging.FromContext(ctx).Info("recommendation sent", slog.String("recommendee_id", recipient.ID))
	return rec, nil
}

// Inbox lists the recommendations addressed to userID. Entries whose recommender or movie
// can no longer be resolved are left out.
func (s *Service) Inbox(ctx context.Context, userID string) (items []InboxItem, err error) {
	ctx, span := logging.StartSpan(ctx, "social.inbox", slog.String("user_id", userID))
	defer func() { finish(span, err) }()

	recs, err := s.recommendations.ListFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	logger := logging.FromContext(ctx)
	items = make([]InboxItem, 0, len(recs))
	for _, rec := range recs {
		item, err := s.resolveInboxItem(ctx, rec)
		if errors.Is(err, models.ErrNotFound) {
			logger.Debug("skipping unresolved recommendation",
				slog.String("recommender_id", rec.RecommenderID), slog.String("movie_id", rec.MovieID))
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) resolveInboxItem(ctx context.Context, rec models.Recommendation) (InboxItem, error) {
	recommender, err := s.profiles.ByID(ctx, rec.RecommenderID)
	if err != nil {
		return InboxItem{}, fmt.Errorf("resolve recommender: %w", err)
	}
	movie, err := s.watchRecords.Get(ctx, rec.RecommenderID, rec.MovieID)
	if err != nil {
		return InboxItem{}, fmt.Errorf("resolve recommended movie: %w", err)
	}
	return InboxItem{Recommendation: rec, RecommenderEmail: recommender.Email, Title: movie.Title}, nil
}

// AcceptRecommendation adds a recommended movie to userID's list and clears the
// recommendation.
func (s *Service) AcceptRecommendation(ctx context.Context, userID, recommenderID, movieID string) (rec models.WatchRecord, err error) {
	ctx, span := logging.StartSpan(ctx, "social.accept_recommendation",
		slog.String("user_id", userID), slog.String("recommender_id", recommenderID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	recs, err := s.recommendations.ListFor(ctx, userID)
	if err != nil {
		return models.WatchRecord{}, fmt.Errorf("list recommendations: %w", err)
	}

	var found *models.Recommendation
	for i := range recs {
		if recs[i].RecommenderID == recommenderID && recs[i].MovieID == movieID {
			found = &recs[i]
			break
		}
	}
	if found == nil {
		return models.WatchRecord{}, fmt.Errorf("find recommendation: %w", models.ErrNotFound)
	}

	movie, err := s.watchRecords.Get(ctx, recommenderID, movieID)
	if err != nil {
		return models.WatchRecord{}, fmt.Errorf("resolve recommended movie: %w", err)
	}

	rec, err = s.recommendations.Accept(ctx, recommenderID, userID, movieID, movie.Title, found.Comment)
	if err != nil {
		return models.WatchRecord{}, fmt.Errorf("accept recommendation: %w", err)
	}
	return rec, nil
}

// DismissRecommendation drops a recommendation without adding the movie.
func (s *Service) DismissRecommendation(ctx context.Context, userID, recommenderID, movieID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "social.dismiss_recommendation",
		slog.String("user_id", userID), slog.String("recommender_id", recommenderID), slog.String("movie_id", movieID))
	defer func() { finish(span, err) }()

	if err := s.recommendations.Delete(ctx, recommenderID, userID, movieID); err != nil {
		return fmt.Errorf("dismiss recommendation: %w", err)
	}
	return nil
}
