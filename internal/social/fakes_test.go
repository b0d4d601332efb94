package social

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/cinefriends/backend/internal/models"
)

type fakeProfiles struct {
	byID map[string]models.Profile
}

func newFakeProfiles(profiles ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: map[string]models.Profile{}}
	for _, p := range profiles {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) ByEmail(_ context.Context, email string) (models.Profile, error) {
	email = models.NormalizeEmail(email)
	for _, p := range f.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return models.Profile{}, models.ErrNotFound
}

func (f *fakeProfiles) ByID(_ context.Context, id string) (models.Profile, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return models.Profile{}, models.ErrNotFound
}

type fakeRecords struct {
	records map[string]models.WatchRecord
	ratings *fakeRatings
	order   []string
}

func (f *fakeRecords) List(_ context.Context, ownerID string) ([]models.WatchRecordSummary, error) {
	out := []models.WatchRecordSummary{}
	for _, id := range f.order {
		rec, ok := f.records[id]
		if !ok || rec.OwnerID != ownerID {
			continue
		}
		out = append(out, models.WatchRecordSummary{ID: rec.ID, Title: rec.Title, URL: rec.URL, Watched: rec.Watched})
	}
	return out, nil
}

func (f *fakeRecords) Create(_ context.Context, ownerID, title, body, url string, watched bool) (models.WatchRecord, error) {
	rec, err := models.NewWatchRecord(ownerID, title, body, url, watched)
	if err != nil {
		return models.WatchRecord{}, err
	}
	f.records[rec.ID] = rec
	f.order = append(f.order, rec.ID)
	return rec, nil
}

func (f *fakeRecords) Get(_ context.Context, ownerID, id string) (models.WatchRecord, error) {
	rec, ok := f.records[id]
	if !ok || rec.OwnerID != ownerID {
		return models.WatchRecord{}, models.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := f.Get(ctx, ownerID, id); err != nil {
		return err
	}
	delete(f.records, id)
	return f.ratings.Delete(ctx, ownerID, id)
}

func (f *fakeRecords) ToggleWatched(ctx context.Context, ownerID, id string) (bool, error) {
	rec, err := f.Get(ctx, ownerID, id)
	if err != nil {
		return false, err
	}
	rec.Watched = !rec.Watched
	f.records[id] = rec
	if !rec.Watched {
		if err := f.ratings.Delete(ctx, ownerID, id); err != nil {
			return false, err
		}
	}
	return rec.Watched, nil
}

type fakeRatings struct {
	ratings map[[2]string]models.Rating
}

func (f *fakeRatings) Get(_ context.Context, userID, movieID string) (models.Rating, error) {
	if r, ok := f.ratings[[2]string{userID, movieID}]; ok {
		return r, nil
	}
	return models.Rating{}, models.ErrNotFound
}

func (f *fakeRatings) Create(_ context.Context, userID, movieID string, value int, comment string) (models.Rating, error) {
	r, err := models.NewRating(userID, movieID, value, comment)
	if err != nil {
		return models.Rating{}, err
	}
	f.ratings[[2]string{userID, movieID}] = r
	return r, nil
}

func (f *fakeRatings) Delete(_ context.Context, userID, movieID string) error {
	delete(f.ratings, [2]string{userID, movieID})
	return nil
}

type fakeRequests struct {
	profiles    *fakeProfiles
	friendships *fakeFriendships
	requests    []models.FriendRequest
}

func (f *fakeRequests) Send(_ context.Context, requesterID, targetID string) (models.FriendRequest, error) {
	req, err := models.NewFriendRequest(requesterID, targetID)
	if err != nil {
		return models.FriendRequest{}, err
	}
	if _, ok := f.profiles.byID[requesterID]; !ok {
		return models.FriendRequest{}, models.ErrNotFound
	}
	if _, ok := f.profiles.byID[targetID]; !ok {
		return models.FriendRequest{}, models.ErrNotFound
	}
	low, high := models.CanonicalPair(requesterID, targetID)
	if f.friendships.edges[[2]string{low, high}] {
		return models.FriendRequest{}, models.ErrDuplicate
	}
	for _, existing := range f.requests {
		l, h := models.CanonicalPair(existing.RequesterID, existing.TargetID)
		if l == low && h == high {
			return models.FriendRequest{}, models.ErrDuplicate
		}
	}
	f.requests = append(f.requests, req)
	return req, nil
}

func (f *fakeRequests) ListPendingFor(_ context.Context, targetID string) ([]models.PendingRequest, error) {
	out := []models.PendingRequest{}
	for _, req := range f.requests {
		if req.TargetID != targetID || req.State != models.FriendRequestPending {
			continue
		}
		out = append(out, models.PendingRequest{
			RequesterID:    req.RequesterID,
			RequesterEmail: f.profiles.byID[req.RequesterID].Email,
			CreatedAt:      req.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeRequests) Accept(_ context.Context, targetID, requesterID string) error {
	for i, req := range f.requests {
		if req.RequesterID == requesterID && req.TargetID == targetID && req.State == models.FriendRequestPending {
			f.requests[i].State = models.FriendRequestAccepted
			low, high := models.CanonicalPair(requesterID, targetID)
			f.friendships.edges[[2]string{low, high}] = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeRequests) Reject(_ context.Context, targetID, requesterID string) error {
	for i, req := range f.requests {
		if req.RequesterID == requesterID && req.TargetID == targetID {
			f.requests = append(f.requests[:i], f.requests[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

type fakeFriendships struct {
	profiles *fakeProfiles
	edges    map[[2]string]bool
}

func (f *fakeFriendships) ListFriends(_ context.Context, userID string) ([]models.Profile, error) {
	out := []models.Profile{}
	for edge := range f.edges {
		var other string
		switch userID {
		case edge[0]:
			other = edge[1]
		case edge[1]:
			other = edge[0]
		default:
			continue
		}
		if p, ok := f.profiles.byID[other]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRecommendations struct {
	records *fakeRecords
	recs    []models.Recommendation
}

func (f *fakeRecommendations) ListFor(_ context.Context, recipientID string) ([]models.Recommendation, error) {
	out := []models.Recommendation{}
	for _, r := range f.recs {
		if r.RecommendeeID == recipientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecommendations) Create(_ context.Context, recommenderID, recommendeeID, movieID, comment string) (models.Recommendation, error) {
	rec, err := models.NewRecommendation(recommenderID, recommendeeID, movieID, comment)
	if err != nil {
		return models.Recommendation{}, err
	}
	for i, existing := range f.recs {
		if existing.RecommenderID == recommenderID && existing.RecommendeeID == recommendeeID && existing.MovieID == movieID {
			f.recs[i].Comment = comment
			return f.recs[i], nil
		}
	}
	f.recs = append(f.recs, rec)
	return rec, nil
}

func (f *fakeRecommendations) Delete(_ context.Context, recommenderID, recommendeeID, movieID string) error {
	for i, r := range f.recs {
		if r.RecommenderID == recommenderID && r.RecommendeeID == recommendeeID && r.MovieID == movieID {
			f.recs = append(f.recs[:i], f.recs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRecommendations) Accept(ctx context.Context, recommenderID, recommendeeID, movieID, title, comment string) (models.WatchRecord, error) {
	idx := -1
	for i, r := range f.recs {
		if r.RecommenderID == recommenderID && r.RecommendeeID == recommendeeID && r.MovieID == movieID {
			idx = i
		}
	}
	body := comment
	if body == "" {
		body = title
	}
	if idx < 0 {
		return models.WatchRecord{}, models.ErrNotFound
	}
	rec, err := f.records.Create(ctx, recommendeeID, title, body, "", false)
	if err != nil {
		return models.WatchRecord{}, err
	}
	f.recs = append(f.recs[:idx], f.recs[idx+1:]...)
	return rec, nil
}

type fixture struct {
	svc         *Service
	profiles    *fakeProfiles
	records     *fakeRecords
	ratings     *fakeRatings
	requests    *fakeRequests
	friendships *fakeFriendships
	recs        *fakeRecommendations
}

func newProfile(email string) models.Profile {
	return models.Profile{ID: uuid.NewString(), Email: email}
}

func newFixture(profiles ...models.Profile) *fixture {
	f := &fixture{profiles: newFakeProfiles(profiles...)}
	f.ratings = &fakeRatings{ratings: map[[2]string]models.Rating{}}
	f.records = &fakeRecords{records: map[string]models.WatchRecord{}, ratings: f.ratings}
	f.friendships = &fakeFriendships{profiles: f.profiles, edges: map[[2]string]bool{}}
	f.requests = &fakeRequests{profiles: f.profiles, friendships: f.friendships}
	f.recs = &fakeRecommendations{records: f.records}

	svc, err := New(Dependencies{
		Profiles:        f.profiles,
		WatchRecords:    f.records,
		Ratings:         f.ratings,
		FriendRequests:  f.requests,
		Friendships:     f.friendships,
		Recommendations: f.recs,
	})
	if err != nil {
		panic(err)
	}
	f.svc = svc
	return f
}

var errStoreDown = &models.StoreError{Op: "select", Err: errors.New("connection refused")}
