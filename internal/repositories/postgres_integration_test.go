package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinefriends/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresProfileRepository_CreateAndResolve(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresProfileRepository(testPool)
	alice := createTestProfile(t, "Alice@Example.com")

	if err := repo.Create(ctx, models.Profile{ID: "other-id", Email: "alice@example.com"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	byEmail, err := repo.ByEmail(ctx, "  ALICE@example.com ")
	if err != nil {
		t.Fatalf("resolve by email: %v", err)
	}
	if byEmail.ID != alice.ID || byEmail.Email != "alice@example.com" {
		t.Fatalf("unexpected profile by email: %+v", byEmail)
	}

	byID, err := repo.ByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if byID != byEmail {
		t.Fatalf("expected %+v, got %+v", byEmail, byID)
	}

	if _, err := repo.ByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}
	if _, err := repo.ByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	profiles, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
}

func TestPostgresWatchRecordRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	owner := createTestProfile(t, "owner@example.com")
	repo := NewPostgresWatchRecordRepository(testPool)

	empty, err := repo.List(ctx, "unknown-owner")
	if err != nil {
		t.Fatalf("list for unknown owner: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}

	if _, err := repo.Create(ctx, owner.ID, "  ", "body", "", false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank title, got %v", err)
	}
	if _, err := repo.Create(ctx, owner.ID, "Heat", "", "", false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank body, got %v", err)
	}

	first, err := repo.Create(ctx, owner.ID, "Heat", "Pacino and De Niro", "https://example.com/heat", false)
	if err != nil {
		t.Fatalf("create first record: %v", err)
	}
	second, err := repo.Create(ctx, owner.ID, "Alien", "In space", "", true)
	if err != nil {
		t.Fatalf("create second record: %v", err)
	}

	records, err := repo.List(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 || records[0].ID != first.ID || records[1].ID != second.ID {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Watched || !records[1].Watched {
		t.Fatalf("unexpected watched flags: %+v", records)
	}

	loaded, err := repo.Get(ctx, owner.ID, first.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if loaded.Title != "Heat" || loaded.Body != "Pacino and De Niro" || loaded.URL != "https://example.com/heat" {
		t.Fatalf("unexpected record loaded: %+v", loaded)
	}

	if _, err := repo.Get(ctx, "someone-else", first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner's record, got %v", err)
	}

	if err := repo.Delete(ctx, owner.ID, first.ID); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if err := repo.Delete(ctx, owner.ID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := repo.ToggleWatched(ctx, owner.ID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound toggling deleted record, got %v", err)
	}
}

func TestWatchedAndRatingStayConsistent(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	owner := createTestProfile(t, "owner@example.com")
	records := NewPostgresWatchRecordRepository(testPool)
	ratings := NewPostgresRatingRepository(testPool)

	rec, err := records.Create(ctx, owner.ID, "Arrival", "Linguistics", "", false)
	if err != nil {
		t.Fatalf("create record: %v", err)
	}

	watched, err := records.ToggleWatched(ctx, owner.ID, rec.ID)
	if err != nil || !watched {
		t.Fatalf("expected toggle to watched, got %v (err %v)", watched, err)
	}
	if _, err := ratings.Get(ctx, owner.ID, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("toggling to watched must not create a rating, got %v", err)
	}

	if _, err := ratings.Create(ctx, owner.ID, rec.ID, 4, "great"); err != nil {
		t.Fatalf("rate movie: %v", err)
	}

	watched, err = records.ToggleWatched(ctx, owner.ID, rec.ID)
	if err != nil || watched {
		t.Fatalf("expected toggle to unwatched, got %v (err %v)", watched, err)
	}
	if _, err := ratings.Get(ctx, owner.ID, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rating removed after unwatching, got %v", err)
	}

	if _, err := records.ToggleWatched(ctx, owner.ID, rec.ID); err != nil {
		t.Fatalf("toggle back to watched: %v", err)
	}
	if _, err := ratings.Create(ctx, owner.ID, rec.ID, 5, ""); err != nil {
		t.Fatalf("rate again: %v", err)
	}
	if err := records.Delete(ctx, owner.ID, rec.ID); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if _, err := ratings.Get(ctx, owner.ID, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rating removed with record, got %v", err)
	}
}

func TestPostgresRatingRepository_UpsertAndBounds(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresRatingRepository(testPool)

	for _, value := range []int{-1, 6} {
		if _, err := repo.Create(ctx, "user", "movie", value, ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for value %d, got %v", value, err)
		}
	}

	if _, err := repo.Create(ctx, "user", "movie", 0, "meh"); err != nil {
		t.Fatalf("create rating 0: %v", err)
	}
	if _, err := repo.Create(ctx, "user", "movie", 5, "on rewatch"); err != nil {
		t.Fatalf("overwrite rating: %v", err)
	}

	rating, err := repo.Get(ctx, "user", "movie")
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if rating.Value != 5 || rating.Comment != "on rewatch" {
		t.Fatalf("expected overwritten rating, got %+v", rating)
	}

	if err := repo.Delete(ctx, "user", "movie"); err != nil {
		t.Fatalf("delete rating: %v", err)
	}
	if err := repo.Delete(ctx, "user", "movie"); err != nil {
		t.Fatalf("deleting a missing rating should be a no-op, got %v", err)
	}
}

func TestPostgresFriendRequestRepository_SendAcceptReject(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice@example.com")
	bob := createTestProfile(t, "bob@example.com")
	carol := createTestProfile(t, "carol@example.com")

	requests := NewPostgresFriendRequestRepository(testPool)
	friendships := NewPostgresFriendshipRepository(testPool)

	if _, err := requests.Send(ctx, alice.ID, alice.ID); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected ErrSelfReference, got %v", err)
	}
	if _, err := requests.Send(ctx, alice.ID, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown target, got %v", err)
	}

	if _, err := requests.Send(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := requests.Send(ctx, alice.ID, bob.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict resending, got %v", err)
	}
	if _, err := requests.Send(ctx, bob.ID, alice.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for reverse request, got %v", err)
	}
	if _, err := requests.Send(ctx, carol.ID, bob.ID); err != nil {
		t.Fatalf("send second request: %v", err)
	}

	pending, err := requests.ListPendingFor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 || pending[0].RequesterID != alice.ID || pending[0].RequesterEmail != alice.Email || pending[1].RequesterID != carol.ID {
		t.Fatalf("unexpected pending requests: %+v", pending)
	}

	if err := requests.Accept(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("accept request: %v", err)
	}
	if err := requests.Accept(ctx, bob.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound accepting twice, got %v", err)
	}

	accepted, err := requests.Find(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("find accepted request: %v", err)
	}
	if accepted.State != models.FriendRequestAccepted || accepted.RespondedAt == nil {
		t.Fatalf("expected accepted request with response time, got %+v", accepted)
	}

	assertFriends(t, friendships, alice.ID, bob.ID)
	assertFriends(t, friendships, bob.ID, alice.ID)

	if err := requests.Reject(ctx, bob.ID, carol.ID); err != nil {
		t.Fatalf("reject request: %v", err)
	}
	if err := requests.Reject(ctx, bob.ID, carol.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound rejecting twice, got %v", err)
	}

	pending, err = requests.ListPendingFor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list pending after responses: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %+v", pending)
	}

	// A rejected pair may try again.
	if _, err := requests.Send(ctx, bob.ID, carol.ID); err != nil {
		t.Fatalf("send after reject: %v", err)
	}
}

func TestFriendRequestBlockedOnceFriends(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice@example.com")
	bob := createTestProfile(t, "bob@example.com")

	friendships := NewPostgresFriendshipRepository(testPool)
	if err := friendships.Create(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("create friendship: %v", err)
	}
	if err := friendships.Create(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("recreating a friendship should be a no-op, got %v", err)
	}
	if err := friendships.Create(ctx, alice.ID, alice.ID); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected ErrSelfReference, got %v", err)
	}

	requests := NewPostgresFriendRequestRepository(testPool)
	if _, err := requests.Send(ctx, alice.ID, bob.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict once friends, got %v", err)
	}

	friends, err := friendships.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 1 {
		t.Fatalf("expected a single edge, got %+v", friends)
	}
}

func TestConcurrentOppositeFriendRequests(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice@example.com")
	bob := createTestProfile(t, "bob@example.com")
	requests := NewPostgresFriendRequestRepository(testPool)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, pair := range [][2]string{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			_, errs[i] = requests.Send(ctx, from, to)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one request to win, got %d", succeeded)
	}
}

func TestPostgresRecommendationRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestProfile(t, "alice@example.com")
	bob := createTestProfile(t, "bob@example.com")

	records := NewPostgresWatchRecordRepository(testPool)
	recs := NewPostgresRecommendationRepository(testPool)

	movie, err := records.Create(ctx, alice.ID, "Alien", "In space", "", true)
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}

	if _, err := recs.Create(ctx, alice.ID, alice.ID, movie.ID, ""); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected ErrSelfReference, got %v", err)
	}

	if _, err := recs.Create(ctx, alice.ID, bob.ID, movie.ID, "first"); err != nil {
		t.Fatalf("create recommendation: %v", err)
	}
	if _, err := recs.Create(ctx, alice.ID, bob.ID, movie.ID, "scary"); err != nil {
		t.Fatalf("overwrite recommendation: %v", err)
	}

	inbox, err := recs.ListFor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list recommendations: %v", err)
	}
	if len(inbox) != 1 || inbox[0].Comment != "scary" {
		t.Fatalf("expected one overwritten recommendation, got %+v", inbox)
	}

	accepted, err := recs.Accept(ctx, alice.ID, bob.ID, movie.ID, movie.Title, inbox[0].Comment)
	if err != nil {
		t.Fatalf("accept recommendation: %v", err)
	}
	if accepted.OwnerID != bob.ID || accepted.Title != "Alien" || accepted.Body != "scary" || accepted.Watched {
		t.Fatalf("unexpected record from accept: %+v", accepted)
	}

	if _, err := recs.Accept(ctx, alice.ID, bob.ID, movie.ID, movie.Title, "scary"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second accept, got %v", err)
	}

	bobs, err := records.List(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list recommendee records: %v", err)
	}
	if len(bobs) != 1 {
		t.Fatalf("second accept must not add a record, got %+v", bobs)
	}

	inbox, err = recs.ListFor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list after accept: %v", err)
	}
	if len(inbox) != 0 {
		t.Fatalf("expected empty inbox, got %+v", inbox)
	}

	if _, err := recs.Create(ctx, alice.ID, bob.ID, movie.ID, ""); err != nil {
		t.Fatalf("recommend again: %v", err)
	}
	if _, err := recs.Accept(ctx, alice.ID, bob.ID, movie.ID, "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank title, got %v", err)
	}
	inbox, err = recs.ListFor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list after failed accept: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("failed accept must leave the recommendation, got %+v", inbox)
	}

	if err := recs.Delete(ctx, alice.ID, bob.ID, movie.ID); err != nil {
		t.Fatalf("dismiss recommendation: %v", err)
	}
	if err := recs.Delete(ctx, alice.ID, bob.ID, movie.ID); err != nil {
		t.Fatalf("dismissing twice should be a no-op, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE recommendations, friendships, friend_requests, ratings, watch_records, profiles CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestProfile(t *testing.T, email string) models.Profile {
	t.Helper()
	profile, err := models.NewProfile(email)
	if err != nil {
		t.Fatalf("build test profile: %v", err)
	}
	if err := NewPostgresProfileRepository(testPool).Create(context.Background(), profile); err != nil {
		t.Fatalf("create test profile: %v", err)
	}
	return profile
}

func assertFriends(t *testing.T, repo *PostgresFriendshipRepository, userID, friendID string) {
	t.Helper()
	friends, err := repo.ListFriends(context.Background(), userID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != friendID {
		t.Fatalf("expected %s to be the only friend of %s, got %+v", friendID, userID, friends)
	}
}
