package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/config"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

var errStorageDown = errors.New("storage down")

type fakeAuthRepo struct {
	users   map[string]*model.User
	tokens  map[string]*model.RefreshToken
	nextID  int64
	writes  int
	failAll bool
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:  map[string]*model.User{},
		tokens: map[string]*model.RefreshToken{},
	}
}

func (f *fakeAuthRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.failAll {
		return nil, errStorageDown
	}
	if user, ok := f.users[email]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAuthRepo) GetUserByID(_ context.Context, userID int64) (*model.User, error) {
	if f.failAll {
		return nil, errStorageDown
	}
	for _, user := range f.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAuthRepo) CreateUser(_ context.Context, email string) (*model.User, error) {
	if f.failAll {
		return nil, errStorageDown
	}
	f.nextID++
	user := &model.User{ID: f.nextID, Email: email}
	f.users[email] = user
	return user, nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	if f.failAll {
		return nil, errStorageDown
	}
	if record, ok := f.tokens[tokenHash]; ok && record.ExpiresAt.After(time.Now()) {
		return record, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAuthRepo) InsertRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	if f.failAll {
		return errStorageDown
	}
	f.writes++
	f.tokens[tokenHash] = &model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeAuthRepo) ReplaceRefreshToken(_ context.Context, oldHash, newHash string, expiresAt time.Time) error {
	if f.failAll {
		return errStorageDown
	}
	f.writes++
	record, ok := f.tokens[oldHash]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(f.tokens, oldHash)
	record.TokenHash = newHash
	record.ExpiresAt = expiresAt
	f.tokens[newHash] = record
	return nil
}

func (f *fakeAuthRepo) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	if f.failAll {
		return errStorageDown
	}
	f.writes++
	delete(f.tokens, tokenHash)
	return nil
}

func (f *fakeAuthRepo) DeleteRefreshTokensByUser(_ context.Context, userID int64) error {
	if f.failAll {
		return errStorageDown
	}
	f.writes++
	for hash, record := range f.tokens {
		if record.UserID == userID {
			delete(f.tokens, hash)
		}
	}
	return nil
}

func (f *fakeAuthRepo) tokenCount(userID int64) int {
	count := 0
	for _, record := range f.tokens {
		if record.UserID == userID {
			count++
		}
	}
	return count
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTAccessTTL:  "1h",
		JWTRefreshTTL: "168h",
	}
}

func newTestSession(t *testing.T, repo AuthRepo) *SessionService {
	t.Helper()
	svc, err := NewSessionService(repo, testAuthConfig())
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return svc
}

func TestIssueIsAdditivePerDevice(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	user, first, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("expected resolved email a@x.com, got %q", user.Email)
	}

	_, second, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatalf("expected distinct refresh tokens per session")
	}
	if got := repo.tokenCount(user.ID); got != 2 {
		t.Fatalf("expected 2 stored tokens, got %d", got)
	}
}

func TestFastPathPerformsNoStoreWrites(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	_, pair, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	writesAfterIssue := repo.writes

	user, rotated, err := svc.Authenticate(ctx, pair.AccessToken, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user == nil || user.Email != "a@x.com" {
		t.Fatalf("expected resolved identity")
	}
	if rotated != nil {
		t.Fatalf("fast path must not rotate")
	}
	if repo.writes != writesAfterIssue {
		t.Fatalf("fast path wrote to the store")
	}
}

func TestRotationInvalidatesOldToken(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	issued, pair, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	user, rotated, err := svc.Authenticate(ctx, "", pair.RefreshToken)
	if err != nil {
		t.Fatalf("Authenticate via refresh: %v", err)
	}
	if rotated == nil {
		t.Fatalf("expected rotation on the slow path")
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation returned the same refresh token")
	}
	if user.ID != issued.ID {
		t.Fatalf("rotation resolved the wrong user")
	}
	if got := repo.tokenCount(issued.ID); got != 1 {
		t.Fatalf("expected 1 stored token after rotation, got %d", got)
	}

	// Replaying the consumed token must read as plain unauthorized.
	if _, _, err := svc.Authenticate(ctx, "", pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on replay, got %v", err)
	}

	// The rotated token keeps working.
	if _, _, err := svc.Authenticate(ctx, "", rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestRotationRaceLoserIsUnauthorized(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	_, pair, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, _, err := svc.Authenticate(ctx, "", pair.RefreshToken); err != nil {
		t.Fatalf("winner rotation failed: %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, "", pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("loser should be unauthorized, got %v", err)
	}
}

func TestNoCredentialsIsUnauthorized(t *testing.T) {
	svc := newTestSession(t, newFakeAuthRepo())

	if _, _, err := svc.Authenticate(context.Background(), "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestDeletedAccountFallsThroughToRejection(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	user, pair, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	delete(repo.users, "a@x.com")
	_ = repo.DeleteRefreshTokensByUser(ctx, user.ID)

	// Valid signature, no backing account: same generic rejection.
	if _, _, err := svc.Authenticate(ctx, pair.AccessToken, pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStorageFailureIsNotUnauthorized(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	_, pair, err := svc.Issue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	repo.failAll = true
	_, _, err = svc.Authenticate(ctx, "", pair.RefreshToken)
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("storage failure must not read as unauthorized, got %v", err)
	}
	if !errors.Is(err, errStorageDown) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestLogoutRemovesOnlyPresentedToken(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	user, first, _ := svc.Issue(ctx, "a@x.com")
	_, second, _ := svc.Issue(ctx, "a@x.com")

	if err := svc.Logout(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := repo.tokenCount(user.ID); got != 1 {
		t.Fatalf("expected 1 remaining token, got %d", got)
	}
	if _, _, err := svc.Authenticate(ctx, "", second.RefreshToken); err != nil {
		t.Fatalf("other device should stay signed in: %v", err)
	}
}

func TestLogoutAllIsIdempotent(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newTestSession(t, repo)
	ctx := context.Background()

	user, _, _ := svc.Issue(ctx, "a@x.com")
	_, _, _ = svc.Issue(ctx, "a@x.com")

	if err := svc.LogoutAll(ctx, user.ID); err != nil {
		t.Fatalf("first LogoutAll: %v", err)
	}
	if err := svc.LogoutAll(ctx, user.ID); err != nil {
		t.Fatalf("second LogoutAll should be a no-op: %v", err)
	}
	if got := repo.tokenCount(user.ID); got != 0 {
		t.Fatalf("expected empty token set, got %d", got)
	}
}

func TestIssueRespectsSignupGate(t *testing.T) {
	repo := newFakeAuthRepo()
	cfg := testAuthConfig()
	cfg.AllowSignup = "false"
	svc, err := NewSessionService(repo, cfg)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}

	if _, _, err := svc.Issue(context.Background(), "new@x.com"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSessionConfigValidation(t *testing.T) {
	cases := []func(*config.AuthConfig){
		func(c *config.AuthConfig) { c.JWTSecret = "" },
		func(c *config.AuthConfig) { c.JWTAccessTTL = "soon" },
		func(c *config.AuthConfig) { c.JWTRefreshTTL = "" },
		func(c *config.AuthConfig) { c.CookieSameSite = "sideways" },
		func(c *config.AuthConfig) { c.CookieSameSite = "none"; c.CookieSecure = "false" },
	}
	for i, mutate := range cases {
		cfg := testAuthConfig()
		mutate(&cfg)
		if _, err := NewSessionService(newFakeAuthRepo(), cfg); !errors.Is(err, ErrMisconfigured) {
			t.Fatalf("case %d: expected ErrMisconfigured, got %v", i, err)
		}
	}
}
