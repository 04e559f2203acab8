package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/config"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/db"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/token"
)

const (
	accessCookieName  = "session_token"
	refreshCookieName = "refresh_token"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMisconfigured = errors.New("auth config invalid")
)

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthRepo is the slice of storage the session lifecycle needs: user lookup
// plus the refresh-token set operations. Every mutation is a single atomic
// statement on the storage side.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	CreateUser(ctx context.Context, email string) (*model.User, error)
	FindRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ReplaceRefreshToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) error
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteRefreshTokensByUser(ctx context.Context, userID int64) error
}

// SessionService is the single authority over whether a request is
// authenticated and which cookies, if any, must be (re)set.
type SessionService struct {
	repo        AuthRepo
	codec       *token.Codec
	refreshTTL  time.Duration
	allowSignup bool
	accessCk    CookieConfig
	refreshCk   CookieConfig
}

func NewSessionService(repo AuthRepo, cfg config.AuthConfig) (*SessionService, error) {
	accessTTL, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	codec, err := token.NewCodec(cfg.JWTSecret, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}

	allowSignup, err := parseBool(cfg.AllowSignup, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ALLOW_SIGNUP", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	base := CookieConfig{
		Path:     cookiePath,
		Domain:   cfg.CookieDomain,
		Secure:   cookieSecure,
		SameSite: cookieSameSite,
	}
	accessCk := base
	accessCk.Name = accessCookieName
	accessCk.MaxAge = int(accessTTL.Seconds())
	refreshCk := base
	refreshCk.Name = refreshCookieName
	refreshCk.MaxAge = int(refreshTTL.Seconds())

	return &SessionService{
		repo:        repo,
		codec:       codec,
		refreshTTL:  refreshTTL,
		allowSignup: allowSignup,
		accessCk:    accessCk,
		refreshCk:   refreshCk,
	}, nil
}

func (s *SessionService) AllowSignup() bool {
	return s.allowSignup
}

func (s *SessionService) AccessCookie() CookieConfig {
	return s.accessCk
}

func (s *SessionService) RefreshCookie() CookieConfig {
	return s.refreshCk
}

// Authenticate resolves the identity behind a request. The access token is
// tried first and costs no storage I/O; only when it yields nothing does the
// refresh token get looked up and rotated. A non-nil TokenPair means rotation
// happened and both cookies must be reset on the response.
//
// Failures split two ways: ErrUnauthorized for anything that means "no usable
// credential", and a wrapped storage error for infrastructure faults, which
// must never be presented as an auth failure.
func (s *SessionService) Authenticate(ctx context.Context, accessToken, refreshToken string) (*model.AuthUser, *TokenPair, error) {
	if accessToken != "" {
		if email, err := s.codec.Verify(accessToken); err == nil {
			user, err := s.repo.GetUserByEmail(ctx, email)
			if err == nil {
				return authUserOf(user), nil, nil
			}
			if !db.IsNoRows(err) {
				return nil, nil, fmt.Errorf("session: user lookup: %w", err)
			}
			// Account deleted since the token was issued. The refresh path
			// below settles it.
		}
	}
	return s.rotate(ctx, refreshToken)
}

func (s *SessionService) rotate(ctx context.Context, refreshToken string) (*model.AuthUser, *TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, nil, ErrUnauthorized
	}

	record, err := s.repo.FindRefreshToken(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if db.IsNoRows(err) {
			// Never issued, already rotated out, or expired. One answer for
			// all three so a replayed token is indistinguishable from junk.
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("session: refresh lookup: %w", err)
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("session: user lookup: %w", err)
	}

	newToken, newHash, err := newRefreshToken()
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.ReplaceRefreshToken(ctx, record.TokenHash, newHash, time.Now().Add(s.refreshTTL)); err != nil {
		if db.IsNoRows(err) {
			// A concurrent request rotated this token between our lookup and
			// the swap. That request won; this one holds a consumed token.
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("session: rotate: %w", err)
	}

	accessToken, err := s.codec.Issue(user.Email)
	if err != nil {
		return nil, nil, err
	}

	return authUserOf(user), &TokenPair{AccessToken: accessToken, RefreshToken: newToken}, nil
}

// Issue starts a brand-new session for a provider-confirmed email. The
// refresh token is inserted additively: logging in on a second device never
// revokes the first.
func (s *SessionService) Issue(ctx context.Context, email string) (*model.AuthUser, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, ErrInvalidInput
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !db.IsNoRows(err) {
			return nil, nil, fmt.Errorf("session: user lookup: %w", err)
		}
		if !s.allowSignup {
			return nil, nil, ErrForbidden
		}
		user, err = s.repo.CreateUser(ctx, email)
		if err != nil {
			return nil, nil, fmt.Errorf("session: create user: %w", err)
		}
	}

	refreshToken, refreshHash, err := newRefreshToken()
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.InsertRefreshToken(ctx, user.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, nil, fmt.Errorf("session: insert refresh token: %w", err)
	}

	accessToken, err := s.codec.Issue(user.Email)
	if err != nil {
		return nil, nil, err
	}

	return authUserOf(user), &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout revokes the one refresh token presented. A missing or unknown token
// is a no-op; the device is logged out either way once cookies are cleared.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.repo.DeleteRefreshToken(ctx, hashRefreshToken(refreshToken))
}

// LogoutAll clears the user's whole refresh-token set. Safe to call when the
// set is already empty.
func (s *SessionService) LogoutAll(ctx context.Context, userID int64) error {
	return s.repo.DeleteRefreshTokensByUser(ctx, userID)
}

func authUserOf(user *model.User) *model.AuthUser {
	return &model.AuthUser{
		ID:        user.ID,
		Email:     user.Email,
		HasAPIKey: len(user.APIKeyEnc) > 0,
	}
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteStrictMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func newRefreshToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
