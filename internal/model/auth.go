package model

import "time"

type LoginRequest struct {
	Email string `json:"email"`
}

type APIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type AuthStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

type AuthConfigResponse struct {
	AllowSignup bool `json:"allowSignup"`
}

// AuthUser is the identity resolved for the current request. It lives only
// for the duration of request handling.
type AuthUser struct {
	ID        int64
	Email     string
	HasAPIKey bool
}

type User struct {
	ID          int64
	Email       string
	APIKeyEnc   []byte
	APIKeyNonce []byte
	TrialCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
