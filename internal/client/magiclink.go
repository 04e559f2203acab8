// HTTP client for the hosted magic-link identity provider.
//
// The provider owns credential checking end to end; this client only asks it
// to send a link and later exchanges the link token for a confirmed email.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/config"
)

// ProviderErrorKind is a closed set of provider failure categories. Callers
// dispatch on the kind, never on error message text.
type ProviderErrorKind int

const (
	ProviderErrorUnknown ProviderErrorKind = iota
	ProviderErrorInvalidToken
	ProviderErrorInvalidEmail
	ProviderErrorRateLimited
	ProviderErrorUnavailable
)

type ProviderError struct {
	Kind    ProviderErrorKind
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %s", e.Message)
}

// IsProviderRejection reports whether err means the provider refused the
// credential itself, as opposed to an infrastructure failure.
func IsProviderRejection(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == ProviderErrorInvalidToken || pe.Kind == ProviderErrorInvalidEmail
	}
	return false
}

type MagicLinkClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

type magicLinkSendRequest struct {
	Email string `json:"email"`
}

type magicLinkAuthRequest struct {
	Token string `json:"token"`
}

type magicLinkAuthResponse struct {
	Email string `json:"email"`
}

type magicLinkErrorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"error_message"`
}

func NewMagicLinkClient(cfg config.MagicLinkConfig) (*MagicLinkClient, error) {
	if cfg.BaseURL == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("missing MAGIC_LINK_URL or MAGIC_LINK_SECRET")
	}
	return &MagicLinkClient{
		baseURL: cfg.BaseURL,
		secret:  cfg.Secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Send asks the provider to mail a magic link to the address.
func (c *MagicLinkClient) Send(ctx context.Context, email string) error {
	return c.post(ctx, "/v1/magic_links/email/send", magicLinkSendRequest{Email: email}, nil)
}

// Authenticate exchanges a link token for the confirmed account email.
func (c *MagicLinkClient) Authenticate(ctx context.Context, token string) (string, error) {
	var res magicLinkAuthResponse
	if err := c.post(ctx, "/v1/magic_links/authenticate", magicLinkAuthRequest{Token: token}, &res); err != nil {
		return "", err
	}
	if res.Email == "" {
		return "", &ProviderError{Kind: ProviderErrorUnknown, Message: "authenticate returned no email"}
	}
	return res.Email, nil
}

func (c *MagicLinkClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Kind: ProviderErrorUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Kind: ProviderErrorUnavailable, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return decodeProviderError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &ProviderError{Kind: ProviderErrorUnknown, Message: "malformed provider response"}
		}
	}
	return nil
}

func decodeProviderError(status int, raw []byte) error {
	var body magicLinkErrorResponse
	_ = json.Unmarshal(raw, &body)

	kind := ProviderErrorUnknown
	switch {
	case status == http.StatusTooManyRequests:
		kind = ProviderErrorRateLimited
	case status >= 500:
		kind = ProviderErrorUnavailable
	case body.ErrorType == "invalid_token" || body.ErrorType == "token_expired":
		kind = ProviderErrorInvalidToken
	case body.ErrorType == "invalid_email":
		kind = ProviderErrorInvalidEmail
	}

	message := body.Message
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}
	return &ProviderError{Kind: kind, Message: message}
}
