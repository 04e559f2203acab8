package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/client"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/service"
)

const oidcStateCookie = "oidc_state"

// IdentityProvider is what the auth routes need from the hosted magic-link
// service: send a link, exchange a link token for a confirmed email.
type IdentityProvider interface {
	Send(ctx context.Context, email string) error
	Authenticate(ctx context.Context, token string) (string, error)
}

type OIDCProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

type AuthHandler struct {
	sessions *service.SessionService
	provider IdentityProvider
	oidc     OIDCProvider
}

func NewAuthHandler(sessions *service.SessionService, provider IdentityProvider, oidc OIDCProvider) *AuthHandler {
	return &AuthHandler{sessions: sessions, provider: provider, oidc: oidc}
}

// Login godoc
// @Summary Request a magic link
// @Description Asks the identity provider to email a sign-in link.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Account email"
// @Success 200 {object} model.MagicLinkSentResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	h.sendMagicLink(c, false)
}

// Signup godoc
// @Summary Sign up via magic link
// @Description Same provider flow as login; refused when signup is disabled.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Account email"
// @Success 200 {object} model.MagicLinkSentResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	h.sendMagicLink(c, true)
}

func (h *AuthHandler) sendMagicLink(c *gin.Context, signup bool) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if signup && !h.sessions.AllowSignup() {
		c.JSON(http.StatusForbidden, gin.H{"error": "signup disabled"})
		return
	}

	if err := h.provider.Send(c.Request.Context(), req.Email); err != nil {
		if client.IsProviderRejection(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		log.Printf("[Auth] Magic link send failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, model.MagicLinkSentResponse{Status: "magic_link_sent", Email: req.Email})
}

// Authenticate godoc
// @Summary Redeem a magic link token
// @Description Exchanges the provider token for a session; sets both cookies.
// @Tags auth
// @Produce json
// @Param token query string true "Magic link token"
// @Success 200 {object} model.AuthStatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/authenticate [get]
func (h *AuthHandler) Authenticate(c *gin.Context) {
	linkToken := c.Query("token")
	if linkToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	email, err := h.provider.Authenticate(c.Request.Context(), linkToken)
	if err != nil {
		if client.IsProviderRejection(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		log.Printf("[Auth] Magic link authenticate failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	h.issueSession(c, email)
}

// OIDCLogin godoc
// @Summary Start OIDC sign-in
// @Tags auth
// @Success 302
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/oidc/login [get]
func (h *AuthHandler) OIDCLogin(c *gin.Context) {
	if h.oidc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "oidc not configured"})
		return
	}

	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	cfg := h.sessions.AccessCookie()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oidcStateCookie, state, 300, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.Redirect(http.StatusFound, h.oidc.AuthURL(state))
}

// OIDCCallback godoc
// @Summary Finish OIDC sign-in
// @Tags auth
// @Param state query string true "Anti-forgery state"
// @Param code query string true "Authorization code"
// @Success 302
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/oidc/callback [get]
func (h *AuthHandler) OIDCCallback(c *gin.Context) {
	if h.oidc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "oidc not configured"})
		return
	}

	state, err := c.Cookie(oidcStateCookie)
	if err != nil || state == "" || c.Query("state") != state {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cfg := h.sessions.AccessCookie()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oidcStateCookie, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)

	email, err := h.oidc.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		if client.IsProviderRejection(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		log.Printf("[Auth] OIDC exchange failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	h.issueSession(c, email)
}

func (h *AuthHandler) issueSession(c *gin.Context, email string) {
	user, pair, err := h.sessions.Issue(c.Request.Context(), email)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	setSessionCookies(c, h.sessions, pair)
	c.JSON(http.StatusOK, model.AuthStatusResponse{Authenticated: true, Email: user.Email})
}

// Status godoc
// @Summary Session status
// @Description Runs the same verify/rotate path as the gate but always
// answers 200; rotated cookies are still set.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthStatusResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/status [get]
func (h *AuthHandler) Status(c *gin.Context) {
	accessToken, _ := c.Cookie(h.sessions.AccessCookie().Name)
	refreshToken, _ := c.Cookie(h.sessions.RefreshCookie().Name)

	user, rotated, err := h.sessions.Authenticate(c.Request.Context(), accessToken, refreshToken)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			c.JSON(http.StatusOK, model.AuthStatusResponse{Authenticated: false})
			return
		}
		log.Printf("[Auth] Status check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	if rotated != nil {
		setSessionCookies(c, h.sessions, rotated)
	}
	c.JSON(http.StatusOK, model.AuthStatusResponse{Authenticated: true, Email: user.Email})
}

// Logout godoc
// @Summary Logout this device
// @Description Revokes the presented refresh token and clears both cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthLogoutResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.sessions.RefreshCookie().Name)
	if pair := GetRotatedSession(c); pair != nil {
		// The gate already rotated the cookie token; revoke its successor
		// or this device's lineage would outlive the logout.
		refreshToken = pair.RefreshToken
	}

	err := h.sessions.Logout(c.Request.Context(), refreshToken)
	clearSessionCookies(c, h.sessions)
	if err != nil {
		log.Printf("[Auth] Logout failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, model.AuthLogoutResponse{Status: "logged_out"})
}

// LogoutAll godoc
// @Summary Logout everywhere
// @Description Clears the user's whole refresh-token set. Safe to repeat.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthLogoutResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.sessions.LogoutAll(c.Request.Context(), user.ID)
	clearSessionCookies(c, h.sessions)
	if err != nil {
		log.Printf("[Auth] Logout-all failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, model.AuthLogoutResponse{Status: "logged_out"})
}

// Config godoc
// @Summary Get auth config
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthConfigResponse
// @Router /api/auth/config [get]
func (h *AuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, model.AuthConfigResponse{
		AllowSignup: h.sessions.AllowSignup(),
	})
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "signup disabled"})
	default:
		log.Printf("[Auth] Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

func randomState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
