package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/service"
)

const (
	authUserKey       = "auth_user"
	rotatedSessionKey = "rotated_session"
)

// AuthMiddleware is the gate in front of every protected route. It hands both
// session cookies to the session service and either attaches the resolved
// identity or ends the request. When rotation happened, the fresh cookies are
// queued on the response before the downstream handler runs.
func AuthMiddleware(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		accessToken, _ := c.Cookie(sessions.AccessCookie().Name)
		refreshToken, _ := c.Cookie(sessions.RefreshCookie().Name)

		user, rotated, err := sessions.Authenticate(c.Request.Context(), accessToken, refreshToken)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			log.Printf("[Auth] Authentication failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			c.Abort()
			return
		}

		if rotated != nil {
			setSessionCookies(c, sessions, rotated)
			// Downstream revocations must target the rotated token, not
			// the now-consumed one from the request cookie.
			c.Set(rotatedSessionKey, rotated)
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// GetRotatedSession returns the token pair minted by the gate on this
// request, or nil when the access fast path was taken.
func GetRotatedSession(c *gin.Context) *service.TokenPair {
	if value, ok := c.Get(rotatedSessionKey); ok {
		if pair, ok := value.(*service.TokenPair); ok {
			return pair
		}
	}
	return nil
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func setSessionCookies(c *gin.Context, sessions *service.SessionService, pair *service.TokenPair) {
	access := sessions.AccessCookie()
	refresh := sessions.RefreshCookie()
	c.SetSameSite(access.SameSite)
	c.SetCookie(access.Name, pair.AccessToken, access.MaxAge, access.Path, access.Domain, access.Secure, true)
	c.SetCookie(refresh.Name, pair.RefreshToken, refresh.MaxAge, refresh.Path, refresh.Domain, refresh.Secure, true)
}

func clearSessionCookies(c *gin.Context, sessions *service.SessionService) {
	access := sessions.AccessCookie()
	refresh := sessions.RefreshCookie()
	c.SetSameSite(access.SameSite)
	c.SetCookie(access.Name, "", -1, access.Path, access.Domain, access.Secure, true)
	c.SetCookie(refresh.Name, "", -1, refresh.Path, refresh.Domain, refresh.Secure, true)
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
