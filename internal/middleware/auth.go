// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request ids, metrics and audit logging.
//
// Ordering is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → Auth → RateLimit → Audit → Handler
//
// Rate limiting runs after auth so that authenticated callers are keyed by user
// rather than by IP.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/auth"
	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/db/repositories"
	"github.com/civicdata/portal-api/internal/safego"
)

// gin.Context keys set by the auth middleware
const (
	ContextKeyUser       = "user"
	ContextKeyUserID     = "user_id"
	ContextKeyAuthMethod = "auth_method"
	ContextKeyAPIKeyID   = "api_key_id"
)

// Authentication methods recorded under ContextKeyAuthMethod
const (
	AuthMethodJWT    = "jwt"
	AuthMethodAPIKey = "api_key"
)

// authError is a failed authentication with the response it should produce.
type authError struct {
	status  int
	message string
}

// Authenticator resolves the caller of a request from a bearer JWT or an API key.
type Authenticator struct {
	apiKeyHeader  string
	apiKeysActive bool
	users         *repositories.UserRepository
	apiKeys       *repositories.APIKeyRepository
}

// NewAuthenticator creates an Authenticator. cfg may be nil, in which case API
// keys are read from the X-API-KEY header.
func NewAuthenticator(cfg *config.Config, users *repositories.UserRepository, apiKeys *repositories.APIKeyRepository) *Authenticator {
	a := &Authenticator{
		apiKeyHeader:  "X-API-KEY",
		apiKeysActive: true,
		users:         users,
		apiKeys:       apiKeys,
	}
	if cfg != nil {
		a.apiKeysActive = cfg.Auth.APIKeys.Enabled
		if cfg.Auth.APIKeys.Header != "" {
			a.apiKeyHeader = cfg.Auth.APIKeys.Header
		}
	}
	return a
}

// Required aborts with 401 unless the request carries valid credentials.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.hasCredentials(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if aerr := a.authenticate(c); aerr != nil {
			c.AbortWithStatusJSON(aerr.status, gin.H{"error": aerr.message})
			return
		}
		c.Next()
	}
}

// Optional authenticates when credentials are present and otherwise lets the
// request through anonymously. Invalid credentials are still rejected so that
// clients notice expired tokens.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.hasCredentials(c) {
			c.Next()
			return
		}
		if aerr := a.authenticate(c); aerr != nil {
			c.AbortWithStatusJSON(aerr.status, gin.H{"error": aerr.message})
			return
		}
		c.Next()
	}
}

func (a *Authenticator) hasCredentials(c *gin.Context) bool {
	if c.GetHeader("Authorization") != "" {
		return true
	}
	return a.apiKeysActive && c.GetHeader(a.apiKeyHeader) != ""
}

func (a *Authenticator) authenticate(c *gin.Context) *authError {
	if a.apiKeysActive {
		if key := c.GetHeader(a.apiKeyHeader); key != "" {
			return a.authenticateAPIKey(c, key)
		}
	}

	token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		return &authError{http.StatusUnauthorized, err.Error()}
	}

	// JWT first: it needs no database round-trip before the user lookup.
	if claims, err := auth.ValidateJWT(token); err == nil {
		user, err := a.users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			return &authError{http.StatusInternalServerError, "Failed to load user"}
		}
		if user == nil {
			return &authError{http.StatusUnauthorized, "User not found"}
		}
		setUser(c, user, AuthMethodJWT)
		return nil
	}

	// A bearer value that is not a JWT may still be an API key.
	if a.apiKeysActive {
		return a.authenticateAPIKey(c, token)
	}
	return &authError{http.StatusUnauthorized, "Invalid credentials"}
}

// authenticateAPIKey narrows candidates with the indexed prefix, then runs
// bcrypt only on those rows.
func (a *Authenticator) authenticateAPIKey(c *gin.Context, provided string) *authError {
	ctx := c.Request.Context()

	keys, err := a.apiKeys.GetAPIKeysByPrefix(ctx, auth.DisplayPrefix(provided))
	if err != nil {
		return &authError{http.StatusInternalServerError, "Authentication failed"}
	}

	var apiKey *models.APIKey
	for _, k := range keys {
		if auth.ValidateAPIKey(provided, k.KeyHash) {
			apiKey = k
			break
		}
	}
	if apiKey == nil {
		return &authError{http.StatusUnauthorized, "Invalid credentials"}
	}
	if apiKey.IsExpired(time.Now()) {
		return &authError{http.StatusUnauthorized, "API key expired"}
	}

	user, err := a.users.GetUserByID(ctx, apiKey.UserID)
	if err != nil {
		return &authError{http.StatusInternalServerError, "Failed to load user"}
	}
	if user == nil {
		return &authError{http.StatusUnauthorized, "User not found"}
	}

	// best effort, off the request path
	keyID := apiKey.ID
	safego.Go("api_key_last_used", func(ctx context.Context) {
		_ = a.apiKeys.UpdateLastUsed(ctx, keyID)
	})

	c.Set(ContextKeyAPIKeyID, apiKey.ID)
	setUser(c, user, AuthMethodAPIKey)
	return nil
}

func setUser(c *gin.Context, user *models.User, method string) {
	c.Set(ContextKeyUser, user)
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyAuthMethod, method)
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// AuthMiddleware requires a valid JWT or API key.
func AuthMiddleware(cfg *config.Config, users *repositories.UserRepository, apiKeys *repositories.APIKeyRepository) gin.HandlerFunc {
	return NewAuthenticator(cfg, users, apiKeys).Required()
}

// OptionalAuthMiddleware authenticates the caller when credentials are sent.
func OptionalAuthMiddleware(cfg *config.Config, users *repositories.UserRepository, apiKeys *repositories.APIKeyRepository) gin.HandlerFunc {
	return NewAuthenticator(cfg, users, apiKeys).Optional()
}
