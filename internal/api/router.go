// Package api wires together all HTTP routes of the portal API.
//
// Route grouping:
//   - /health, /ready and /version are unauthenticated probes and are not rate
//     limited.
//   - /api/1/organizations/ carries the organization endpoints. Reads accept
//     anonymous callers; writes require a JWT or API key, and organization
//     management additionally requires an admin of that organization.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/civicdata/portal-api/internal/api/organizations"
	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db"
	"github.com/civicdata/portal-api/internal/db/repositories"
	"github.com/civicdata/portal-api/internal/middleware"
	"github.com/civicdata/portal-api/internal/search"
)

// Version is reported by GET /version and the version subcommand.
var Version = "0.1.0"

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained.
type BackgroundServices struct {
	rateLimiter *middleware.RateLimiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil when Redis is
// not configured.
func NewRouter(cfg *config.Config, database *sql.DB, rdb redis.UniversalClient) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}

	userRepo := repositories.NewUserRepository(database)
	apiKeyRepo := repositories.NewAPIKeyRepository(database)
	auditRepo := repositories.NewAuditRepository(database)
	orgRepo := repositories.NewOrganizationRepository(database)

	sqlxDB := db.Wrap(database)
	followRepo := repositories.NewFollowRepository(sqlxDB)
	searcher := search.NewPostgresSearch(sqlxDB)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(database))
	router.GET("/ready", readinessHandler(database, rdb))
	router.GET("/version", versionHandler())

	// Run after authentication so limits and audit entries are keyed by caller.
	var afterAuth []gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		limiter := newLimiter(cfg, rdb)
		if mem, ok := limiter.(*middleware.RateLimiter); ok {
			bg.rateLimiter = mem
		}
		slog.Info("rate limiting enabled",
			"backend", limiter.Backend(),
			"requests_per_minute", limiter.Limit())
		afterAuth = append(afterAuth, middleware.RateLimitMiddleware(limiter))
	}
	if cfg.Audit.Enabled {
		afterAuth = append(afterAuth, middleware.AuditMiddleware(auditRepo, &cfg.Audit))
	}

	authn := middleware.NewAuthenticator(cfg, userRepo, apiKeyRepo)
	orgHandlers := organizations.NewOrganizationHandlers(cfg, orgRepo, followRepo, searcher)

	apiV1 := router.Group("/api/1")
	orgHandlers.RegisterRoutes(apiV1.Group("/organizations"), organizations.RouteAuth{
		Required: authn.Required(),
		Optional: authn.Optional(),
	}, afterAuth...)

	return router, bg
}

// newLimiter picks the rate limiter backend. The redis backend falls back to
// memory when no client is available.
func newLimiter(cfg *config.Config, rdb redis.UniversalClient) middleware.Limiter {
	rlCfg := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		rlCfg.BurstSize = cfg.Security.RateLimiting.Burst
	}

	if cfg.Security.RateLimiting.Backend == middleware.BackendRedis {
		if rdb != nil {
			return middleware.NewRedisLimiter(rdb, rlCfg)
		}
		slog.Warn("redis rate limiting requested without a redis client, using memory backend")
	}
	return middleware.NewRateLimiter(rlCfg)
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and, when configured, Redis.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. Unlike /health
// it also probes Redis, which backs the distributed rate limiter.
func readinessHandler(database *sql.DB, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}

		if err := database.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "1",
		})
	}
}

// LoggerMiddleware emits one structured record per request. The output format
// (json or text) is chosen by the global slog handler installed by
// telemetry.SetupLogger; server errors are logged at error level.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.RequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if userID := c.GetString(middleware.ContextKeyUserID); userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// CORSMiddleware applies the configured CORS policy with rs/cors. Preflight
// requests are answered here and never reach a handler. Credentials are only
// allowed when origins are listed explicitly.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := cfg.Security.CORS.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.RequestIDHeader}
	if h := cfg.Auth.APIKeys.Header; h != "" {
		headers = append(headers, h)
	}

	wildcard := false
	for _, o := range cfg.Security.CORS.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}

	policy := cors.New(cors.Options{
		AllowedOrigins:       cfg.Security.CORS.AllowedOrigins,
		AllowedMethods:       methods,
		AllowedHeaders:       headers,
		ExposedHeaders:       []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials:     !wildcard,
		MaxAge:               3600,
		OptionsSuccessStatus: http.StatusNoContent,
	})

	return func(c *gin.Context) {
		policy.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
