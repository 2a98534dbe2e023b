// Package organizations implements the /api/1/organizations endpoints: listing
// and creating organizations, reading and updating one, membership requests
// and their review, and following.
//
// Every handler that addresses a single organization runs behind
// middleware.LoadOrganization, so the organization graph (requests and
// members) is already in the context. Handlers mutate that graph and persist
// it with one OrganizationStore.Save call.
package organizations

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/middleware"
	"github.com/civicdata/portal-api/internal/search"
	"github.com/civicdata/portal-api/internal/validation"
)

// OrganizationStore persists organizations with their requests and members.
type OrganizationStore interface {
	middleware.OrganizationLoader
	Create(ctx context.Context, org *models.Organization) error
	Save(ctx context.Context, org *models.Organization) error
	SoftDelete(ctx context.Context, org *models.Organization) error
}

// FollowStore records users following organizations.
type FollowStore interface {
	Follow(ctx context.Context, followerID, orgID string) (created bool, followers int, err error)
	Unfollow(ctx context.Context, followerID, orgID string) (found bool, followers int, err error)
}

// OrganizationHandlers serves the organization endpoints
type OrganizationHandlers struct {
	baseURL         string
	defaultPageSize int
	maxPageSize     int

	orgs    OrganizationStore
	follows FollowStore
	search  search.OrganizationSearch
}

// NewOrganizationHandlers creates the handlers. URIs in responses are built
// from cfg.Server.BaseURL.
func NewOrganizationHandlers(cfg *config.Config, orgs OrganizationStore, follows FollowStore, searcher search.OrganizationSearch) *OrganizationHandlers {
	validation.UseJSONFieldNames()

	h := &OrganizationHandlers{
		baseURL:         trimSlash(cfg.Server.BaseURL),
		defaultPageSize: cfg.Search.DefaultPageSize,
		maxPageSize:     cfg.Search.MaxPageSize,
		orgs:            orgs,
		follows:         follows,
		search:          searcher,
	}
	if h.defaultPageSize <= 0 {
		h.defaultPageSize = 20
	}
	if h.maxPageSize <= 0 {
		h.maxPageSize = 100
	}
	return h
}

// RouteAuth supplies the authentication middleware for each route. Extra
// middleware passed to RegisterRoutes (rate limiting, audit) runs right after
// authentication so it can key on the caller.
type RouteAuth struct {
	Required gin.HandlerFunc
	Optional gin.HandlerFunc
}

// RegisterRoutes mounts the endpoints on rg, typically /api/1/organizations.
func (h *OrganizationHandlers) RegisterRoutes(rg *gin.RouterGroup, ra RouteAuth, after ...gin.HandlerFunc) {
	chain := func(authn gin.HandlerFunc, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		out := make([]gin.HandlerFunc, 0, 1+len(after)+len(handlers))
		out = append(out, authn)
		out = append(out, after...)
		return append(out, handlers...)
	}
	load := middleware.LoadOrganization(h.orgs)
	admin := middleware.RequireOrgAdmin()

	rg.GET("/", chain(ra.Optional, h.ListOrganizationsHandler())...)
	rg.POST("/", chain(ra.Required, h.CreateOrganizationHandler())...)

	rg.GET("/:org/", chain(ra.Optional, load, h.GetOrganizationHandler())...)
	rg.PUT("/:org/", chain(ra.Required, load, admin, h.UpdateOrganizationHandler())...)
	rg.DELETE("/:org/", chain(ra.Required, load, admin, h.DeleteOrganizationHandler())...)

	rg.POST("/:org/membership/", chain(ra.Required, load, h.RequestMembershipHandler())...)
	rg.POST("/:org/membership/:id/accept/", chain(ra.Required, load, admin, h.AcceptMembershipHandler())...)
	rg.POST("/:org/membership/:id/refuse/", chain(ra.Required, load, admin, h.RefuseMembershipHandler())...)

	rg.POST("/:org/follow/", chain(ra.Required, load, h.FollowHandler())...)
	rg.DELETE("/:org/follow/", chain(ra.Required, load, h.UnfollowHandler())...)
}

// bindJSON decodes the body over obj and validates the result. An empty body
// leaves obj untouched, which lets forms pre-filled from an existing object
// act as partial updates.
func bindJSON(c *gin.Context, obj interface{}) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return validation.Validate(obj)
	}
	return err
}

func abortWithBindError(c *gin.Context, err error) {
	if fields, ok := validation.FieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"errors": fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request body: " + err.Error(),
	})
}

func internalError(c *gin.Context, msg string, err error) {
	attrs := []any{"request_id", middleware.RequestID(c), "error", err}
	if org := middleware.CurrentOrganization(c); org != nil {
		attrs = append(attrs, "org", org.ID)
	}
	slog.Error(msg, attrs...)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
