package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/safego"
)

// ContextKeyAuditResourceID lets a handler name the resource it created, which
// the route parameters cannot know yet.
const ContextKeyAuditResourceID = "audit_resource_id"

// Audit resource types
const (
	AuditResourceOrganization      = "organization"
	AuditResourceMembershipRequest = "membership_request"
	AuditResourceFollow            = "follow"
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditMiddleware records write operations after the handler ran. Reads are
// never recorded; failed writes only when cfg.LogFailedRequests is set. Entries
// are written off the request path.
func AuditMiddleware(writer AuditWriter, cfg *config.AuditConfig) gin.HandlerFunc {
	logFailed := cfg != nil && cfg.LogFailedRequests

	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest && !logFailed {
			return
		}

		entry := buildAuditLog(c, status)

		safego.Go("audit_write", func(ctx context.Context) {
			if err := writer.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}

// buildAuditLog runs on the request goroutine: the gin.Context must not be
// touched once the handler chain has returned.
func buildAuditLog(c *gin.Context, status int) *models.AuditLog {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}

	entry := &models.AuditLog{
		Action:    c.Request.Method + " " + route,
		CreatedAt: time.Now(),
		Metadata: map[string]interface{}{
			"status_code": status,
		},
	}

	if uid := c.GetString(ContextKeyUserID); uid != "" {
		entry.UserID = &uid
	}
	if method := c.GetString(ContextKeyAuthMethod); method != "" {
		entry.Metadata["auth_method"] = method
	}
	if rid := RequestID(c); rid != "" {
		entry.Metadata["request_id"] = rid
	}
	if ip := c.ClientIP(); ip != "" {
		entry.IPAddress = &ip
	}

	resourceType := auditResourceType(route)
	entry.ResourceType = &resourceType

	var resourceID string
	switch {
	case c.GetString(ContextKeyAuditResourceID) != "":
		resourceID = c.GetString(ContextKeyAuditResourceID)
	case c.Param("id") != "":
		resourceID = c.Param("id")
	case CurrentOrganization(c) != nil:
		resourceID = CurrentOrganization(c).ID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if org := CurrentOrganization(c); org != nil {
		entry.Metadata["organization_id"] = org.ID
	}

	return entry
}

func auditResourceType(route string) string {
	switch {
	case strings.Contains(route, "/membership/"):
		return AuditResourceMembershipRequest
	case strings.Contains(route, "/follow/"):
		return AuditResourceFollow
	default:
		return AuditResourceOrganization
	}
}
