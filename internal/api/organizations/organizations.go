package organizations

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/db/repositories"
	"github.com/civicdata/portal-api/internal/middleware"
	"github.com/civicdata/portal-api/internal/search"
	"github.com/civicdata/portal-api/internal/telemetry"
)

// @Summary      List organizations
// @Description  Paginated full-text search over non-deleted organizations.
// @Tags         Organizations
// @Produce      json
// @Param        q          query  string  false  "Search text"
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        page_size  query  int     false  "Items per page, max 100 (default 20)"
// @Param        sort       query  string  false  "name, created or followers; prefix with - for descending (default -created)"
// @Success      200  {object}  OrganizationPageView
// @Failure      400  {object}  map[string]interface{}  "Invalid paging or sort parameter"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/1/organizations/ [get]
// ListOrganizationsHandler lists organizations
// GET /api/1/organizations/?q=&page=1&page_size=20&sort=-created
func (h *OrganizationHandlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := intQuery(c, "page")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer"})
			return
		}
		pageSize, err := intQuery(c, "page_size")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be an integer"})
			return
		}

		q := search.Query{
			Text:     c.Query("q"),
			Page:     page,
			PageSize: pageSize,
			Sort:     c.Query("sort"),
		}
		if err := q.Normalize(h.defaultPageSize, h.maxPageSize); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := h.search.Search(c.Request.Context(), q)
		if err != nil {
			internalError(c, "Failed to list organizations", err)
			return
		}

		c.JSON(http.StatusOK, h.pageView(c, res))
	}
}

// @Summary      Create organization
// @Description  Creates an organization. The caller becomes its first admin.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  OrganizationForm  true  "Organization"
// @Success      201  {object}  OrganizationView
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      409  {object}  map[string]interface{}  "Slug conflict"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/1/organizations/ [post]
// CreateOrganizationHandler creates an organization
// POST /api/1/organizations/
func (h *OrganizationHandlers) CreateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		var form OrganizationForm
		if err := c.ShouldBindJSON(&form); err != nil {
			abortWithBindError(c, err)
			return
		}

		org := &models.Organization{
			Name:        form.Name,
			Description: form.Description,
		}
		org.AddMember(user.ID, models.RoleAdmin, time.Now().UTC())

		if err := h.orgs.Create(c.Request.Context(), org); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "An organization with this slug was created concurrently, retry"})
				return
			}
			internalError(c, "Failed to create organization", err)
			return
		}

		telemetry.OrganizationsCreatedTotal.Inc()
		c.Set(middleware.ContextKeyAuditResourceID, org.ID)
		c.JSON(http.StatusCreated, h.organizationView(org))
	}
}

// @Summary      Get organization
// @Tags         Organizations
// @Produce      json
// @Param        org  path  string  true  "Organization ID or slug"
// @Success      200  {object}  OrganizationView
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      410  {object}  map[string]interface{}  "Organization has been deleted"
// @Router       /api/1/organizations/{org}/ [get]
// GetOrganizationHandler returns one organization
// GET /api/1/organizations/:org/
func (h *OrganizationHandlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.organizationView(middleware.CurrentOrganization(c)))
	}
}

// @Summary      Update organization
// @Description  Fields absent from the body keep their current value.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org   path  string            true  "Organization ID or slug"
// @Param        body  body  OrganizationForm  true  "Fields to update"
// @Success      200  {object}  OrganizationView
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/1/organizations/{org}/ [put]
// UpdateOrganizationHandler updates an organization
// PUT /api/1/organizations/:org/
func (h *OrganizationHandlers) UpdateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)

		form := OrganizationForm{Name: org.Name, Description: org.Description}
		if err := bindJSON(c, &form); err != nil {
			abortWithBindError(c, err)
			return
		}

		// the slug is kept so existing URLs stay valid
		org.Name = form.Name
		org.Description = form.Description

		if err := h.orgs.Save(c.Request.Context(), org); err != nil {
			internalError(c, "Failed to update organization", err)
			return
		}

		c.JSON(http.StatusOK, h.organizationView(org))
	}
}

// @Summary      Delete organization
// @Description  Soft-deletes the organization. It then answers 410 Gone.
// @Tags         Organizations
// @Security     Bearer
// @Param        org  path  string  true  "Organization ID or slug"
// @Success      204
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/1/organizations/{org}/ [delete]
// DeleteOrganizationHandler soft-deletes an organization
// DELETE /api/1/organizations/:org/
func (h *OrganizationHandlers) DeleteOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)

		if err := h.orgs.SoftDelete(c.Request.Context(), org); err != nil {
			internalError(c, "Failed to delete organization", err)
			return
		}

		telemetry.OrganizationsDeletedTotal.Inc()
		c.Status(http.StatusNoContent)
	}
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
