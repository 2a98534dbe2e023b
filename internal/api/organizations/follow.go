package organizations

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/db/repositories"
	"github.com/civicdata/portal-api/internal/middleware"
	"github.com/civicdata/portal-api/internal/telemetry"
)

// @Summary      Follow organization
// @Tags         Follow
// @Security     Bearer
// @Produce      json
// @Param        org  path  string  true  "Organization ID or slug"
// @Success      200  {object}  FollowersView  "Already following"
// @Success      201  {object}  FollowersView  "Now following"
// @Router       /api/1/organizations/{org}/follow/ [post]
// FollowHandler starts following an organization
// POST /api/1/organizations/:org/follow/
func (h *OrganizationHandlers) FollowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)
		user := middleware.CurrentUser(c)

		created, followers, err := h.follows.Follow(c.Request.Context(), user.ID, org.ID)
		if errors.Is(err, repositories.ErrDuplicate) {
			// lost a race with a concurrent follow by the same user
			created, err = false, nil
			followers = org.Metric(models.MetricFollowers)
		}
		if err != nil {
			internalError(c, "Failed to follow organization", err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
			telemetry.OrganizationFollowsTotal.WithLabelValues("follow").Inc()
		}
		c.JSON(status, FollowersView{Followers: followers})
	}
}

// @Summary      Unfollow organization
// @Tags         Follow
// @Security     Bearer
// @Produce      json
// @Param        org  path  string  true  "Organization ID or slug"
// @Success      200  {object}  FollowersView
// @Failure      404  {object}  map[string]interface{}  "Not following"
// @Router       /api/1/organizations/{org}/follow/ [delete]
// UnfollowHandler stops following an organization
// DELETE /api/1/organizations/:org/follow/
func (h *OrganizationHandlers) UnfollowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)
		user := middleware.CurrentUser(c)

		found, followers, err := h.follows.Unfollow(c.Request.Context(), user.ID, org.ID)
		if err != nil {
			internalError(c, "Failed to unfollow organization", err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "You are not following this organization"})
			return
		}

		telemetry.OrganizationFollowsTotal.WithLabelValues("unfollow").Inc()
		c.JSON(http.StatusOK, FollowersView{Followers: followers})
	}
}
