package organizations

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/db/repositories"
	"github.com/civicdata/portal-api/internal/middleware"
	"github.com/civicdata/portal-api/internal/telemetry"
)

const errUnknownRequest = "Unknown membership request id"

// @Summary      Request membership
// @Description  Creates a pending membership request for the caller, or updates the comment of the one already pending.
// @Tags         Membership
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org   path  string                 true   "Organization ID or slug"
// @Param        body  body  MembershipRequestForm  false  "Optional comment"
// @Success      200  {object}  MembershipRequestView  "Existing pending request updated"
// @Success      201  {object}  MembershipRequestView  "Request created"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      409  {object}  map[string]interface{}  "Already a member"
// @Router       /api/1/organizations/{org}/membership/ [post]
// RequestMembershipHandler applies for membership
// POST /api/1/organizations/:org/membership/
func (h *OrganizationHandlers) RequestMembershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)
		user := middleware.CurrentUser(c)

		if org.IsMember(user.ID) {
			c.JSON(http.StatusConflict, gin.H{"error": models.ErrAlreadyMember.Error()})
			return
		}

		req := org.PendingRequest(user.ID)
		status, outcome := http.StatusOK, telemetry.OutcomeUpdated

		form := MembershipRequestForm{}
		if req != nil {
			form.Comment = req.Comment
		}
		if err := bindJSON(c, &form); err != nil {
			abortWithBindError(c, err)
			return
		}

		if req == nil {
			req = &models.MembershipRequest{
				ID:        uuid.New().String(),
				UserID:    user.ID,
				Status:    models.RequestStatusPending,
				CreatedAt: time.Now().UTC(),
			}
			org.Requests = append(org.Requests, req)
			status, outcome = http.StatusCreated, telemetry.OutcomeCreated
		}
		req.Comment = form.Comment

		if err := h.orgs.Save(c.Request.Context(), org); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "A membership request is already pending"})
				return
			}
			internalError(c, "Failed to save membership request", err)
			return
		}

		telemetry.MembershipRequestsTotal.WithLabelValues(outcome).Inc()
		c.Set(middleware.ContextKeyAuditResourceID, req.ID)
		c.JSON(status, requestView(req))
	}
}

// @Summary      Accept membership request
// @Description  Accepts a pending request and adds the requester as an editor.
// @Tags         Membership
// @Security     Bearer
// @Produce      json
// @Param        org  path  string  true  "Organization ID or slug"
// @Param        id   path  string  true  "Membership request ID"
// @Success      200  {object}  MemberView
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Unknown membership request id"
// @Failure      409  {object}  map[string]interface{}  "Request is not pending"
// @Router       /api/1/organizations/{org}/membership/{id}/accept/ [post]
// AcceptMembershipHandler accepts a membership request
// POST /api/1/organizations/:org/membership/:id/accept/
func (h *OrganizationHandlers) AcceptMembershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)
		req := lookupRequest(c, org)
		if req == nil {
			return
		}

		now := time.Now().UTC()
		if err := req.Accept(middleware.CurrentUser(c).ID, now); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		member := org.AddMember(req.UserID, models.RoleEditor, now)

		if err := h.orgs.Save(c.Request.Context(), org); err != nil {
			internalError(c, "Failed to accept membership request", err)
			return
		}

		telemetry.MembershipRequestsTotal.WithLabelValues(telemetry.OutcomeAccepted).Inc()
		c.JSON(http.StatusOK, memberView(member))
	}
}

// @Summary      Refuse membership request
// @Tags         Membership
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org   path  string                true  "Organization ID or slug"
// @Param        id    path  string                true  "Membership request ID"
// @Param        body  body  MembershipRefuseForm  true  "Reason for the refusal"
// @Success      200  {object}  map[string]interface{}  "Empty object"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Unknown membership request id"
// @Failure      409  {object}  map[string]interface{}  "Request is not pending"
// @Router       /api/1/organizations/{org}/membership/{id}/refuse/ [post]
// RefuseMembershipHandler refuses a membership request
// POST /api/1/organizations/:org/membership/:id/refuse/
func (h *OrganizationHandlers) RefuseMembershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := middleware.CurrentOrganization(c)
		req := lookupRequest(c, org)
		if req == nil {
			return
		}

		var form MembershipRefuseForm
		if err := bindJSON(c, &form); err != nil {
			abortWithBindError(c, err)
			return
		}

		if err := req.Refuse(middleware.CurrentUser(c).ID, form.Comment, time.Now().UTC()); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		if err := h.orgs.Save(c.Request.Context(), org); err != nil {
			internalError(c, "Failed to refuse membership request", err)
			return
		}

		telemetry.MembershipRequestsTotal.WithLabelValues(telemetry.OutcomeRefused).Inc()
		c.JSON(http.StatusOK, gin.H{})
	}
}

// lookupRequest finds :id among the organization's own requests and answers
// 404 otherwise. Ids that are not UUIDs can never match.
func lookupRequest(c *gin.Context, org *models.Organization) *models.MembershipRequest {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownRequest})
		return nil
	}
	req := org.RequestByID(id)
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownRequest})
		return nil
	}
	return req
}
