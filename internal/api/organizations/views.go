package organizations

import (
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/internal/search"
)

// OrganizationView is the JSON representation of an organization.
type OrganizationView struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Description  string         `json:"description"`
	CreatedAt    time.Time      `json:"created_at"`
	LastModified time.Time      `json:"last_modified"`
	Deleted      *time.Time     `json:"deleted"`
	Metrics      map[string]int `json:"metrics"`
	URI          string         `json:"uri"`
}

// OrganizationPageView is one page of a listing.
type OrganizationPageView struct {
	Data         []OrganizationView `json:"data"`
	Page         int                `json:"page"`
	PageSize     int                `json:"page_size"`
	Total        int                `json:"total"`
	NextPage     *string            `json:"next_page"`
	PreviousPage *string            `json:"previous_page"`
}

// MembershipRequestView is the JSON representation of a membership request.
type MembershipRequestView struct {
	ID      string    `json:"id"`
	User    string    `json:"user"`
	Status  string    `json:"status"`
	Comment string    `json:"comment"`
	Created time.Time `json:"created"`
}

// MemberView is the JSON representation of a member.
type MemberView struct {
	User string `json:"user"`
	Role string `json:"role"`
}

// FollowersView answers follow and unfollow calls.
type FollowersView struct {
	Followers int `json:"followers"`
}

func (h *OrganizationHandlers) organizationURI(org *models.Organization) string {
	return h.baseURL + "/api/1/organizations/" + org.Slug + "/"
}

func (h *OrganizationHandlers) organizationView(org *models.Organization) OrganizationView {
	metrics := map[string]int{
		models.MetricMembers:   0,
		models.MetricFollowers: 0,
	}
	for k, v := range org.Metrics {
		metrics[k] = v
	}
	return OrganizationView{
		ID:           org.ID,
		Name:         org.Name,
		Slug:         org.Slug,
		Description:  org.Description,
		CreatedAt:    org.CreatedAt.UTC(),
		LastModified: org.LastModified.UTC(),
		Deleted:      org.Deleted,
		Metrics:      metrics,
		URI:          h.organizationURI(org),
	}
}

// pageView builds next/previous links from the current request URL so that
// filters and sort survive pagination.
func (h *OrganizationHandlers) pageView(c *gin.Context, res *search.Result) OrganizationPageView {
	view := OrganizationPageView{
		Data:     make([]OrganizationView, 0, len(res.Organizations)),
		Page:     res.Page,
		PageSize: res.PageSize,
		Total:    res.Total,
	}
	for _, org := range res.Organizations {
		view.Data = append(view.Data, h.organizationView(org))
	}

	link := func(page int) *string {
		q := url.Values{}
		for k, v := range c.Request.URL.Query() {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(res.PageSize))
		s := h.baseURL + c.Request.URL.Path + "?" + q.Encode()
		return &s
	}
	if res.HasNext() {
		view.NextPage = link(res.Page + 1)
	}
	if res.HasPrevious() {
		view.PreviousPage = link(res.Page - 1)
	}
	return view
}

func requestView(r *models.MembershipRequest) MembershipRequestView {
	return MembershipRequestView{
		ID:      r.ID,
		User:    r.UserID,
		Status:  r.Status,
		Comment: r.Comment,
		Created: r.CreatedAt.UTC(),
	}
}

func memberView(m *models.Member) MemberView {
	return MemberView{User: m.UserID, Role: m.Role}
}
