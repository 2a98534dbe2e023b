package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/db/models"
)

type stubLoader struct {
	org *models.Organization
	err error
	ref string
}

func (s *stubLoader) GetByIDOrSlug(_ context.Context, ref string) (*models.Organization, error) {
	s.ref = ref
	return s.org, s.err
}

func sampleOrg() *models.Organization {
	org := &models.Organization{ID: "org-1", Name: "Open Data Lab", Slug: "open-data-lab"}
	org.AddMember("admin-1", models.RoleAdmin, time.Now())
	org.AddMember("editor-1", models.RoleEditor, time.Now())
	return org
}

// newRBACRouter injects user (when non-nil) ahead of the org middleware.
func newRBACRouter(loader OrganizationLoader, user *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			setUser(c, user, AuthMethodJWT)
		}
		c.Next()
	})
	r.PUT("/orgs/:org/", LoadOrganization(loader), RequireOrgAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentOrganization(c).ID)
	})
	return r
}

func doRBAC(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, path, nil))
	return w
}

func TestLoadOrganization(t *testing.T) {
	deletedAt := time.Now()
	tests := []struct {
		name   string
		loader *stubLoader
		want   int
	}{
		{"found", &stubLoader{org: sampleOrg()}, http.StatusOK},
		{"unknown", &stubLoader{}, http.StatusNotFound},
		{"deleted", &stubLoader{org: &models.Organization{ID: "org-1", Deleted: &deletedAt}}, http.StatusGone},
		{"error", &stubLoader{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRBACRouter(tt.loader, &models.User{ID: "root", IsSysAdmin: true})
			w := doRBAC(r, "/orgs/open-data-lab/")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.loader.ref != "open-data-lab" {
				t.Errorf("loader called with %q", tt.loader.ref)
			}
		})
	}
}

func TestRequireOrgAdmin(t *testing.T) {
	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"outsider", &models.User{ID: "someone"}, http.StatusForbidden},
		{"editor", &models.User{ID: "editor-1"}, http.StatusForbidden},
		{"admin member", &models.User{ID: "admin-1"}, http.StatusOK},
		{"sysadmin", &models.User{ID: "root", IsSysAdmin: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRBACRouter(&stubLoader{org: sampleOrg()}, tt.user)
			if w := doRBAC(r, "/orgs/org-1/"); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireOrgAdmin_WithoutLoader(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		setUser(c, &models.User{ID: "admin-1"}, AuthMethodJWT)
		c.Next()
	}, RequireOrgAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCurrentOrganization_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if CurrentOrganization(c) != nil {
		t.Error("expected nil organization")
	}
}
