// Package search provides the listing backend of the organizations endpoint.
// OrganizationSearch is the adapter interface; PostgresSearch implements it
// with PostgreSQL full-text search.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/civicdata/portal-api/internal/db/models"
)

// Sort keys accepted by Query.Sort. A leading dash sorts descending.
const (
	SortName      = "name"
	SortCreated   = "created"
	SortFollowers = "followers"

	DefaultSort = "-created"
)

var (
	// ErrInvalidSort is returned for an unknown sort key.
	ErrInvalidSort = errors.New("invalid sort")
	// ErrInvalidPageSize is returned for a page size outside the allowed range.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidPage is returned for a page whose offset does not fit an int.
	ErrInvalidPage = errors.New("invalid page")
)

var orderClauses = map[string]string{
	SortName:      "lower(name)",
	SortCreated:   "created_at",
	SortFollowers: "COALESCE((metrics->>'followers')::int, 0)",
}

// Query describes one page of a listing.
type Query struct {
	Text     string
	Page     int
	PageSize int
	Sort     string
}

// Result is one page of organizations plus the total match count.
type Result struct {
	Organizations []*models.Organization
	Total         int
	Page          int
	PageSize      int
}

// HasNext reports whether a page follows this one.
func (r *Result) HasNext() bool {
	return r.Page*r.PageSize < r.Total
}

// HasPrevious reports whether a page precedes this one.
func (r *Result) HasPrevious() bool {
	return r.Page > 1
}

// OrganizationSearch lists non-deleted organizations.
type OrganizationSearch interface {
	Search(ctx context.Context, q Query) (*Result, error)
}

// Normalize fills defaults and validates q. Pages below 1 are treated as the
// first page.
func (q *Query) Normalize(defaultPageSize, maxPageSize int) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize < 1 || q.PageSize > maxPageSize {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidPageSize, q.PageSize, maxPageSize)
	}
	if q.Page > math.MaxInt/q.PageSize {
		return fmt.Errorf("%w: %d", ErrInvalidPage, q.Page)
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if _, err := orderBy(q.Sort); err != nil {
		return err
	}
	return nil
}

// orderBy translates a sort key into an ORDER BY clause. id is appended as a
// tie-breaker so pages are stable.
func orderBy(sort string) (string, error) {
	dir := "ASC"
	key := sort
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		key = sort[1:]
	}
	col, ok := orderClauses[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, sort)
	}
	return fmt.Sprintf("%s %s, id %s", col, dir, dir), nil
}
