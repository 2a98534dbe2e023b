package search

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/civicdata/portal-api/internal/db/models"
)

// PostgresSearch matches the query text against a tsvector of name and
// description, falling back to a substring match on the slug.
type PostgresSearch struct {
	db *sqlx.DB
}

// NewPostgresSearch creates a PostgresSearch
func NewPostgresSearch(db *sqlx.DB) *PostgresSearch {
	return &PostgresSearch{db: db}
}

type organizationRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Slug         string         `db:"slug"`
	Description  string         `db:"description"`
	Metrics      types.JSONText `db:"metrics"`
	CreatedAt    time.Time      `db:"created_at"`
	LastModified time.Time      `db:"last_modified"`
	Deleted      *time.Time     `db:"deleted"`
}

func (r *organizationRow) toModel() (*models.Organization, error) {
	org := &models.Organization{
		ID:           r.ID,
		Name:         r.Name,
		Slug:         r.Slug,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt,
		LastModified: r.LastModified,
		Deleted:      r.Deleted,
	}
	if len(r.Metrics) > 0 {
		if err := r.Metrics.Unmarshal(&org.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics of %s: %w", r.ID, err)
		}
	}
	return org, nil
}

// Search implements OrganizationSearch. q must have been normalized.
func (s *PostgresSearch) Search(ctx context.Context, q Query) (*Result, error) {
	order, err := orderBy(q.Sort)
	if err != nil {
		return nil, err
	}

	where := "deleted IS NULL"
	args := []interface{}{}
	if q.Text != "" {
		where += ` AND (to_tsvector('simple', name || ' ' || description) @@ plainto_tsquery('simple', $1) OR slug ILIKE $2)`
		args = append(args, q.Text, "%"+q.Text+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM organizations WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}

	result := &Result{
		Organizations: make([]*models.Organization, 0, q.PageSize),
		Total:         total,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	offset := (q.Page - 1) * q.PageSize
	if total == 0 || offset >= total {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, slug, description, metrics, created_at, last_modified, deleted
		FROM organizations
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, order, len(args)+1, len(args)+2)

	var rows []organizationRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, q.PageSize, offset)...); err != nil {
		return nil, fmt.Errorf("failed to search organizations: %w", err)
	}

	for i := range rows {
		org, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		result.Organizations = append(result.Organizations, org)
	}
	return result, nil
}
