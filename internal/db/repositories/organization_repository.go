// organization_repository.go implements OrganizationRepository, which loads an
// organization together with its membership requests and members and persists
// the whole graph back in one transaction.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicdata/portal-api/internal/db/models"
	"github.com/civicdata/portal-api/pkg/slug"
)

const orgColumns = `id, name, slug, description, metrics, created_at, last_modified, deleted`

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByIDOrSlug resolves an organization reference from a URL. UUID-shaped
// references are looked up by id, anything else by slug. Soft-deleted
// organizations are returned too; callers decide how to present them.
// Returns (nil, nil) when nothing matches.
func (r *OrganizationRepository) GetByIDOrSlug(ctx context.Context, ref string) (*models.Organization, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return r.GetByID(ctx, ref)
	}
	return r.getOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, ref)
}

// GetByID retrieves an organization with its requests and members
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	return r.getOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
}

func (r *OrganizationRepository) getOne(ctx context.Context, query string, arg string) (*models.Organization, error) {
	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if org.Requests, err = r.loadRequests(ctx, org.ID); err != nil {
		return nil, err
	}
	if org.Members, err = r.loadMembers(ctx, org.ID); err != nil {
		return nil, err
	}
	return org, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	org := &models.Organization{}
	var metricsJSON []byte
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Description,
		&metricsJSON,
		&org.CreatedAt,
		&org.LastModified,
		&org.Deleted,
	)
	if err != nil {
		return nil, err
	}
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &org.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode organization metrics: %w", err)
		}
	}
	return org, nil
}

func (r *OrganizationRepository) loadRequests(ctx context.Context, orgID string) ([]*models.MembershipRequest, error) {
	query := `
		SELECT id, user_id, status, comment, refusal_comment, handled_by, handled_on, created_at
		FROM membership_requests
		WHERE organization_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load membership requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.MembershipRequest, 0)
	for rows.Next() {
		req := &models.MembershipRequest{}
		if err := rows.Scan(
			&req.ID,
			&req.UserID,
			&req.Status,
			&req.Comment,
			&req.RefusalComment,
			&req.HandledBy,
			&req.HandledOn,
			&req.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *OrganizationRepository) loadMembers(ctx context.Context, orgID string) ([]*models.Member, error) {
	query := `
		SELECT user_id, role, since
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY since
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.Member, 0)
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.UserID, &m.Role, &m.Since); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Create inserts a new organization with a slug derived from its name, then
// persists any members and requests already attached to it. The slug gets a
// numeric suffix when the plain form is taken.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	org.Slug, err = uniqueSlug(ctx, tx, slug.Make(org.Name))
	if err != nil {
		return err
	}

	org.SetMetric(models.MetricMembers, len(org.Members))
	metricsJSON, err := json.Marshal(org.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode organization metrics: %w", err)
	}

	query := `
		INSERT INTO organizations (name, slug, description, metrics)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, last_modified
	`
	err = tx.QueryRowContext(ctx, query, org.Name, org.Slug, org.Description, metricsJSON).Scan(
		&org.ID,
		&org.CreatedAt,
		&org.LastModified,
	)
	if err != nil {
		return wrapWriteErr("failed to create organization", err)
	}

	if err := saveRequests(ctx, tx, org); err != nil {
		return err
	}
	if err := saveMembers(ctx, tx, org); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization: %w", err)
	}
	return nil
}

// Save writes the organization row, its requests and its members in one
// transaction. Requests and members are upserted; nothing is ever deleted.
// Only pending requests are overwritten, so a handled request keeps its
// outcome when org was loaded before it was handled. metrics.members is
// recomputed from the stored member rows and other metrics are left alone.
func (r *OrganizationRepository) Save(ctx context.Context, org *models.Organization) error {
	org.LastModified = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		UPDATE organizations
		SET name = $2, description = $3, last_modified = $4
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Description,
		org.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update organization %s: %w", org.ID, sql.ErrNoRows)
	}

	if err := saveRequests(ctx, tx, org); err != nil {
		return err
	}
	if err := saveMembers(ctx, tx, org); err != nil {
		return err
	}
	if err := refreshMemberMetric(ctx, tx, org); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization: %w", err)
	}
	return nil
}

func refreshMemberMetric(ctx context.Context, tx *sql.Tx, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET metrics = jsonb_set(metrics, '{members}',
			to_jsonb((SELECT COUNT(*) FROM organization_members WHERE organization_id = $1)::int))
		WHERE id = $1
		RETURNING metrics
	`
	var metricsJSON []byte
	if err := tx.QueryRowContext(ctx, query, org.ID).Scan(&metricsJSON); err != nil {
		return fmt.Errorf("failed to update organization metrics: %w", err)
	}
	metrics := map[string]int{}
	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return fmt.Errorf("failed to decode organization metrics: %w", err)
	}
	org.Metrics = metrics
	return nil
}

// SoftDelete marks the organization as deleted. Deleting twice is a no-op.
func (r *OrganizationRepository) SoftDelete(ctx context.Context, org *models.Organization) error {
	if org.Deleted != nil {
		return nil
	}
	now := time.Now().UTC()
	query := `UPDATE organizations SET deleted = $2, last_modified = $2 WHERE id = $1 AND deleted IS NULL`
	if _, err := r.db.ExecContext(ctx, query, org.ID, now); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	org.Deleted = &now
	org.LastModified = now
	return nil
}

func saveRequests(ctx context.Context, tx *sql.Tx, org *models.Organization) error {
	query := `
		INSERT INTO membership_requests
			(id, organization_id, user_id, status, comment, refusal_comment, handled_by, handled_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			comment = EXCLUDED.comment,
			refusal_comment = EXCLUDED.refusal_comment,
			handled_by = EXCLUDED.handled_by,
			handled_on = EXCLUDED.handled_on
		WHERE membership_requests.status = 'pending'
	`
	for _, req := range org.Requests {
		if req.ID == "" {
			req.ID = uuid.New().String()
		}
		if req.CreatedAt.IsZero() {
			req.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, query,
			req.ID,
			org.ID,
			req.UserID,
			req.Status,
			req.Comment,
			req.RefusalComment,
			req.HandledBy,
			req.HandledOn,
			req.CreatedAt,
		)
		if err != nil {
			return wrapWriteErr("failed to save membership request", err)
		}
	}
	return nil
}

func saveMembers(ctx context.Context, tx *sql.Tx, org *models.Organization) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, since)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`
	for _, m := range org.Members {
		if m.Since.IsZero() {
			m.Since = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query, org.ID, m.UserID, m.Role, m.Since); err != nil {
			return fmt.Errorf("failed to save member: %w", err)
		}
	}
	return nil
}

// uniqueSlug returns base, or base-N for the smallest N >= 2 not yet in use.
func uniqueSlug(ctx context.Context, tx *sql.Tx, base string) (string, error) {
	if base == "" {
		base = "organization"
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT slug FROM organizations WHERE slug = $1 OR slug LIKE $2`,
		base, base+"-%",
	)
	if err != nil {
		return "", fmt.Errorf("failed to check slug availability: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", fmt.Errorf("failed to scan slug: %w", err)
		}
		taken[s] = true
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to check slug availability: %w", err)
	}

	candidate := base
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return candidate, nil
}
