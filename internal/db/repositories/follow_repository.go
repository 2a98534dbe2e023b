// follow_repository.go implements FollowRepository on sqlx. Follows are never
// deleted; unfollowing stamps until, and the organization's followers metric is
// refreshed in the same transaction as each change.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/civicdata/portal-api/internal/db/models"
)

// FollowRepository handles follow database operations
type FollowRepository struct {
	db *sqlx.DB
}

// NewFollowRepository creates a new FollowRepository
func NewFollowRepository(db *sqlx.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

// GetActive returns the active follow of followerID on orgID, or nil.
func (r *FollowRepository) GetActive(ctx context.Context, followerID, orgID string) (*models.Follow, error) {
	return getActiveFollow(ctx, r.db, followerID, orgID)
}

func getActiveFollow(ctx context.Context, q sqlx.QueryerContext, followerID, orgID string) (*models.Follow, error) {
	var f models.Follow
	err := sqlx.GetContext(ctx, q, &f, `
		SELECT id, follower_id, organization_id, since, until
		FROM follows
		WHERE follower_id = $1 AND organization_id = $2 AND until IS NULL
	`, followerID, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get follow: %w", err)
	}
	return &f, nil
}

// Follow starts following orgID. created is false when an active follow
// already existed. followers is the refreshed active follower count.
func (r *FollowRepository) Follow(ctx context.Context, followerID, orgID string) (created bool, followers int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := getActiveFollow(ctx, tx, followerID, orgID)
	if err != nil {
		return false, 0, err
	}

	if existing == nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO follows (follower_id, organization_id, since) VALUES ($1, $2, $3)`,
			followerID, orgID, time.Now().UTC(),
		)
		if err != nil {
			return false, 0, wrapWriteErr("failed to create follow", err)
		}
		created = true
	}

	if followers, err = refreshFollowers(ctx, tx, orgID); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit follow: %w", err)
	}
	return created, followers, nil
}

// Unfollow ends the active follow. found is false when there was none.
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, orgID string) (found bool, followers int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE follows SET until = $3 WHERE follower_id = $1 AND organization_id = $2 AND until IS NULL`,
		followerID, orgID, time.Now().UTC(),
	)
	if err != nil {
		return false, 0, fmt.Errorf("failed to end follow: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to end follow: %w", err)
	}
	if n == 0 {
		return false, 0, nil
	}

	if followers, err = refreshFollowers(ctx, tx, orgID); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit unfollow: %w", err)
	}
	return true, followers, nil
}

// CountFollowers returns the number of active followers of orgID.
func (r *FollowRepository) CountFollowers(ctx context.Context, orgID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM follows WHERE organization_id = $1 AND until IS NULL`, orgID); err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return n, nil
}

func refreshFollowers(ctx context.Context, tx *sqlx.Tx, orgID string) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM follows WHERE organization_id = $1 AND until IS NULL`, orgID); err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE organizations SET metrics = jsonb_set(metrics, '{followers}', to_jsonb($2::int)) WHERE id = $1`,
		orgID, n,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update followers metric: %w", err)
	}
	return n, nil
}
