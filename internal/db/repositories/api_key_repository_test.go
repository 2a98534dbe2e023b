package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/civicdata/portal-api/internal/db/models"
)

var apiKeyCols = []string{
	"id", "user_id", "name", "key_prefix", "key_hash", "expires_at", "last_used_at", "created_at",
}

func newAPIKeyRepo(t *testing.T) (*APIKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAPIKeyRepository(db), mock
}

func TestCreateAPIKey_Success(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(sqlmock.AnyArg(), "user-1", "harvester", "ptl_abcdef", "hash", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	key := &models.APIKey{UserID: "user-1", Name: "harvester", KeyPrefix: "ptl_abcdef", KeyHash: "hash"}
	if err := repo.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.ID == "" {
		t.Error("expected ID to be assigned")
	}
}

func TestCreateAPIKey_DBError(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").WillReturnError(errDB)

	if err := repo.CreateAPIKey(context.Background(), &models.APIKey{}); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestGetAPIKeysByPrefix(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	expires := time.Now().Add(time.Hour)
	mock.ExpectQuery("SELECT.*FROM api_keys WHERE key_prefix").
		WithArgs("ptl_abcdef").
		WillReturnRows(sqlmock.NewRows(apiKeyCols).
			AddRow("key-1", "user-1", "harvester", "ptl_abcdef", "hash-1", expires, nil, time.Now()).
			AddRow("key-2", "user-2", "backup", "ptl_abcdef", "hash-2", nil, time.Now(), time.Now()))

	keys, err := repo.GetAPIKeysByPrefix(context.Background(), "ptl_abcdef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if keys[0].ExpiresAt == nil {
		t.Error("first key should carry an expiry")
	}
	if keys[1].LastUsedAt == nil {
		t.Error("second key should carry last_used_at")
	}
}

func TestGetAPIKeysByPrefix_Empty(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys WHERE key_prefix").
		WillReturnRows(sqlmock.NewRows(apiKeyCols))

	keys, err := repo.GetAPIKeysByPrefix(context.Background(), "ptl_none")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("len(keys) = %d, want 0", len(keys))
	}
}

func TestUpdateLastUsed(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WithArgs("key-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLastUsed(context.Background(), "key-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
