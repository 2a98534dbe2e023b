package search

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orgCols = []string{"id", "name", "slug", "description", "metrics", "created_at", "last_modified", "deleted"}

func newSearch(t *testing.T) (*PostgresSearch, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresSearch(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Query.Normalize
// ---------------------------------------------------------------------------

func TestNormalize_Defaults(t *testing.T) {
	q := Query{Text: "  water  "}
	require.NoError(t, q.Normalize(20, 100))
	assert.Equal(t, "water", q.Text)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.PageSize)
	assert.Equal(t, DefaultSort, q.Sort)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want error
	}{
		{"page size too large", Query{PageSize: 101}, ErrInvalidPageSize},
		{"negative page size", Query{PageSize: -1}, ErrInvalidPageSize},
		{"page offset overflows", Query{Page: math.MaxInt}, ErrInvalidPage},
		{"page offset overflows at max size", Query{Page: math.MaxInt/100 + 1, PageSize: 100}, ErrInvalidPage},
		{"unknown sort", Query{Sort: "popularity"}, ErrInvalidSort},
		{"unknown descending sort", Query{Sort: "-slug"}, ErrInvalidSort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Normalize(20, 100)
			assert.True(t, errors.Is(err, tt.want), "err = %v", err)
		})
	}
}

func TestNormalize_AcceptsAllSortKeys(t *testing.T) {
	for _, s := range []string{"name", "-name", "created", "-created", "followers", "-followers"} {
		q := Query{Sort: s}
		assert.NoError(t, q.Normalize(20, 100), s)
	}
}

func TestOrderBy(t *testing.T) {
	clause, err := orderBy("-followers")
	require.NoError(t, err)
	assert.Contains(t, clause, "DESC")
	assert.Contains(t, clause, "followers")

	clause, err = orderBy("name")
	require.NoError(t, err)
	assert.Equal(t, "lower(name) ASC, id ASC", clause)
}

// ---------------------------------------------------------------------------
// Result paging helpers
// ---------------------------------------------------------------------------

func TestResult_Paging(t *testing.T) {
	r := &Result{Page: 1, PageSize: 20, Total: 45}
	assert.True(t, r.HasNext())
	assert.False(t, r.HasPrevious())

	r = &Result{Page: 3, PageSize: 20, Total: 45}
	assert.False(t, r.HasNext())
	assert.True(t, r.HasPrevious())
}

// ---------------------------------------------------------------------------
// PostgresSearch.Search
// ---------------------------------------------------------------------------

func TestSearch_WithText(t *testing.T) {
	s, mock := newSearch(t)
	mock.ExpectQuery("SELECT COUNT.*FROM organizations WHERE deleted IS NULL AND .*plainto_tsquery").
		WithArgs("water", "%water%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery("SELECT id, name, slug.*FROM organizations WHERE deleted IS NULL.*ORDER BY created_at DESC.*LIMIT").
		WithArgs("water", "%water%", 20, 20).
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-21", "Water Board", "water-board", "Rivers", []byte(`{"followers":4}`), time.Now(), time.Now(), nil))

	q := Query{Text: "water", Page: 2}
	require.NoError(t, q.Normalize(20, 100))

	res, err := s.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 21, res.Total)
	require.Len(t, res.Organizations, 1)
	assert.Equal(t, "water-board", res.Organizations[0].Slug)
	assert.Equal(t, 4, res.Organizations[0].Metrics["followers"])
	assert.False(t, res.HasNext())
	assert.True(t, res.HasPrevious())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_NoText(t *testing.T) {
	s, mock := newSearch(t)
	mock.ExpectQuery("SELECT COUNT.*FROM organizations WHERE deleted IS NULL").
		WithArgs().
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT id, name, slug.*ORDER BY lower.*LIMIT").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-1", "Alpha", "alpha", "", []byte(`{}`), time.Now(), time.Now(), nil).
			AddRow("org-2", "Beta", "beta", "", []byte(`{}`), time.Now(), time.Now(), nil))

	res, err := s.Search(context.Background(), Query{Page: 1, PageSize: 10, Sort: "name"})
	require.NoError(t, err)
	assert.Len(t, res.Organizations, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_PageBeyondTotalSkipsSelect(t *testing.T) {
	s, mock := newSearch(t)
	mock.ExpectQuery("SELECT COUNT.*FROM organizations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	res, err := s.Search(context.Background(), Query{Page: 5, PageSize: 10, Sort: DefaultSort})
	require.NoError(t, err)
	assert.Empty(t, res.Organizations)
	assert.Equal(t, 3, res.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_CountError(t *testing.T) {
	s, mock := newSearch(t)
	mock.ExpectQuery("SELECT COUNT.*FROM organizations").
		WillReturnError(errors.New("timeout"))

	_, err := s.Search(context.Background(), Query{Page: 1, PageSize: 10, Sort: DefaultSort})
	assert.Error(t, err)
}

func TestSearch_InvalidSort(t *testing.T) {
	s, _ := newSearch(t)
	_, err := s.Search(context.Background(), Query{Page: 1, PageSize: 10, Sort: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidSort)
}
