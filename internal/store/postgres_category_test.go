package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

var categoryColumns = []string{"id", "name", "created_at", "updated_at"}

func TestPostgresStore_CreateCategory(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	rows := sqlmock.NewRows(categoryColumns).AddRow("c1", "Dresses", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO storefront.categories (id, name)`)).
		WithArgs(sqlmock.AnyArg(), "Dresses").
		WillReturnRows(rows)

	created, err := store.CreateCategory(context.Background(), &domain.Category{Name: "Dresses"})

	require.NoError(t, err, "CreateCategory should not return an error")
	require.NotNil(t, created)
	assert.Equal(t, "c1", created.ID)
	assert.Equal(t, "Dresses", created.Name)
	assert.WithinDuration(t, now, created.CreatedAt, time.Second)

	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_CreateCategory_NameExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23505", Constraint: "categories_name_key"}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO storefront.categories (id, name)`)).
		WithArgs(sqlmock.AnyArg(), "Dresses").
		WillReturnError(pqErr)

	created, err := store.CreateCategory(context.Background(), &domain.Category{Name: "Dresses"})

	require.Error(t, err)
	assert.Nil(t, created)
	assert.True(t, errors.Is(err, ErrCategoryNameExists), "Error should be ErrCategoryNameExists")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	rows := sqlmock.NewRows(categoryColumns).
		AddRow("c2", "Accessories", now, now).
		AddRow("c1", "Dresses", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.categories`)).WillReturnRows(rows)

	categories, err := store.ListCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Accessories", categories[0].Name)
	assert.Equal(t, "Dresses", categories[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories_Empty(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.categories`)).WillReturnRows(sqlmock.NewRows(categoryColumns))

	categories, err := store.ListCategories(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCategory(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE storefront.categories`)).
		WithArgs("Evening", "c1").
		WillReturnRows(sqlmock.NewRows(categoryColumns).AddRow("c1", "Evening", now.Add(-time.Hour), now))

	updated, err := store.UpdateCategory(context.Background(), &domain.Category{ID: "c1", Name: "Evening"})

	require.NoError(t, err)
	assert.Equal(t, "Evening", updated.Name)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCategory_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE storefront.categories`)).
		WithArgs("Evening", "missing").
		WillReturnError(sql.ErrNoRows)

	updated, err := store.UpdateCategory(context.Background(), &domain.Category{ID: "missing", Name: "Evening"})

	assert.Nil(t, updated)
	assert.True(t, errors.Is(err, ErrCategoryNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCategory_Success(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM storefront.categories WHERE id = $1;`)).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.DeleteCategory(context.Background(), "c1")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCategory_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM storefront.categories WHERE id = $1;`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteCategory(context.Background(), "missing")

	assert.True(t, errors.Is(err, ErrCategoryNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
