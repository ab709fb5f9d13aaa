package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamias-pos/customer-display/pkg/models"
)

func newMock(t *testing.T) (*Directory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDirectory(sqlx.NewDb(db, "postgres")), mock
}

func TestStoreByDisplayID(t *testing.T) {
	dir, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(storeByDisplayIDQuery)).
		WithArgs("12345678").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_id"}).
			AddRow("store-1", "Kopi Kita", "12345678"))

	store, err := dir.StoreByDisplayID(context.Background(), "12345678")

	require.NoError(t, err)
	assert.Equal(t, models.Store{ID: "store-1", Name: "Kopi Kita", DisplayID: "12345678"}, *store)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreByIDNotFound(t *testing.T) {
	dir, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(storeByIDQuery)).
		WithArgs("store-404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_id"}))

	_, err := dir.StoreByID(context.Background(), "store-404")

	assert.ErrorIs(t, err, models.ErrStoreNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreQueryFailure(t *testing.T) {
	dir, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(storeByIDQuery)).
		WithArgs("store-1").
		WillReturnError(errors.New("connection reset by peer"))

	_, err := dir.StoreByID(context.Background(), "store-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrStoreNotFound)
}

func TestCashiersByStore(t *testing.T) {
	dir, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(cashiersByStoreQuery)).
		WithArgs("store-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "employee_id", "avatar_url"}).
			AddRow("emp-1", "Budi", "K-001", "").
			AddRow("emp-2", "Sari", "K-002", "https://cdn.example/sari.png"))

	cashiers, err := dir.CashiersByStore(context.Background(), "store-1")

	require.NoError(t, err)
	assert.Equal(t, []models.Cashier{
		{ID: "emp-1", Name: "Budi", EmployeeCode: "K-001"},
		{ID: "emp-2", Name: "Sari", EmployeeCode: "K-002", AvatarURL: "https://cdn.example/sari.png"},
	}, cashiers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCashiersByStoreEmpty(t *testing.T) {
	dir, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(cashiersByStoreQuery)).
		WithArgs("store-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "employee_id", "avatar_url"}))

	cashiers, err := dir.CashiersByStore(context.Background(), "store-2")

	require.NoError(t, err)
	assert.NotNil(t, cashiers)
	assert.Empty(t, cashiers)
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := MigrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, ident, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "display_directory", ident)

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	down.Close()
}
