package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
)

func sampleOrder() domain.Order {
	return domain.Order{
		OrderNumber:  4821,
		CustomerInfo: domain.CustomerInfo{Name: "Mona", Phone: "010", Address: "12 Street", Governorate: "Cairo", Center: "Maadi"},
		Items:        []domain.CartItem{{ProductID: "p1", Name: "Linen Dress", Price: 600, Size: "S", Quantity: 1}},
		Totals:       domain.Totals{Subtotal: 600, DeliveryPrice: 60, Total: 660, DeliveryResolved: true},
		OrderDate:    time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC),
		Status:       domain.OrderStatusPending,
		WeekNumber:   12,
		Year:         2025,
	}
}

func TestPostgresStore_CreateOrder(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	order := sampleOrder()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO storefront.orders`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "pending", 12, 2025, order.OrderDate).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateOrder(context.Background(), &order)

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, order.ID, "input order must not be modified")
	assert.Equal(t, 660.0, created.Totals.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOrders(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	order := sampleOrder()
	order.ID = "o1"
	data, err := json.Marshal(order)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.orders`)).
		WithArgs(12, 2025).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(data))

	orders, err := store.ListOrders(context.Background(), Period{WeekNumber: 12, Year: 2025})

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, 4821, orders[0].OrderNumber)
	assert.Equal(t, "Maadi", orders[0].CustomerInfo.Center)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOrderStatus(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	order := sampleOrder()
	order.ID = "o1"
	order.Status = domain.OrderStatusConfirmed
	data, err := json.Marshal(order)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE storefront.orders`)).
		WithArgs("confirmed", "o1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(data))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE storefront.orders`)).
		WithArgs("confirmed", "missing").
		WillReturnError(sql.ErrNoRows)

	updated, err := store.UpdateOrderStatus(context.Background(), "o1", domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	_, err = store.UpdateOrderStatus(context.Background(), "missing", domain.OrderStatusConfirmed)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteOrders(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM storefront.orders WHERE week_number = $1 AND year = $2;`)).
		WithArgs(12, 2025).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.DeleteOrders(context.Background(), Period{WeekNumber: 12, Year: 2025})

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Policies(t *testing.T) {
	t.Run("MissingRowIsEmpty", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT document FROM storefront.settings WHERE key = $1;`)).
			WithArgs("policies").
			WillReturnError(sql.ErrNoRows)

		p, err := store.GetPolicies(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &domain.Policies{}, p)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Upsert", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (key) DO UPDATE`)).
			WithArgs("policies", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		saved, err := store.SavePolicies(context.Background(), &domain.Policies{ReturnPolicy: "14 days"})
		require.NoError(t, err)
		assert.Equal(t, "14 days", saved.ReturnPolicy)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
