package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
)

func setupMockDB(t *testing.T) (*repo.GormRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return repo.New(gormDB), mock
}

func TestDecrementStock_ConditionalUpdate(t *testing.T) {
	r, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1.*WHERE \(id = \$3 AND stock >= \$4\)`).
		WithArgs(2, sqlmock.AnyArg(), 7, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT "stock" FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(3))

	stock, ok, err := r.DecrementStock(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStock_InsufficientStock(t *testing.T) {
	r, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, ok, err := r.DecrementStock(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertConfirmation_DuplicateIsIgnored(t *testing.T) {
	r, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "payment_confirmations" .*ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := r.InsertConfirmation(context.Background(), &models.PaymentConfirmation{
		PaymentIntentID: "pi_1", OrderID: 1, Outcome: "paid", ProcessedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrder_GuardsOnCurrentStatus(t *testing.T) {
	r, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET .*WHERE \(id = \$\d+ AND status = \$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := r.TransitionOrder(context.Background(), 3, models.OrderPending, map[string]any{"status": models.OrderShipped})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncStoreCounter_RejectsUnknownColumn(t *testing.T) {
	r, mock := setupMockDB(t)
	err := r.IncStoreCounter(context.Background(), 1, repo.StoreCounter("name"), 1)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevenueSince_GroupsByMonthInSQL(t *testing.T) {
	r, mock := setupMockDB(t)
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT to_char\(created_at AT TIME ZONE 'UTC', 'YYYY-MM'\) AS month, SUM\(total_amount\) AS amount FROM "orders" .*GROUP BY "?month"? ORDER BY "?month"?`).
		WillReturnRows(sqlmock.NewRows([]string{"month", "amount"}).
			AddRow("2025-01", 150).
			AddRow("2025-03", 7))

	got, err := r.RevenueSince(context.Background(), nil, models.OrderDelivered, since)
	require.NoError(t, err)
	assert.Equal(t, []repo.RevenuePoint{{Month: "2025-01", Amount: 150}, {Month: "2025-03", Amount: 7}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
