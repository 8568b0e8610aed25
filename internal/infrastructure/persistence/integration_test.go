//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/invoicepdf/backend/internal/infrastructure/migration"
	"github.com/invoicepdf/backend/internal/infrastructure/persistence/models"
	"github.com/invoicepdf/backend/migrations"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoices_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.NewWithFS(sqlDB, migrations.FS, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func seedInvoiceOrder(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	customer := &models.CustomerModel{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		AddressLine1: "1 Analytical St",
		City:         "London",
		PostalCode:   "NW1",
		Country:      "UK",
	}
	require.NoError(t, db.Create(customer).Error)

	order := &models.OrderModel{
		OrderNumber: "SO-1001",
		CustomerID:  &customer.ID,
		OrderDate:   time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
		Currency:    "EUR",
		TotalAmount: decimal.RequireFromString("30.00"),
	}
	require.NoError(t, db.Create(order).Error)

	items := []models.OrderItemModel{
		{OrderID: order.ID, LineNo: 2, Description: "Gadget", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("5.00"), Subtotal: decimal.RequireFromString("5.00")},
		{OrderID: order.ID, LineNo: 1, Description: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("12.50"), Subtotal: decimal.RequireFromString("25.00")},
	}
	require.NoError(t, db.Create(&items).Error)

	return order.ID
}

func TestPostgres_InvoicePipelineStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newPostgresDB(t)
	orderID := invoice.OrderID(seedInvoiceOrder(t, db))
	ctx := context.Background()

	t.Run("get_invoice_data projects the order", func(t *testing.T) {
		data, err := NewGormOrderDataGateway(db).Fetch(ctx, orderID)
		require.NoError(t, err)

		assert.Equal(t, orderID, data.OrderID)
		assert.Equal(t, "INV-SO-1001", data.InvoiceNumber)
		assert.Equal(t, "EUR", data.Currency)
		assert.Equal(t, "Ada Lovelace", data.Customer.Name)
		assert.Equal(t, []string{"1 Analytical St", "NW1 London", "UK"}, data.Customer.AddressLines)
		require.Len(t, data.Items, 2)
		assert.Equal(t, "Widget", data.Items[0].Description)
		assert.True(t, data.Items[0].Subtotal.Decimal.Equal(decimal.RequireFromString("25")))
		assert.True(t, data.Total.Decimal.Equal(decimal.RequireFromString("30")))
		assert.True(t, data.OrderDate.Equal(time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)))
	})

	t.Run("unknown order is NOT_FOUND", func(t *testing.T) {
		_, err := NewGormOrderDataGateway(db).Fetch(ctx, orderID+1000)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("pointer round trip", func(t *testing.T) {
		repo := NewGormArtifactPointerRepository(db)

		_, err := repo.FindPointer(ctx, orderID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		key := invoice.KeyForOrder(orderID, "invoices")
		require.NoError(t, repo.SavePointer(ctx, invoice.ArtifactRecord{OrderID: orderID, Key: key}))

		record, err := repo.FindPointer(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, key, record.Key)
		assert.NotNil(t, record.GeneratedAt)

		err = repo.SavePointer(ctx, invoice.ArtifactRecord{OrderID: orderID + 1000, Key: key})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
