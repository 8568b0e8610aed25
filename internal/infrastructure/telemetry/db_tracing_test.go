package telemetry_test

import (
	"context"
	"testing"

	"github.com/invoicepdf/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{}, zaptest.NewLogger(t)))
}

func TestRegisterDBTracing_EmitsStatementSpans(t *testing.T) {
	exporter := newRecordingProvider(t)
	db := openSQLite(t)

	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{Enabled: true}, zaptest.NewLogger(t)))
	require.NoError(t, db.Exec("CREATE TABLE orders (id INTEGER PRIMARY KEY, invoice_file TEXT)").Error)

	ctx, parent := telemetry.StartSpan(context.Background(), "invoice.persisting")
	result := db.WithContext(ctx).Exec("INSERT INTO orders (id) VALUES (?)", 42)
	require.NoError(t, result.Error)
	parent.End()

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Parent.SpanID() == parent.SpanContext().SpanID() {
			found = true
			for _, kv := range s.Attributes {
				if kv.Key == "db.rows_affected" {
					assert.Equal(t, int64(1), kv.Value.AsInt64())
				}
			}
		}
	}
	assert.True(t, found, "expected a database span under the persisting span")
}
