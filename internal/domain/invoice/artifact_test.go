package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyForOrder(t *testing.T) {
	assert.Equal(t, StorageKey("invoice_42.pdf"), KeyForOrder(42, ""))
	assert.Equal(t, StorageKey("invoices/invoice_42.pdf"), KeyForOrder(42, "invoices"))
	assert.Equal(t, StorageKey("invoices/invoice_42.pdf"), KeyForOrder(42, "/invoices/"))
	// Deterministic: derived only from the order id
	assert.Equal(t, KeyForOrder(7, "p"), KeyForOrder(7, "p"))
	assert.Equal(t, "invoice_7.pdf", FileName(7))
}

func TestStorageKey_IsZero(t *testing.T) {
	assert.True(t, StorageKey("").IsZero())
	assert.True(t, StorageKey("  ").IsZero())
	assert.False(t, StorageKey("invoice_1.pdf").IsZero())
}

func TestNewPdfArtifact(t *testing.T) {
	t.Run("wraps data", func(t *testing.T) {
		a, err := NewPdfArtifact(42, []byte("%PDF-1.7"), 1)
		require.NoError(t, err)
		assert.Equal(t, OrderID(42), a.OrderID)
		assert.Equal(t, ContentTypePDF, a.ContentType)
		assert.Equal(t, int64(8), a.Size())
		assert.Equal(t, 1, a.PageCount)
		assert.False(t, a.GeneratedAt.IsZero())
	})

	t.Run("rejects empty data", func(t *testing.T) {
		_, err := NewPdfArtifact(42, nil, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrRasterization))
	})
}

func TestNewSignedAccessGrant(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future expiry", func(t *testing.T) {
		g, err := NewSignedAccessGrant("invoice_1.pdf", "https://s3/x", now.Add(time.Hour), now)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, g.TTL(now))
		assert.Equal(t, "https://s3/x", g.URL)
	})

	t.Run("expiry equal to now is rejected", func(t *testing.T) {
		_, err := NewSignedAccessGrant("invoice_1.pdf", "https://s3/x", now, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidRequest))
	})

	t.Run("past expiry is rejected", func(t *testing.T) {
		_, err := NewSignedAccessGrant("invoice_1.pdf", "https://s3/x", now.Add(-time.Second), now)
		require.Error(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewSignedAccessGrant("", "https://s3/x", now.Add(time.Hour), now)
		require.Error(t, err)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := NewSignedAccessGrant("invoice_1.pdf", "", now.Add(time.Hour), now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrStorageUnavailable))
	})
}
