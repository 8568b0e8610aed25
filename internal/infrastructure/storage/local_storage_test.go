package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSigningSecret = "test-signing-secret-with-enough-entropy"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLocalStorage(t *testing.T) (*LocalObjectStorage, *testClock, string) {
	t.Helper()
	dir := t.TempDir()
	clock := &testClock{now: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)}
	s, err := NewLocalObjectStorage(&config.StorageConfig{
		Driver:             config.StorageDriverLocal,
		LocalBasePath:      dir,
		LocalBaseURL:       "http://localhost:8080/api/v1/invoices/files/",
		LocalSigningSecret: testSigningSecret,
	}, WithLocalLogger(zaptest.NewLogger(t)), WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock, dir
}

// splitLink returns the key path and token of a local download link
func splitLink(t *testing.T, link string) (string, string) {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	key := strings.TrimPrefix(u.Path, "/api/v1/invoices/files/")
	return key, u.Query().Get("token")
}

func TestNewLocalObjectStorage(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewLocalObjectStorage(nil)
		require.Error(t, err)
	})

	t.Run("requires a signing secret", func(t *testing.T) {
		_, err := NewLocalObjectStorage(&config.StorageConfig{LocalBasePath: t.TempDir()})
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("creates the base directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "invoices")
		_, err := NewLocalObjectStorage(&config.StorageConfig{
			LocalBasePath:      dir,
			LocalSigningSecret: testSigningSecret,
		})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestLocalObjectStorage_Upload(t *testing.T) {
	s, _, dir := newTestLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4 first"), "application/pdf", false))
	data, err := os.ReadFile(filepath.Join(dir, "orders", "42", "invoice.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 first"), data)

	t.Run("conflict without overwrite keeps the original", func(t *testing.T) {
		err := s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4 second"), "application/pdf", false)
		assert.ErrorIs(t, err, invoice.ErrObjectExists)

		data, err := os.ReadFile(filepath.Join(dir, "orders", "42", "invoice.pdf"))
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 first"), data)
	})

	t.Run("overwrite replaces the object", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4 third"), "application/pdf", true))
		data, err := os.ReadFile(filepath.Join(dir, "orders", "42", "invoice.pdf"))
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 third"), data)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(dir, "orders", "42"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "invoice.pdf", entries[0].Name())
	})

	t.Run("rejects traversal keys", func(t *testing.T) {
		for _, key := range []string{"", "../escape.pdf", "orders/../../escape.pdf", "/etc/passwd", ".hidden"} {
			err := s.Upload(ctx, key, []byte("x"), "application/pdf", true)
			assert.ErrorIs(t, err, ErrInvalidKey, key)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := s.Upload(cancelled, "orders/43/invoice.pdf", []byte("x"), "application/pdf", true)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalObjectStorage_ObjectExists(t *testing.T) {
	s, _, _ := newTestLocalStorage(t)
	ctx := context.Background()

	exists, err := s.ObjectExists(ctx, "orders/1/invoice.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Upload(ctx, "orders/1/invoice.pdf", []byte("%PDF-1.4"), "application/pdf", true))
	exists, err = s.ObjectExists(ctx, "orders/1/invoice.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	// Directories are not objects
	exists, err = s.ObjectExists(ctx, "orders/1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalObjectStorage_DownloadLinks(t *testing.T) {
	s, clock, _ := newTestLocalStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4"), "application/pdf", true))

	link, expiresAt, err := s.GenerateDownloadURL(ctx, "orders/42/invoice.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost:8080/api/v1/invoices/files/orders/42/invoice.pdf?token="))
	assert.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	key, token := splitLink(t, link)
	assert.Equal(t, "orders/42/invoice.pdf", key)

	t.Run("valid before expiry", func(t *testing.T) {
		assert.NoError(t, s.VerifyLink(key, token))
	})

	t.Run("token is bound to the key", func(t *testing.T) {
		assert.ErrorIs(t, s.VerifyLink("orders/43/invoice.pdf", token), ErrInvalidLink)
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		tampered := token[:len(token)-2] + "xx"
		assert.ErrorIs(t, s.VerifyLink(key, tampered), ErrInvalidLink)
		assert.ErrorIs(t, s.VerifyLink(key, ""), ErrInvalidLink)
	})

	t.Run("token from another secret is rejected", func(t *testing.T) {
		other, err := NewLocalObjectStorage(&config.StorageConfig{
			LocalBasePath:      t.TempDir(),
			LocalSigningSecret: "a-completely-different-signing-secret",
		}, WithClock(clock.Now))
		require.NoError(t, err)
		foreign, _, err := other.GenerateDownloadURL(ctx, key, time.Hour)
		require.NoError(t, err)
		_, foreignToken := splitLink(t, foreign)
		assert.ErrorIs(t, s.VerifyLink(key, foreignToken), ErrInvalidLink)
	})

	t.Run("expired after ttl", func(t *testing.T) {
		clock.Advance(time.Hour + time.Second)
		assert.ErrorIs(t, s.VerifyLink(key, token), ErrLinkExpired)
	})

	t.Run("rejects non-positive expiry", func(t *testing.T) {
		_, _, err := s.GenerateDownloadURL(ctx, key, 0)
		require.Error(t, err)
	})
}

func TestLocalObjectStorage_Open(t *testing.T) {
	s, _, _ := newTestLocalStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, "orders/5/invoice.pdf", []byte("%PDF-1.4 body"), "application/pdf", true))

	f, err := s.Open(ctx, "orders/5/invoice.pdf")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 body"), data)

	_, err = s.Open(ctx, "orders/6/invoice.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = s.Open(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestContainsDotDot(t *testing.T) {
	assert.True(t, containsDotDot("../a"))
	assert.True(t, containsDotDot(`a\..\b`))
	assert.False(t, containsDotDot("a/..b/c"))
	assert.False(t, containsDotDot("orders/42/invoice.pdf"))
}
