package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
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

// fakeS3 is a minimal path-style S3 endpoint holding objects in memory
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]fakeObject
	puts    int
	fail    bool
}

type fakeObject struct {
	data        []byte
	contentType string
}

func newFakeS3(t *testing.T, buckets ...string) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string]fakeObject{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			f.buckets[bucket] = true
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id := bucket + "/" + key
	switch r.Method {
	case http.MethodPut:
		if _, exists := f.objects[id]; exists && r.Header.Get("If-None-Match") == "*" {
			writeS3Error(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[id] = fakeObject{data: body, contentType: r.Header.Get("Content-Type")}
		f.puts++
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		obj, ok := f.objects[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func (f *fakeS3) object(id string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[id]
	return obj, ok
}

func testStorageConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Driver:            config.StorageDriverS3,
		Bucket:            "invoices",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Region:            "us-east-1",
		Endpoint:          endpoint,
		UsePathStyle:      true,
		PresignExpiration: 15 * time.Minute,
	}
}

func newTestS3Storage(t *testing.T, endpoint string) *S3ObjectStorage {
	t.Helper()
	s, err := NewS3ObjectStorage(testStorageConfig(endpoint), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{AccessKey: "test-key", SecretKey: "test-secret"}
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{Bucket: "test-bucket", SecretKey: "test-secret"}
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{Bucket: "test-bucket", AccessKey: "test-key"}
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3ObjectStorage(testStorageConfig("http://localhost:9000"))
		require.NoError(t, err)
		assert.Equal(t, "invoices", s.GetBucket())
		assert.Equal(t, 15*time.Minute, s.presignExpiration)
	})

	t.Run("endpoint without scheme is accepted", func(t *testing.T) {
		cfg := testStorageConfig("localhost:9000")
		cfg.UseSSL = true
		_, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)
	})

	t.Run("default presign expiration is 24 hours", func(t *testing.T) {
		cfg := testStorageConfig("http://localhost:9000")
		cfg.PresignExpiration = 0
		s, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, s.presignExpiration)
	})

	t.Run("WithPresignExpiration overrides the config", func(t *testing.T) {
		s, err := NewS3ObjectStorage(testStorageConfig("http://localhost:9000"), WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, s.presignExpiration)
	})
}

func TestS3ObjectStorage_Upload(t *testing.T) {
	fake, srv := newFakeS3(t, "invoices")
	s := newTestS3Storage(t, srv.URL)
	ctx := context.Background()

	t.Run("stores the object with its content type", func(t *testing.T) {
		err := s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4 first"), "application/pdf", false)
		require.NoError(t, err)

		obj, ok := fake.object("invoices/orders/42/invoice.pdf")
		require.True(t, ok)
		assert.Equal(t, []byte("%PDF-1.4 first"), obj.data)
		assert.Equal(t, "application/pdf", obj.contentType)
	})

	t.Run("conflict without overwrite", func(t *testing.T) {
		err := s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4 second"), "application/pdf", false)
		require.Error(t, err)
		assert.ErrorIs(t, err, invoice.ErrObjectExists)

		obj, _ := fake.object("invoices/orders/42/invoice.pdf")
		assert.Equal(t, []byte("%PDF-1.4 first"), obj.data)
	})

	t.Run("overwrite replaces the object", func(t *testing.T) {
		err := s.Upload(ctx, "orders/42/invoice.pdf", []byte("%PDF-1.4 third"), "application/pdf", true)
		require.NoError(t, err)

		obj, _ := fake.object("invoices/orders/42/invoice.pdf")
		assert.Equal(t, []byte("%PDF-1.4 third"), obj.data)
	})

	t.Run("empty key", func(t *testing.T) {
		err := s.Upload(ctx, "", []byte("x"), "application/pdf", true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})

	t.Run("backend failure", func(t *testing.T) {
		fake.mu.Lock()
		fake.fail = true
		fake.mu.Unlock()
		defer func() {
			fake.mu.Lock()
			fake.fail = false
			fake.mu.Unlock()
		}()

		err := s.Upload(ctx, "orders/43/invoice.pdf", []byte("x"), "application/pdf", true)
		require.Error(t, err)
		assert.NotErrorIs(t, err, invoice.ErrObjectExists)
		assert.Contains(t, err.Error(), "failed to upload object")
	})
}

func TestS3ObjectStorage_ObjectExists(t *testing.T) {
	fake, srv := newFakeS3(t, "invoices")
	s := newTestS3Storage(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "orders/7/invoice.pdf", []byte("%PDF-1.7"), "application/pdf", true))

	exists, err := s.ObjectExists(ctx, "orders/7/invoice.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ObjectExists(ctx, "orders/8/invoice.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.ObjectExists(ctx, "")
	require.Error(t, err)

	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()
	_, err = s.ObjectExists(ctx, "orders/7/invoice.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check object existence")
}

func TestS3ObjectStorage_EnsureBucket(t *testing.T) {
	fake, srv := newFakeS3(t)
	s := newTestS3Storage(t, srv.URL)

	require.NoError(t, s.EnsureBucket(context.Background()))
	fake.mu.Lock()
	assert.True(t, fake.buckets["invoices"])
	fake.mu.Unlock()

	// Existing bucket is a no-op
	require.NoError(t, s.EnsureBucket(context.Background()))
}

func TestS3ObjectStorage_GenerateDownloadURL(t *testing.T) {
	_, srv := newFakeS3(t, "invoices")
	s := newTestS3Storage(t, srv.URL)
	fixed := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	t.Run("presigns an attachment download", func(t *testing.T) {
		raw, expiresAt, err := s.GenerateDownloadURL(context.Background(), "orders/42/invoice.pdf", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, fixed.Add(time.Hour), expiresAt)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), u.Host)
		assert.Equal(t, "/invoices/orders/42/invoice.pdf", u.Path)

		q := u.Query()
		assert.Equal(t, "3600", q.Get("X-Amz-Expires"))
		assert.NotEmpty(t, q.Get("X-Amz-Signature"))
		assert.Equal(t, "attachment; filename=invoice.pdf", q.Get("response-content-disposition"))
	})

	t.Run("uses default expiration when not provided", func(t *testing.T) {
		raw, expiresAt, err := s.GenerateDownloadURL(context.Background(), "orders/42/invoice.pdf", 0)
		require.NoError(t, err)
		assert.Equal(t, fixed.Add(15*time.Minute), expiresAt)
		assert.Contains(t, raw, "X-Amz-Expires=900")
	})

	t.Run("distinct keys sign distinct URLs", func(t *testing.T) {
		a, _, err := s.GenerateDownloadURL(context.Background(), "orders/1/invoice.pdf", time.Hour)
		require.NoError(t, err)
		b, _, err := s.GenerateDownloadURL(context.Background(), "orders/2/invoice.pdf", time.Hour)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty storage key returns error", func(t *testing.T) {
		raw, _, err := s.GenerateDownloadURL(context.Background(), "", time.Hour)
		require.Error(t, err)
		assert.Empty(t, raw)
	})
}
