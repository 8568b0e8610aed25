package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invoicepdf/backend/internal/domain/invoice"
	infraconfig "github.com/invoicepdf/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Local storage errors
var (
	ErrInvalidKey     = errors.New("invalid storage key")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidLink    = errors.New("invalid download link")
	ErrLinkExpired    = errors.New("download link has expired")
	ErrMissingSecret  = errors.New("local signing secret is required")
)

const (
	linkTokenIssuer    = "invoice-pdf"
	defaultLocalBase   = "/data/invoices"
	defaultLocalPrefix = "/api/v1/invoices/files"
)

// Ensure LocalObjectStorage implements ObjectStorage
var _ invoice.ObjectStorage = (*LocalObjectStorage)(nil)

// linkClaims are carried by a local download link. The subject is the
// storage key the link grants access to.
type linkClaims struct {
	jwt.RegisteredClaims
}

// LocalObjectStorage stores objects on the local file system and issues
// HS256-signed download links served by the HTTP layer.
type LocalObjectStorage struct {
	basePath string
	baseURL  string
	secret   []byte
	logger   *zap.Logger
	now      func() time.Time
}

// LocalObjectStorageOption configures LocalObjectStorage
type LocalObjectStorageOption func(*LocalObjectStorage)

// WithLocalLogger sets the logger
func WithLocalLogger(logger *zap.Logger) LocalObjectStorageOption {
	return func(s *LocalObjectStorage) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to sign and verify links
func WithClock(now func() time.Time) LocalObjectStorageOption {
	return func(s *LocalObjectStorage) {
		s.now = now
	}
}

// NewLocalObjectStorage creates a file system backed object storage
func NewLocalObjectStorage(cfg *infraconfig.StorageConfig, opts ...LocalObjectStorageOption) (*LocalObjectStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.LocalSigningSecret == "" {
		return nil, ErrMissingSecret
	}

	basePath := cfg.LocalBasePath
	if basePath == "" {
		basePath = defaultLocalBase
	}
	baseURL := strings.TrimRight(cfg.LocalBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultLocalPrefix
	}

	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	s := &LocalObjectStorage{
		basePath: basePath,
		baseURL:  baseURL,
		secret:   []byte(cfg.LocalSigningSecret),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Upload writes data to a temporary file and moves it into place, so readers
// never observe a partial object. Without overwrite the final step is a hard
// link, which fails if the key already exists.
func (s *LocalObjectStorage) Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set object permissions: %w", err)
	}

	if overwrite {
		err = os.Rename(tmpPath, fullPath)
	} else {
		err = os.Link(tmpPath, fullPath)
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", invoice.ErrObjectExists, key)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}

	s.logger.Debug("object stored",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))
	return nil
}

// ObjectExists reports whether a regular file is stored under key
func (s *LocalObjectStorage) ObjectExists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// GenerateDownloadURL returns <base_url>/<key>?token=<jwt>. The token binds
// the key and the expiry, so editing either invalidates the link.
func (s *LocalObjectStorage) GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if _, err := s.resolve(key); err != nil {
		return "", time.Time{}, err
	}
	if expiresIn <= 0 {
		return "", time.Time{}, errors.New("expiration must be positive")
	}

	now := s.now()
	expiresAt := now.Add(expiresIn)
	claims := &linkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    linkTokenIssuer,
			Subject:   key,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign download link: %w", err)
	}

	return s.baseURL + "/" + escapeKey(key) + "?token=" + url.QueryEscape(token), expiresAt, nil
}

// VerifyLink checks that token was issued by this storage for key and has
// not expired
func (s *LocalObjectStorage) VerifyLink(key, token string) error {
	if token == "" {
		return ErrInvalidLink
	}
	parsed, err := jwt.ParseWithClaims(token, &linkClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidLink
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(linkTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrLinkExpired
		}
		return ErrInvalidLink
	}

	claims, ok := parsed.Claims.(*linkClaims)
	if !ok || !parsed.Valid || claims.Subject != key {
		return ErrInvalidLink
	}
	return nil
}

// Open returns the file stored under key. Callers must close it.
func (s *LocalObjectStorage) Open(ctx context.Context, key string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return file, nil
}

// resolve maps key to a path under the base directory, rejecting absolute
// keys and any key that escapes it
func (s *LocalObjectStorage) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: storage key is required", ErrInvalidKey)
	}
	cleanKey := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleanKey) || containsDotDot(key) || strings.HasPrefix(cleanKey, ".") {
		s.logger.Warn("blocked potentially malicious key", zap.String("key", key))
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath := filepath.Join(absBase, cleanKey)
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("key", key),
			zap.String("absPath", absPath))
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return absPath, nil
}

// containsDotDot checks if the path contains ".." as a path element
func containsDotDot(p string) bool {
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
