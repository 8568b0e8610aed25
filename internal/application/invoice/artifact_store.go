package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	defaultLinkTTL = 24 * time.Hour
	// S3 rejects presigned URLs valid for longer than a week
	maxLinkTTL = 7 * 24 * time.Hour
)

// ArtifactStoreConfig contains configuration for the artifact store
type ArtifactStoreConfig struct {
	// KeyPrefix is prepended to every storage key
	KeyPrefix string
	// DefaultTTL is used when a caller does not ask for a lifetime
	DefaultTTL time.Duration
	// MaxTTL caps every issued link
	MaxTTL time.Duration
	Logger *zap.Logger
}

// ArtifactStore persists invoice PDFs under deterministic keys, records the
// order's pointer to them and issues expiring download links.
// Storing and recording are separate steps and are not transactional; a
// failure between them leaves an unreferenced object behind.
type ArtifactStore struct {
	storage    invoice.ObjectStorage
	pointers   invoice.ArtifactPointerRepository
	keyPrefix  string
	defaultTTL time.Duration
	maxTTL     time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewArtifactStore creates an artifact store over the object storage and
// the pointer repository
func NewArtifactStore(storage invoice.ObjectStorage, pointers invoice.ArtifactPointerRepository, config ArtifactStoreConfig) *ArtifactStore {
	s := &ArtifactStore{
		storage:    storage,
		pointers:   pointers,
		keyPrefix:  config.KeyPrefix,
		defaultTTL: config.DefaultTTL,
		maxTTL:     config.MaxTTL,
		logger:     config.Logger,
		now:        time.Now,
	}
	if s.maxTTL <= 0 || s.maxTTL > maxLinkTTL {
		s.maxTTL = maxLinkTTL
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = defaultLinkTTL
	}
	if s.defaultTTL > s.maxTTL {
		s.defaultTTL = s.maxTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// DefaultTTL returns the lifetime of links issued without an explicit TTL
func (s *ArtifactStore) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// KeyFor returns the storage key of an order's invoice
func (s *ArtifactStore) KeyFor(id invoice.OrderID) invoice.StorageKey {
	return invoice.KeyForOrder(id, s.keyPrefix)
}

// Store uploads the artifact under the order's key, replacing any previous
// object. Storing the same order twice leaves one object with the second
// upload's bytes.
func (s *ArtifactStore) Store(ctx context.Context, id invoice.OrderID, artifact *invoice.PdfArtifact) (invoice.StorageKey, error) {
	if !id.Valid() {
		return "", shared.NewDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer")
	}
	if artifact == nil || len(artifact.Data) == 0 {
		return "", shared.NewDomainError(shared.CodeInvalidRequest, "Invoice artifact is empty")
	}

	key := s.KeyFor(id)
	if err := s.storage.Upload(ctx, key.String(), artifact.Data, invoice.ContentTypePDF, true); err != nil {
		return "", shared.WrapDomainError(shared.CodeStorageUnavailable, "Failed to store invoice", err)
	}

	s.logger.Debug("invoice stored",
		zap.String("key", key.String()),
		zap.Int64("size", artifact.Size()))
	return key, nil
}

// RecordPointer points the order at key. The last write wins.
func (s *ArtifactStore) RecordPointer(ctx context.Context, id invoice.OrderID, key invoice.StorageKey) error {
	now := s.now().UTC()
	err := s.pointers.SavePointer(ctx, invoice.ArtifactRecord{
		OrderID:     id,
		Key:         key,
		GeneratedAt: &now,
	})
	if err != nil {
		return asDomainError(err, shared.CodeStorageUnavailable, "Failed to record invoice file")
	}
	return nil
}

// LookupPointer returns the key recorded for the order
func (s *ArtifactStore) LookupPointer(ctx context.Context, id invoice.OrderID) (invoice.StorageKey, error) {
	record, err := s.pointers.FindPointer(ctx, id)
	if err != nil {
		return "", asDomainError(err, shared.CodeStorageUnavailable, "Failed to load invoice file")
	}
	if record == nil || record.Key.IsZero() {
		return "", shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
	}
	return record.Key, nil
}

// SignedURL issues a download link for key valid for ttl, capped at the
// configured maximum. A non-positive ttl is rejected without any I/O.
func (s *ArtifactStore) SignedURL(ctx context.Context, key invoice.StorageKey, ttl time.Duration) (*invoice.SignedAccessGrant, error) {
	if ttl <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Link lifetime must be positive")
	}
	if key.IsZero() {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Storage key is required")
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	exists, err := s.storage.ObjectExists(ctx, key.String())
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeStorageUnavailable, "Failed to check invoice", err)
	}
	if !exists {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
	}

	now := s.now()
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, key.String(), ttl)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeStorageUnavailable, "Failed to generate signed URL", err)
	}
	return invoice.NewSignedAccessGrant(key, url, expiresAt, now)
}

// asDomainError keeps domain errors as they are and wraps anything else
func asDomainError(err error, code, message string) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return shared.WrapDomainError(code, message, err)
}
