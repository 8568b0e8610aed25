package invoice

import (
	"context"
	"errors"
	"time"
)

// ErrObjectExists is returned by ObjectStorage.Upload when overwrite is
// disabled and the key is taken
var ErrObjectExists = errors.New("object already exists")

// OrderDataGateway fetches the invoice-ready projection of an order.
// Implementations are read-only and never retry.
type OrderDataGateway interface {
	// Fetch returns NOT_FOUND when the store has no record for the id and
	// UPSTREAM_UNAVAILABLE on transport or service failures.
	Fetch(ctx context.Context, id OrderID) (*OrderInvoiceData, error)
}

// ArtifactPointerRepository persists the order → artifact pointer
type ArtifactPointerRepository interface {
	// SavePointer replaces the order's current pointer (last write wins).
	// Returns NOT_FOUND when the order does not exist.
	SavePointer(ctx context.Context, record ArtifactRecord) error
	// FindPointer returns NOT_FOUND when the order or its pointer is absent.
	FindPointer(ctx context.Context, id OrderID) (*ArtifactRecord, error)
}

// ObjectStorage is the binary object backend behind the artifact store
type ObjectStorage interface {
	// Upload writes data under key. With overwrite=false an existing object
	// makes the call fail instead of being replaced.
	Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) error
	// ObjectExists reports whether an object is stored under key.
	ObjectExists(ctx context.Context, key string) (bool, error)
	// GenerateDownloadURL issues a tamper-evident read URL valid for expiresIn.
	GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}
