package invoice

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicepdf/backend/internal/domain/shared"
)

// ContentTypePDF is the media type of every invoice artifact
const ContentTypePDF = "application/pdf"

// StorageKey is the object storage key of an invoice artifact
type StorageKey string

// KeyForOrder derives the deterministic storage key for an order.
// The same order always maps to the same key, so re-storing overwrites.
func KeyForOrder(id OrderID, prefix string) StorageKey {
	name := FileName(id)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return StorageKey(name)
	}
	return StorageKey(prefix + "/" + name)
}

// FileName returns the download file name for an order's invoice
func FileName(id OrderID) string {
	return "invoice_" + id.String() + ".pdf"
}

// String returns the key as a string
func (k StorageKey) String() string {
	return string(k)
}

// IsZero reports whether the key is empty
func (k StorageKey) IsZero() bool {
	return strings.TrimSpace(string(k)) == ""
}

// RenderedDocument is the markup produced by binding data to the template.
// It lives only for the duration of one pipeline run.
type RenderedDocument struct {
	Markup string
	Data   *OrderInvoiceData
}

// PdfArtifact is a rendered invoice and its metadata
type PdfArtifact struct {
	ID          uuid.UUID
	OrderID     OrderID
	Data        []byte
	ContentType string
	PageCount   int
	GeneratedAt time.Time
}

// NewPdfArtifact wraps rasterizer output for an order
func NewPdfArtifact(orderID OrderID, data []byte, pageCount int) (*PdfArtifact, error) {
	if len(data) == 0 {
		return nil, shared.NewDomainError(shared.CodeRasterizationError, "PDF output is empty")
	}
	return &PdfArtifact{
		ID:          uuid.New(),
		OrderID:     orderID,
		Data:        data,
		ContentType: ContentTypePDF,
		PageCount:   pageCount,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Size returns the payload length in bytes
func (a *PdfArtifact) Size() int64 {
	return int64(len(a.Data))
}

// ArtifactRecord is the durable pointer from an order to its current artifact
type ArtifactRecord struct {
	OrderID     OrderID
	Key         StorageKey
	GeneratedAt *time.Time
}

// SignedAccessGrant is a time-limited URL for a stored artifact.
// Grants are returned to callers and never persisted.
type SignedAccessGrant struct {
	Key       StorageKey `json:"-"`
	URL       string     `json:"url"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// NewSignedAccessGrant validates and creates a grant; the expiry must be in
// the future relative to now.
func NewSignedAccessGrant(key StorageKey, url string, expiresAt, now time.Time) (*SignedAccessGrant, error) {
	if key.IsZero() {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Storage key is required")
	}
	if url == "" {
		return nil, shared.NewDomainError(shared.CodeStorageUnavailable, "Signed URL is empty")
	}
	if !expiresAt.After(now) {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "Grant expiry must be in the future")
	}
	return &SignedAccessGrant{
		Key:       key,
		URL:       url,
		ExpiresAt: expiresAt,
	}, nil
}

// TTL returns the remaining lifetime of the grant relative to now
func (g *SignedAccessGrant) TTL(now time.Time) time.Duration {
	return g.ExpiresAt.Sub(now)
}
