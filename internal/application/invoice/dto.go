package invoice

import (
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
)

// StoredInvoice acknowledges a generated and recorded invoice
type StoredInvoice struct {
	Message string `json:"message"`
	File    string `json:"file"`
}

// LinkResponse carries a signed download link
type LinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ToLinkResponse converts a grant to its response shape
func ToLinkResponse(grant *invoice.SignedAccessGrant) LinkResponse {
	return LinkResponse{
		URL:       grant.URL,
		ExpiresAt: grant.ExpiresAt.UTC(),
	}
}
