package handler

import (
	"net/http"

	"github.com/invoicepdf/backend/internal/interfaces/http/router"
)

var getOrPost = []string{http.MethodGet, http.MethodPost}

// InvoiceRoutes returns the versioned invoice routes
func InvoiceRoutes(h *InvoiceHandler) *router.DomainGroup {
	group := router.NewDomainGroup("invoices", "/invoices")
	group.Match(getOrPost, "/pdf", h.GeneratePDF)
	group.Match(getOrPost, "/generate", h.GenerateAndStore)
	group.Match(getOrPost, "/link", h.GenerateLink)
	group.Match(getOrPost, "/signed-url", h.GetLink)
	if h.files != nil {
		group.GET("/files/*key", h.ServeFile)
	}
	return group
}

// LegacyRoutes returns the unversioned paths of earlier deployments. They are
// mounted at the engine root.
func LegacyRoutes(h *InvoiceHandler) *router.DomainGroup {
	group := router.NewDomainGroup("legacy", "")
	group.Match(getOrPost, "/api/invoice", h.GeneratePDF)
	group.Match(getOrPost, "/api/get-invoice-link", h.GetLink)
	group.Match(getOrPost, "/generate-invoice", h.GeneratePDF)
	return group
}
