package printing

import (
	"embed"
	"fmt"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultInvoiceTemplatePath is the embedded invoice template
const DefaultInvoiceTemplatePath = "templates/invoice.html"

// DefaultInvoiceTemplate returns the embedded invoice template source
func DefaultInvoiceTemplate() (string, error) {
	return LoadTemplateContent(DefaultInvoiceTemplatePath)
}

// LoadTemplateContent loads the HTML content of an embedded template
func LoadTemplateContent(filePath string) (string, error) {
	content, err := templateFS.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}
	return string(content), nil
}
