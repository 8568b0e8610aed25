package printing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

const (
	defaultCurrency = "USD"
	defaultLocale   = "en-US"
)

// TemplateEngine binds invoice data to a compiled HTML template.
// The template is parsed once by the constructor and never modified
// afterwards, so Render is safe for concurrent use.
type TemplateEngine struct {
	tmpl            *template.Template
	logoURL         string
	defaultCurrency string
	defaultLocale   string
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithLogoURL sets the branding logo injected when neither the data nor the
// render options supply one
func WithLogoURL(url string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.logoURL = strings.TrimSpace(url)
	}
}

// WithDefaultCurrency sets the ISO 4217 code used when the order has none
func WithDefaultCurrency(code string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		if code = strings.TrimSpace(code); code != "" {
			e.defaultCurrency = strings.ToUpper(code)
		}
	}
}

// WithDefaultLocale sets the BCP 47 tag used when the order has none
func WithDefaultLocale(tag string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		if tag = strings.TrimSpace(tag); tag != "" {
			e.defaultLocale = tag
		}
	}
}

// NewTemplateEngine compiles the template source
func NewTemplateEngine(source string, opts ...TemplateEngineOption) (*TemplateEngine, error) {
	if strings.TrimSpace(source) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "template content is empty", nil)
	}

	e := &TemplateEngine{
		defaultCurrency: defaultCurrency,
		defaultLocale:   defaultLocale,
	}
	for _, opt := range opts {
		opt(e)
	}

	tmpl, err := template.New("invoice").Funcs(templateFuncs()).Parse(source)
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse template", err)
	}
	e.tmpl = tmpl
	return e, nil
}

// LoadTemplateEngine compiles the template at path, or the embedded default
// invoice template when path is empty
func LoadTemplateEngine(path string, opts ...TemplateEngineOption) (*TemplateEngine, error) {
	if path == "" {
		source, err := DefaultInvoiceTemplate()
		if err != nil {
			return nil, err
		}
		return NewTemplateEngine(source, opts...)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return NewTemplateEngine(string(content), opts...)
}

// RenderOptions are per-request presentation options
type RenderOptions struct {
	// LogoURL overrides the engine's default logo, unless the data has its own
	LogoURL string
}

// Render binds data to the template.
//
// Binding is permissive: absent strings, amounts and dates render as empty
// text. Only a nil record or an engine-level execution failure (for example
// a custom template referencing a field the view does not have) fails, with
// TEMPLATE_BINDING_ERROR.
func (e *TemplateEngine) Render(ctx context.Context, data *invoice.OrderInvoiceData, opts RenderOptions) (*invoice.RenderedDocument, error) {
	if data == nil {
		return nil, shared.NewDomainError(shared.CodeTemplateBindingError, "Invoice data is missing")
	}
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapDomainError(shared.CodeTemplateBindingError, "Rendering cancelled", err)
	}

	view := e.newView(data, opts)

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, view); err != nil {
		return nil, shared.WrapDomainError(shared.CodeTemplateBindingError, "Failed to bind invoice data to template", err)
	}

	return &invoice.RenderedDocument{
		Markup: buf.String(),
		Data:   data,
	}, nil
}

// invoiceView is what the template sees. It keeps the raw record out of the
// template and carries the resolved defaults.
type invoiceView struct {
	OrderID       string
	InvoiceNumber string
	OrderDate     time.Time
	Customer      invoice.Customer
	Items         []invoice.LineItem
	Total         decimal.NullDecimal
	Currency      string
	Lang          string
	LogoURL       string
	Notes         string
}

func (e *TemplateEngine) newView(data *invoice.OrderInvoiceData, opts RenderOptions) invoiceView {
	number := data.InvoiceNumber
	if number == "" && data.OrderID.Valid() {
		number = "INV-" + data.OrderID.String()
	}

	orderID := ""
	if data.OrderID.Valid() {
		orderID = data.OrderID.String()
	}

	return invoiceView{
		OrderID:       orderID,
		InvoiceNumber: number,
		OrderDate:     data.OrderDate.Time,
		Customer:      data.Customer,
		Items:         data.Items,
		Total:         data.Total,
		Currency:      e.resolveCurrency(data.Currency),
		Lang:          e.resolveLang(data.Locale),
		LogoURL:       firstNonEmpty(data.LogoURL, opts.LogoURL, e.logoURL),
		Notes:         data.Notes,
	}
}

// resolveCurrency normalizes a known ISO 4217 code and keeps unknown codes as
// given, upper-cased, so they still prefix the amount
func (e *TemplateEngine) resolveCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = e.defaultCurrency
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return code
}

// resolveLang returns the primary language subtag for the html lang attribute
func (e *TemplateEngine) resolveLang(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = e.defaultLocale
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		parsed = language.English
	}
	base, _ := parsed.Base()
	return base.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,
		"formatQuantity": formatQuantity,
		"formatDate":     formatDate,
		"displayIndex":   displayIndex,
		"join":           strings.Join,
		"upper":          strings.ToUpper,
	}
}

// =============================================================================
// Template Functions
// =============================================================================

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
	"CNY": "¥",
}

// formatMoney formats an amount with a currency prefix and two decimals.
// Example: (25, "USD") -> "$25.00", (25, "XYZ") -> "XYZ 25.00".
// An absent amount renders empty.
func formatMoney(v interface{}, code string) string {
	d, ok := toDecimal(v)
	if !ok {
		return ""
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	raw := formatMoneyRaw(d)
	code = strings.ToUpper(strings.TrimSpace(code))
	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + raw
	}
	if code == "" {
		return sign + raw
	}
	return sign + code + " " + raw
}

// formatMoneyRaw formats an amount without symbol
// Example: 1234.5 -> "1,234.50"
func formatMoneyRaw(v interface{}) string {
	d, ok := toDecimal(v)
	if !ok {
		return ""
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(2), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "." + decPart
}

// formatQuantity renders a quantity without trailing zeros
// Example: 2.000 -> "2"
func formatQuantity(v interface{}) string {
	d, ok := toDecimal(v)
	if !ok {
		return ""
	}
	return d.String()
}

// formatDate truncates a timestamp to its calendar date
// Example: 2024-01-15T14:30:00Z -> "2024-01-15"
func formatDate(v interface{}) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// displayIndex turns a zero-based range index into a 1-based row number
func displayIndex(i int) int {
	return i + 1
}

// toDecimal converts amount-like values; ok is false for absent amounts
func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.NullDecimal:
		return val.Decimal, val.Valid
	case *decimal.NullDecimal:
		if val == nil {
			return decimal.Zero, false
		}
		return val.Decimal, val.Valid
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false
		}
		return *val, true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// toTime converts date-like values; absent values yield the zero time
func toTime(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case invoice.Timestamp:
		return val.Time
	default:
		return time.Time{}
	}
}
