package invoice

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrderID identifies an order in the backing store (a bigint primary key)
type OrderID int64

// ParseOrderID parses a raw request identifier.
// Empty, non-numeric, zero and negative values are rejected.
func ParseOrderID(raw string) (OrderID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, shared.NewDomainError(shared.CodeInvalidRequest, "Missing orderId")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, shared.WrapDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer", err)
	}
	id := OrderID(n)
	if !id.Valid() {
		return 0, shared.NewDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer")
	}
	return id, nil
}

// Valid reports whether the id can exist in the backing store
func (id OrderID) Valid() bool {
	return id > 0
}

// String returns the decimal form of the id
func (id OrderID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Customer holds the billing party of an invoice
type Customer struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	AddressLines []string `json:"address_lines"`
}

// LineItem is one row of the invoice.
// Amounts are already computed upstream; absent amounts stay invalid.
type LineItem struct {
	Description string              `json:"description"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	Subtotal    decimal.NullDecimal `json:"subtotal"`
}

// OrderInvoiceData is the denormalized, invoice-ready projection of an order.
// It is fetched fresh for every request and treated as immutable.
type OrderInvoiceData struct {
	OrderID       OrderID             `json:"order_id"`
	InvoiceNumber string              `json:"invoice_number"`
	OrderDate     Timestamp           `json:"order_date"`
	Customer      Customer            `json:"customer"`
	Items         []LineItem          `json:"items"`
	Total         decimal.NullDecimal `json:"total"`
	Currency      string              `json:"currency"`
	Locale        string              `json:"locale"`
	LogoURL       string              `json:"logo_url"`
	Notes         string              `json:"notes"`
}

// DecodeOrderInvoiceData decodes the JSON projection returned by the backing
// store. A JSON null, an empty payload or an empty object yields NOT_FOUND.
func DecodeOrderInvoiceData(payload []byte) (*OrderInvoiceData, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Order not found")
	}

	var data OrderInvoiceData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, shared.WrapDomainError(shared.CodeUpstreamUnavailable, "Malformed order data", err)
	}
	return &data, nil
}

// Timestamp accepts the timestamp layouts PostgreSQL emits in JSON
// (with and without zone, with a space or a T separator, or a bare date).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return &time.ParseError{Value: s, Message: ": timestamp must be a JSON string"}
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, unquoted)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}
