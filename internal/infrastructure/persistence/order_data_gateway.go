package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// invoiceDataQuery calls the server-side projection function installed by
// the migrations. It returns json, or NULL for an unknown order.
const invoiceDataQuery = "SELECT get_invoice_data(?)"

// Ensure GormOrderDataGateway implements OrderDataGateway
var _ invoice.OrderDataGateway = (*GormOrderDataGateway)(nil)

// GormOrderDataGateway implements OrderDataGateway using GORM
type GormOrderDataGateway struct {
	db *gorm.DB
}

// NewGormOrderDataGateway creates a new GormOrderDataGateway
func NewGormOrderDataGateway(db *gorm.DB) *GormOrderDataGateway {
	return &GormOrderDataGateway{db: db}
}

// Fetch loads the invoice projection of an order. The call is read-only and
// is never retried.
func (g *GormOrderDataGateway) Fetch(ctx context.Context, id invoice.OrderID) (*invoice.OrderInvoiceData, error) {
	if !id.Valid() {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer")
	}

	var payload sql.NullString
	row := g.db.WithContext(ctx).Raw(invoiceDataQuery, int64(id)).Row()
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Order not found")
		}
		return nil, shared.WrapDomainError(shared.CodeUpstreamUnavailable, "Order data service unavailable", err)
	}
	if !payload.Valid {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Order not found")
	}

	data, err := invoice.DecodeOrderInvoiceData([]byte(payload.String))
	if err != nil {
		return nil, err
	}
	// The projection may omit its own key
	if !data.OrderID.Valid() {
		data.OrderID = id
	}
	return data, nil
}
