package models

import (
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// CustomerModel is the GORM model for the customers table
type CustomerModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"type:varchar(200);not null"`
	Email        string    `gorm:"type:varchar(200)"`
	Phone        string    `gorm:"type:varchar(50)"`
	AddressLine1 string    `gorm:"column:address_line1;type:varchar(200)"`
	AddressLine2 string    `gorm:"column:address_line2;type:varchar(200)"`
	City         string    `gorm:"type:varchar(100)"`
	PostalCode   string    `gorm:"column:postal_code;type:varchar(20)"`
	Country      string    `gorm:"type:varchar(100)"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for CustomerModel
func (CustomerModel) TableName() string {
	return "customers"
}

// OrderModel is the GORM model for the orders table.
// InvoiceFile and InvoiceGeneratedAt hold the pointer to the current
// invoice artifact.
type OrderModel struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	OrderNumber        string          `gorm:"column:order_number;type:varchar(50);not null"`
	CustomerID         *int64          `gorm:"column:customer_id;index"`
	OrderDate          time.Time       `gorm:"column:order_date;not null"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'USD'"`
	Locale             string          `gorm:"type:varchar(35)"`
	TotalAmount        decimal.Decimal `gorm:"column:total_amount;type:numeric(18,2);not null;default:0"`
	Notes              string          `gorm:"type:text"`
	LogoURL            string          `gorm:"column:logo_url;type:text"`
	InvoiceFile        *string         `gorm:"column:invoice_file;type:text"`
	InvoiceGeneratedAt *time.Time      `gorm:"column:invoice_generated_at"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for OrderModel
func (OrderModel) TableName() string {
	return "orders"
}

// ToArtifactRecord converts the pointer columns to a domain ArtifactRecord.
// It returns nil when no artifact has been recorded.
func (m *OrderModel) ToArtifactRecord() *invoice.ArtifactRecord {
	if m.InvoiceFile == nil || *m.InvoiceFile == "" {
		return nil
	}
	return &invoice.ArtifactRecord{
		OrderID:     invoice.OrderID(m.ID),
		Key:         invoice.StorageKey(*m.InvoiceFile),
		GeneratedAt: m.InvoiceGeneratedAt,
	}
}

// OrderItemModel is the GORM model for the order_items table
type OrderItemModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"column:order_id;not null;index"`
	LineNo      int             `gorm:"column:line_no;not null"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(18,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
}

// TableName returns the table name for OrderItemModel
func (OrderItemModel) TableName() string {
	return "order_items"
}
