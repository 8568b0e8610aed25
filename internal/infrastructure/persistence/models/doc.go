// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - order.go: orders, order_items and customers, the tables behind
//   get_invoice_data and the invoice pointer columns on orders
package models
