// Package invoice contains the Invoice bounded context.
// This context turns the invoice-ready projection of an order into a PDF
// artifact, keeps a pointer from the order to its current artifact and
// issues time-limited access grants for it.
package invoice
