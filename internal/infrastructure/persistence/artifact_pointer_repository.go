package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/invoicepdf/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// Ensure GormArtifactPointerRepository implements ArtifactPointerRepository
var _ invoice.ArtifactPointerRepository = (*GormArtifactPointerRepository)(nil)

// GormArtifactPointerRepository stores the current invoice pointer in the
// invoice_file column of orders
type GormArtifactPointerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormArtifactPointerRepository creates a new GormArtifactPointerRepository
func NewGormArtifactPointerRepository(db *gorm.DB) *GormArtifactPointerRepository {
	return &GormArtifactPointerRepository{db: db, now: time.Now}
}

// SavePointer overwrites the order's pointer. GeneratedAt defaults to now.
func (r *GormArtifactPointerRepository) SavePointer(ctx context.Context, record invoice.ArtifactRecord) error {
	if !record.OrderID.Valid() {
		return shared.NewDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer")
	}
	if record.Key.IsZero() {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Storage key is required")
	}

	generatedAt := r.now().UTC()
	if record.GeneratedAt != nil {
		generatedAt = record.GeneratedAt.UTC()
	}

	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", int64(record.OrderID)).
		Updates(map[string]interface{}{
			"invoice_file":         record.Key.String(),
			"invoice_generated_at": generatedAt,
		})
	if result.Error != nil {
		return shared.WrapDomainError(shared.CodeStorageUnavailable, "Failed to record invoice file", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeNotFound, "Order not found")
	}
	return nil
}

// FindPointer returns the order's current pointer
func (r *GormArtifactPointerRepository) FindPointer(ctx context.Context, id invoice.OrderID) (*invoice.ArtifactRecord, error) {
	if !id.Valid() {
		return nil, shared.NewDomainError(shared.CodeInvalidRequest, "orderId must be a positive integer")
	}

	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Select("id", "invoice_file", "invoice_generated_at").
		Where("id = ?", int64(id)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Order not found")
		}
		return nil, shared.WrapDomainError(shared.CodeStorageUnavailable, "Failed to load invoice file", err)
	}

	record := model.ToArtifactRecord()
	if record == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Invoice has not been generated for this order")
	}
	return record, nil
}
