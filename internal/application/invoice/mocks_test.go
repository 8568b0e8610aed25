package invoice_test

import (
	"context"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Fetch(ctx context.Context, id invoice.OrderID) (*invoice.OrderInvoiceData, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.OrderInvoiceData), args.Error(1)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, data *invoice.OrderInvoiceData, opts printing.RenderOptions) (*invoice.RenderedDocument, error) {
	args := m.Called(ctx, data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.RenderedDocument), args.Error(1)
}

type mockRasterizer struct {
	mock.Mock
}

func (m *mockRasterizer) ToPDF(ctx context.Context, doc *invoice.RenderedDocument, layout invoice.PageLayout) (*invoice.PdfArtifact, error) {
	args := m.Called(ctx, doc, layout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.PdfArtifact), args.Error(1)
}

type mockPointers struct {
	mock.Mock
}

func (m *mockPointers) SavePointer(ctx context.Context, record invoice.ArtifactRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockPointers) FindPointer(ctx context.Context, id invoice.OrderID) (*invoice.ArtifactRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.ArtifactRecord), args.Error(1)
}

type mockObjectStorage struct {
	mock.Mock
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) error {
	args := m.Called(ctx, key, data, contentType, overwrite)
	return args.Error(0)
}

func (m *mockObjectStorage) ObjectExists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjectStorage) GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, key, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}
