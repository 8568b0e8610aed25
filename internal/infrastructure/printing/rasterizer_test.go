package printing

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fakePDF = []byte("%PDF-1.4\n1 0 obj << /Type /Pages /Count 2 >> endobj\n" +
	"2 0 obj << /Type /Page >> endobj\n3 0 obj << /Type /Page >> endobj\n%%EOF")

// fakeEngine records session usage so tests can assert that every session
// opened is also closed
type fakeEngine struct {
	mu        sync.Mutex
	opened    int
	closed    int
	active    int
	maxActive int

	newSessionErr error
	loadErr       error
	output        []byte
	printErr      error
	panicOnPrint  bool
	// waitFn replaces the quiescence wait when set
	waitFn func(ctx context.Context) error

	lastMarkup string
	lastLayout invoice.PageLayout
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{output: fakePDF}
}

func (e *fakeEngine) NewSession(ctx context.Context) (Session, error) {
	if e.newSessionErr != nil {
		return nil, e.newSessionErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened++
	e.active++
	e.maxActive = max(e.maxActive, e.active)
	return &fakeSession{engine: e}, nil
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) counts() (opened, closed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened, e.closed
}

type fakeSession struct {
	engine *fakeEngine
	done   bool
}

func (s *fakeSession) LoadContent(ctx context.Context, html string) error {
	s.engine.mu.Lock()
	s.engine.lastMarkup = html
	s.engine.mu.Unlock()
	return s.engine.loadErr
}

func (s *fakeSession) WaitQuiescent(ctx context.Context) error {
	if s.engine.waitFn != nil {
		return s.engine.waitFn(ctx)
	}
	return nil
}

func (s *fakeSession) PrintPDF(ctx context.Context, layout invoice.PageLayout) ([]byte, error) {
	if s.engine.panicOnPrint {
		panic("engine crashed")
	}
	s.engine.mu.Lock()
	s.engine.lastLayout = layout
	s.engine.mu.Unlock()
	return s.engine.output, s.engine.printErr
}

func (s *fakeSession) Close() error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.engine.closed++
	s.engine.active--
	return nil
}

func testDocument() *invoice.RenderedDocument {
	return &invoice.RenderedDocument{
		Markup: "<html><body>Invoice</body></html>",
		Data:   &invoice.OrderInvoiceData{OrderID: 42},
	}
}

func requireRenderCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrRasterization), "expected RASTERIZATION_ERROR, got %v", err)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, code, renderErr.Code)
}

func TestRasterizer_ToPDF_Success(t *testing.T) {
	engine := newFakeEngine()
	r := NewRasterizer(engine, RasterizerConfig{Logger: zaptest.NewLogger(t)})

	layout := invoice.DefaultPageLayout()
	artifact, err := r.ToPDF(context.Background(), testDocument(), layout)
	require.NoError(t, err)

	assert.Equal(t, invoice.OrderID(42), artifact.OrderID)
	assert.Equal(t, invoice.ContentTypePDF, artifact.ContentType)
	assert.Equal(t, fakePDF, artifact.Data)
	assert.Equal(t, 2, artifact.PageCount)
	assert.Equal(t, "<html><body>Invoice</body></html>", engine.lastMarkup)
	assert.True(t, engine.lastLayout.PrintBackground)
	assert.Equal(t, invoice.PaperSizeA4, engine.lastLayout.PaperSize)

	opened, closed := engine.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestRasterizer_ToPDF_ReleasesSessionOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *fakeEngine)
		code  string
	}{
		{
			name:  "malformed markup rejected by engine",
			setup: func(e *fakeEngine) { e.loadErr = errors.New("net::ERR_INVALID_DOCUMENT") },
			code:  ErrCodeRenderFailed,
		},
		{
			name:  "print failure",
			setup: func(e *fakeEngine) { e.printErr = errors.New("Printing failed") },
			code:  ErrCodeRenderFailed,
		},
		{
			name:  "empty output",
			setup: func(e *fakeEngine) { e.output = nil },
			code:  ErrCodeRenderFailed,
		},
		{
			name:  "output is not a PDF",
			setup: func(e *fakeEngine) { e.output = []byte("<html>") },
			code:  ErrCodeRenderFailed,
		},
		{
			name: "engine reports its own code",
			setup: func(e *fakeEngine) {
				e.loadErr = NewRenderError(ErrCodeInvalidHTML, "document rejected", nil)
			},
			code: ErrCodeInvalidHTML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			tt.setup(engine)
			r := NewRasterizer(engine, RasterizerConfig{})

			_, err := r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
			requireRenderCode(t, err, tt.code)

			opened, closed := engine.counts()
			assert.Equal(t, 1, opened)
			assert.Equal(t, opened, closed, "rendering session leaked")
		})
	}
}

func TestRasterizer_ToPDF_ReleasesSessionOnTimeout(t *testing.T) {
	engine := newFakeEngine()
	engine.waitFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	r := NewRasterizer(engine, RasterizerConfig{Timeout: 20 * time.Millisecond})

	_, err := r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
	requireRenderCode(t, err, ErrCodeRenderTimeout)

	opened, closed := engine.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestRasterizer_ToPDF_ReleasesSessionOnPanic(t *testing.T) {
	engine := newFakeEngine()
	engine.panicOnPrint = true
	r := NewRasterizer(engine, RasterizerConfig{MaxConcurrent: 1})

	assert.Panics(t, func() {
		_, _ = r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
	})

	opened, closed := engine.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)

	// The pool slot was released as well
	engine.panicOnPrint = false
	_, err := r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
	assert.NoError(t, err)
}

func TestRasterizer_ToPDF_RejectsInputWithoutSession(t *testing.T) {
	engine := newFakeEngine()
	r := NewRasterizer(engine, RasterizerConfig{})

	_, err := r.ToPDF(context.Background(), nil, invoice.DefaultPageLayout())
	requireRenderCode(t, err, ErrCodeInvalidHTML)

	_, err = r.ToPDF(context.Background(), &invoice.RenderedDocument{Markup: "  "}, invoice.DefaultPageLayout())
	requireRenderCode(t, err, ErrCodeInvalidHTML)

	layout := invoice.DefaultPageLayout()
	layout.PaperSize = "B5"
	_, err = r.ToPDF(context.Background(), testDocument(), layout)
	requireRenderCode(t, err, ErrCodeInvalidLayout)

	opened, _ := engine.counts()
	assert.Zero(t, opened)
}

func TestRasterizer_ToPDF_BinaryNotFound(t *testing.T) {
	engine := newFakeEngine()
	engine.newSessionErr = fmt.Errorf("exec: %q: %w", "chromium", exec.ErrNotFound)
	r := NewRasterizer(engine, RasterizerConfig{})

	_, err := r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
	requireRenderCode(t, err, ErrCodeBinaryNotFound)
}

func TestRasterizer_ToPDF_BoundedConcurrency(t *testing.T) {
	engine := newFakeEngine()
	engine.waitFn = func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}
	r := NewRasterizer(engine, RasterizerConfig{MaxConcurrent: 2})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	opened, closed := engine.counts()
	assert.Equal(t, 8, opened)
	assert.Equal(t, 8, closed)
	assert.LessOrEqual(t, engine.maxActive, 2)
}

func TestRasterizer_ToPDF_WaitingForSlotRespectsContext(t *testing.T) {
	engine := newFakeEngine()
	release := make(chan struct{})
	started := make(chan struct{})
	engine.waitFn = func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	r := NewRasterizer(engine, RasterizerConfig{MaxConcurrent: 1})

	done := make(chan error, 1)
	go func() {
		_, err := r.ToPDF(context.Background(), testDocument(), invoice.DefaultPageLayout())
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.ToPDF(ctx, testDocument(), invoice.DefaultPageLayout())
	requireRenderCode(t, err, ErrCodeRenderTimeout)

	close(release)
	require.NoError(t, <-done)

	opened, closed := engine.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestEstimatePageCount(t *testing.T) {
	assert.Equal(t, 2, estimatePageCount(fakePDF))
	assert.Equal(t, 1, estimatePageCount([]byte("%PDF-1.4")))
}
