package printing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/invoicepdf/backend/internal/domain/invoice"
	"go.uber.org/zap"
)

const (
	quiescencePollInterval = 50 * time.Millisecond
	defaultPollTimeout     = 30 * time.Second
	// networkIdleWindow is how long the tab must have no request in flight
	networkIdleWindow = 500 * time.Millisecond
)

// quiescenceExpression is truthy once the document, every image and every
// web font have finished loading
const quiescenceExpression = `document.readyState === "complete" &&
	Array.from(document.images).every(function (img) { return img.complete; }) &&
	(!document.fonts || document.fonts.status === "loaded")`

// ChromedpConfig contains configuration for the chromedp engine
type ChromedpConfig struct {
	Profile LaunchProfile
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpEngine drives Chrome through the DevTools Protocol. The browser is
// launched lazily on the first session and shared by all sessions; each
// session is its own tab.
type ChromedpEngine struct {
	profile LaunchProfile
	logger  *zap.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
}

// NewChromedpEngine creates a chromedp engine for the launch profile
func NewChromedpEngine(config ChromedpConfig) *ChromedpEngine {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromedpEngine{
		profile: config.Profile,
		logger:  logger,
	}
}

// allocatorOptions builds the exec allocator options for the profile
func (e *ChromedpEngine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.profile.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		// Font rendering
		chromedp.Flag("font-render-hinting", "none"),
	)

	if e.profile.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.profile.ExecPath))
	}
	if e.profile.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if e.profile.SingleProcess {
		opts = append(opts, chromedp.Flag("single-process", true))
	}
	for _, name := range slices.Sorted(maps.Keys(e.profile.Flags)) {
		opts = append(opts, chromedp.Flag(name, e.profile.Flags[name]))
	}
	return opts
}

// ensureBrowser starts the browser once. A failed start is not cached, so a
// later session retries the launch.
func (e *ChromedpEngine) ensureBrowser() (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return e.browserCtx, nil
	}

	if e.profile.RemoteURL != "" {
		e.allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), e.profile.RemoteURL)
	} else {
		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), e.allocatorOptions()...)
	}
	e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(e.browserCtx); err != nil {
		e.browserCancel()
		e.allocCancel()
		e.logger.Error("failed to start browser",
			zap.String("profile", e.profile.Name),
			zap.String("exec_path", e.profile.ExecPath),
			zap.Error(err))
		return nil, classifyRenderError(context.Background(), err, "failed to start browser")
	}

	e.started = true
	e.logger.Info("browser started",
		zap.String("profile", e.profile.Name),
		zap.Bool("remote", e.profile.RemoteURL != ""))
	return e.browserCtx, nil
}

// NewSession opens a new tab in the shared browser
func (e *ChromedpEngine) NewSession(ctx context.Context) (Session, error) {
	browserCtx, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	s := &chromedpSession{ctx: tabCtx, cancel: cancel, requests: newRequestTracker(time.Now)}
	chromedp.ListenTarget(tabCtx, s.requests.observe)
	if err := s.run(ctx, network.Enable()); err != nil {
		s.Close()
		return nil, classifyRenderError(ctx, err, "failed to open browser tab")
	}
	return s, nil
}

// Close shuts down the browser and its allocator
func (e *ChromedpEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}
	e.browserCancel()
	e.allocCancel()
	e.started = false
	return nil
}

// chromedpSession is a single browser tab
type chromedpSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	requests  *requestTracker
	closeOnce sync.Once
}

// run executes actions in the tab; ctx being done closes the tab
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	return chromedp.Run(s.ctx, actions...)
}

func (s *chromedpSession) LoadContent(ctx context.Context, html string) error {
	err := s.run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
	)
	if err != nil {
		return classifyRenderError(ctx, err, "failed to load document")
	}
	return nil
}

// WaitQuiescent waits for the document, its images and fonts, and then for
// the network to stay idle for networkIdleWindow. Both waits share the
// deadline of ctx.
func (s *chromedpSession) WaitQuiescent(ctx context.Context) error {
	deadline := time.Now().Add(defaultPollTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return NewRenderError(ErrCodeRenderTimeout, "no time left to wait for the document", ctx.Err())
	}

	var ready bool
	err := s.run(ctx, chromedp.Poll(quiescenceExpression, &ready,
		chromedp.WithPollingInterval(quiescencePollInterval),
		chromedp.WithPollingTimeout(timeout),
	))
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return NewRenderError(ErrCodeRenderTimeout, "document did not settle before the deadline", err)
		}
		return classifyRenderError(ctx, err, "failed waiting for document")
	}
	return s.waitNetworkIdle(ctx, deadline)
}

func (s *chromedpSession) waitNetworkIdle(ctx context.Context, deadline time.Time) error {
	ticker := time.NewTicker(quiescencePollInterval)
	defer ticker.Stop()
	for !s.requests.idle(networkIdleWindow) {
		if !time.Now().Before(deadline) {
			return NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("%d requests still in flight at the deadline", s.requests.inflight()), nil)
		}
		select {
		case <-ctx.Done():
			return classifyRenderError(ctx, ctx.Err(), "failed waiting for network")
		case <-ticker.C:
		}
	}
	return nil
}

func (s *chromedpSession) PrintPDF(ctx context.Context, layout invoice.PageLayout) ([]byte, error) {
	params := buildPrintParams(layout)

	var pdfData []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(params.printBackground).
			WithPaperWidth(params.paperWidth).
			WithPaperHeight(params.paperHeight).
			WithMarginTop(params.marginTop).
			WithMarginRight(params.marginRight).
			WithMarginBottom(params.marginBottom).
			WithMarginLeft(params.marginLeft).
			WithScale(params.scale).
			WithLandscape(params.landscape).
			Do(ctx)
		if err != nil {
			return err
		}
		pdfData = data
		return nil
	}))
	if err != nil {
		return nil, classifyRenderError(ctx, err, "failed to print PDF")
	}
	return pdfData, nil
}

func (s *chromedpSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

// printParams holds the parameters for PDF printing
type printParams struct {
	paperWidth      float64
	paperHeight     float64
	marginTop       float64
	marginRight     float64
	marginBottom    float64
	marginLeft      float64
	scale           float64
	landscape       bool
	printBackground bool
}

// buildPrintParams converts a page layout to Chrome's print parameters
func buildPrintParams(layout invoice.PageLayout) printParams {
	width, height := layout.PaperSize.Dimensions()
	scale := layout.Scale
	if scale <= 0 {
		scale = 1.0
	}

	// Chrome uses inches
	return printParams{
		paperWidth:      mmToInches(width),
		paperHeight:     mmToInches(height),
		marginTop:       mmToInches(layout.Margins.Top),
		marginRight:     mmToInches(layout.Margins.Right),
		marginBottom:    mmToInches(layout.Margins.Bottom),
		marginLeft:      mmToInches(layout.Margins.Left),
		scale:           scale,
		landscape:       layout.Orientation == invoice.OrientationLandscape,
		printBackground: layout.PrintBackground,
	}
}

// classifyRenderError maps an engine failure to a render error code
func classifyRenderError(ctx context.Context, err error, message string) *RenderError {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return renderErr
	}
	switch {
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) ||
		strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "no such file or directory"):
		return NewRenderError(ErrCodeBinaryNotFound, "browser executable not found", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewRenderError(ErrCodeRenderTimeout, message+": deadline exceeded", err)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return NewRenderError(ErrCodeRenderTimeout, message+": cancelled", err)
	default:
		return NewRenderError(ErrCodeRenderFailed, message, err)
	}
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromedpEngine implements Engine
var _ Engine = (*ChromedpEngine)(nil)

// requestTracker counts the tab's in-flight network requests, including
// CSS backgrounds and fetch or XHR traffic the DOM checks cannot see.
type requestTracker struct {
	mu           sync.Mutex
	pending      map[network.RequestID]struct{}
	lastActivity time.Time
	now          func() time.Time
}

func newRequestTracker(now func() time.Time) *requestTracker {
	return &requestTracker{
		pending:      make(map[network.RequestID]struct{}),
		lastActivity: now(),
		now:          now,
	}
}

// observe is a chromedp.ListenTarget callback
func (t *requestTracker) observe(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		if ev.Request != nil && strings.HasPrefix(ev.Request.URL, "data:") {
			return
		}
		t.start(ev.RequestID)
	case *network.EventLoadingFinished:
		t.finish(ev.RequestID)
	case *network.EventLoadingFailed:
		t.finish(ev.RequestID)
	}
}

func (t *requestTracker) start(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *requestTracker) finish(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return
	}
	delete(t.pending, id)
	t.lastActivity = t.now()
}

func (t *requestTracker) inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// idle reports whether nothing has been in flight for at least window
func (t *requestTracker) idle(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) == 0 && t.now().Sub(t.lastActivity) >= window
}
