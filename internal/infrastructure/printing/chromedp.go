package printing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout  = 30 * time.Second
	defaultViewportHeight = 800
)

// ChromeConfig contains configuration for the chromedp surface factory
type ChromeConfig struct {
	// DefaultTimeout bounds every operation on a surface
	DefaultTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional)
	// If empty, chromedp will launch a new browser instance
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromeSurfaceFactory opens one headless Chrome tab per surface
type ChromeSurfaceFactory struct {
	config      *ChromeConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeSurfaceFactory creates a factory sharing one browser allocator
func NewChromeSurfaceFactory(config *ChromeConfig) *ChromeSurfaceFactory {
	if config == nil {
		config = &ChromeConfig{}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &ChromeSurfaceFactory{
		config: config,
		logger: logger,
	}

	if config.RemoteURL != "" {
		f.allocCtx, f.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
		return f
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		// Font rendering
		chromedp.Flag("font-render-hinting", "none"),
	)
	if config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	f.allocCtx, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return f
}

// Open starts a new tab sized to viewportWidth
func (f *ChromeSurfaceFactory) Open(ctx context.Context, viewportWidth int) (Surface, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			f.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &chromeSurface{
		ctx:     tabCtx,
		cancel:  tabCancel,
		timeout: f.config.DefaultTimeout,
	}

	// The first Run allocates the browser and binds its lifetime to tabCtx,
	// so it must not carry a timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	if viewportWidth <= 0 {
		viewportWidth = 1024
	}
	err := s.run(ctx, s.timeout,
		emulation.SetDeviceMetricsOverride(int64(viewportWidth), defaultViewportHeight, 1, false),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open chrome tab: %w", err)
	}
	return s, nil
}

// Close shuts the browser down
func (f *ChromeSurfaceFactory) Close() error {
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}

// chromeSurface is a single Chrome tab
type chromeSurface struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's context.
// Deriving from the tab context keeps the tab open when only this call is cancelled.
func (s *chromeSurface) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSurface) Mount(ctx context.Context, html string) error {
	return s.run(ctx, s.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		frameTree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
	}))
}

func (s *chromeSurface) Clear(ctx context.Context) error {
	return s.run(ctx, s.timeout, chromedp.Navigate("about:blank"))
}

const measureJS = `(() => {
  const root = document.querySelector('` + RootSelector + `') || document.body;
  if (!root) return {scrollWidth: 0, scrollHeight: 0, textLength: 0, htmlLength: 0};
  return {
    scrollWidth: Math.ceil(root.scrollWidth),
    scrollHeight: Math.ceil(root.scrollHeight),
    textLength: (root.innerText || '').trim().length,
    htmlLength: document.documentElement.outerHTML.length
  };
})`

// waitJS resolves once the root has content, fonts are loaded and a frame was laid out.
// A MutationObserver re-checks on every DOM change until then.
const waitJS = `new Promise((resolve) => {
  const measure = ` + measureJS + `;
  const ready = () => { const m = measure(); return m.scrollHeight > 0 && m.textLength > 0; };
  const settle = () => document.fonts.ready.then(() => requestAnimationFrame(() => resolve(measure())));
  if (ready()) { settle(); return; }
  const observer = new MutationObserver(() => {
    if (ready()) { observer.disconnect(); settle(); }
  });
  observer.observe(document.documentElement, {childList: true, subtree: true, characterData: true, attributes: true});
})`

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (s *chromeSurface) WaitForContent(ctx context.Context, timeout time.Duration) (Measurement, error) {
	var m Measurement
	err := s.run(ctx, timeout, chromedp.Evaluate(waitJS, &m, awaitPromise))
	if err == nil {
		return m, nil
	}
	if ctx.Err() != nil {
		return Measurement{}, ctx.Err()
	}
	// Timed out: report what is there now
	last, merr := s.Measure(ctx)
	if merr != nil {
		return Measurement{}, errors.Join(err, merr)
	}
	return last, err
}

func (s *chromeSurface) Measure(ctx context.Context) (Measurement, error) {
	var m Measurement
	err := s.run(ctx, s.timeout, chromedp.Evaluate(measureJS+"()", &m))
	return m, err
}

func (s *chromeSurface) InjectStyle(ctx context.Context, id, css string) error {
	idJSON, _ := json.Marshal(id)
	cssJSON, _ := json.Marshal(css)
	script := fmt.Sprintf(`(() => {
  let el = document.getElementById(%s);
  if (!el) { el = document.createElement('style'); el.id = %s; (document.head || document.documentElement).appendChild(el); }
  el.textContent = %s;
  return true;
})()`, idJSON, idJSON, cssJSON)
	var ok bool
	return s.run(ctx, s.timeout, chromedp.Evaluate(script, &ok))
}

func (s *chromeSurface) RemoveStyle(ctx context.Context, id string) error {
	idJSON, _ := json.Marshal(id)
	script := fmt.Sprintf(`(() => { const el = document.getElementById(%s); if (el) el.remove(); return true; })()`, idJSON)
	var ok bool
	return s.run(ctx, s.timeout, chromedp.Evaluate(script, &ok))
}

func (s *chromeSurface) PrintPDF(ctx context.Context, params PrintParams) ([]byte, error) {
	var pdfData []byte
	err := s.run(ctx, s.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(params.PrintBackground).
			WithPaperWidth(params.PaperWidth).
			WithPaperHeight(params.PaperHeight).
			WithMarginTop(params.MarginTop).
			WithMarginRight(params.MarginRight).
			WithMarginBottom(params.MarginBottom).
			WithMarginLeft(params.MarginLeft).
			WithScale(params.Scale).
			WithLandscape(params.Landscape).
			WithPreferCSSPageSize(false).
			Do(ctx)
		if err != nil {
			return err
		}
		pdfData = data
		return nil
	}))
	return pdfData, err
}

func (s *chromeSurface) Screenshot(ctx context.Context, quality int) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.timeout, chromedp.FullScreenshot(&buf, quality))
	return buf, err
}

func (s *chromeSurface) Close() error {
	s.cancel()
	return nil
}

// Ensure the chromedp types implement the surface interfaces
var (
	_ SurfaceFactory = (*ChromeSurfaceFactory)(nil)
	_ Surface        = (*chromeSurface)(nil)
)
