package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// ChromeFactory launches one Chrome instance per session, tiled into a
// grid so the operator can watch every account at once.
type ChromeFactory struct {
	Headless   bool
	GridCols   int
	CellWidth  int
	CellHeight int
	UserAgent  string
	Log        *zap.Logger
}

// NewSession launches Chrome positioned at the grid cell for position.
// Cell 0 is left to the operator's own window; sessions tile from the
// next cell and wrap after filling the grid.
func (f *ChromeFactory) NewSession(ctx context.Context, position int) (Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(f.userAgent()),
	)
	if f.Headless {
		opts = append(opts, chromedp.Flag("headless", true), chromedp.Flag("disable-gpu", true))
	} else {
		col, row := gridCell(f.GridCols, position)
		opts = append(opts,
			chromedp.Flag("headless", false),
			chromedp.Flag("window-size", fmt.Sprintf("%d,%d", f.CellWidth, f.CellHeight)),
			chromedp.Flag("window-position", fmt.Sprintf("%d,%d", col*f.CellWidth, row*f.CellHeight)),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here rather
	// than on the first navigation.
	if err := chromedp.Run(pageCtx); err != nil {
		pageCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser for position %d: %w", position, err)
	}

	p := &chromePage{
		ctx: pageCtx,
		cancel: func() {
			pageCancel()
			allocCancel()
		},
		log: f.log(),
	}
	p.listenDialogs()
	return p, nil
}

// gridCell maps a session position to its window grid cell. Cell 0 is
// left to the operator, so sessions tile from cell 1 and wrap after
// filling the grid. A grid needs at least two columns to leave any
// cell for sessions; narrower configurations are widened to the
// default.
func gridCell(cols, position int) (col, row int) {
	if cols < 2 {
		cols = 3
	}
	slot := position%(cols*cols-1) + 1
	return slot % cols, slot / cols
}

func (f *ChromeFactory) userAgent() string {
	if f.UserAgent != "" {
		return f.UserAgent
	}
	return defaultUserAgent
}

func (f *ChromeFactory) log() *zap.Logger {
	if f.Log != nil {
		return f.Log
	}
	return zap.NewNop()
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	mu      sync.Mutex
	handler DialogHandler
}

var _ Driver = (*chromePage)(nil)

// listenDialogs auto-accepts every JavaScript dialog so the page never
// blocks, forwarding the message to the registered handler. Accepting
// from inside the event callback deadlocks chromedp, hence the
// goroutine.
func (p *chromePage) listenDialogs() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		e, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		p.mu.Lock()
		handler := p.handler
		p.mu.Unlock()
		if handler != nil {
			handler(e.Message)
		}
		go func() {
			err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(c context.Context) error {
				return page.HandleJavaScriptDialog(true).Do(c)
			}))
			if err != nil {
				p.log.Debug("dismiss dialog", zap.Error(err))
			}
		}()
	})
}

func (p *chromePage) OnDialog(handler DialogHandler) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, 0, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("%w: %s (%v)", ErrNotFound, selector, err)
	}
	return nil
}

func (p *chromePage) WaitFunc(ctx context.Context, expr string, timeout time.Duration) error {
	err := p.run(ctx, 0, chromedp.Poll(expr, nil, chromedp.WithPollingTimeout(timeout)))
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return fmt.Errorf("%w: predicate never became true", ErrNavigationTimeout)
		}
		return err
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, 0,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *chromePage) Evaluate(ctx context.Context, expr string, out any) error {
	if out == nil {
		return p.run(ctx, 0, chromedp.Evaluate(expr, nil))
	}
	return p.run(ctx, 0, chromedp.Evaluate(expr, out))
}

func (p *chromePage) CaptureElement(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, 0, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery))
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", selector, err)
	}
	return buf, nil
}

func (p *chromePage) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, 0, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *chromePage) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, 0, chromedp.EmulateViewport(int64(width), int64(height)))
}

// OpenPopupOnClick arms a new-target watcher, clicks, and binds a
// Driver to the page the click opened.
func (p *chromePage) OpenPopupOnClick(ctx context.Context, selector string, timeout time.Duration) (Driver, error) {
	ch := chromedp.WaitNewTarget(p.ctx, func(info *target.Info) bool {
		return info.Type == "page"
	})

	if err := p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("click %s: %w", selector, err)
	}

	select {
	case id := <-ch:
		popupCtx, popupCancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
		if err := chromedp.Run(popupCtx); err != nil {
			popupCancel()
			return nil, fmt.Errorf("attach popup: %w", err)
		}
		popup := &chromePage{ctx: popupCtx, cancel: popupCancel, log: p.log}
		popup.listenDialogs()
		return popup, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: no popup after clicking %s", ErrNavigationTimeout, selector)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// run executes actions against the page, bounding them with timeout
// when one is given and mapping deadline errors to the typed timeout.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := p.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
