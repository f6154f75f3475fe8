// Package driver defines the page-automation capabilities the booking
// flow consumes, and provides the chromedp-backed production
// implementation. The booking state machine depends only on this
// interface, never on chromedp directly.
package driver

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNavigationTimeout wraps any navigation or wait that ran out
	// of time.
	ErrNavigationTimeout = errors.New("driver: navigation timeout")
	// ErrNotFound means a selector matched nothing within its wait.
	ErrNotFound = errors.New("driver: element not found")
)

// DialogHandler observes JavaScript dialogs (alert/confirm). The
// driver auto-accepts every dialog so the page never blocks; the
// handler sees the message for rejection detection.
type DialogHandler func(message string)

// Driver is one automated browser page. All methods enforce their own
// timeouts and return typed errors; none panic on missing elements.
type Driver interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector is visible or timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// WaitFunc polls the JavaScript expression until it is truthy.
	WaitFunc(ctx context.Context, expr string, timeout time.Duration) error
	// Click dispatches a click on the first match of selector.
	Click(ctx context.Context, selector string) error
	// Type focuses selector and types text into it.
	Type(ctx context.Context, selector, text string) error
	// Evaluate runs a JavaScript expression in the page, decoding its
	// result into out when out is non-nil.
	Evaluate(ctx context.Context, expr string, out any) error
	// CaptureElement screenshots the element matching selector.
	CaptureElement(ctx context.Context, selector string) ([]byte, error)
	// OnDialog registers the dialog observer for this page.
	OnDialog(handler DialogHandler)
	// CurrentURL reports the page's location.
	CurrentURL(ctx context.Context) (string, error)
	// SetViewport resizes the page viewport.
	SetViewport(ctx context.Context, width, height int) error
	// OpenPopupOnClick clicks selector and binds a Driver to the page
	// the click opened.
	OpenPopupOnClick(ctx context.Context, selector string, timeout time.Duration) (Driver, error)
	// Close tears the page down. Closing the session's root page
	// closes the whole browser context.
	Close() error
}

// Factory creates one isolated browser session per account.
type Factory interface {
	// NewSession launches a fresh browser context. position indexes
	// into the operator's window grid; ignored when headless.
	NewSession(ctx context.Context, position int) (Driver, error)
}
