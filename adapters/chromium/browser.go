package exportchromium

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-docexport/export"
)

// Browser is a lazily started, shared headless Chromium instance.
type Browser struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	initOnce      sync.Once
	initErr       error
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewTab opens a tab. The returned cancel func closes it.
func (b *Browser) NewTab() (context.Context, context.CancelFunc, error) {
	if b == nil {
		return nil, nil, export.NewError(export.KindInternal, "chromium browser is nil", nil)
	}
	if err := b.ensureBrowser(); err != nil {
		return nil, nil, export.NewError(export.KindPresentation, "chromium browser init failed", err)
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	return tabCtx, cancel, nil
}

// Close releases Chromium resources if they have been initialized.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

func (b *Browser) ensureBrowser() error {
	b.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if b.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(b.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", b.Headless))
		options = append(options, allocatorOptionsFromArgs(b.Args)...)

		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)
		// Start the process now so tabs attach to it instead of spawning browsers.
		b.initErr = chromedp.Run(b.browserCtx)
	})
	if b.initErr != nil {
		return b.initErr
	}
	if b.allocCtx == nil || b.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

// run executes actions in tabCtx, aborting when ctx is done or the browser
// timeout elapses. Aborting does not close the tab.
func (b *Browser) run(ctx, tabCtx context.Context, actions ...chromedp.Action) error {
	execCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if b.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, b.Timeout)
		defer cancelTimeout()
	}
	err := chromedp.Run(execCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
