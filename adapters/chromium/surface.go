package exportchromium

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-docexport/export"
)

// Surface presents composed print documents in a fresh browser tab and prints
// them to PDF, handing the result to Sink.
type Surface struct {
	Browser  *Browser
	Sink     PrintSink
	Settings PrintSettings
}

var _ export.PresentationSurface = (*Surface)(nil)

// Open implements export.PresentationSurface.
func (s *Surface) Open(ctx context.Context, title string) (export.PresentationSession, error) {
	if s == nil || s.Browser == nil {
		return nil, export.NewError(export.KindPresentation, "print surface has no browser", nil)
	}
	if s.Sink == nil {
		return nil, export.NewError(export.KindPresentation, "print surface has no sink", nil)
	}
	tabCtx, cancel, err := s.Browser.NewTab()
	if err != nil {
		return nil, err
	}

	settings := s.Settings.withDefaults()
	actions := []chromedp.Action{}
	if settings.BlockExternalAssets {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs([]string{"http://*", "https://*"}),
		)
	}
	actions = append(actions, chromedp.Navigate("about:blank"))
	if err := s.Browser.run(ctx, tabCtx, actions...); err != nil {
		cancel()
		return nil, err
	}

	return &surfaceSession{
		browser:  s.Browser,
		sink:     s.Sink,
		settings: settings,
		title:    title,
		tabCtx:   tabCtx,
		cancel:   cancel,
	}, nil
}

type surfaceSession struct {
	browser  *Browser
	sink     PrintSink
	settings PrintSettings
	title    string

	tabCtx    context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *surfaceSession) Write(ctx context.Context, document string) error {
	document = injectBaseURL(document, s.settings.BaseURL)
	return s.browser.run(ctx, s.tabCtx,
		setDocumentContent(document),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *surfaceSession) Print(ctx context.Context) error {
	params, err := buildPrintToPDFParams(s.settings)
	if err != nil {
		return err
	}

	var pdf []byte
	err = s.browser.run(ctx, s.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdf, _, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}
	return s.sink.Submit(ctx, PrintJob{Title: s.title, PDF: pdf})
}

// Close closes the tab. It returns early with ctx's error if the tab does not
// go away in time.
func (s *surfaceSession) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.closeOnce.Do(s.cancel)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
