package exportchromium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-docexport/export"
)

const defaultDeviceScale = 2.0

// Page is a loaded host view inside the shared browser.
type Page struct {
	browser *Browser
	tabCtx  context.Context
	cancel  context.CancelFunc
}

// OpenURL navigates a new tab to url and waits for the body.
func (b *Browser) OpenURL(ctx context.Context, url string) (*Page, error) {
	return b.openPage(ctx, chromedp.Navigate(url))
}

// OpenHTML loads markup into a new blank tab.
func (b *Browser) OpenHTML(ctx context.Context, markup string) (*Page, error) {
	return b.openPage(ctx, chromedp.Navigate("about:blank"), setDocumentContent(markup))
}

func (b *Browser) openPage(ctx context.Context, load ...chromedp.Action) (*Page, error) {
	tabCtx, cancel, err := b.NewTab()
	if err != nil {
		return nil, err
	}
	actions := append(load, chromedp.WaitReady("body", chromedp.ByQuery))
	if err := b.run(ctx, tabCtx, actions...); err != nil {
		cancel()
		return nil, export.NewError(export.KindPresentation, "load page", err)
	}
	return &Page{browser: b, tabCtx: tabCtx, cancel: cancel}, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	if p == nil || p.cancel == nil {
		return nil
	}
	p.cancel()
	return nil
}

// Element returns a HostElement for the first node matching selector.
func (p *Page) Element(selector string) *Element {
	return &Element{page: p, selector: selector}
}

// Elements wraps selectors as export.HostElement values.
func (p *Page) Elements(selectors ...string) []export.HostElement {
	out := make([]export.HostElement, 0, len(selectors))
	for _, selector := range selectors {
		out = append(out, p.Element(selector))
	}
	return out
}

// Rasterizer returns a RasterSource screenshotting the node matching selector.
func (p *Page) Rasterizer(selector string) *Rasterizer {
	return &Rasterizer{page: p, Selector: selector, Scale: defaultDeviceScale}
}

// SnapshotSource returns a SnapshotSource copying the node's inner markup
// together with the page's stylesheets.
func (p *Page) SnapshotSource(selector string) export.SnapshotSource {
	return export.SnapshotFunc(func(ctx context.Context) (export.Snapshot, error) {
		return p.snapshot(ctx, selector)
	})
}

type pageSnapshot struct {
	Found       bool   `json:"found"`
	Markup      string `json:"markup"`
	BaseURL     string `json:"baseURL"`
	Stylesheets []struct {
		Href    string `json:"href"`
		Content string `json:"content"`
	} `json:"stylesheets"`
}

const snapshotScript = `(() => {
	const el = document.querySelector(%s);
	const sheets = Array.from(document.querySelectorAll('style, link[rel="stylesheet"]')).map(node =>
		node.tagName === 'LINK' ? {href: node.href, content: ''} : {href: '', content: node.textContent});
	return {found: !!el, markup: el ? el.innerHTML : '', baseURL: document.baseURI, stylesheets: sheets};
})()`

func (p *Page) snapshot(ctx context.Context, selector string) (export.Snapshot, error) {
	script := fmt.Sprintf(snapshotScript, jsString(selector))
	var raw pageSnapshot
	if err := p.browser.run(ctx, p.tabCtx, chromedp.Evaluate(script, &raw)); err != nil {
		return export.Snapshot{}, export.NewError(export.KindRasterization, "capture snapshot", err)
	}
	if !raw.Found {
		return export.Snapshot{}, export.NewError(export.KindRasterization, fmt.Sprintf("element %q not found", selector), nil)
	}

	snapshot := export.Snapshot{Markup: raw.Markup, BaseURL: raw.BaseURL}
	for _, sheet := range raw.Stylesheets {
		snapshot.Stylesheets = append(snapshot.Stylesheets, export.Stylesheet{Href: sheet.Href, Content: sheet.Content})
	}
	return snapshot, nil
}

// Rasterizer captures an element as a raster snapshot.
type Rasterizer struct {
	page     *Page
	Selector string
	// Scale is the device scale factor applied while capturing.
	Scale float64
	// ViewportWidth, when set, resizes the viewport before capture.
	ViewportWidth int64
}

// Rasterize implements export.RasterSource.
func (r *Rasterizer) Rasterize(ctx context.Context) (export.RasterImage, error) {
	if r == nil || r.page == nil {
		return export.RasterImage{}, export.NewError(export.KindRasterization, "rasterizer has no page", nil)
	}
	scale := r.Scale
	if scale <= 0 {
		scale = defaultDeviceScale
	}

	var shot []byte
	actions := []chromedp.Action{}
	if r.ViewportWidth > 0 {
		actions = append(actions, chromedp.EmulateViewport(r.ViewportWidth, 800, chromedp.EmulateScale(scale)))
	} else {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			var width int64
			if err := chromedp.Evaluate(`document.documentElement.clientWidth`, &width).Do(ctx); err != nil {
				return err
			}
			return chromedp.EmulateViewport(width, 800, chromedp.EmulateScale(scale)).Do(ctx)
		}))
	}
	actions = append(actions, chromedp.Screenshot(r.Selector, &shot, chromedp.NodeVisible, chromedp.ByQuery))

	if err := r.page.browser.run(ctx, r.page.tabCtx, actions...); err != nil {
		return export.RasterImage{}, export.NewError(export.KindRasterization, fmt.Sprintf("capture %q", r.Selector), err)
	}
	return export.DecodeRaster(bytes.NewReader(shot))
}

// Element is a DOM node whose inline display style can be toggled.
type Element struct {
	page     *Page
	selector string
}

// Display implements export.HostElement.
func (e *Element) Display(ctx context.Context) (string, error) {
	var out struct {
		Found   bool   `json:"found"`
		Display string `json:"display"`
	}
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return {found: !!el, display: el ? el.style.display : ''}; })()`, jsString(e.selector))
	if err := e.page.browser.run(ctx, e.page.tabCtx, chromedp.Evaluate(script, &out)); err != nil {
		return "", err
	}
	if !out.Found {
		return "", export.NewError(export.KindNotFound, fmt.Sprintf("element %q not found", e.selector), nil)
	}
	return out.Display, nil
}

// SetDisplay implements export.HostElement.
func (e *Element) SetDisplay(ctx context.Context, value string) error {
	var found bool
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.style.display = %s; return true; })()`,
		jsString(e.selector), jsString(value))
	if err := e.page.browser.run(ctx, e.page.tabCtx, chromedp.Evaluate(script, &found)); err != nil {
		return err
	}
	if !found {
		return export.NewError(export.KindNotFound, fmt.Sprintf("element %q not found", e.selector), nil)
	}
	return nil
}

func setDocumentContent(markup string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, markup).Do(ctx)
	})
}

func jsString(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return `""`
	}
	return strings.TrimSpace(string(encoded))
}
