// Package browser provides ports.Browser implementations that load listing
// pages over HTTP and query them with goquery.
package browser

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// fetchFunc loads target and returns the final URL (after redirects) and body.
type fetchFunc func(ctx context.Context, target string) (finalURL, body string, err error)

// Page holds the currently loaded document. It is safe for concurrent use so
// Close can be called from another goroutine while a navigation is in flight.
type Page struct {
	mu      sync.RWMutex
	fetch   fetchFunc
	timeout time.Duration
	url     string
	html    string
	doc     *goquery.Document
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

var _ ports.Page = (*Page)(nil)

func newPage(fetch fetchFunc, timeout time.Duration) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{fetch: fetch, timeout: timeout, ctx: ctx, cancel: cancel}
}

// NewDocumentPage wraps an already downloaded document. Navigation away from
// it fails; use it for snapshots and tests.
func NewDocumentPage(pageURL, html string) (*Page, error) {
	p := newPage(nil, 0)
	if err := p.load(pageURL, html); err != nil {
		return nil, err
	}
	return p, nil
}

// Navigate loads target, resolved against the current URL.
func (p *Page) Navigate(ctx context.Context, target string) error {
	p.mu.RLock()
	closed, current, fetch := p.closed, p.url, p.fetch
	p.mu.RUnlock()
	if closed {
		return ports.ErrPageClosed
	}
	if fetch == nil {
		return eris.Errorf("navigate %s: page has no loader", target)
	}

	resolved, err := resolve(current, target)
	if err != nil {
		return err
	}

	ctx, release := p.bind(ctx)
	defer release()

	finalURL, body, err := fetch(ctx, resolved)
	if err != nil {
		if p.isClosed() {
			return ports.ErrPageClosed
		}
		return eris.Wrapf(err, "navigate %s", resolved)
	}
	return p.load(finalURL, body)
}

// URL returns the address of the loaded document.
func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

// WaitFor reports whether selector matches in the loaded document. Documents
// are complete once fetched, so the wait never needs to poll.
func (p *Page) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.isClosed() {
		return ports.ErrPageClosed
	}
	if len(p.Locate(selector)) == 0 {
		return eris.Wrapf(ports.ErrSelectorNotFound, "wait for %q", selector)
	}
	return nil
}

// Locate returns the elements matching selector in document order.
func (p *Page) Locate(selector string) []ports.Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.doc == nil {
		return nil
	}
	return wrap(p.doc.Find(selector))
}

// Click follows the element's href.
func (p *Page) Click(ctx context.Context, el ports.Element) error {
	href, ok := el.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return eris.New("click: element has no navigable href")
	}
	return p.Navigate(ctx, href)
}

// WaitNetworkIdle returns once no request is pending, which is immediately
// after Navigate returns.
func (p *Page) WaitNetworkIdle(ctx context.Context) error {
	if p.isClosed() {
		return ports.ErrPageClosed
	}
	return ctx.Err()
}

// Content returns the raw HTML of the loaded document.
func (p *Page) Content() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.html
}

// Close releases the page and aborts any in-flight navigation. It is idempotent.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.doc = nil
	p.cancel()
	return nil
}

func (p *Page) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// bind derives a context that is cancelled by ctx, by Close, or by the page timeout.
func (p *Page) bind(ctx context.Context) (context.Context, func()) {
	var cancelTimeout context.CancelFunc = func() {}
	if p.timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, p.timeout)
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
		cancelTimeout()
	}
}

func (p *Page) load(pageURL, html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return eris.Wrapf(err, "parse document %s", pageURL)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ports.ErrPageClosed
	}
	p.url = pageURL
	p.html = html
	p.doc = doc
	return nil
}

func resolve(base, target string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", eris.Wrapf(err, "invalid url %s", target)
	}
	if base == "" || ref.IsAbs() {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "invalid base url %s", base)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

type element struct {
	sel *goquery.Selection
}

func (e element) Text() string {
	return e.sel.Text()
}

func (e element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e element) Find(selector string) []ports.Element {
	return wrap(e.sel.Find(selector))
}

func wrap(sel *goquery.Selection) []ports.Element {
	out := make([]ports.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, element{sel: s})
	})
	return out
}
