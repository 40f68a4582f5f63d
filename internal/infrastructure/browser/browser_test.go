package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

const firstPage = `<html><body>
<ul class="liste-avis"><li class="avis-item">one</li><li class="avis-item">two</li></ul>
<div class="pagination"><a class="next" href="/page2">Suivant</a></div>
</body></html>`

const secondPage = `<html><body><ul class="liste-avis"><li class="avis-item">three</li></ul></body></html>`

func testOptions() Options {
	return Options{
		UserAgent:         "PMN-Scraper/test",
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
		Burst:             10,
	}
}

func TestHTTPBrowserNavigateAndClick(t *testing.T) {
	t.Parallel()

	var agent atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(firstPage))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(secondPage))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	b, err := NewHTTPBrowser(testOptions(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	page, err := b.Open(ctx)
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, server.URL+"/"))
	assert.Equal(t, "PMN-Scraper/test", agent.Load())
	assert.Len(t, page.Locate(".avis-item"), 2)
	require.NoError(t, page.WaitFor(ctx, ".liste-avis", time.Second))
	assert.Contains(t, page.Content(), "Suivant")

	next := page.Locate(".pagination a.next")
	require.Len(t, next, 1)
	require.NoError(t, page.Click(ctx, next[0]))
	require.NoError(t, page.WaitNetworkIdle(ctx))

	assert.Equal(t, server.URL+"/page2", page.URL())
	items := page.Locate(".avis-item")
	require.Len(t, items, 1)
	assert.Equal(t, "three", items[0].Text())
}

func TestHTTPBrowserErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	b, err := NewHTTPBrowser(testOptions(), nil)
	require.NoError(t, err)
	page, err := b.Open(context.Background())
	require.NoError(t, err)

	err = page.Navigate(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	err = page.WaitFor(context.Background(), ".liste-avis", time.Second)
	assert.True(t, eris.Is(err, ports.ErrSelectorNotFound))

	require.NoError(t, page.Close())
	require.NoError(t, page.Close())
	assert.True(t, eris.Is(page.Navigate(context.Background(), server.URL), ports.ErrPageClosed))
	assert.Empty(t, page.Locate("body"))
}

func TestCloseAbortsInFlightNavigation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	b, err := NewHTTPBrowser(testOptions(), nil)
	require.NoError(t, err)
	page, err := b.Open(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = page.Close()
	}()

	started := time.Now()
	err = page.Navigate(context.Background(), server.URL)
	assert.True(t, eris.Is(err, ports.ErrPageClosed), "got %v", err)
	assert.Less(t, time.Since(started), 4*time.Second)
}

func TestClickWithoutHref(t *testing.T) {
	t.Parallel()

	page, err := NewDocumentPage("http://example.test/", `<a class="next" href="#">x</a><span class="n">y</span>`)
	require.NoError(t, err)

	for _, sel := range []string{"a.next", "span.n"} {
		els := page.Locate(sel)
		require.Len(t, els, 1)
		assert.Error(t, page.Click(context.Background(), els[0]))
	}
}

func TestDocumentPage(t *testing.T) {
	t.Parallel()

	page, err := NewDocumentPage("http://example.test/list", firstPage)
	require.NoError(t, err)

	assert.Equal(t, "http://example.test/list", page.URL())
	items := page.Locate("li.avis-item")
	require.Len(t, items, 2)
	assert.Equal(t, "one", strings.TrimSpace(items[0].Text()))

	link := page.Locate("a.next")[0]
	href, ok := link.Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "/page2", href)
	assert.Len(t, page.Locate("ul")[0].Find("li"), 2)

	assert.Error(t, page.Navigate(context.Background(), "/page2"))
}

func TestStaticBrowser(t *testing.T) {
	t.Parallel()

	b := &StaticBrowser{Pages: map[string]string{
		"http://site.test/index.php": firstPage,
		"http://site.test/page2":     secondPage,
	}}
	page, err := b.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, page.Navigate(context.Background(), "http://site.test/index.php"))
	require.NoError(t, page.Click(context.Background(), page.Locate("a.next")[0]))
	assert.Equal(t, "http://site.test/page2", page.URL())
	assert.Error(t, page.Navigate(context.Background(), "/missing"))
}
