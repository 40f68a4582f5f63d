package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// Options configures HTTPBrowser.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RetryWait         time.Duration
	RequestsPerSecond float64
	Burst             int
}

// HTTPBrowser loads pages with a shared resty client. Requests are rate
// limited and retried on transient failures.
type HTTPBrowser struct {
	client  *resty.Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Browser = (*HTTPBrowser)(nil)

// NewHTTPBrowser builds the client with a cookie jar, French locale headers
// and a token-bucket limiter.
func NewHTTPBrowser(opts Options, logger *slog.Logger) (*HTTPBrowser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "browser: cookie jar")
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "fr-FR,fr;q=0.9")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	client.SetRetryCount(max(opts.MaxRetries, 0))
	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
		client.SetRetryMaxWaitTime(opts.RetryWait * 8)
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return !errors.Is(err, context.Canceled)
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := max(opts.Burst, 1)
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &HTTPBrowser{client: client, timeout: opts.Timeout, logger: logger}, nil
}

// Open returns a blank page bound to the shared client.
func (b *HTTPBrowser) Open(ctx context.Context) (ports.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "browser: open page")
	}
	return newPage(b.get, b.timeout), nil
}

func (b *HTTPBrowser) get(ctx context.Context, target string) (string, string, error) {
	started := time.Now()
	resp, err := b.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return "", "", eris.Wrapf(err, "GET %s", target)
	}
	b.logger.Debug("page fetched", "url", target, "status", resp.StatusCode(), "elapsed", time.Since(started))
	if resp.IsError() {
		return "", "", eris.Errorf("GET %s: %s", target, resp.Status())
	}

	finalURL := target
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}
	return finalURL, string(resp.Body()), nil
}

// StaticBrowser serves pages from an in-memory map keyed by absolute URL.
type StaticBrowser struct {
	Pages map[string]string
}

var _ ports.Browser = (*StaticBrowser)(nil)

// Open returns a page that resolves navigation against Pages.
func (s *StaticBrowser) Open(ctx context.Context) (ports.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "browser: open page")
	}
	return newPage(func(ctx context.Context, target string) (string, string, error) {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		body, ok := s.Pages[target]
		if !ok {
			return "", "", eris.Errorf("GET %s: 404 Not Found", target)
		}
		return target, body, nil
	}, 0), nil
}
