package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBackoff caps the delay between attempts, including server Retry-After hints.
const maxBackoff = 30 * time.Second

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// UserAgent identifies the caller. SEC hosts reject requests without a
	// "Company contact@example.com" style agent.
	UserAgent string
	Timeout   time.Duration
	// MaxRetries is the total number of attempts per request. Default: 1.
	MaxRetries int
	// HostRates sets the request ceiling per host. Other hosts use DefaultHostRate.
	HostRates map[string]rate.Limit
	// BaseBackoff is the delay before the first retry. Default: 1s.
	BaseBackoff time.Duration
}

// HTTPFetcher implements Fetcher over net/http with per-host pacing and
// retry of transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu        sync.Mutex
	throttles map[string]*HostThrottle
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "holdings-cli/1.0"
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:      opts,
		throttles: make(map[string]*HostThrottle),
	}
}

// throttleFor returns the host's throttle, creating it on first use.
func (f *HTTPFetcher) throttleFor(host string) *HostThrottle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.throttles[host]; ok {
		return t
	}
	ceiling, ok := f.opts.HostRates[host]
	if !ok {
		ceiling = DefaultHostRate
	}
	t := NewHostThrottle(host, ceiling)
	f.throttles[host] = t
	return t
}

// get issues a GET, retrying network errors and transient statuses. The
// returned response may carry any non-transient status.
func (f *HTTPFetcher) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	throttle := f.throttleFor(u.Host)
	log := zap.L().With(zap.String("url", u.String()))

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		if err := throttle.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		var hint time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "request cancelled")
			}
			lastErr = err
			log.Warn("http request failed", zap.Int("attempt", attempt), zap.Error(err))
		case IsTransientStatus(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: u.String()}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
				throttle.Throttled()
				hint = retryAfter(resp.Header.Get("Retry-After"))
			}
			log.Warn("transient http status", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
		default:
			throttle.Succeeded()
			return resp, nil
		}

		if attempt < f.opts.MaxRetries {
			f.sleep(ctx, attempt, hint)
		}
	}

	return nil, eris.Wrapf(lastErr, "all retries exhausted after %d attempts", f.opts.MaxRetries)
}

// sleep waits before attempt+1: the server hint when given, otherwise
// exponential backoff with jitter.
func (f *HTTPFetcher) sleep(ctx context.Context, attempt int, hint time.Duration) {
	d := hint
	if d <= 0 {
		d = f.opts.BaseBackoff << (attempt - 1)
		if half := int64(d) / 2; half > 0 {
			d += time.Duration(rand.Int64N(half))
		}
	}
	d = min(d, maxBackoff)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

// Download fetches the URL and returns the response body.
// Non-200 responses are reported as *StatusError.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse url %q", rawURL)
	}

	resp, err := f.get(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Wrap(&StatusError{StatusCode: resp.StatusCode, URL: rawURL}, "download")
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path. The body is written to a
// temporary sibling and renamed into place, so path never holds a partial
// document.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, eris.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrap(err, "write file")
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrap(err, "close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrapf(err, "rename into %s", path)
	}
	return n, nil
}
