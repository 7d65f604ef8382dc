// Package httpclient executes logical HTTP requests against the trading
// platforms' private APIs: bounded exponential-backoff retries, per-attempt
// timeouts, and uniform response classification into a discriminated
// success/failure envelope.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Defaults applied when Config leaves a field zero.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second

	// maxBackoffInterval caps a single wait between attempts.
	maxBackoffInterval = 30 * time.Second
)

// retryableStatuses are retried with backoff until the attempt ceiling.
// 401/403 are deliberately absent: retrying expired credentials is pointless,
// the caller must re-resolve the session instead.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// HeaderFunc injects platform-specific headers (cookie auth) into every
// outgoing request before caller-supplied headers are merged on top.
type HeaderFunc func(http.Header)

// Config tunes the client. Zero values fall back to the package defaults.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// RateLimit caps outbound attempts per second (0 disables).
	RateLimit float64
	RateBurst int
}

// Options carries the per-call knobs. Immutable for the duration of a call.
type Options struct {
	Headers map[string]string

	// Body may be nil, a raw string, []byte, url.Values (form-encoded), or
	// any JSON-serializable value. Content-Type follows the body kind unless
	// a caller header overrides it.
	Body any

	// Timeout overrides the per-attempt timeout for this call.
	Timeout time.Duration

	// FollowRedirects enables automatic redirect chasing. Off by default:
	// both platforms encode operation results in redirect target paths, so
	// callers usually want to inspect the 301/302 themselves.
	FollowRedirects bool
}

// Client executes requests with retry, classification, and optional rate
// limiting. A Client holds no per-request state: concurrent use is safe.
type Client struct {
	noRedirect   *http.Client
	following    *http.Client
	buildHeaders HeaderFunc
	cfg          Config
	limiter      *rate.Limiter
	log          *zap.Logger
}

// New creates a Client. buildHeaders may be nil for unauthenticated use.
func New(cfg Config, buildHeaders HeaderFunc, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		noRedirect: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		following:    &http.Client{Transport: transport},
		buildHeaders: buildHeaders,
		cfg:          cfg,
		limiter:      limiter,
		log:          logger.Named("httpclient"),
	}
}

// Get is shorthand for Do with http.MethodGet.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (*schemas.Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, opts)
}

// Post is shorthand for Do with http.MethodPost.
func (c *Client) Post(ctx context.Context, rawURL string, opts Options) (*schemas.Response, error) {
	return c.Do(ctx, http.MethodPost, rawURL, opts)
}

// Do executes one logical request. Runtime failures (network errors,
// non-2xx statuses, exhausted retries) surface in the returned envelope,
// never as a Go error; the error return is reserved for malformed input
// (bad URL, unserializable body), which indicates a caller bug.
func (c *Client) Do(ctx context.Context, method, rawURL string, opts Options) (*schemas.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid request URL %q", rawURL)
	}
	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxBackoffInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries-1)), ctx)

	start := time.Now()
	var (
		out        *schemas.Response
		lastResult *attemptResult
		attempt    int
	)

	op := func() error {
		attempt++
		res, err := c.attempt(ctx, method, rawURL, opts, body, contentType)
		if err != nil {
			lastResult = nil
			c.log.Warn("request attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		if retryableStatuses[res.status] {
			lastResult = res
			c.log.Warn("retryable status received",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Int("status", res.status))
			return fmt.Errorf("retryable status %d", res.status)
		}
		lastResult = nil
		out = c.finish(res, time.Since(start))
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		duration := time.Since(start)
		if lastResult != nil {
			// Retries exhausted on a retryable status: surface it as an
			// ordinary HTTP failure.
			out = c.finish(lastResult, duration)
		} else {
			out = &schemas.Response{
				Type:     schemas.ResponseText,
				URL:      rawURL,
				Duration: duration,
				Error: &schemas.ResponseError{
					Code:    schemas.CodeNetworkError,
					Message: err.Error(),
				},
			}
		}
	}
	return out, nil
}

// attemptResult captures one raw round trip before classification.
type attemptResult struct {
	status   int
	header   http.Header
	body     []byte
	finalURL string
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, opts Options, body []byte, contentType string) (*attemptResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	if c.buildHeaders != nil {
		c.buildHeaders(req.Header)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	// Caller headers win over the platform hook.
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := c.noRedirect
	if opts.FollowRedirects {
		client = c.following
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &attemptResult{
		status:   resp.StatusCode,
		header:   resp.Header,
		body:     data,
		finalURL: finalURL,
	}, nil
}

// finish classifies a raw result into the response envelope.
func (c *Client) finish(res *attemptResult, duration time.Duration) *schemas.Response {
	r := &schemas.Response{
		Status:   res.status,
		URL:      res.finalURL,
		Duration: duration,
		Body:     string(res.body),
	}
	c.classify(r, res)

	switch {
	case res.status >= 200 && res.status < 300:
		r.OK = true
	case res.status == http.StatusMovedPermanently || res.status == http.StatusFound:
		// Redirects are reported as successes; the Location header carries
		// the platform's actual verdict.
		r.OK = true
	default:
		r.Error = &schemas.ResponseError{
			Code:         schemas.HTTPErrorCode(res.status),
			Message:      fmt.Sprintf("request failed with status %d", res.status),
			NeedsRefresh: res.status == http.StatusUnauthorized || res.status == http.StatusForbidden,
		}
		r.Data = nil
	}
	return r
}

func (c *Client) classify(r *schemas.Response, res *attemptResult) {
	if res.status == http.StatusMovedPermanently || res.status == http.StatusFound {
		r.Type = schemas.ResponseRedirect
		r.Data = r.Body
		r.Location = res.header.Get("Location")
		return
	}

	contentType := res.header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		var v any
		if err := json.Unmarshal(res.body, &v); err != nil {
			// Malformed JSON degrades to text rather than failing the call.
			r.Type = schemas.ResponseText
			r.Data = r.Body
			return
		}
		r.Type = schemas.ResponseJSON
		r.Data = v
	case strings.Contains(contentType, "text/html"):
		r.Type = schemas.ResponseHTML
		r.Data = r.Body
	default:
		r.Type = schemas.ResponseText
		r.Data = r.Body
	}
}

// encodeBody serializes the request body and picks its default content type.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "", nil
	case []byte:
		return b, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("unsupported request body %T: %w", body, err)
		}
		return data, "application/json", nil
	}
}
