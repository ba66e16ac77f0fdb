package githubapi

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hackstats/hackboard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const acceptHeader = "application/vnd.github.v3+json"

// RetryConfig configures retry behavior for GitHub requests.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the caching GitHub fetch client.
type ClientConfig struct {
	// Token is attached as a bearer Authorization header when non-empty.
	Token    string
	Retry    RetryConfig
	Policy   RateLimitPolicy
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Client issues authenticated GitHub GET requests with a URL-keyed response
// cache, retry with backoff, and rate-limit awareness.
type Client struct {
	doer   HTTPDoer
	token  string
	retry  RetryConfig
	policy RateLimitPolicy
	cache  *ResponseCache
	logger *zap.Logger

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Sleep and Now are injected for testability.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// NewClient creates a caching GitHub fetch client.
func NewClient(doer HTTPDoer, cfg ClientConfig) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		doer:   doer,
		token:  cfg.Token,
		retry:  cfg.Retry,
		policy: cfg.Policy,
		cache:  NewResponseCache(cfg.CacheTTL),
		logger: logger,
		Sleep:  time.Sleep,
		Now:    time.Now,
	}
}

// CacheSize reports the number of distinct URLs currently cached.
func (c *Client) CacheSize() int {
	return c.cache.Len()
}

// CacheStats reports lifetime cache hit and miss counts.
func (c *Client) CacheStats() (hits, misses uint64) {
	return c.cacheHits.Load(), c.cacheMisses.Load()
}

// Get fetches one URL, serving fresh cache entries without a network call.
// Failures are *TransportError for network problems and *HTTPError for
// non-2xx responses.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if payload, hit := c.cache.Get(rawURL, c.Now()); hit {
		c.cacheHits.Add(1)
		return payload, nil
	}
	c.cacheMisses.Add(1)

	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer("hackboard/internal/githubapi").Start(
			ctx,
			"githubapi.client.get",
			trace.WithAttributes(
				attribute.String("http.url", rawURL),
				attribute.Int("github.max_attempts", c.retry.MaxAttempts),
			),
		)
		defer span.End()
	}

	payload, err := c.fetch(ctx, rawURL, span)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	c.cache.Put(rawURL, payload, c.Now())
	if span != nil {
		span.SetStatus(codes.Ok, "request completed")
	}
	return payload, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string, span trace.Span) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &TransportError{URL: rawURL, Err: err}
		}
		req.Header.Set("Accept", acceptHeader)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			lastErr = &TransportError{URL: rawURL, Err: err}
			if attempt == c.retry.MaxAttempts {
				return nil, lastErr
			}
			c.Sleep(backoffForAttempt(c.retry, attempt))
			continue
		}

		headers := ParseRateHeaders(resp.Header, resp.StatusCode)
		decision := c.policy.Evaluate(headers)
		if span != nil {
			span.AddEvent("attempt_completed", trace.WithAttributes(
				attribute.Int("github.attempt", attempt),
				attribute.Int("http.status_code", resp.StatusCode),
				attribute.Int("github.rate_limit_remaining", headers.Remaining),
				attribute.Bool("github.rate_limit_proceed", decision.Proceed),
				attribute.String("github.rate_limit_reason", decision.Reason),
			))
		}

		// Transient rejections are retried; the rate-limit decision supplies
		// the wait when the response advertised one. Successful responses are
		// never delayed, the policy only paces retries.
		if isTransientStatus(resp.StatusCode) {
			drainAndClose(resp)
			lastErr = &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
			if attempt == c.retry.MaxAttempts {
				return nil, lastErr
			}
			delay := decision.Delay
			if delay <= 0 {
				delay = backoffForAttempt(c.retry, attempt)
			}
			c.Sleep(delay)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drainAndClose(resp)
			httpErr := &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
			if httpErr.RateLimited() {
				c.logger.Warn(
					"github request rejected, likely rate limited",
					zap.String("url", rawURL),
					zap.Int("status", resp.StatusCode),
					zap.Int("rate_remaining", headers.Remaining),
					zap.Int64("rate_reset_unix", headers.ResetUnix),
				)
			}
			return nil, httpErr
		}

		payload, err := io.ReadAll(resp.Body)
		drainAndClose(resp)
		if err != nil {
			lastErr = &TransportError{URL: rawURL, Err: err}
			if attempt == c.retry.MaxAttempts {
				return nil, lastErr
			}
			c.Sleep(backoffForAttempt(c.retry, attempt))
			continue
		}
		return payload, nil
	}
	return nil, lastErr
}

func isTransientStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

func backoffForAttempt(retry RetryConfig, attempt int) time.Duration {
	backoff := retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
			return retry.MaxBackoff
		}
	}
	if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
		return retry.MaxBackoff
	}
	return backoff
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
