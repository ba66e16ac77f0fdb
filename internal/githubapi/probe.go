package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
)

// RateLimitStatus is the current core API quota reported by GitHub.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitProbe checks the /rate_limit endpoint through the go-github
// client. The probe bypasses the response cache on purpose: a stale quota
// reading is worse than one extra request.
type RateLimitProbe struct {
	client *github.Client
}

// NewRateLimitProbe creates a rate-limit prober with optional API base URL
// override and bearer token.
func NewRateLimitProbe(httpClient *http.Client, apiBaseURL, token string) (*RateLimitProbe, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	trimmedBaseURL := strings.TrimSpace(apiBaseURL)
	if trimmedBaseURL != "" {
		parsedURL, err := url.Parse(trimmedBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github api base url: %w", err)
		}
		if parsedURL.Scheme == "" || parsedURL.Host == "" {
			return nil, fmt.Errorf("parse github api base url: missing scheme or host")
		}
		if !strings.HasSuffix(parsedURL.Path, "/") {
			parsedURL.Path += "/"
		}
		client.BaseURL = parsedURL
	}

	return &RateLimitProbe{client: client}, nil
}

// Check reads the current core rate-limit status.
func (p *RateLimitProbe) Check(ctx context.Context) (RateLimitStatus, error) {
	if p == nil || p.client == nil {
		return RateLimitStatus{}, fmt.Errorf("rate limit probe is not initialized")
	}

	limits, _, err := p.client.RateLimit.Get(ctx)
	if err != nil {
		return RateLimitStatus{}, fmt.Errorf("read rate limit status: %w", err)
	}
	if limits == nil || limits.Core == nil {
		return RateLimitStatus{}, fmt.Errorf("rate limit status missing core quota")
	}

	return RateLimitStatus{
		Limit:     limits.Core.Limit,
		Remaining: limits.Core.Remaining,
		ResetAt:   limits.Core.Reset.Time.UTC(),
	}, nil
}
