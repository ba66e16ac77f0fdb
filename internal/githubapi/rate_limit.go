package githubapi

import (
	"net/http"
	"strconv"
	"time"
)

// RateHeaders contains the parsed rate-limit state of one GitHub response.
type RateHeaders struct {
	Remaining        int
	ResetUnix        int64
	RetryAfter       time.Duration
	SecondaryLimited bool
}

// Decision is the rate-limit policy verdict for the next request.
type Decision struct {
	Proceed bool
	Delay   time.Duration
	Reason  string
}

// RateLimitPolicy decides whether requests may continue based on parsed
// rate-limit headers.
type RateLimitPolicy struct {
	// MinRemaining pauses requests once the remaining budget drops below it.
	MinRemaining int
	// ResetBuffer pads the wait past the advertised reset time.
	ResetBuffer time.Duration
	// SecondaryBackoff is the minimum pause after a secondary-limit rejection.
	SecondaryBackoff time.Duration
	// Now is injected for deterministic tests.
	Now func() time.Time
}

// ParseRateHeaders extracts rate-limit state from response headers.
func ParseRateHeaders(header http.Header, statusCode int) RateHeaders {
	parsed := RateHeaders{
		Remaining: headerInt(header, "X-RateLimit-Remaining"),
		ResetUnix: headerInt64(header, "X-RateLimit-Reset"),
	}

	if seconds := headerInt(header, "Retry-After"); seconds > 0 {
		parsed.RetryAfter = time.Duration(seconds) * time.Second
	}

	// 429 is always a secondary limit; 403 with Retry-After is the older
	// secondary-limit shape.
	if statusCode == http.StatusTooManyRequests {
		parsed.SecondaryLimited = true
	}
	if statusCode == http.StatusForbidden && parsed.RetryAfter > 0 {
		parsed.SecondaryLimited = true
	}

	return parsed
}

// Evaluate decides whether the caller may issue the next request now.
func (p RateLimitPolicy) Evaluate(headers RateHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.SecondaryLimited {
		delay := p.SecondaryBackoff
		if headers.RetryAfter > delay {
			delay = headers.RetryAfter
		}
		return Decision{Proceed: false, Delay: delay, Reason: "secondary_limit"}
	}

	if headers.Remaining >= p.MinRemaining {
		return Decision{Proceed: true, Reason: "within_budget"}
	}

	resetAt := time.Unix(headers.ResetUnix, 0)
	if !resetAt.After(now) {
		return Decision{Proceed: true, Reason: "reset_elapsed"}
	}
	return Decision{
		Proceed: false,
		Delay:   resetAt.Sub(now) + p.ResetBuffer,
		Reason:  "budget_exhausted",
	}
}

func headerInt(header http.Header, name string) int {
	parsed, err := strconv.Atoi(header.Get(name))
	if err != nil {
		return 0
	}
	return parsed
}

func headerInt64(header http.Header, name string) int64 {
	parsed, err := strconv.ParseInt(header.Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
