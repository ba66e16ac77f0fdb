package health

import (
	"context"
	"sync"
	"time"

	"github.com/hackstats/hackboard/internal/githubapi"
	"go.uber.org/zap"
)

// RateLimitChecker probes GitHub API reachability.
type RateLimitChecker interface {
	Check(ctx context.Context) (githubapi.RateLimitStatus, error)
}

// GitHubProber tracks GitHub reachability with hysteresis: a streak of
// consecutive failures marks the API unhealthy, and a streak of consecutive
// successes marks it healthy again. Single flaky probes never flip the state.
type GitHubProber struct {
	checker          RateLimitChecker
	logger           *zap.Logger
	failureThreshold int
	recoverThreshold int

	mu            sync.Mutex
	healthy       bool
	failureStreak int
	successStreak int
	lastStatus    githubapi.RateLimitStatus
}

// NewGitHubProber creates a prober. It starts healthy; thresholds below one
// are raised to one.
func NewGitHubProber(checker RateLimitChecker, logger *zap.Logger, failureThreshold, recoverThreshold int) *GitHubProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if recoverThreshold < 1 {
		recoverThreshold = 1
	}
	return &GitHubProber{
		checker:          checker,
		logger:           logger,
		failureThreshold: failureThreshold,
		recoverThreshold: recoverThreshold,
		healthy:          true,
	}
}

// Probe performs one reachability check and updates the streaks.
func (p *GitHubProber) Probe(ctx context.Context) {
	status, err := p.checker.Check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.successStreak = 0
		p.failureStreak++
		if p.healthy && p.failureStreak >= p.failureThreshold {
			p.healthy = false
			p.logger.Warn(
				"github marked unhealthy",
				zap.Int("failure_streak", p.failureStreak),
				zap.Error(err),
			)
		}
		return
	}

	p.lastStatus = status
	p.failureStreak = 0
	p.successStreak++
	if !p.healthy && p.successStreak >= p.recoverThreshold {
		p.healthy = true
		p.logger.Info(
			"github recovered",
			zap.Int("success_streak", p.successStreak),
			zap.Int("rate_limit_remaining", status.Remaining),
		)
	}
}

// Healthy reports the current probed state.
func (p *GitHubProber) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

// LastStatus returns the most recent successful rate limit reading.
func (p *GitHubProber) LastStatus() githubapi.RateLimitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStatus
}

// Run probes on an interval until the context is cancelled.
func (p *GitHubProber) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
