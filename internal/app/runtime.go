package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hackstats/hackboard/internal/activity"
	"github.com/hackstats/hackboard/internal/aggregate"
	"github.com/hackstats/hackboard/internal/collect"
	"github.com/hackstats/hackboard/internal/config"
	"github.com/hackstats/hackboard/internal/exporter"
	"github.com/hackstats/hackboard/internal/githubapi"
	"github.com/hackstats/hackboard/internal/health"
	"github.com/hackstats/hackboard/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// eventPipeline holds the per-event collection stack. The fetch client and
// its response cache live for the runtime's lifetime, so consecutive runs of
// the same event reuse fresh cached pages.
type eventPipeline struct {
	event    config.EventConfig
	client   *githubapi.Client
	resolver *collect.Resolver
	fanOut   *collect.FanOut
}

// Runtime wires configuration, the collection pipelines, the snapshot store,
// and the HTTP surface together, and drives the periodic refresh loop.
type Runtime struct {
	cfg       *config.Config
	store     snapshot.Store
	logger    *zap.Logger
	evaluator *health.StatusEvaluator
	prober    *health.GitHubProber
	registry  *prometheus.Registry
	ops       *exporter.Ops
	pipelines []*eventPipeline

	mu               sync.RWMutex
	latest           map[string]snapshot.Snapshot
	storeHealthy     bool
	schedulerHealthy bool

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRuntime creates a runtime instance.
func NewRuntime(cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	storeBackend := newStoreBackend(cfg, logger)
	registry := prometheus.NewRegistry()

	runtime := &Runtime{
		cfg:          cfg,
		store:        storeBackend,
		logger:       logger,
		evaluator:    health.NewStatusEvaluator(),
		registry:     registry,
		latest:       make(map[string]snapshot.Snapshot),
		storeHealthy: true,
		Now:          time.Now,
	}

	httpClient := &http.Client{Timeout: cfg.GitHub.RequestTimeout}
	for _, event := range cfg.Events {
		client := githubapi.NewClient(httpClient, githubapi.ClientConfig{
			Token: event.Token,
			Retry: githubapi.RetryConfig{
				MaxAttempts:    cfg.Retry.MaxAttempts,
				InitialBackoff: cfg.Retry.InitialBackoff,
				MaxBackoff:     cfg.Retry.MaxBackoff,
			},
			Policy: githubapi.RateLimitPolicy{
				MinRemaining:     cfg.RateLimit.MinRemainingThreshold,
				ResetBuffer:      cfg.RateLimit.MinResetBuffer,
				SecondaryBackoff: cfg.RateLimit.SecondaryLimitBackoff,
			},
			CacheTTL: cfg.GitHub.CacheTTL,
			Logger:   logger.With(zap.String("event", event.Name)),
		})
		dataClient, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, client)
		if err != nil {
			return nil, fmt.Errorf("build data client for event %s: %w", event.Name, err)
		}

		eventLogger := logger.With(zap.String("event", event.Name))
		collector := collect.NewCollector(dataClient, eventLogger)
		runtime.pipelines = append(runtime.pipelines, &eventPipeline{
			event:    event,
			client:   client,
			resolver: collect.NewResolver(dataClient, eventLogger),
			fanOut:   collect.NewFanOut(collector, eventLogger),
		})
	}

	runtime.ops = exporter.NewOps(registry, runtime.cacheStats)

	probe, err := githubapi.NewRateLimitProbe(httpClient, cfg.GitHub.APIBaseURL, firstToken(cfg.Events))
	if err != nil {
		return nil, fmt.Errorf("build rate limit probe: %w", err)
	}
	runtime.prober = health.NewGitHubProber(
		probe,
		logger,
		cfg.Health.GitHubFailureThreshold,
		cfg.Health.GitHubRecoverSuccessThreshold,
	)

	return runtime, nil
}

// Store exposes the snapshot store.
func (r *Runtime) Store() snapshot.Store {
	return r.store
}

// Handler returns the combined HTTP handler.
func (r *Runtime) Handler() http.Handler {
	metricsHandler := exporter.NewOpenMetricsHandler(r, r.registry)
	healthHandler := health.NewHandler(r)
	return NewHTTPHandler(r.store, metricsHandler, healthHandler)
}

// Run executes one refresh round immediately and then repeats on the
// configured interval until the context is cancelled. The GitHub prober runs
// alongside.
func (r *Runtime) Run(ctx context.Context) {
	r.setSchedulerHealthy(true)
	defer r.setSchedulerHealthy(false)

	go r.prober.Run(ctx, r.cfg.Health.GitHubProbeInterval)

	r.logger.Info(
		"starting refresh loop",
		zap.Int("event_count", len(r.pipelines)),
		zap.Duration("interval", r.cfg.Refresh.Interval),
	)

	ticker := time.NewTicker(r.cfg.Refresh.Interval)
	defer ticker.Stop()

	r.runAllEvents(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			r.runAllEvents(ctx)
		}
	}
}

func (r *Runtime) runAllEvents(ctx context.Context) {
	for _, pipeline := range r.pipelines {
		if ctx.Err() != nil {
			return
		}
		if err := r.RunEventCycle(ctx, pipeline); err != nil {
			r.logger.Error(
				"event refresh failed",
				zap.String("event", pipeline.event.Name),
				zap.Error(err),
			)
		}
	}
}

// RunEventCycle collects, aggregates, and stores one event's snapshot. A
// failed run replaces the event's snapshot with an explicit error state so
// no stale output lingers.
func (r *Runtime) RunEventCycle(ctx context.Context, pipeline *eventPipeline) error {
	event := pipeline.event
	cycleStart := time.Now()
	window := activity.NewWindow(event.Start, event.End)

	repoInfos, err := pipeline.resolver.Resolve(ctx, event.Repos, event.Org)
	if err != nil {
		runErr := fmt.Errorf("resolve repositories for %s: %w", event.Name, err)
		r.recordFailure(ctx, event.Name, runErr)
		return runErr
	}
	repos := collect.RepoNames(repoInfos)

	countingFailures := func(counter *int) func(string, error) {
		return func(string, error) {
			*counter++
			r.ops.RepoFailures.WithLabelValues(event.Name).Inc()
		}
	}

	var prFailures, issueFailures int
	pipeline.fanOut.OnFailure = countingFailures(&prFailures)
	prRecords := pipeline.fanOut.CollectPullRequests(ctx, repos, window)

	pipeline.fanOut.OnFailure = countingFailures(&issueFailures)
	issueRecords := pipeline.fanOut.CollectIssues(ctx, repos, window)

	var reviewFailures int
	pipeline.fanOut.OnFailure = countingFailures(&reviewFailures)
	reviewRecords := pipeline.fanOut.CollectReviews(ctx, prRecords, window)

	if prFailures == len(repos) && issueFailures == len(repos) &&
		len(prRecords) == 0 && len(issueRecords) == 0 {
		runErr := fmt.Errorf("all %d repository collections failed for %s", len(repos), event.Name)
		r.recordFailure(ctx, event.Name, runErr)
		return runErr
	}

	result := aggregate.Aggregate(prRecords, window)
	result.FoldReviews(reviewRecords)
	issueTotals := result.FoldIssues(issueRecords)

	snap := snapshot.Build(snapshot.BuildInput{
		Event:           event.Name,
		Description:     event.Description,
		Repositories:    repos,
		RepoData:        repoMetadata(repoInfos),
		Result:          result,
		Issues:          issueTotals,
		LeaderboardSize: event.LeaderboardSize,
		ShowDetails:     event.ShowDetails,
		Now:             r.Now(),
	})

	if err := r.store.Put(ctx, snap); err != nil {
		r.setStoreHealthy(false)
		r.ops.Runs.WithLabelValues(event.Name, "error").Inc()
		return fmt.Errorf("store snapshot for %s: %w", event.Name, err)
	}
	r.setStoreHealthy(true)
	r.setLatest(snap)

	r.ops.Runs.WithLabelValues(event.Name, "success").Inc()
	r.ops.RecordsCollected.WithLabelValues(event.Name, "pull_request").Add(float64(len(prRecords)))
	r.ops.RecordsCollected.WithLabelValues(event.Name, "issue").Add(float64(len(issueRecords)))
	r.ops.RecordsCollected.WithLabelValues(event.Name, "review").Add(float64(len(reviewRecords)))

	r.logger.Info(
		"event refresh completed",
		zap.String("event", event.Name),
		zap.Int("repos", len(repos)),
		zap.Int("pull_requests", len(prRecords)),
		zap.Int("issues", len(issueRecords)),
		zap.Int("reviews", len(reviewRecords)),
		zap.Int("participants", result.ParticipantCount()),
		zap.Int("repo_failures", prFailures+issueFailures+reviewFailures),
		zap.Duration("duration", time.Since(cycleStart)),
	)
	return nil
}

// CurrentStatus returns current health status.
func (r *Runtime) CurrentStatus(_ context.Context) health.Status {
	r.mu.RLock()
	input := health.Input{
		StoreHealthy:     r.storeHealthy,
		SchedulerHealthy: r.schedulerHealthy,
		GitHubHealthy:    r.prober.Healthy(),
	}
	r.mu.RUnlock()
	return r.evaluator.Evaluate(input)
}

// Snapshots returns the latest snapshot per event, ordered by event name.
func (r *Runtime) Snapshots() []snapshot.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]snapshot.Snapshot, 0, len(r.latest))
	for _, snap := range r.latest {
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Event < snapshots[j].Event
	})
	return snapshots
}

// Close releases the snapshot store.
func (r *Runtime) Close() error {
	return r.store.Close()
}

func (r *Runtime) recordFailure(ctx context.Context, eventName string, runErr error) {
	r.ops.Runs.WithLabelValues(eventName, "error").Inc()

	snap := snapshot.BuildError(eventName, runErr, r.Now())
	if err := r.store.Put(ctx, snap); err != nil {
		r.setStoreHealthy(false)
		r.logger.Warn("failed to store error snapshot", zap.String("event", eventName), zap.Error(err))
		return
	}
	r.setStoreHealthy(true)
	r.setLatest(snap)
}

func (r *Runtime) setLatest(snap snapshot.Snapshot) {
	r.mu.Lock()
	r.latest[snap.Event] = snap
	r.mu.Unlock()
}

func (r *Runtime) setStoreHealthy(healthy bool) {
	r.mu.Lock()
	r.storeHealthy = healthy
	r.mu.Unlock()
}

func (r *Runtime) setSchedulerHealthy(healthy bool) {
	r.mu.Lock()
	r.schedulerHealthy = healthy
	r.mu.Unlock()
}

func (r *Runtime) cacheStats() exporter.FetchCacheStats {
	var stats exporter.FetchCacheStats
	for _, pipeline := range r.pipelines {
		stats.Entries += pipeline.client.CacheSize()
		hits, misses := pipeline.client.CacheStats()
		stats.Hits += hits
		stats.Misses += misses
	}
	return stats
}

func repoMetadata(infos []collect.RepoInfo) []snapshot.RepoMeta {
	meta := make([]snapshot.RepoMeta, 0, len(infos))
	for _, info := range infos {
		meta = append(meta, snapshot.RepoMeta{
			FullName: info.FullName,
			Name:     info.Name,
			Archived: info.Archived,
			Fork:     info.Fork,
		})
	}
	return meta
}

func firstToken(events []config.EventConfig) string {
	for _, event := range events {
		if event.Token != "" {
			return event.Token
		}
	}
	return ""
}
