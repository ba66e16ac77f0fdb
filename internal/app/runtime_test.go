package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hackstats/hackboard/internal/config"
)

const (
	pullsPage = `[
		{
			"id": 9001,
			"number": 17,
			"title": "Add widget support",
			"state": "closed",
			"user": {"login": "alice", "avatar_url": "https://a.example/alice", "html_url": "https://gh.example/alice"},
			"created_at": "2024-10-05T10:00:00Z",
			"merged_at": "2024-10-06T08:30:00Z",
			"closed_at": "2024-10-06T08:30:00Z"
		},
		{
			"id": 9002,
			"number": 16,
			"title": "Bump dependencies",
			"state": "closed",
			"user": {"login": "dependabot[bot]"},
			"created_at": "2024-10-04T10:00:00Z",
			"merged_at": "2024-10-04T12:00:00Z",
			"closed_at": "2024-10-04T12:00:00Z"
		}
	]`
	issuesPage = `[
		{
			"id": 1,
			"number": 5,
			"title": "Crash on startup",
			"state": "closed",
			"user": {"login": "carol"},
			"created_at": "2024-10-02T09:00:00Z",
			"closed_at": "2024-10-03T09:00:00Z"
		},
		{
			"id": 2,
			"number": 6,
			"title": "Actually a PR",
			"state": "open",
			"user": {"login": "dave"},
			"created_at": "2024-10-02T10:00:00Z",
			"closed_at": null,
			"pull_request": {"url": "https://example.test/pulls/6"}
		}
	]`
	reviewsPage = `[
		{"id": 31, "user": {"login": "erin"}, "state": "APPROVED", "submitted_at": "2024-10-07T12:00:00Z"}
	]`
)

func newGitHubStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	withFirstPage := func(payload string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if page := r.URL.Query().Get("page"); page != "" && page != "1" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(payload))
		}
	}

	mux.HandleFunc("/repos/acme/widgets/pulls/", withFirstPage(reviewsPage))
	mux.HandleFunc("/repos/acme/widgets/pulls", withFirstPage(pullsPage))
	mux.HandleFunc("/repos/acme/widgets/issues", withFirstPage(issuesPage))
	mux.HandleFunc("/orgs/ghost/repos", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRuntime(t *testing.T, event config.EventConfig, baseURL string) *Runtime {
	t.Helper()

	cfg := &config.Config{
		Events: []config.EventConfig{event},
		GitHub: config.GitHubConfig{
			APIBaseURL:     baseURL,
			RequestTimeout: 5 * time.Second,
			CacheTTL:       5 * time.Minute,
		},
		Retry:   config.RetryConfig{MaxAttempts: 1},
		Refresh: config.RefreshConfig{Interval: time.Hour},
	}
	runtime, err := NewRuntime(cfg, nil)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	runtime.Now = func() time.Time {
		return time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)
	}
	return runtime
}

func octoberEvent() config.EventConfig {
	return config.EventConfig{
		Name:            "hacktoberfest",
		Start:           time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 10, 31, 23, 59, 59, 0, time.UTC),
		Repos:           []string{"acme/widgets"},
		LeaderboardSize: 10,
		ShowDetails:     true,
	}
}

func TestRunEventCycleProducesSnapshot(t *testing.T) {
	t.Parallel()

	server := newGitHubStub(t)
	runtime := newTestRuntime(t, octoberEvent(), server.URL)

	if err := runtime.RunEventCycle(context.Background(), runtime.pipelines[0]); err != nil {
		t.Fatalf("RunEventCycle failed: %v", err)
	}

	snap, err := runtime.Store().Get(context.Background(), "hacktoberfest")
	if err != nil {
		t.Fatalf("snapshot not stored: %v", err)
	}
	if snap.Error != "" {
		t.Fatalf("snapshot carries error: %q", snap.Error)
	}
	if snap.Stats.TotalPRs != 2 || snap.Stats.MergedPRs != 2 {
		t.Fatalf("pr totals = %d/%d, want 2/2", snap.Stats.TotalPRs, snap.Stats.MergedPRs)
	}
	if snap.Stats.TotalIssues != 1 || snap.Stats.ClosedIssues != 1 {
		t.Fatalf("issue totals = %d/%d, want 1/1 (pull request filtered)", snap.Stats.TotalIssues, snap.Stats.ClosedIssues)
	}
	// alice plus reviewer erin; the bot login stays out.
	if snap.Stats.ParticipantCount != 2 {
		t.Fatalf("participants = %d, want 2", snap.Stats.ParticipantCount)
	}
	if len(snap.Stats.Leaderboard) != 1 || snap.Stats.Leaderboard[0].Login != "alice" {
		t.Fatalf("leaderboard = %+v", snap.Stats.Leaderboard)
	}
	if len(snap.Stats.ReviewLeaderboard) != 1 || snap.Stats.ReviewLeaderboard[0].Login != "erin" {
		t.Fatalf("review leaderboard = %+v", snap.Stats.ReviewLeaderboard)
	}
	if len(snap.Stats.DailyActivity) != 31 {
		t.Fatalf("daily series = %d days, want 31", len(snap.Stats.DailyActivity))
	}
	if snap.Stats.DailyMergedPRs["2024-10-06"] != 1 || snap.Stats.DailyMergedPRs["2024-10-04"] != 1 {
		t.Fatalf("daily merged = %v", snap.Stats.DailyMergedPRs)
	}
	if len(snap.Stats.RepoData) != 1 || snap.Stats.RepoData[0].FullName != "acme/widgets" {
		t.Fatalf("repo data = %+v", snap.Stats.RepoData)
	}

	snapshots := runtime.Snapshots()
	if len(snapshots) != 1 || snapshots[0].Event != "hacktoberfest" {
		t.Fatalf("latest snapshots = %+v", snapshots)
	}
}

func TestRunEventCycleUnresolvableReposWritesErrorState(t *testing.T) {
	t.Parallel()

	server := newGitHubStub(t)
	event := config.EventConfig{
		Name:  "ghost-sprint",
		Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC),
		Org:   "ghost",
	}
	runtime := newTestRuntime(t, event, server.URL)

	if err := runtime.RunEventCycle(context.Background(), runtime.pipelines[0]); err == nil {
		t.Fatalf("RunEventCycle succeeded with no resolvable repositories")
	}

	snap, err := runtime.Store().Get(context.Background(), "ghost-sprint")
	if err != nil {
		t.Fatalf("error snapshot not stored: %v", err)
	}
	if snap.Error == "" {
		t.Fatalf("snapshot missing error state: %+v", snap)
	}
	if snap.Stats.TotalPRs != 0 {
		t.Fatalf("error snapshot carries stale stats: %+v", snap.Stats)
	}
}

func TestRuntimeCurrentStatus(t *testing.T) {
	t.Parallel()

	server := newGitHubStub(t)
	runtime := newTestRuntime(t, octoberEvent(), server.URL)

	status := runtime.CurrentStatus(context.Background())
	if status.Ready {
		t.Fatalf("ready before refresh loop started")
	}

	runtime.setSchedulerHealthy(true)
	status = runtime.CurrentStatus(context.Background())
	if !status.Ready {
		t.Fatalf("not ready with healthy store and scheduler: %+v", status)
	}
}

func TestRuntimeHandlerServesAPI(t *testing.T) {
	t.Parallel()

	server := newGitHubStub(t)
	runtime := newTestRuntime(t, octoberEvent(), server.URL)
	if err := runtime.RunEventCycle(context.Background(), runtime.pipelines[0]); err != nil {
		t.Fatalf("RunEventCycle failed: %v", err)
	}

	handler := runtime.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/hacktoberfest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get event status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("livez status = %d", rec.Code)
	}
}
