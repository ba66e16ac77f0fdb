package githubapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestDataClient(t *testing.T, server *httptest.Server) *DataClient {
	t.Helper()

	client := NewClient(server.Client(), ClientConfig{})
	client.Sleep = func(time.Duration) {}
	dataClient, err := NewDataClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewDataClient failed: %v", err)
	}
	return dataClient
}

func TestFetchPullRequestPageURLShape(t *testing.T) {
	t.Parallel()

	var captured *url.URL
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL
		_, _ = w.Write([]byte(`[
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
				"title": "WIP",
				"state": "open",
				"user": {"login": "bob"},
				"created_at": "2024-10-04T10:00:00Z",
				"merged_at": null,
				"closed_at": null
			}
		]`))
	}))
	defer server.Close()

	dataClient := newTestDataClient(t, server)
	items, err := dataClient.FetchPullRequestPage(context.Background(), "acme", "widgets", 2, 100)
	if err != nil {
		t.Fatalf("FetchPullRequestPage failed: %v", err)
	}

	if captured.Path != "/repos/acme/widgets/pulls" {
		t.Fatalf("path = %q", captured.Path)
	}
	query := captured.Query()
	for key, want := range map[string]string{
		"state":     "all",
		"sort":      "created",
		"direction": "desc",
		"per_page":  "100",
		"page":      "2",
	} {
		if got := query.Get(key); got != want {
			t.Fatalf("query %s = %q, want %q", key, got, want)
		}
	}

	if len(items) != 2 {
		t.Fatalf("items len = %d, want 2", len(items))
	}
	merged := items[0]
	if merged.Login != "alice" || merged.Number != 17 {
		t.Fatalf("merged item = %+v", merged)
	}
	if merged.MergedAt.IsZero() {
		t.Fatalf("merged item has zero merged-at")
	}
	if merged.AvatarURL != "https://a.example/alice" || merged.ProfileURL != "https://gh.example/alice" {
		t.Fatalf("merged item urls = %q %q", merged.AvatarURL, merged.ProfileURL)
	}
	if open := items[1]; !open.MergedAt.IsZero() {
		t.Fatalf("open item has a merge timestamp: %+v", open)
	}
}

func TestFetchIssuePageFlagsPullRequests(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
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
				"pull_request": {"url": "https://api.github.com/repos/acme/widgets/pulls/6"}
			}
		]`))
	}))
	defer server.Close()

	dataClient := newTestDataClient(t, server)
	items, err := dataClient.FetchIssuePage(context.Background(), "acme", "widgets", 1, 100)
	if err != nil {
		t.Fatalf("FetchIssuePage failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("items len = %d, want 2", len(items))
	}
	if items[0].IsPullRequest {
		t.Fatalf("plain issue flagged as pull request")
	}
	if items[0].ClosedAt.IsZero() {
		t.Fatalf("closed issue has zero closed-at")
	}
	if !items[1].IsPullRequest {
		t.Fatalf("pull request not flagged in issue listing")
	}
}

func TestFetchReviewPageURLShape(t *testing.T) {
	t.Parallel()

	var captured *url.URL
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL
		_, _ = w.Write([]byte(`[
			{"id": 31, "user": {"login": "erin"}, "state": "APPROVED", "submitted_at": "2024-10-07T12:00:00Z"},
			{"id": 32, "user": {"login": "frank"}, "state": "DISMISSED", "submitted_at": "2024-10-07T13:00:00Z"}
		]`))
	}))
	defer server.Close()

	dataClient := newTestDataClient(t, server)
	items, err := dataClient.FetchReviewPage(context.Background(), "acme", "widgets", 17, 1, 100)
	if err != nil {
		t.Fatalf("FetchReviewPage failed: %v", err)
	}

	if captured.Path != "/repos/acme/widgets/pulls/17/reviews" {
		t.Fatalf("path = %q", captured.Path)
	}
	if len(items) != 2 {
		t.Fatalf("items len = %d, want 2", len(items))
	}
	if items[0].State != "APPROVED" || items[0].Login != "erin" {
		t.Fatalf("first review = %+v", items[0])
	}
}

func TestFetchReviewPageRejectsBadPullNumber(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dataClient := newTestDataClient(t, server)
	if _, err := dataClient.FetchReviewPage(context.Background(), "acme", "widgets", 0, 1, 100); err == nil {
		t.Fatalf("FetchReviewPage accepted pull number 0")
	}
}

func TestFetchOrgRepoPage(t *testing.T) {
	t.Parallel()

	var captured *url.URL
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL
		_, _ = w.Write([]byte(`[
			{"name": "widgets", "full_name": "acme/widgets", "archived": false, "fork": false},
			{"name": "gadgets", "full_name": "acme/gadgets", "archived": true, "fork": false}
		]`))
	}))
	defer server.Close()

	dataClient := newTestDataClient(t, server)
	repos, err := dataClient.FetchOrgRepoPage(context.Background(), "acme", 1, 100)
	if err != nil {
		t.Fatalf("FetchOrgRepoPage failed: %v", err)
	}

	if captured.Path != "/orgs/acme/repos" {
		t.Fatalf("path = %q", captured.Path)
	}
	if got := captured.Query().Get("type"); got != "all" {
		t.Fatalf("type query = %q, want all", got)
	}
	if len(repos) != 2 {
		t.Fatalf("repos len = %d, want 2", len(repos))
	}
	if repos[0].FullName != "acme/widgets" {
		t.Fatalf("first repo = %+v", repos[0])
	}
	if !repos[1].Archived {
		t.Fatalf("archived flag lost: %+v", repos[1])
	}
}

func TestNewDataClientRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewDataClient("https://api.github.com/", nil); err == nil {
		t.Fatalf("NewDataClient accepted nil client")
	}
}

func TestNewDataClientRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, ClientConfig{})
	if _, err := NewDataClient("not a url", client); err == nil {
		t.Fatalf("NewDataClient accepted malformed base url")
	}
}
