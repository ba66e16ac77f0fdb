package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackstats/hackboard/internal/activity"
	"github.com/hackstats/hackboard/internal/githubapi"
)

func TestFanOutToleratesFailedRepository(t *testing.T) {
	t.Parallel()

	window := octoberWindow()
	created := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

	client := newFakePageClient()
	client.pullPages["acme/alpha"] = [][]githubapi.PullRequestItem{
		{prItem(1, "alice", created, time.Time{})},
	}
	client.pullErr["acme/beta@1"] = errors.New("boom")
	client.pullPages["acme/gamma"] = [][]githubapi.PullRequestItem{
		{prItem(2, "bob", created, created.Add(time.Hour)), prItem(3, "carol", created, time.Time{})},
	}

	fanOut := NewFanOut(NewCollector(client, nil), nil)
	records := fanOut.CollectPullRequests(context.Background(), []string{"acme/alpha", "acme/beta", "acme/gamma"}, window)

	if len(records) != 3 {
		t.Fatalf("merged records len = %d, want 3", len(records))
	}
	for _, record := range records {
		if record.Repo == "acme/beta" {
			t.Fatalf("failed repository contributed record %+v", record)
		}
	}
}

func TestFanOutPreservesRepositoryOrder(t *testing.T) {
	t.Parallel()

	window := octoberWindow()
	created := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

	client := newFakePageClient()
	client.pullPages["acme/alpha"] = [][]githubapi.PullRequestItem{{prItem(1, "alice", created, time.Time{})}}
	client.pullPages["acme/beta"] = [][]githubapi.PullRequestItem{{prItem(2, "bob", created, time.Time{})}}

	fanOut := NewFanOut(NewCollector(client, nil), nil)
	records := fanOut.CollectPullRequests(context.Background(), []string{"acme/alpha", "acme/beta"}, window)

	if len(records) != 2 {
		t.Fatalf("merged records len = %d, want 2", len(records))
	}
	if records[0].Repo != "acme/alpha" || records[1].Repo != "acme/beta" {
		t.Fatalf("merge order = %q, %q", records[0].Repo, records[1].Repo)
	}
}

func TestFanOutSkipsMalformedRepositoryID(t *testing.T) {
	t.Parallel()

	window := octoberWindow()
	created := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

	client := newFakePageClient()
	client.pullPages["acme/alpha"] = [][]githubapi.PullRequestItem{{prItem(1, "alice", created, time.Time{})}}

	fanOut := NewFanOut(NewCollector(client, nil), nil)
	records := fanOut.CollectPullRequests(context.Background(), []string{"not-a-repo", "acme/alpha"}, window)

	if len(records) != 1 {
		t.Fatalf("merged records len = %d, want 1", len(records))
	}
	if records[0].Repo != "acme/alpha" {
		t.Fatalf("record repo = %q", records[0].Repo)
	}
}

func TestFanOutCollectReviewsGroupsByRepository(t *testing.T) {
	t.Parallel()

	window := octoberWindow()
	submitted := time.Date(2024, 10, 12, 15, 0, 0, 0, time.UTC)

	client := newFakePageClient()
	client.reviewPages["acme/alpha#1"] = [][]githubapi.ReviewItem{
		{{ID: 100, Login: "erin", State: "APPROVED", SubmittedAt: submitted}},
	}
	client.reviewPages["acme/beta#7"] = [][]githubapi.ReviewItem{
		{{ID: 101, Login: "frank", State: "COMMENTED", SubmittedAt: submitted}},
	}

	prRecords := []activity.Record{
		{Kind: activity.KindPullRequest, Repo: "acme/alpha", Number: 1},
		{Kind: activity.KindPullRequest, Repo: "acme/beta", Number: 7},
		{Kind: activity.KindIssue, Repo: "acme/beta", Number: 8},
	}

	fanOut := NewFanOut(NewCollector(client, nil), nil)
	records := fanOut.CollectReviews(context.Background(), prRecords, window)

	if len(records) != 2 {
		t.Fatalf("review records len = %d, want 2", len(records))
	}
	if calls := client.calls(client.reviewCalls, "acme/beta#8"); calls != 0 {
		t.Fatalf("issue number produced %d review fetches", calls)
	}
}
