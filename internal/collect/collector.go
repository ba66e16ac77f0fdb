package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackstats/hackboard/internal/activity"
	"github.com/hackstats/hackboard/internal/githubapi"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is the listing page size requested from GitHub.
	DefaultPageSize = 100
	// DefaultMaxPages caps pagination as runaway protection.
	DefaultMaxPages = 20
)

// PageClient fetches single listing pages from the GitHub API.
type PageClient interface {
	FetchPullRequestPage(ctx context.Context, owner, repo string, page, perPage int) ([]githubapi.PullRequestItem, error)
	FetchIssuePage(ctx context.Context, owner, repo string, page, perPage int) ([]githubapi.IssueItem, error)
	FetchReviewPage(ctx context.Context, owner, repo string, pullNumber, page, perPage int) ([]githubapi.ReviewItem, error)
	FetchOrgRepoPage(ctx context.Context, org string, page, perPage int) ([]githubapi.OrgRepo, error)
}

// Collector walks paginated listing endpoints for one repository and returns
// the records relevant to a window.
type Collector struct {
	client   PageClient
	logger   *zap.Logger
	pageSize int
	maxPages int
}

// NewCollector creates a collector over a page client.
func NewCollector(client PageClient, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		client:   client,
		logger:   logger,
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
	}
}

// CollectPullRequests collects pull requests for one repository whose
// creation or merge date falls inside the window. Pages arrive in descending
// creation order, so the first record created before the window start ends
// collection. A page fetch failure returns the records accumulated so far
// together with the error; partial results stay usable.
func (c *Collector) CollectPullRequests(ctx context.Context, owner, repo string, window activity.Window) ([]activity.Record, error) {
	repoID := owner + "/" + repo
	var records []activity.Record

	for page := 1; page <= c.maxPages; page++ {
		items, err := c.client.FetchPullRequestPage(ctx, owner, repo, page, c.pageSize)
		if err != nil {
			c.logger.Warn(
				"pull request page fetch failed, keeping partial results",
				zap.String("repo", repoID),
				zap.Int("page", page),
				zap.Error(err),
			)
			return records, fmt.Errorf("fetch pull requests page %d for %s: %w", page, repoID, err)
		}
		if len(items) == 0 {
			return records, nil
		}

		for _, item := range items {
			if item.CreatedAt.Before(window.Start) {
				// Descending creation order: nothing later can be relevant.
				return records, nil
			}
			record := pullRequestRecord(item, repoID)
			if !window.Contains(record.CreatedAt) && !window.Contains(record.ResolvedAt) {
				continue
			}
			records = append(records, record)
		}
	}

	c.logger.Warn("pull request pagination hit page ceiling", zap.String("repo", repoID), zap.Int("max_pages", c.maxPages))
	return records, nil
}

// CollectIssues collects issues for one repository whose creation or close
// date falls inside the window. GitHub's issue listing conflates pull
// requests with issues; those records are dropped here.
func (c *Collector) CollectIssues(ctx context.Context, owner, repo string, window activity.Window) ([]activity.Record, error) {
	repoID := owner + "/" + repo
	var records []activity.Record

	for page := 1; page <= c.maxPages; page++ {
		items, err := c.client.FetchIssuePage(ctx, owner, repo, page, c.pageSize)
		if err != nil {
			c.logger.Warn(
				"issue page fetch failed, keeping partial results",
				zap.String("repo", repoID),
				zap.Int("page", page),
				zap.Error(err),
			)
			return records, fmt.Errorf("fetch issues page %d for %s: %w", page, repoID, err)
		}
		if len(items) == 0 {
			return records, nil
		}

		for _, item := range items {
			if item.CreatedAt.Before(window.Start) {
				return records, nil
			}
			if item.IsPullRequest {
				continue
			}
			record := issueRecord(item, repoID)
			if !window.Contains(record.CreatedAt) && !window.Contains(record.ResolvedAt) {
				continue
			}
			records = append(records, record)
		}
	}

	c.logger.Warn("issue pagination hit page ceiling", zap.String("repo", repoID), zap.Int("max_pages", c.maxPages))
	return records, nil
}

// CollectReviews collects reviews submitted inside the window for the given
// pull request numbers of one repository. Review listings are not ordered by
// submission date, so there is no early termination; a failed pull request's
// reviews are skipped without aborting the rest.
func (c *Collector) CollectReviews(ctx context.Context, owner, repo string, pullNumbers []int, window activity.Window) ([]activity.Record, error) {
	repoID := owner + "/" + repo
	var records []activity.Record
	var collectErr error

	for _, pullNumber := range pullNumbers {
		reviews, err := c.collectPullReviews(ctx, owner, repo, pullNumber, window)
		if err != nil {
			c.logger.Warn(
				"review fetch failed for pull request",
				zap.String("repo", repoID),
				zap.Int("pull_number", pullNumber),
				zap.Error(err),
			)
			collectErr = errors.Join(collectErr, err)
			continue
		}
		records = append(records, reviews...)
	}
	return records, collectErr
}

func (c *Collector) collectPullReviews(ctx context.Context, owner, repo string, pullNumber int, window activity.Window) ([]activity.Record, error) {
	repoID := owner + "/" + repo
	var records []activity.Record

	for page := 1; page <= c.maxPages; page++ {
		items, err := c.client.FetchReviewPage(ctx, owner, repo, pullNumber, page, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch reviews page %d for %s#%d: %w", page, repoID, pullNumber, err)
		}
		if len(items) == 0 {
			return records, nil
		}

		for _, item := range items {
			record := reviewRecord(item, repoID, pullNumber)
			if !window.Contains(record.CreatedAt) {
				continue
			}
			records = append(records, record)
		}

		if len(items) < c.pageSize {
			return records, nil
		}
	}
	return records, nil
}

func pullRequestRecord(item githubapi.PullRequestItem, repoID string) activity.Record {
	state := item.State
	if !item.MergedAt.IsZero() {
		state = activity.StateMerged
	}
	return activity.Record{
		Kind:       activity.KindPullRequest,
		ID:         item.ID,
		Number:     item.Number,
		Login:      item.Login,
		AvatarURL:  item.AvatarURL,
		ProfileURL: item.ProfileURL,
		Title:      item.Title,
		Repo:       repoID,
		CreatedAt:  item.CreatedAt,
		ResolvedAt: item.MergedAt,
		State:      state,
	}
}

func issueRecord(item githubapi.IssueItem, repoID string) activity.Record {
	return activity.Record{
		Kind:       activity.KindIssue,
		ID:         item.ID,
		Number:     item.Number,
		Login:      item.Login,
		AvatarURL:  item.AvatarURL,
		ProfileURL: item.ProfileURL,
		Title:      item.Title,
		Repo:       repoID,
		CreatedAt:  item.CreatedAt,
		ResolvedAt: item.ClosedAt,
		State:      item.State,
	}
}

func reviewRecord(item githubapi.ReviewItem, repoID string, pullNumber int) activity.Record {
	return activity.Record{
		Kind:        activity.KindReview,
		ID:          item.ID,
		Number:      pullNumber,
		Login:       item.Login,
		AvatarURL:   item.AvatarURL,
		ProfileURL:  item.ProfileURL,
		Repo:        repoID,
		CreatedAt:   item.SubmittedAt,
		ResolvedAt:  item.SubmittedAt,
		ReviewState: item.State,
	}
}

// SplitRepo splits an "owner/name" identifier.
func SplitRepo(repoID string) (owner, name string, err error) {
	parts := strings.SplitN(strings.TrimSpace(repoID), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository identifier %q is not owner/name", repoID)
	}
	return parts[0], parts[1], nil
}
