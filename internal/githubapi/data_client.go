package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.github.com/"

// PullRequestItem is one pull request summary from a listing page. MergedAt
// is the only resolution timestamp kept: a closed-unmerged pull request is
// already carried by State, and resolution keys on the merge date alone.
type PullRequestItem struct {
	ID         int64
	Number     int
	Title      string
	State      string
	Login      string
	AvatarURL  string
	ProfileURL string
	CreatedAt  time.Time
	MergedAt   time.Time
}

// IssueItem is one issue summary from a listing page. GitHub's issue listing
// conflates pull requests with issues; IsPullRequest marks the former.
type IssueItem struct {
	ID            int64
	Number        int
	Title         string
	State         string
	Login         string
	AvatarURL     string
	ProfileURL    string
	CreatedAt     time.Time
	ClosedAt      time.Time
	IsPullRequest bool
}

// ReviewItem is one pull request review submission.
type ReviewItem struct {
	ID          int64
	Login       string
	AvatarURL   string
	ProfileURL  string
	State       string
	SubmittedAt time.Time
}

// OrgRepo is one repository from an organization listing page.
type OrgRepo struct {
	Name     string
	FullName string
	Archived bool
	Fork     bool
}

// DataClient builds page URLs for GitHub listing endpoints and decodes the
// responses fetched through the caching client.
type DataClient struct {
	baseURL *url.URL
	client  *Client
}

// NewDataClient creates a typed data client over the caching fetch client.
func NewDataClient(baseURL string, client *Client) (*DataClient, error) {
	if client == nil {
		return nil, fmt.Errorf("fetch client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL: parsed,
		client:  client,
	}, nil
}

// FetchPullRequestPage fetches one page of pull requests for a repository,
// all states, sorted by descending creation date.
func (c *DataClient) FetchPullRequestPage(ctx context.Context, owner, repo string, page, perPage int) ([]PullRequestItem, error) {
	reqURL, err := c.listingURL(owner, repo, page, perPage, "pulls")
	if err != nil {
		return nil, err
	}

	var payload []pullRequestPayload
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}

	items := make([]PullRequestItem, 0, len(payload))
	for _, pr := range payload {
		item := PullRequestItem{
			ID:        pr.ID,
			Number:    pr.Number,
			Title:     pr.Title,
			State:     pr.State,
			CreatedAt: parseRFC3339(pr.CreatedAt),
			MergedAt:  parseNullableRFC3339(pr.MergedAt),
		}
		if pr.User != nil {
			item.Login = pr.User.Login
			item.AvatarURL = pr.User.AvatarURL
			item.ProfileURL = pr.User.HTMLURL
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchIssuePage fetches one page of issues for a repository, all states,
// sorted by descending creation date. Pull requests surfaced by the listing
// are flagged, not dropped; filtering is the collector's call.
func (c *DataClient) FetchIssuePage(ctx context.Context, owner, repo string, page, perPage int) ([]IssueItem, error) {
	reqURL, err := c.listingURL(owner, repo, page, perPage, "issues")
	if err != nil {
		return nil, err
	}

	var payload []issuePayload
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}

	items := make([]IssueItem, 0, len(payload))
	for _, issue := range payload {
		item := IssueItem{
			ID:            issue.ID,
			Number:        issue.Number,
			Title:         issue.Title,
			State:         issue.State,
			CreatedAt:     parseRFC3339(issue.CreatedAt),
			ClosedAt:      parseNullableRFC3339(issue.ClosedAt),
			IsPullRequest: issue.PullRequest != nil,
		}
		if issue.User != nil {
			item.Login = issue.User.Login
			item.AvatarURL = issue.User.AvatarURL
			item.ProfileURL = issue.User.HTMLURL
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchReviewPage fetches one page of reviews for a pull request.
func (c *DataClient) FetchReviewPage(ctx context.Context, owner, repo string, pullNumber, page, perPage int) ([]ReviewItem, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" || trimmedRepo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if pullNumber <= 0 {
		return nil, fmt.Errorf("pull number must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(
		reqURL.Path,
		"repos",
		url.PathEscape(trimmedOwner),
		url.PathEscape(trimmedRepo),
		"pulls",
		strconv.Itoa(pullNumber),
		"reviews",
	)
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(normalizePerPage(perPage)))
	query.Set("page", strconv.Itoa(normalizePage(page)))
	reqURL.RawQuery = query.Encode()

	var payload []reviewPayload
	if err := c.getJSON(ctx, reqURL.String(), &payload); err != nil {
		return nil, err
	}

	items := make([]ReviewItem, 0, len(payload))
	for _, review := range payload {
		item := ReviewItem{
			ID:          review.ID,
			State:       review.State,
			SubmittedAt: parseNullableRFC3339(review.SubmittedAt),
		}
		if review.User != nil {
			item.Login = review.User.Login
			item.AvatarURL = review.User.AvatarURL
			item.ProfileURL = review.User.HTMLURL
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchOrgRepoPage fetches one page of an organization's repository listing.
func (c *DataClient) FetchOrgRepoPage(ctx context.Context, org string, page, perPage int) ([]OrgRepo, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return nil, fmt.Errorf("organization is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "orgs", url.PathEscape(trimmedOrg), "repos")
	query := reqURL.Query()
	query.Set("type", "all")
	query.Set("per_page", strconv.Itoa(normalizePerPage(perPage)))
	query.Set("page", strconv.Itoa(normalizePage(page)))
	reqURL.RawQuery = query.Encode()

	var payload []orgRepoPayload
	if err := c.getJSON(ctx, reqURL.String(), &payload); err != nil {
		return nil, err
	}

	repos := make([]OrgRepo, 0, len(payload))
	for _, repo := range payload {
		repos = append(repos, OrgRepo(repo))
	}
	return repos, nil
}

func (c *DataClient) listingURL(owner, repo string, page, perPage int, resource string) (string, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" || trimmedRepo == "" {
		return "", fmt.Errorf("owner and repo are required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), resource)
	query := reqURL.Query()
	query.Set("state", "all")
	query.Set("sort", "created")
	query.Set("direction", "desc")
	query.Set("per_page", strconv.Itoa(normalizePerPage(perPage)))
	query.Set("page", strconv.Itoa(normalizePage(page)))
	reqURL.RawQuery = query.Encode()
	return reqURL.String(), nil
}

func (c *DataClient) getJSON(ctx context.Context, rawURL string, target any) error {
	payload, err := c.client.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func normalizePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

func normalizePerPage(perPage int) int {
	if perPage <= 0 || perPage > 100 {
		return 100
	}
	return perPage
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullableRFC3339(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	return parseRFC3339(*raw)
}

type pullRequestPayload struct {
	ID        int64        `json:"id"`
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	State     string       `json:"state"`
	User      *userPayload `json:"user"`
	CreatedAt string       `json:"created_at"`
	MergedAt  *string      `json:"merged_at"`
}

type issuePayload struct {
	ID          int64            `json:"id"`
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	State       string           `json:"state"`
	User        *userPayload     `json:"user"`
	CreatedAt   string           `json:"created_at"`
	ClosedAt    *string          `json:"closed_at"`
	PullRequest *json.RawMessage `json:"pull_request"`
}

type reviewPayload struct {
	ID          int64        `json:"id"`
	User        *userPayload `json:"user"`
	State       string       `json:"state"`
	SubmittedAt *string      `json:"submitted_at"`
}

type orgRepoPayload struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Archived bool   `json:"archived"`
	Fork     bool   `json:"fork"`
}

type userPayload struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}
