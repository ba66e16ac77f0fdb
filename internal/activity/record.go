package activity

import "time"

// Kind discriminates the closed set of activity record variants.
type Kind string

const (
	// KindPullRequest is a pull request record.
	KindPullRequest Kind = "pull_request"
	// KindIssue is an issue record.
	KindIssue Kind = "issue"
	// KindReview is a pull request review record.
	KindReview Kind = "review"
)

// PR and issue lifecycle states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateMerged = "merged"
)

// Review approval states as reported by the GitHub API.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
	ReviewDismissed        = "DISMISSED"
)

// Record is one activity item produced by the collector. A record belongs to
// exactly one repository and exactly one kind, and is immutable once built.
type Record struct {
	Kind   Kind
	ID     int64
	Number int

	Login      string
	AvatarURL  string
	ProfileURL string

	// Title is set for pull requests and issues only.
	Title string

	// Repo is the "owner/name" identifier attached by the collector.
	Repo string

	CreatedAt time.Time
	// ResolvedAt is merged-at for PRs, closed-at for issues, and submitted-at
	// for reviews. Zero while a PR or issue is still open.
	ResolvedAt time.Time

	// State is open/closed/merged for PRs and open/closed for issues.
	State string
	// ReviewState is set for review records only.
	ReviewState string
}

// Resolved reports whether the record reached a terminal state.
func (r Record) Resolved() bool {
	return !r.ResolvedAt.IsZero()
}

// Merged reports whether a pull request record was merged.
func (r Record) Merged() bool {
	return r.Kind == KindPullRequest && r.Resolved()
}
