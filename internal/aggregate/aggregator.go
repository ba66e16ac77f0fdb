package aggregate

import (
	"strings"

	"github.com/hackstats/hackboard/internal/activity"
)

// Contributor is one author's rollup across an aggregation run.
type Contributor struct {
	Login      string
	AvatarURL  string
	ProfileURL string

	TotalPRs  int
	MergedPRs int
	Reviews   int

	PullRequests  []activity.Record
	ReviewRecords []activity.Record
}

// DayBucket counts pull request activity on one calendar date.
type DayBucket struct {
	Total  int
	Merged int
}

// RepoStat accumulates per-repository counters.
type RepoStat struct {
	TotalPRs     int
	MergedPRs    int
	TotalIssues  int
	ClosedIssues int
}

// Result is the output of one aggregation run. Contributors preserves
// insertion order through Order so downstream ranking stays deterministic.
type Result struct {
	TotalPRs  int
	MergedPRs int

	Contributors map[string]*Contributor
	Order        []string

	Daily     map[string]*DayBucket
	RepoStats map[string]*RepoStat
}

// IssueTotals are the run-wide issue counters produced by FoldIssues.
type IssueTotals struct {
	Total  int
	Closed int
}

// IsAutomationLogin reports whether a login belongs to an automation
// account. "copilot" does not contain "bot", so both substrings are checked.
func IsAutomationLogin(login string) bool {
	lowered := strings.ToLower(login)
	return strings.Contains(lowered, "bot") || strings.Contains(lowered, "copilot")
}

// isAutomationPR extends the login heuristic with a title check; AI-merged
// pull requests carry "copilot" in the title.
func isAutomationPR(record activity.Record) bool {
	if IsAutomationLogin(record.Login) {
		return true
	}
	return strings.Contains(strings.ToLower(record.Title), "copilot")
}

// Aggregate folds pull request records into a fresh Result. Daily buckets are
// pre-populated for every date in the window so the series has no gaps, and
// automation-authored records count toward totals, daily buckets, and
// repository stats while staying out of contributor rollups.
func Aggregate(prRecords []activity.Record, window activity.Window) *Result {
	result := &Result{
		Contributors: make(map[string]*Contributor),
		Daily:        make(map[string]*DayBucket),
		RepoStats:    make(map[string]*RepoStat),
	}
	for _, day := range window.Days() {
		result.Daily[day] = &DayBucket{}
	}

	for _, record := range prRecords {
		if record.Kind != activity.KindPullRequest {
			continue
		}
		merged := record.Merged()

		result.TotalPRs++
		if merged {
			result.MergedPRs++
		}

		if !isAutomationPR(record) {
			contributor := result.contributor(record)
			contributor.TotalPRs++
			contributor.PullRequests = append(contributor.PullRequests, record)
			if merged {
				contributor.MergedPRs++
			}
		}

		if window.Contains(record.CreatedAt) {
			result.Daily[activity.DayKey(record.CreatedAt)].Total++
		}
		// The pre-populated bucket map covers exactly the window, so key
		// presence is the window check for merge dates.
		if merged {
			if bucket, ok := result.Daily[activity.DayKey(record.ResolvedAt)]; ok {
				bucket.Merged++
			}
		}

		stat := result.repoStat(record.Repo)
		stat.TotalPRs++
		if merged {
			stat.MergedPRs++
		}
	}

	return result
}

// FoldReviews folds review records into the contributor rollups. Dismissed
// reviews are skipped; a reviewer with no authored pull requests gets a
// zero-initialized rollup. Reviews have no title, so only the login
// heuristic applies.
func (r *Result) FoldReviews(reviewRecords []activity.Record) {
	for _, record := range reviewRecords {
		if record.Kind != activity.KindReview {
			continue
		}
		if record.ReviewState == activity.ReviewDismissed {
			continue
		}
		if IsAutomationLogin(record.Login) {
			continue
		}
		contributor := r.contributor(record)
		contributor.Reviews++
		contributor.ReviewRecords = append(contributor.ReviewRecords, record)
	}
}

// FoldIssues folds issue records into the repository stats and returns the
// run-wide issue totals.
func (r *Result) FoldIssues(issueRecords []activity.Record) IssueTotals {
	var totals IssueTotals
	for _, record := range issueRecords {
		if record.Kind != activity.KindIssue {
			continue
		}
		stat := r.repoStat(record.Repo)
		stat.TotalIssues++
		totals.Total++
		if record.State == activity.StateClosed {
			stat.ClosedIssues++
			totals.Closed++
		}
	}
	return totals
}

// ParticipantCount is the number of non-automation contributors seen.
func (r *Result) ParticipantCount() int {
	return len(r.Contributors)
}

func (r *Result) contributor(record activity.Record) *Contributor {
	if existing, ok := r.Contributors[record.Login]; ok {
		return existing
	}
	created := &Contributor{
		Login:      record.Login,
		AvatarURL:  record.AvatarURL,
		ProfileURL: record.ProfileURL,
	}
	r.Contributors[record.Login] = created
	r.Order = append(r.Order, record.Login)
	return created
}

func (r *Result) repoStat(repoID string) *RepoStat {
	if existing, ok := r.RepoStats[repoID]; ok {
		return existing
	}
	created := &RepoStat{}
	r.RepoStats[repoID] = created
	return created
}
