package aggregate

import (
	"sort"

	"github.com/hackstats/hackboard/internal/activity"
)

// Metric selects which contributor counter a leaderboard ranks by.
type Metric string

const (
	// MetricMergedPRs ranks contributors by merged pull request count.
	MetricMergedPRs Metric = "merged_prs"
	// MetricReviews ranks contributors by submitted review count.
	MetricReviews Metric = "reviews"
)

// Entry is one ranked leaderboard row.
type Entry struct {
	Login      string
	AvatarURL  string
	ProfileURL string
	Value      int
	Records    []activity.Record
}

// BuildLeaderboard ranks contributors by a metric. Contributors with a zero
// metric value are dropped, ties break on ascending login so output does not
// depend on fetch completion order, and the result is truncated to limit
// entries (non-positive limit means no truncation).
func (r *Result) BuildLeaderboard(metric Metric, limit int) []Entry {
	entries := make([]Entry, 0, len(r.Order))
	for _, login := range r.Order {
		contributor := r.Contributors[login]
		value := metric.value(contributor)
		if value <= 0 {
			continue
		}
		entries = append(entries, Entry{
			Login:      contributor.Login,
			AvatarURL:  contributor.AvatarURL,
			ProfileURL: contributor.ProfileURL,
			Value:      value,
			Records:    metric.records(contributor),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Login < entries[j].Login
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (m Metric) value(contributor *Contributor) int {
	switch m {
	case MetricReviews:
		return contributor.Reviews
	default:
		return contributor.MergedPRs
	}
}

func (m Metric) records(contributor *Contributor) []activity.Record {
	switch m {
	case MetricReviews:
		return contributor.ReviewRecords
	default:
		return contributor.PullRequests
	}
}
