package snapshot

import (
	"time"

	"github.com/hackstats/hackboard/internal/activity"
	"github.com/hackstats/hackboard/internal/aggregate"
)

// Snapshot is the persisted output of one aggregation run for an event. It is
// written as a whole after each run and read verbatim by the presentation
// layer without re-aggregating.
type Snapshot struct {
	Event        string    `json:"event"`
	Description  string    `json:"description,omitempty"`
	Repositories []string  `json:"repositories"`
	Stats        Stats     `json:"stats"`
	LastUpdated  time.Time `json:"lastUpdated"`
	Error        string    `json:"error,omitempty"`
}

// Stats mirrors the aggregation output shape.
type Stats struct {
	TotalPRs          int                   `json:"totalPRs"`
	MergedPRs         int                   `json:"mergedPRs"`
	TotalIssues       int                   `json:"totalIssues"`
	ClosedIssues      int                   `json:"closedIssues"`
	ParticipantCount  int                   `json:"participantCount"`
	DailyActivity     map[string]DayCounts  `json:"dailyActivity"`
	DailyMergedPRs    map[string]int        `json:"dailyMergedPRs"`
	RepoStats         map[string]RepoCounts `json:"repoStats"`
	RepoData          []RepoMeta            `json:"repoData"`
	Leaderboard       []LeaderboardEntry    `json:"leaderboard"`
	ReviewLeaderboard []LeaderboardEntry    `json:"reviewLeaderboard"`
}

// RepoMeta is one resolved repository's listing metadata.
type RepoMeta struct {
	FullName string `json:"fullName"`
	Name     string `json:"name,omitempty"`
	Archived bool   `json:"archived"`
	Fork     bool   `json:"fork"`
}

// DayCounts is one calendar date's activity.
type DayCounts struct {
	Total  int `json:"total"`
	Merged int `json:"merged"`
}

// RepoCounts is one repository's counters.
type RepoCounts struct {
	TotalPRs     int `json:"totalPRs"`
	MergedPRs    int `json:"mergedPRs"`
	TotalIssues  int `json:"totalIssues"`
	ClosedIssues int `json:"closedIssues"`
}

// LeaderboardEntry is one ranked contributor row.
type LeaderboardEntry struct {
	Login      string `json:"login"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
	Value      int    `json:"value"`
	Items      []Item `json:"items,omitempty"`
}

// Item is one underlying record shown as leaderboard detail.
type Item struct {
	Repo      string    `json:"repo"`
	Number    int       `json:"number"`
	Title     string    `json:"title,omitempty"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BuildInput carries one run's outputs into Build.
type BuildInput struct {
	Event        string
	Description  string
	Repositories []string
	// RepoData is the resolved repositories' listing metadata, persisted
	// verbatim for the presentation layer.
	RepoData []RepoMeta
	Result   *aggregate.Result
	Issues   aggregate.IssueTotals
	// LeaderboardSize caps both leaderboards; non-positive means no cap.
	LeaderboardSize int
	// ShowDetails includes per-entry record lists in the leaderboards.
	ShowDetails bool
	Now         time.Time
}

// Build converts an aggregation result into a snapshot.
func Build(input BuildInput) Snapshot {
	result := input.Result
	stats := Stats{
		TotalPRs:         result.TotalPRs,
		MergedPRs:        result.MergedPRs,
		TotalIssues:      input.Issues.Total,
		ClosedIssues:     input.Issues.Closed,
		ParticipantCount: result.ParticipantCount(),
		DailyActivity:    make(map[string]DayCounts, len(result.Daily)),
		DailyMergedPRs:   make(map[string]int, len(result.Daily)),
		RepoStats:        make(map[string]RepoCounts, len(result.RepoStats)),
		RepoData:         input.RepoData,
	}

	for date, bucket := range result.Daily {
		stats.DailyActivity[date] = DayCounts{Total: bucket.Total, Merged: bucket.Merged}
		stats.DailyMergedPRs[date] = bucket.Merged
	}
	for repoID, stat := range result.RepoStats {
		stats.RepoStats[repoID] = RepoCounts{
			TotalPRs:     stat.TotalPRs,
			MergedPRs:    stat.MergedPRs,
			TotalIssues:  stat.TotalIssues,
			ClosedIssues: stat.ClosedIssues,
		}
	}

	stats.Leaderboard = leaderboardEntries(result.BuildLeaderboard(aggregate.MetricMergedPRs, input.LeaderboardSize), input.ShowDetails)
	stats.ReviewLeaderboard = leaderboardEntries(result.BuildLeaderboard(aggregate.MetricReviews, input.LeaderboardSize), input.ShowDetails)

	return Snapshot{
		Event:        input.Event,
		Description:  input.Description,
		Repositories: input.Repositories,
		Stats:        stats,
		LastUpdated:  input.Now.UTC(),
	}
}

// BuildError produces the snapshot written when a run fails outright, so no
// stale normal output is left behind.
func BuildError(event string, runErr error, now time.Time) Snapshot {
	return Snapshot{
		Event:       event,
		LastUpdated: now.UTC(),
		Error:       runErr.Error(),
	}
}

func leaderboardEntries(board []aggregate.Entry, showDetails bool) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(board))
	for _, entry := range board {
		view := LeaderboardEntry{
			Login:      entry.Login,
			AvatarURL:  entry.AvatarURL,
			ProfileURL: entry.ProfileURL,
			Value:      entry.Value,
		}
		if showDetails {
			view.Items = make([]Item, 0, len(entry.Records))
			for _, record := range entry.Records {
				state := record.State
				if record.Kind == activity.KindReview {
					state = record.ReviewState
				}
				view.Items = append(view.Items, Item{
					Repo:      record.Repo,
					Number:    record.Number,
					Title:     record.Title,
					State:     state,
					CreatedAt: record.CreatedAt,
				})
			}
		}
		entries = append(entries, view)
	}
	return entries
}
