package collect

import (
	"context"
	"sort"
	"sync"

	"github.com/hackstats/hackboard/internal/activity"
	"go.uber.org/zap"
)

// Outcome is one repository's collection result inside a fan-out round.
type Outcome struct {
	Repo    string
	Records []activity.Record
	Err     error
}

// FanOut dispatches per-repository collection concurrently. Repositories are
// independent: a failing branch is logged and skipped, siblings are never
// cancelled, and the round always waits for all branches.
type FanOut struct {
	collector *Collector
	logger    *zap.Logger

	// OnFailure, when set, observes every failed repository branch.
	OnFailure func(repo string, err error)
}

// NewFanOut creates a fan-out dispatcher over a collector.
func NewFanOut(collector *Collector, logger *zap.Logger) *FanOut {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		collector: collector,
		logger:    logger,
	}
}

// CollectPullRequests fans out pull request collection across repositories
// and merges the successful results.
func (f *FanOut) CollectPullRequests(ctx context.Context, repos []string, window activity.Window) []activity.Record {
	return f.merge(f.run(repos, func(owner, name string) ([]activity.Record, error) {
		return f.collector.CollectPullRequests(ctx, owner, name, window)
	}))
}

// CollectIssues fans out issue collection across repositories and merges the
// successful results.
func (f *FanOut) CollectIssues(ctx context.Context, repos []string, window activity.Window) []activity.Record {
	return f.merge(f.run(repos, func(owner, name string) ([]activity.Record, error) {
		return f.collector.CollectIssues(ctx, owner, name, window)
	}))
}

// CollectReviews fans out review collection per repository for the pull
// requests already collected there.
func (f *FanOut) CollectReviews(ctx context.Context, prRecords []activity.Record, window activity.Window) []activity.Record {
	pullsByRepo := make(map[string][]int)
	for _, record := range prRecords {
		if record.Kind != activity.KindPullRequest {
			continue
		}
		pullsByRepo[record.Repo] = append(pullsByRepo[record.Repo], record.Number)
	}

	repos := make([]string, 0, len(pullsByRepo))
	for repo := range pullsByRepo {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	return f.merge(f.run(repos, func(owner, name string) ([]activity.Record, error) {
		return f.collector.CollectReviews(ctx, owner, name, pullsByRepo[owner+"/"+name], window)
	}))
}

func (f *FanOut) run(repos []string, collectFn func(owner, name string) ([]activity.Record, error)) []Outcome {
	outcomes := make([]Outcome, len(repos))

	var wg sync.WaitGroup
	for i, repoID := range repos {
		wg.Add(1)
		go func() {
			defer wg.Done()

			owner, name, err := SplitRepo(repoID)
			if err != nil {
				outcomes[i] = Outcome{Repo: repoID, Err: err}
				return
			}
			records, err := collectFn(owner, name)
			outcomes[i] = Outcome{Repo: repoID, Records: records, Err: err}
		}()
	}
	wg.Wait()

	return outcomes
}

// merge concatenates records from all outcomes. A branch that failed still
// contributes whatever it accumulated before the failure; the failure itself
// is only logged.
func (f *FanOut) merge(outcomes []Outcome) []activity.Record {
	var merged []activity.Record
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			f.logger.Warn(
				"repository collection failed",
				zap.String("repo", outcome.Repo),
				zap.Int("partial_records", len(outcome.Records)),
				zap.Error(outcome.Err),
			)
			if f.OnFailure != nil {
				f.OnFailure(outcome.Repo, outcome.Err)
			}
		}
		merged = append(merged, outcome.Records...)
	}
	return merged
}
