package collect

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrNoRepositories indicates neither the explicit list nor organization
// resolution produced any repository.
var ErrNoRepositories = errors.New("no repositories could be resolved")

// RepoInfo is one resolved repository together with the listing metadata
// worth carrying into the snapshot. Explicitly configured repositories have
// only their identifier; organization-resolved ones keep the listing flags.
type RepoInfo struct {
	FullName string
	Name     string
	Archived bool
	Fork     bool
}

// RepoNames flattens resolved repositories to their owner/name identifiers,
// preserving order.
func RepoNames(repos []RepoInfo) []string {
	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.FullName)
	}
	return names
}

// Resolver expands an organization name into repository identifiers and
// merges them with an explicitly configured list.
type Resolver struct {
	client   PageClient
	logger   *zap.Logger
	pageSize int
	maxPages int
}

// NewResolver creates an organization repository resolver.
func NewResolver(client PageClient, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:   client,
		logger:   logger,
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
	}
}

// Resolve returns the deduplicated union of the explicit repository list and
// the organization's repositories, explicit entries first. Organization
// resolution failure falls back to the explicit list; only an empty final
// set is an error.
func (r *Resolver) Resolve(ctx context.Context, explicit []string, org string) ([]RepoInfo, error) {
	var resolved []RepoInfo
	seen := make(map[string]struct{})

	appendRepo := func(info RepoInfo) {
		info.FullName = strings.TrimSpace(info.FullName)
		if info.FullName == "" {
			return
		}
		if info.Name == "" {
			if idx := strings.LastIndex(info.FullName, "/"); idx >= 0 {
				info.Name = info.FullName[idx+1:]
			}
		}
		if _, dup := seen[info.FullName]; dup {
			return
		}
		seen[info.FullName] = struct{}{}
		resolved = append(resolved, info)
	}

	for _, repoID := range explicit {
		appendRepo(RepoInfo{FullName: repoID})
	}

	if trimmedOrg := strings.TrimSpace(org); trimmedOrg != "" {
		orgRepos, err := r.listOrgRepos(ctx, trimmedOrg)
		if err != nil {
			r.logger.Warn(
				"organization resolution failed, falling back to explicit repository list",
				zap.String("org", trimmedOrg),
				zap.Int("explicit_repos", len(resolved)),
				zap.Error(err),
			)
		}
		for _, repo := range orgRepos {
			appendRepo(repo)
		}
	}

	if len(resolved) == 0 {
		return nil, ErrNoRepositories
	}
	return resolved, nil
}

// listOrgRepos walks the organization listing. A page failure returns the
// repositories collected so far together with the error.
func (r *Resolver) listOrgRepos(ctx context.Context, org string) ([]RepoInfo, error) {
	var repos []RepoInfo
	for page := 1; page <= r.maxPages; page++ {
		items, err := r.client.FetchOrgRepoPage(ctx, org, page, r.pageSize)
		if err != nil {
			return repos, err
		}
		if len(items) == 0 {
			return repos, nil
		}
		for _, item := range items {
			info := RepoInfo{
				FullName: item.FullName,
				Name:     item.Name,
				Archived: item.Archived,
				Fork:     item.Fork,
			}
			if info.FullName == "" {
				info.FullName = org + "/" + item.Name
			}
			repos = append(repos, info)
		}
		if len(items) < r.pageSize {
			return repos, nil
		}
	}
	return repos, nil
}
