package collect

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hackstats/hackboard/internal/githubapi"
)

func TestResolveMergesExplicitAndOrganization(t *testing.T) {
	t.Parallel()

	client := newFakePageClient()
	client.orgPages = [][]githubapi.OrgRepo{
		{
			{Name: "alpha", FullName: "acme/alpha"},
			{Name: "beta", FullName: "acme/beta"},
		},
	}
	resolver := NewResolver(client, nil)

	repos, err := resolver.Resolve(context.Background(), []string{"acme/beta", "acme/gamma"}, "acme")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	names := RepoNames(repos)
	want := []string{"acme/beta", "acme/gamma", "acme/alpha"}
	if len(names) != len(want) {
		t.Fatalf("repos = %v, want %v", names, want)
	}
	for i, repoID := range want {
		if names[i] != repoID {
			t.Fatalf("repos[%d] = %q, want %q", i, names[i], repoID)
		}
	}
}

func TestResolveCarriesListingMetadata(t *testing.T) {
	t.Parallel()

	client := newFakePageClient()
	client.orgPages = [][]githubapi.OrgRepo{
		{
			{Name: "attic", FullName: "acme/attic", Archived: true},
			{Name: "mirror", FullName: "acme/mirror", Fork: true},
		},
	}
	resolver := NewResolver(client, nil)

	repos, err := resolver.Resolve(context.Background(), []string{"acme/widgets"}, "acme")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(repos) != 3 {
		t.Fatalf("repos = %v, want 3 entries", repos)
	}

	// Explicit entries carry only the identifier, with the short name derived.
	if repos[0].FullName != "acme/widgets" || repos[0].Name != "widgets" || repos[0].Archived || repos[0].Fork {
		t.Fatalf("explicit repo = %+v", repos[0])
	}
	if !repos[1].Archived || repos[1].Name != "attic" {
		t.Fatalf("archived flag lost: %+v", repos[1])
	}
	if !repos[2].Fork || repos[2].Name != "mirror" {
		t.Fatalf("fork flag lost: %+v", repos[2])
	}
}

func TestResolveFallsBackToExplicitOnOrgFailure(t *testing.T) {
	t.Parallel()

	client := newFakePageClient()
	client.orgErr = errors.New("boom")
	resolver := NewResolver(client, nil)

	repos, err := resolver.Resolve(context.Background(), []string{"acme/alpha"}, "acme")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(repos) != 1 || repos[0].FullName != "acme/alpha" {
		t.Fatalf("repos = %v, want [acme/alpha]", repos)
	}
}

func TestResolveKeepsPartialOrgListingOnPageFailure(t *testing.T) {
	t.Parallel()

	// Full first page, then a failure: everything from page 1 still resolves.
	firstPage := make([]githubapi.OrgRepo, 0, DefaultPageSize)
	for i := range DefaultPageSize {
		firstPage = append(firstPage, githubapi.OrgRepo{FullName: repoName("acme", i)})
	}
	client := newFakePageClient()
	client.orgPages = [][]githubapi.OrgRepo{firstPage}
	client.orgErr = errors.New("boom")
	client.orgErrPage = 2
	resolver := NewResolver(client, nil)

	repos, err := resolver.Resolve(context.Background(), nil, "acme")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(repos) != DefaultPageSize {
		t.Fatalf("repos len = %d, want %d", len(repos), DefaultPageSize)
	}
}

func TestResolveEmptySetIsError(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(newFakePageClient(), nil)

	if _, err := resolver.Resolve(context.Background(), nil, ""); !errors.Is(err, ErrNoRepositories) {
		t.Fatalf("Resolve error = %v, want ErrNoRepositories", err)
	}
	if _, err := resolver.Resolve(context.Background(), []string{"  ", ""}, ""); !errors.Is(err, ErrNoRepositories) {
		t.Fatalf("Resolve error = %v, want ErrNoRepositories for blank entries", err)
	}
}

func TestResolveSynthesizesFullNameFromOrg(t *testing.T) {
	t.Parallel()

	client := newFakePageClient()
	client.orgPages = [][]githubapi.OrgRepo{
		{{Name: "delta"}},
	}
	resolver := NewResolver(client, nil)

	repos, err := resolver.Resolve(context.Background(), nil, "acme")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(repos) != 1 || repos[0].FullName != "acme/delta" {
		t.Fatalf("repos = %v, want [acme/delta]", repos)
	}
}

func repoName(org string, i int) string {
	return fmt.Sprintf("%s/repo-%03d", org, i)
}
