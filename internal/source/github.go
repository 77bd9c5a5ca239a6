package source

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"

	"github.com/bull/oncodoc/internal/markdown"
)

// NewGitHubClient creates a GitHub API client that waits out primary and
// secondary rate limits. An empty token makes unauthenticated requests.
func NewGitHubClient(token string) (*github.Client, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limited transport: %w", err)
	}
	client := github.NewClient(rateLimiter)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client, nil
}

// GitHubRepo locates a report directory in a repository.
type GitHubRepo struct {
	Owner    string
	Repo     string
	BasePath string
	Ref      string // Branch, tag or SHA; empty selects the default branch
}

// GitHubSource reads reports from a repository directory.
type GitHubSource struct {
	client *github.Client
	repo   GitHubRepo
	conv   *markdown.Converter
}

// NewGitHubSource creates a source over repo.
func NewGitHubSource(client *github.Client, repo GitHubRepo) *GitHubSource {
	return &GitHubSource{client: client, repo: repo, conv: markdown.NewConverter()}
}

// Name implements Source.
func (s *GitHubSource) Name() string {
	return fmt.Sprintf("github:%s/%s/%s", s.repo.Owner, s.repo.Repo, s.repo.BasePath)
}

func (s *GitHubSource) contentOptions() *github.RepositoryContentGetOptions {
	if s.repo.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: s.repo.Ref}
}

// List implements Source by walking the directory recursively.
func (s *GitHubSource) List(ctx context.Context) ([]string, error) {
	paths, err := s.listRecursive(ctx, s.repo.BasePath, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *GitHubSource) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	_, entries, _, err := s.client.Repositories.GetContents(ctx, s.repo.Owner, s.repo.Repo, fullPath, s.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.GetName()
		rel := path.Join(relativePath, name)
		switch entry.GetType() {
		case "file":
			if Supported(name) {
				paths = append(paths, rel)
			}
		case "dir":
			sub, err := s.listRecursive(ctx, path.Join(fullPath, name), rel)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// Fetch implements Source.
func (s *GitHubSource) Fetch(ctx context.Context, relPath string) (*Report, error) {
	fullPath := path.Join(s.repo.BasePath, relPath)
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.repo.Owner, s.repo.Repo, fullPath, s.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if file == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}
	text, sections, err := decode(s.conv, relPath, []byte(content))
	if err != nil {
		return nil, err
	}
	return &Report{
		Path:     relPath,
		Location: file.GetHTMLURL(),
		Text:     text,
		Revision: file.GetSHA(),
		Sections: sections,
	}, nil
}

// LatestRevision returns the SHA of the most recent commit touching the
// report directory.
func (s *GitHubSource) LatestRevision(ctx context.Context) (string, error) {
	commits, _, err := s.client.Repositories.ListCommits(ctx, s.repo.Owner, s.repo.Repo, &github.CommitsListOptions{
		SHA:         s.repo.Ref,
		Path:        s.repo.BasePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", s.repo.BasePath)
	}
	return commits[0].GetSHA(), nil
}
