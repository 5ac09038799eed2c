package git

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhubert/changeset-release/logger"
)

// PullRequest is the subset of a GitHub pull request the release flow uses.
type PullRequest struct {
	Number      int    `json:"number"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
}

// FindOpenPullRequest returns the open PR from head into base, or nil if none exists.
func (s *GitService) FindOpenPullRequest(ctx context.Context, repoPath, head, base string) (*PullRequest, error) {
	output, err := s.executor.Output(ctx, repoPath, "gh", s.ghArgs("pr", "list",
		"--state", "open",
		"--head", head,
		"--base", base,
		"--json", "number,url,title,headRefName,baseRefName",
	)...)
	if err != nil {
		return nil, fmt.Errorf("gh pr list failed: %w", err)
	}

	var prs []PullRequest
	if err := json.Unmarshal(output, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse PR list: %w", err)
	}

	// gh matches --head loosely across forks; insist on an exact pair
	for i := range prs {
		if prs[i].HeadRefName == head && prs[i].BaseRefName == base {
			return &prs[i], nil
		}
	}
	return nil, nil
}

// CreatePullRequest opens a PR from head into base.
// gh prints the new PR's URL; the number is taken from its last path segment.
func (s *GitService) CreatePullRequest(ctx context.Context, repoPath, base, head, title, body string) (*PullRequest, error) {
	stdout, stderr, err := s.executor.Run(ctx, repoPath, "gh", s.ghArgs("pr", "create",
		"--base", base,
		"--head", head,
		"--title", title,
		"--body", body,
	)...)
	if err != nil {
		stderrStr := strings.TrimSpace(string(stderr))
		if stderrStr != "" {
			return nil, fmt.Errorf("gh pr create failed: %s", stderrStr)
		}
		return nil, fmt.Errorf("gh pr create failed: %w", err)
	}

	url := lastLine(string(stdout))
	number, err := prNumberFromURL(url)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("git").Info("created pull request", "number", number, "url", url)
	return &PullRequest{
		Number:      number,
		URL:         url,
		Title:       title,
		HeadRefName: head,
		BaseRefName: base,
	}, nil
}

// EditPullRequest replaces the title and body of an existing PR.
func (s *GitService) EditPullRequest(ctx context.Context, repoPath string, number int, title, body string) error {
	_, stderr, err := s.executor.Run(ctx, repoPath, "gh", s.ghArgs("pr", "edit",
		strconv.Itoa(number),
		"--title", title,
		"--body", body,
	)...)
	if err != nil {
		stderrStr := strings.TrimSpace(string(stderr))
		if stderrStr != "" {
			return fmt.Errorf("gh pr edit failed: %s", stderrStr)
		}
		return fmt.Errorf("gh pr edit failed: %w", err)
	}

	logger.WithComponent("git").Info("updated pull request", "number", number)
	return nil
}

// ReleaseExists reports whether a GitHub release for tag already exists.
func (s *GitService) ReleaseExists(ctx context.Context, repoPath, tag string) bool {
	_, _, err := s.executor.Run(ctx, repoPath, "gh", s.ghArgs("release", "view", tag, "--json", "tagName")...)
	return err == nil
}

// CreateRelease creates a GitHub release for an existing tag.
func (s *GitService) CreateRelease(ctx context.Context, repoPath, tag, title, notes string, prerelease bool) error {
	args := []string{"release", "create", tag,
		"--title", title,
		"--notes", notes,
	}
	if prerelease {
		args = append(args, "--prerelease")
	}
	_, stderr, err := s.executor.Run(ctx, repoPath, "gh", s.ghArgs(args...)...)
	if err != nil {
		stderrStr := strings.TrimSpace(string(stderr))
		if stderrStr != "" {
			return fmt.Errorf("gh release create %s failed: %s", tag, stderrStr)
		}
		return fmt.Errorf("gh release create %s failed: %w", tag, err)
	}

	logger.WithComponent("git").Info("created release", "tag", tag, "prerelease", prerelease)
	return nil
}

func prNumberFromURL(url string) (int, error) {
	idx := strings.LastIndex(url, "/pull/")
	if idx == -1 {
		return 0, fmt.Errorf("unexpected gh pr create output: %q", url)
	}
	number, err := strconv.Atoi(strings.TrimSuffix(url[idx+len("/pull/"):], "/"))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PR number from %q: %w", url, err)
	}
	return number, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
