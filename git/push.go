package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhubert/changeset-release/logger"
)

// ForcePush pushes HEAD to branch on origin, replacing whatever is there.
// The release branch is rebuilt from the base branch on every run.
func (s *GitService) ForcePush(ctx context.Context, repoPath, branch string) error {
	output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "push", "origin", "HEAD:"+branch, "--force")
	if err != nil {
		return fmt.Errorf("git push failed: %s: %w", strings.TrimSpace(string(output)), err)
	}

	logger.WithComponent("git").Info("pushed branch", "branch", branch)
	return nil
}

// TagExists reports whether a tag of that name exists locally.
func (s *GitService) TagExists(ctx context.Context, repoPath, tag string) bool {
	_, _, err := s.executor.Run(ctx, repoPath, "git", "rev-parse", "--verify", "--quiet", "refs/tags/"+tag)
	return err == nil
}

// Tag creates a lightweight tag at HEAD.
func (s *GitService) Tag(ctx context.Context, repoPath, tag string) error {
	output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "tag", tag)
	if err != nil {
		return fmt.Errorf("git tag %s failed: %s: %w", tag, strings.TrimSpace(string(output)), err)
	}
	return nil
}

// PushTags pushes all local tags to origin.
func (s *GitService) PushTags(ctx context.Context, repoPath string) error {
	output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "push", "origin", "--tags")
	if err != nil {
		return fmt.Errorf("git push --tags failed: %s: %w", strings.TrimSpace(string(output)), err)
	}

	logger.WithComponent("git").Info("pushed tags")
	return nil
}
