package git

import (
	"context"
	"fmt"

	"github.com/zhubert/changeset-release/logger"
)

// Identity used for commits made by the release bot.
const (
	BotUserName  = "github-actions[bot]"
	BotUserEmail = "github-actions[bot]@users.noreply.github.com"
)

// SetupUser configures the repository-local git identity used for commits.
func (s *GitService) SetupUser(ctx context.Context, repoPath string) error {
	if output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "config", "user.name", BotUserName); err != nil {
		return fmt.Errorf("git config user.name failed: %s - %w", string(output), err)
	}
	if output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "config", "user.email", BotUserEmail); err != nil {
		return fmt.Errorf("git config user.email failed: %s - %w", string(output), err)
	}
	return nil
}

// CommitAll stages all changes and commits them with the given message
func (s *GitService) CommitAll(ctx context.Context, worktreePath, message string) error {
	logger.WithComponent("git").Info("committing all changes", "worktree", worktreePath)

	if output, err := s.executor.CombinedOutput(ctx, worktreePath, "git", "add", "-A"); err != nil {
		return fmt.Errorf("git add failed: %s - %w", string(output), err)
	}

	if output, err := s.executor.CombinedOutput(ctx, worktreePath, "git", "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit failed: %s - %w", string(output), err)
	}

	return nil
}

// CommitIfDirty commits all changes when the worktree has any.
// Returns true if a commit was made.
func (s *GitService) CommitIfDirty(ctx context.Context, worktreePath, message string) (bool, error) {
	log := logger.WithComponent("git")

	status, err := s.GetWorktreeStatus(ctx, worktreePath)
	if err != nil {
		return false, fmt.Errorf("failed to check worktree status: %w", err)
	}

	if !status.HasChanges {
		log.Debug("no uncommitted changes in worktree", "worktree", worktreePath)
		return false, nil
	}

	log.Info("found uncommitted changes", "summary", status.Summary)
	if err := s.CommitAll(ctx, worktreePath, message); err != nil {
		return false, err
	}
	return true, nil
}
