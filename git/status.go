package git

import (
	"context"
	"fmt"
	"strings"
)

// WorktreeStatus represents the status of changes in a worktree
type WorktreeStatus struct {
	HasChanges bool
	Summary    string   // Short summary like "3 files changed"
	Files      []string // List of changed files
}

// GetWorktreeStatus returns the status of uncommitted changes in a worktree
func (s *GitService) GetWorktreeStatus(ctx context.Context, worktreePath string) (*WorktreeStatus, error) {
	status := &WorktreeStatus{}

	output, err := s.executor.Output(ctx, worktreePath, "git", "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	// Only trim trailing whitespace - leading space is significant in porcelain format
	// (e.g., " M file.go" means modified in worktree)
	trimmed := strings.TrimRight(string(output), "\n\r\t ")
	if trimmed == "" {
		status.Summary = "No changes"
		return status, nil
	}

	status.HasChanges = true
	for line := range strings.SplitSeq(trimmed, "\n") {
		if len(line) > 3 {
			filename := strings.TrimSpace(line[3:])
			// Renames are reported as "old -> new"
			if _, after, ok := strings.Cut(filename, " -> "); ok {
				filename = after
			}
			status.Files = append(status.Files, filename)
		}
	}

	if len(status.Files) == 1 {
		status.Summary = "1 file changed"
	} else {
		status.Summary = fmt.Sprintf("%d files changed", len(status.Files))
	}

	return status, nil
}
