package git

import (
	pexec "github.com/zhubert/changeset-release/exec"
)

// GitService provides git operations with explicit dependency injection.
// Each GitService instance holds its own executor, so tests can swap in a
// MockExecutor without touching global state.
type GitService struct {
	executor pexec.CommandExecutor
	// repo is the owner/repo gh calls target; empty lets gh infer it.
	repo string
}

// NewGitServiceWithExecutor creates a new GitService with a custom executor.
func NewGitServiceWithExecutor(exec pexec.CommandExecutor) *GitService {
	return &GitService{executor: exec}
}

// WithRepo returns a copy of s whose gh calls pass --repo owner/repo.
func (s *GitService) WithRepo(repo string) *GitService {
	return &GitService{executor: s.executor, repo: repo}
}

// ghArgs inserts --repo after the two-word gh subcommand when a repo is set.
func (s *GitService) ghArgs(args ...string) []string {
	if s.repo == "" || len(args) < 2 {
		return args
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, args[:2]...)
	out = append(out, "--repo", s.repo)
	return append(out, args[2:]...)
}
