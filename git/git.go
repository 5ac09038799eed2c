// Package git provides the git and GitHub operations the release flow needs.
//
// The package is organized into focused modules:
//   - service.go: GitService struct and constructor
//   - status.go: Worktree status
//   - commit.go: Identity setup and commits
//   - branch.go: Release branch management, remotes
//   - push.go: Force pushes and tags
//   - github.go: Pull requests and releases through the gh CLI
package git
