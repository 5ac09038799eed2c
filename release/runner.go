// Package release decides, on each CI run, whether to open or update the
// version PR or to publish, and carries out that decision.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zhubert/changeset-release/changeset"
	"github.com/zhubert/changeset-release/ci"
	"github.com/zhubert/changeset-release/config"
	pexec "github.com/zhubert/changeset-release/exec"
	"github.com/zhubert/changeset-release/git"
	"github.com/zhubert/changeset-release/logger"
	"github.com/zhubert/changeset-release/pnpm"
)

// Runner performs one release pass over the repository at cfg.Cwd.
type Runner struct {
	cfg  *config.Config
	env  ci.Env
	git  *git.GitService
	pnpm *pnpm.Client
	log  *slog.Logger
}

// NewRunner creates a Runner whose external commands all go through executor.
func NewRunner(cfg *config.Config, env ci.Env, executor pexec.CommandExecutor, runID string) *Runner {
	return &Runner{
		cfg:  cfg,
		env:  env,
		git:  git.NewGitServiceWithExecutor(executor),
		pnpm: pnpm.NewClient(executor),
		log:  logger.WithRun(runID).With("component", "release"),
	}
}

// Run reads the pending changesets and takes whichever path applies:
// nothing, the publish flow, or the version flow.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	changesets, err := changeset.ReadChangesets(r.cfg.Cwd)
	if err != nil {
		return nil, err
	}
	preState, err := changeset.ReadPreState(r.cfg.Cwd)
	if err != nil {
		return nil, err
	}

	result := &Result{HasChangesets: len(changesets) > 0}

	switch {
	case len(changesets) == 0 && !r.cfg.Publish:
		r.log.Info("no changesets found")
		return result, nil

	case len(changesets) == 0:
		r.log.Info("no changesets found, attempting to publish")
		if err := r.publish(ctx, preState, result); err != nil {
			return result, err
		}
		return result, nil

	case !changeset.HasNonEmpty(changesets):
		r.log.Info("all changesets are empty, not creating a version PR", "count", len(changesets))
		return result, nil
	}

	r.log.Info("creating or updating version PR", "changesets", len(changesets), "preMode", preState.Active())
	pr, err := r.version(ctx, preState)
	if err != nil {
		return result, err
	}
	result.PullRequestNumber = pr.Number
	result.PullRequestURL = pr.URL
	return result, nil
}

// baseBranch is the configured base branch, else the ref that triggered the
// run, else whatever is checked out.
func (r *Runner) baseBranch(ctx context.Context) (string, error) {
	if r.cfg.BaseBranch != "" {
		return r.cfg.BaseBranch, nil
	}
	if r.env.RefName != "" {
		return r.env.RefName, nil
	}
	return r.git.GetCurrentBranch(ctx, r.cfg.Cwd)
}

func (r *Runner) headSHA(ctx context.Context) (string, error) {
	if r.env.SHA != "" {
		return r.env.SHA, nil
	}
	return r.git.HeadSHA(ctx, r.cfg.Cwd)
}

// resolveRepo points gh at the owner/repo of the origin remote so PR and
// release calls target the repository at cfg.Cwd. Without a GitHub origin
// gh infers the repository itself.
func (r *Runner) resolveRepo(ctx context.Context) {
	url, err := r.git.GetRemoteOriginURL(ctx, r.cfg.Cwd)
	if err != nil {
		r.log.Debug("no origin remote, gh will infer the repository", "error", err)
		return
	}
	repo := git.ExtractOwnerRepo(url)
	if repo == "" {
		r.log.Debug("origin is not an owner/repo remote", "url", url)
		return
	}
	r.git = r.git.WithRepo(repo)
}

// withPreTag appends " (<tag>)" to s in pre mode.
func withPreTag(s string, pre *changeset.PreState) string {
	if !pre.Active() {
		return s
	}
	return fmt.Sprintf("%s (%s)", s, pre.Tag)
}

// ErrReleaseBranchBase is returned when the base branch is itself a release
// branch, which would make the version PR target itself.
var ErrReleaseBranchBase = errors.New("base branch is a release branch")

func (r *Runner) checkBase(base string) error {
	if strings.HasPrefix(base, r.cfg.BranchPrefix) {
		return fmt.Errorf("%w: %s", ErrReleaseBranchBase, base)
	}
	return nil
}
