package release

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/zhubert/changeset-release/changelog"
	"github.com/zhubert/changeset-release/changeset"
	"github.com/zhubert/changeset-release/git"
	"github.com/zhubert/changeset-release/pnpm"
	"github.com/zhubert/changeset-release/prbody"
)

// maxChangelogReaders bounds concurrent CHANGELOG.md reads in large workspaces.
const maxChangelogReaders = 8

// version rebuilds the release branch from the triggering commit, applies
// the pending changesets and opens or updates the version PR.
func (r *Runner) version(ctx context.Context, pre *changeset.PreState) (*git.PullRequest, error) {
	base, err := r.baseBranch(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.checkBase(base); err != nil {
		return nil, err
	}
	sha, err := r.headSHA(ctx)
	if err != nil {
		return nil, err
	}
	branch := r.cfg.ReleaseBranch(base)
	dir := r.cfg.Cwd
	r.resolveRepo(ctx)

	if r.cfg.SetupGitUser {
		if err := r.git.SetupUser(ctx, dir); err != nil {
			return nil, err
		}
	}
	if err := r.git.SwitchToMaybeExistingBranch(ctx, dir, branch); err != nil {
		return nil, err
	}
	if err := r.git.ResetHard(ctx, dir, sha); err != nil {
		return nil, err
	}

	releases, err := r.applyVersions(ctx)
	if err != nil {
		return nil, err
	}

	title := withPreTag(r.cfg.Title, pre)
	message := withPreTag(r.cfg.CommitMessage, pre)
	body := prbody.Build(r.bodyOptions(base, pre), releases)

	committed, err := r.git.CommitIfDirty(ctx, dir, message)
	if err != nil {
		return nil, err
	}
	if !committed {
		r.log.Warn("version command produced no changes", "branch", branch)
	}
	if err := r.git.ForcePush(ctx, dir, branch); err != nil {
		return nil, err
	}

	pr, err := r.git.FindOpenPullRequest(ctx, dir, branch, base)
	if err != nil {
		return nil, err
	}
	if pr != nil {
		r.log.Info("updating existing version PR", "number", pr.Number)
		if err := r.git.EditPullRequest(ctx, dir, pr.Number, title, body); err != nil {
			return nil, err
		}
		pr.Title = title
		return pr, nil
	}

	r.log.Info("opening version PR", "head", branch, "base", base)
	return r.git.CreatePullRequest(ctx, dir, base, branch, title, body)
}

// Preview runs the version command in place and returns the PR body it
// would produce. Nothing is committed or pushed.
func (r *Runner) Preview(ctx context.Context) (string, error) {
	pre, err := changeset.ReadPreState(r.cfg.Cwd)
	if err != nil {
		return "", err
	}
	base, err := r.baseBranch(ctx)
	if err != nil {
		return "", err
	}
	releases, err := r.applyVersions(ctx)
	if err != nil {
		return "", err
	}
	return prbody.Build(r.bodyOptions(base, pre), releases), nil
}

func (r *Runner) bodyOptions(base string, pre *changeset.PreState) prbody.Options {
	opts := prbody.Options{Branch: base, Publish: r.cfg.Publish}
	if pre.Active() {
		opts.PreTag = pre.Tag
	}
	return opts
}

// applyVersions runs the version command plus lockfile maintenance and
// returns a PR section for every package whose version changed.
func (r *Runner) applyVersions(ctx context.Context) ([]prbody.Release, error) {
	dir := r.cfg.Cwd

	before, err := r.pnpm.ListPackages(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := r.pnpm.Version(ctx, dir, r.cfg.VersionCommand); err != nil {
		return nil, err
	}
	if err := r.pnpm.Install(ctx, dir); err != nil {
		return nil, err
	}
	if r.cfg.Dedupe {
		if err := r.pnpm.Dedupe(ctx, dir); err != nil {
			return nil, err
		}
	}
	after, err := r.pnpm.ListPackages(ctx, dir)
	if err != nil {
		return nil, err
	}

	changed := pnpm.Changed(before, after)
	r.log.Info("packages versioned", "changed", len(changed))
	return r.collectReleases(ctx, changed)
}

// collectReleases reads the new changelog entry of each package concurrently.
// A package without a changelog or without an entry for its version gets an
// empty section.
func (r *Runner) collectReleases(ctx context.Context, packages []pnpm.Package) ([]prbody.Release, error) {
	releases := make([]prbody.Release, len(packages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxChangelogReaders)
	for i, pkg := range packages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			releases[i] = prbody.Release{Name: pkg.Name, Version: pkg.Version}

			entry, err := changelog.ReadEntry(pkg.Dir, pkg.Version)
			switch {
			case err == nil:
				releases[i].Changelog = entry.Content
				r.log.Debug("changelog entry read", "package", pkg.ID(), "bump", entry.Highest)
			case errors.Is(err, os.ErrNotExist), errors.Is(err, changelog.ErrEntryNotFound):
				r.log.Warn("no changelog entry for package", "package", pkg.ID(), "error", err)
			default:
				return fmt.Errorf("%s: %w", pkg.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return releases, nil
}
