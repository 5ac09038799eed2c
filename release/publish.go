package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zhubert/changeset-release/changelog"
	"github.com/zhubert/changeset-release/changeset"
	"github.com/zhubert/changeset-release/paths"
	"github.com/zhubert/changeset-release/pnpm"
)

// publish runs the publish command, tags what it published and creates
// the hosting releases.
func (r *Runner) publish(ctx context.Context, pre *changeset.PreState, result *Result) error {
	dir := r.cfg.Cwd

	if r.env.NPMToken != "" {
		npmrc, err := paths.NpmrcPath()
		if err != nil {
			return err
		}
		if err := EnsureNpmrcToken(npmrc, r.env.NPMToken); err != nil {
			return err
		}
	} else {
		r.log.Info("NPM_TOKEN not set, relying on existing registry auth")
	}

	packages, err := r.pnpm.ListPackages(ctx, dir)
	if err != nil {
		return err
	}

	output, err := r.pnpm.Publish(ctx, dir, r.cfg.PublishCommand)
	if err != nil {
		return err
	}

	published := matchPublished(pnpm.ParsePublished(string(output)), packages)
	if len(published) == 0 {
		r.log.Info("publish command did not publish any packages")
		return nil
	}

	result.Published = true
	for _, pkg := range published {
		result.PublishedPackages = append(result.PublishedPackages, pnpm.Published{Name: pkg.Name, Version: pkg.Version})
	}
	r.log.Info("packages published", "count", len(published))

	single := len(packages) == 1
	if err := r.tagAndPush(ctx, published, single); err != nil {
		return err
	}

	if !r.cfg.CreateReleases {
		return nil
	}
	r.resolveRepo(ctx)
	return r.createReleases(ctx, published, single, pre)
}

// matchPublished returns the workspace packages named in the publish output,
// carrying the published version.
func matchPublished(published []pnpm.Published, packages []pnpm.Package) []pnpm.Package {
	byName := make(map[string]pnpm.Package, len(packages))
	for _, p := range packages {
		byName[p.Name] = p
	}

	var matched []pnpm.Package
	for _, p := range published {
		pkg, ok := byName[p.Name]
		if !ok {
			continue
		}
		pkg.Version = p.Version
		matched = append(matched, pkg)
	}
	return matched
}

// tagName is name@version, or v<version> for a repository with one package.
func tagName(pkg pnpm.Package, single bool) string {
	if single {
		return "v" + pkg.Version
	}
	return pkg.ID()
}

func (r *Runner) tagAndPush(ctx context.Context, packages []pnpm.Package, single bool) error {
	dir := r.cfg.Cwd
	for _, pkg := range packages {
		tag := tagName(pkg, single)
		if r.git.TagExists(ctx, dir, tag) {
			r.log.Debug("tag already exists", "tag", tag)
			continue
		}
		if err := r.git.Tag(ctx, dir, tag); err != nil {
			return err
		}
	}
	return r.git.PushTags(ctx, dir)
}

// createReleases creates one release per published package concurrently.
func (r *Runner) createReleases(ctx context.Context, packages []pnpm.Package, single bool, pre *changeset.PreState) error {
	dir := r.cfg.Cwd

	g, ctx := errgroup.WithContext(ctx)
	for _, pkg := range packages {
		g.Go(func() error {
			tag := tagName(pkg, single)
			if r.git.ReleaseExists(ctx, dir, tag) {
				r.log.Info("release already exists", "tag", tag)
				return nil
			}

			entry, err := changelog.ReadEntry(pkg.Dir, pkg.Version)
			if errors.Is(err, os.ErrNotExist) {
				r.log.Warn("package has no changelog, skipping release", "package", pkg.Name)
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", pkg.ID(), err)
			}

			prerelease := pre.Active() || strings.Contains(pkg.Version, "-")
			return r.git.CreateRelease(ctx, dir, tag, tag, entry.Content, prerelease)
		})
	}
	return g.Wait()
}

const npmrcTokenKey = "//registry.npmjs.org/:_authToken="

// EnsureNpmrcToken makes sure the .npmrc at path carries a registry auth
// token, appending one for the public registry when none is configured.
func EnsureNpmrcToken(path, token string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, npmrcTokenKey) ||
			strings.HasPrefix(line, "//registry.npmjs.org/:-authToken=") {
			return nil
		}
	}

	entry := npmrcTokenKey + token + "\n"
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		entry = "\n" + entry
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
