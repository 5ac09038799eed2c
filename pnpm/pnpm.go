// Package pnpm wraps the pnpm CLI calls the release flow depends on.
// Workspace resolution, versioning and publishing all stay inside pnpm and
// the changeset CLI; this package only invokes them and reads their output.
package pnpm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/google/shlex"

	pexec "github.com/zhubert/changeset-release/exec"
	"github.com/zhubert/changeset-release/logger"
)

// Package is a workspace package as reported by `pnpm ls`.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dir     string `json:"path"`
	// Private is informational; pnpm itself skips private packages on publish.
	Private bool   `json:"private"`
}

// ID returns the name@version identifier used in PR headers and tags.
func (p Package) ID() string {
	return p.Name + "@" + p.Version
}

// Published is a package@version the publish command reported as published.
type Published struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// publishedPattern matches the per-package success line of `pnpm publish -r`
// ("+ @scope/pkg@1.2.3") and of `changeset publish` ("New tag:  pkg@1.2.3").
var publishedPattern = regexp.MustCompile(`(?m)^(?:\+|.*New tag:)\s+(@[^/\s@]+/[^@\s]+|[^@\s]+)@(\S+)\s*$`)

// Client runs pnpm through an injectable executor.
type Client struct {
	executor pexec.CommandExecutor
}

// NewClient creates a Client that runs commands with the given executor.
func NewClient(executor pexec.CommandExecutor) *Client {
	return &Client{executor: executor}
}

// ListPackages returns every named workspace package, sorted by name.
func (c *Client) ListPackages(ctx context.Context, dir string) ([]Package, error) {
	output, err := c.executor.Output(ctx, dir, "pnpm", "ls", "-r", "--depth", "-1", "--json")
	if err != nil {
		return nil, fmt.Errorf("pnpm ls failed: %w", err)
	}

	var listed []Package
	if err := json.Unmarshal(output, &listed); err != nil {
		return nil, fmt.Errorf("failed to parse pnpm ls output: %w", err)
	}

	packages := make([]Package, 0, len(listed))
	for _, p := range listed {
		if p.Name == "" {
			continue
		}
		packages = append(packages, p)
	}
	slices.SortFunc(packages, func(a, b Package) int {
		return strings.Compare(a.Name, b.Name)
	})
	return packages, nil
}

// Install regenerates the lockfile without touching node_modules.
func (c *Client) Install(ctx context.Context, dir string) error {
	output, err := c.executor.CombinedOutput(ctx, dir, "pnpm", "install", "--lockfile-only", "--ignore-scripts")
	if err != nil {
		return fmt.Errorf("pnpm install failed: %s: %w", tail(output), err)
	}
	return nil
}

// Dedupe collapses duplicate dependency versions in the lockfile.
func (c *Client) Dedupe(ctx context.Context, dir string) error {
	output, err := c.executor.CombinedOutput(ctx, dir, "pnpm", "dedupe")
	if err != nil {
		return fmt.Errorf("pnpm dedupe failed: %s: %w", tail(output), err)
	}
	return nil
}

// Version runs the configured version command, e.g. "pnpm changeset version".
func (c *Client) Version(ctx context.Context, dir, command string) error {
	_, err := c.RunCommand(ctx, dir, command)
	return err
}

// Publish runs the configured publish command and returns its combined output.
func (c *Client) Publish(ctx context.Context, dir, command string) ([]byte, error) {
	return c.RunCommand(ctx, dir, command)
}

// RunCommand splits command shell-style and runs it in dir.
func (c *Client) RunCommand(ctx context.Context, dir, command string) ([]byte, error) {
	args, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("pnpm")
	log.Info("running command", "command", command, "dir", dir)

	output, err := c.executor.CombinedOutput(ctx, dir, args[0], args[1:]...)
	if err != nil {
		return output, fmt.Errorf("%s failed: %s: %w", args[0], tail(output), err)
	}
	log.Debug("command finished", "command", command, "outputBytes", len(output))
	return output, nil
}

// SplitCommand splits a command line into argv, honouring shell quoting.
func SplitCommand(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

// ParsePublished scrapes publish output for published packages, in order of
// appearance and without duplicates.
func ParsePublished(output string) []Published {
	seen := make(map[string]bool)
	var published []Published
	for _, m := range publishedPattern.FindAllStringSubmatch(output, -1) {
		key := m[1] + "@" + m[2]
		if seen[key] {
			continue
		}
		seen[key] = true
		published = append(published, Published{Name: m[1], Version: m[2]})
	}
	return published
}

// Changed returns the packages in after whose version differs from before,
// including packages absent from before. Order follows after.
func Changed(before, after []Package) []Package {
	previous := make(map[string]string, len(before))
	for _, p := range before {
		previous[p.Name] = p.Version
	}
	var changed []Package
	for _, p := range after {
		if v, ok := previous[p.Name]; ok && v == p.Version {
			continue
		}
		changed = append(changed, p)
	}
	return changed
}

// tail returns the last few lines of command output for error messages.
func tail(output []byte) string {
	const maxLines = 20
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
