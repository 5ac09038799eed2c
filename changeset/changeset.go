// Package changeset reads pending version-bump declarations from a
// repository's .changeset directory.
//
// A changeset is a markdown file whose YAML front matter maps package names
// to bump types, followed by a free-form summary:
//
//	---
//	"@scope/core": minor
//	cli: patch
//	---
//
//	Add a --json flag to the status command.
//
// Bump resolution itself belongs to the changeset CLI; this package only
// answers "is there anything pending, and is it in pre mode".
package changeset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dir is the directory, relative to the repository root, holding changesets.
const Dir = ".changeset"

// ErrNoChangesetDir is returned when the repository has no .changeset directory.
var ErrNoChangesetDir = errors.New("no .changeset directory found")

// BumpType is the semver bump a changeset requests for one package.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
	BumpPatch BumpType = "patch"
	BumpNone  BumpType = "none"
)

func (b BumpType) valid() bool {
	switch b {
	case BumpMajor, BumpMinor, BumpPatch, BumpNone:
		return true
	}
	return false
}

// Release is one package entry in a changeset's front matter.
type Release struct {
	Name string
	Type BumpType
}

// Changeset is a parsed .changeset/<id>.md file.
type Changeset struct {
	ID       string // File name without the .md extension
	Summary  string
	Releases []Release // In declaration order
}

// IsEmpty reports whether the changeset declares no releases.
func (c Changeset) IsEmpty() bool {
	return len(c.Releases) == 0
}

// PreState mirrors .changeset/pre.json, written by `changeset pre enter`.
type PreState struct {
	Mode            string            `json:"mode"` // "pre" or "exit"
	Tag             string            `json:"tag"`
	InitialVersions map[string]string `json:"initialVersions"`
	Changesets      []string          `json:"changesets"`
}

// Active reports whether the repository is currently in pre mode.
func (p *PreState) Active() bool {
	return p != nil && p.Mode == "pre"
}

// ReadPreState reads .changeset/pre.json. Returns nil, nil if the file does not exist.
func ReadPreState(repoPath string) (*PreState, error) {
	fp := filepath.Join(repoPath, Dir, "pre.json")

	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pre state: %w", err)
	}

	var state PreState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fp, err)
	}
	if state.Mode != "pre" && state.Mode != "exit" {
		return nil, fmt.Errorf("invalid pre state mode %q in %s", state.Mode, fp)
	}
	return &state, nil
}

// ReadChangesets returns every pending changeset in the repository sorted by ID.
// In pre mode, changesets already consumed by a previous prerelease are skipped.
func ReadChangesets(repoPath string) ([]Changeset, error) {
	dir := filepath.Join(repoPath, Dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoChangesetDir, repoPath)
		}
		return nil, fmt.Errorf("failed to list changesets: %w", err)
	}

	pre, err := ReadPreState(repoPath)
	if err != nil {
		return nil, err
	}
	var consumed map[string]bool
	if pre.Active() {
		consumed = make(map[string]bool, len(pre.Changesets))
		for _, id := range pre.Changesets {
			consumed[id] = true
		}
	}

	var changesets []Changeset
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") || strings.EqualFold(name, "README.md") {
			continue
		}
		id := strings.TrimSuffix(name, ".md")
		if consumed[id] {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read changeset %s: %w", name, err)
		}
		cs, err := Parse(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("changeset %s: %w", name, err)
		}
		changesets = append(changesets, cs)
	}

	slices.SortFunc(changesets, func(a, b Changeset) int {
		return strings.Compare(a.ID, b.ID)
	})
	return changesets, nil
}

// HasNonEmpty reports whether any changeset declares at least one release.
func HasNonEmpty(changesets []Changeset) bool {
	return slices.ContainsFunc(changesets, func(c Changeset) bool { return !c.IsEmpty() })
}

// Parse parses the content of a single changeset file.
func Parse(id, content string) (Changeset, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	trimmed := strings.TrimLeft(content, " \t\n")

	if !strings.HasPrefix(trimmed, "---\n") && trimmed != "---" {
		return Changeset{}, errors.New("missing front matter")
	}
	rest := strings.TrimPrefix(trimmed, "---")
	rest = strings.TrimPrefix(rest, "\n")

	var frontMatter, body string
	switch {
	case strings.HasPrefix(rest, "---"):
		// Empty front matter: "---\n---"
		body = strings.TrimPrefix(rest, "---")
	default:
		end := strings.Index(rest, "\n---")
		if end == -1 {
			return Changeset{}, errors.New("unterminated front matter")
		}
		frontMatter = rest[:end]
		body = rest[end+len("\n---"):]
	}

	releases, err := parseReleases(frontMatter)
	if err != nil {
		return Changeset{}, err
	}

	return Changeset{
		ID:       id,
		Summary:  strings.TrimSpace(body),
		Releases: releases,
	}, nil
}

// parseReleases decodes the front matter mapping, keeping declaration order.
func parseReleases(frontMatter string) ([]Release, error) {
	if strings.TrimSpace(frontMatter) == "" {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(frontMatter), &doc); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, errors.New("front matter must be a mapping of package name to bump type")
	}

	seen := make(map[string]bool)
	releases := make([]Release, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: expected \"package\": bump", key.Line)
		}
		bump := BumpType(value.Value)
		if !bump.valid() {
			return nil, fmt.Errorf("line %d: invalid bump type %q for %s", value.Line, value.Value, key.Value)
		}
		if seen[key.Value] {
			return nil, fmt.Errorf("line %d: package %s listed twice", key.Line, key.Value)
		}
		seen[key.Value] = true
		releases = append(releases, Release{Name: key.Value, Type: bump})
	}
	return releases, nil
}
