// Package changelog extracts the section for one version from a package's
// CHANGELOG.md as written by the changeset CLI.
package changelog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/zhubert/changeset-release/changeset"
)

// FileName is the changelog file name inside each package directory.
const FileName = "CHANGELOG.md"

// ErrEntryNotFound is returned when no heading matches the requested version.
var ErrEntryNotFound = errors.New("changelog entry not found")

// Entry is the changelog section for a single version.
type Entry struct {
	// Content is the markdown between the version heading and the next
	// heading of the same or higher level, trimmed.
	Content string
	// Highest is the largest bump named by the section's sub-headings
	// ("Major Changes", "Minor Changes", "Patch Changes"); empty if none.
	// It is informational and only logged, since sections sort by name.
	Highest changeset.BumpType
}

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New()
	})
	return markdownInstance
}

// ReadEntry reads <dir>/CHANGELOG.md and extracts the entry for version.
func ReadEntry(dir, version string) (Entry, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read changelog: %w", err)
	}
	return ExtractEntry(data, version)
}

// ExtractEntry finds the heading whose text is version (optionally prefixed
// with "v") and returns everything up to the next heading at the same or a
// shallower level.
func ExtractEntry(source []byte, version string) (Entry, error) {
	doc := markdown().Parser().Parse(text.NewReader(source))

	var (
		found *ast.Heading
		start = -1
		end   = len(source)
	)
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		if found == nil {
			if matchesVersion(headingText(heading, source), version) {
				found = heading
				start = headingEnd(heading, source)
			}
			continue
		}
		if heading.Level <= found.Level {
			end = lineStart(source, heading.Lines().At(0).Start)
			break
		}
	}
	if found == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, version)
	}
	if start > end {
		start = end
	}

	return Entry{
		Content: strings.TrimSpace(string(source[start:end])),
		Highest: highestBump(found, source),
	}, nil
}

// highestBump scans the direct sub-headings of the version heading.
func highestBump(found *ast.Heading, source []byte) changeset.BumpType {
	rank := map[changeset.BumpType]int{changeset.BumpPatch: 1, changeset.BumpMinor: 2, changeset.BumpMajor: 3}

	var highest changeset.BumpType
	for node := found.NextSibling(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		if heading.Level <= found.Level {
			break
		}
		if heading.Level != found.Level+1 {
			continue
		}
		var bump changeset.BumpType
		switch strings.ToLower(headingText(heading, source)) {
		case "major changes":
			bump = changeset.BumpMajor
		case "minor changes":
			bump = changeset.BumpMinor
		case "patch changes":
			bump = changeset.BumpPatch
		default:
			continue
		}
		if rank[bump] > rank[highest] {
			highest = bump
		}
	}
	return highest
}

func matchesVersion(heading, version string) bool {
	heading = strings.TrimSpace(heading)
	return heading == version || heading == "v"+version
}

func headingText(heading *ast.Heading, source []byte) string {
	return strings.TrimSpace(string(heading.Lines().Value(source)))
}

// headingEnd returns the offset just past the heading, including the
// underline of a setext heading.
func headingEnd(heading *ast.Heading, source []byte) int {
	last := heading.Lines().At(heading.Lines().Len() - 1)
	pos := lineEnd(source, max(last.Stop-1, last.Start))
	if !isATX(source, heading) {
		pos = lineEnd(source, pos)
	}
	return pos
}

func isATX(source []byte, heading *ast.Heading) bool {
	start := lineStart(source, heading.Lines().At(0).Start)
	return bytes.HasPrefix(bytes.TrimLeft(source[start:], " "), []byte("#"))
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(source []byte, pos int) int {
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// lineEnd returns the offset just past the newline terminating the line containing pos.
func lineEnd(source []byte, pos int) int {
	if pos >= len(source) {
		return len(source)
	}
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(source)
}
