// Package prbody renders the description of the release pull request.
package prbody

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxCharacters is the largest body GitHub accepts for a pull request.
const MaxCharacters = 60000

const (
	changelogOmitted = "> Changelog entries were left out of this description because it would exceed the size limit. See each package's CHANGELOG.md in the diff.\n"
	allOmitted       = "> Release details were left out of this description because it would exceed the size limit. See the diff for the changed packages."
	releasesHeading  = "# Releases"
)

// Options controls the fixed parts of the body.
type Options struct {
	// Branch is the base branch the release PR targets.
	Branch string
	// Publish is true when merging the PR triggers an automated publish.
	Publish bool
	// PreTag is the prerelease tag when the repository is in pre mode.
	PreTag string
}

// Release is one package section of the body.
type Release struct {
	Name      string
	Version   string
	Changelog string
}

func (r Release) header() string {
	return fmt.Sprintf("## %s@%s", r.Name, r.Version)
}

// Build renders the body for releases, in package name order.
// When the full text exceeds MaxCharacters the changelog entries are
// dropped; if the headers alone are still too long, only a notice remains.
func Build(opts Options, releases []Release) string {
	sorted := slices.Clone(releases)
	slices.SortStableFunc(sorted, func(a, b Release) int {
		return strings.Compare(a.Name, b.Name)
	})

	header := intro(opts)
	pre := preModeWarning(opts)

	parts := []string{header, pre, releasesHeading}
	for _, r := range sorted {
		parts = append(parts, r.header()+"\n\n"+r.Changelog)
	}
	body := strings.Join(parts, "\n")
	if fits(body) {
		return body
	}

	parts = []string{header, pre, changelogOmitted, releasesHeading}
	for _, r := range sorted {
		parts = append(parts, r.header()+"\n\n")
	}
	body = strings.Join(parts, "\n")
	if fits(body) {
		return body
	}

	return strings.Join([]string{header, pre, allOmitted}, "\n")
}

func fits(body string) bool {
	return utf8.RuneCountInString(body) <= MaxCharacters
}

func intro(opts Options) string {
	var b strings.Builder
	b.WriteString("This PR was opened by changeset-release. ")
	if opts.Publish {
		b.WriteString("Merging it will publish the packages below to npm.")
	} else {
		b.WriteString("Merging it will version the packages below; publishing to npm is up to you.")
	}
	fmt.Fprintf(&b, " New changesets added to %s update this PR automatically, so there is no rush.\n", opts.Branch)
	return b.String()
}

func preModeWarning(opts Options) string {
	if opts.PreTag == "" {
		return ""
	}
	return fmt.Sprintf("> [!WARNING]\n> `%s` is in **pre mode** with tag `%s`, so this PR contains prereleases. "+
		"Run `changeset pre exit` on `%s` to go back to normal releases.\n", opts.Branch, opts.PreTag, opts.Branch)
}
