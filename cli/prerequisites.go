// Package cli checks that the external tools the release flow shells out to
// are installed.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	pexec "github.com/zhubert/changeset-release/exec"
)

// Prerequisite represents a required CLI tool
type Prerequisite struct {
	Name        string   // Command name (e.g., "pnpm", "git")
	Required    bool     // Whether a release run needs the tool
	Description string   // Human-readable description
	InstallURL  string   // URL for installation instructions
	VersionArgs []string // Arguments that print the tool's version
}

// DefaultPrerequisites returns the tools a release run invokes.
func DefaultPrerequisites() []Prerequisite {
	return []Prerequisite{
		{
			Name:        "git",
			Required:    true,
			Description: "Git version control",
			InstallURL:  "https://git-scm.com/downloads",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "gh",
			Required:    true,
			Description: "GitHub CLI, for pull requests and releases",
			InstallURL:  "https://cli.github.com",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "pnpm",
			Required:    true,
			Description: "pnpm package manager",
			InstallURL:  "https://pnpm.io/installation",
			VersionArgs: []string{"--version"},
		},
	}
}

// CheckResult contains the result of checking a prerequisite
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // Version string if available
	Error        error
}

// Checker looks tools up in PATH and asks them for their version.
type Checker struct {
	executor pexec.CommandExecutor
	lookPath func(string) (string, error)
}

// NewChecker creates a Checker that runs version commands with executor.
func NewChecker(executor pexec.CommandExecutor) *Checker {
	return &Checker{executor: executor, lookPath: exec.LookPath}
}

// Check verifies that a CLI tool is available in PATH
func (c *Checker) Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := c.lookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", prereq.Name)
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = c.version(ctx, prereq)
	return result
}

// CheckAll verifies all prerequisites and returns results
func (c *Checker) CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = c.Check(ctx, prereq)
	}
	return results
}

// ValidateRequired checks that all required prerequisites are met
// Returns nil if all required tools are found, otherwise returns an error
// describing what's missing
func ValidateRequired(results []CheckResult) error {
	var missing []string

	for _, r := range results {
		if !r.Prerequisite.Required || r.Found {
			continue
		}
		missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s",
			r.Prerequisite.Name, r.Prerequisite.Description, r.Prerequisite.InstallURL))
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required CLI tools:\n%s", strings.Join(missing, "\n"))
	}

	return nil
}

// version returns the first line the tool prints for its version flag.
func (c *Checker) version(ctx context.Context, prereq Prerequisite) string {
	if len(prereq.VersionArgs) == 0 {
		return ""
	}
	output, err := c.executor.Output(ctx, "", prereq.Name, prereq.VersionArgs...)
	if err != nil {
		return ""
	}

	first, _, _ := strings.Cut(string(output), "\n")
	version := strings.TrimSpace(first)
	if len(version) > 100 {
		version = version[:100] + "..."
	}
	return version
}

// FormatCheckResults formats check results for display
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("CLI Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		fmt.Fprintf(&sb, "  %s %s", status, r.Prerequisite.Name)
		if r.Found && r.Version != "" {
			fmt.Fprintf(&sb, " (%s)", r.Version)
		} else if !r.Found {
			if r.Prerequisite.Required {
				sb.WriteString(" [REQUIRED]")
			} else {
				sb.WriteString(" [optional]")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
