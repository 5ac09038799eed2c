// Package ci reads the GitHub Actions environment and writes step outputs.
package ci

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Env is the subset of the CI environment the release flow reads.
type Env struct {
	SHA         string // GITHUB_SHA
	RefName     string // GITHUB_REF_NAME
	GitHubToken string // GITHUB_TOKEN
	NPMToken    string // NPM_TOKEN
	OutputPath  string // GITHUB_OUTPUT
}

// FromEnv reads Env from the process environment.
func FromEnv() Env {
	return Env{
		SHA:         os.Getenv("GITHUB_SHA"),
		RefName:     os.Getenv("GITHUB_REF_NAME"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		NPMToken:    os.Getenv("NPM_TOKEN"),
		OutputPath:  os.Getenv("GITHUB_OUTPUT"),
	}
}

// CommandEnv returns the variables child processes need beyond the inherited
// environment. gh reads GH_TOKEN ahead of GITHUB_TOKEN.
func (e Env) CommandEnv() []string {
	if e.GitHubToken == "" {
		return nil
	}
	return []string{"GH_TOKEN=" + e.GitHubToken}
}

// WriteOutputs appends outputs to the step output file at path, keys sorted.
// Multiline values use the heredoc form. An empty path is a no-op so the tool
// can run outside of Actions.
func WriteOutputs(path string, outputs map[string]string) error {
	if path == "" || len(outputs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		if err := formatOutput(&b, k, outputs[k]); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	return nil
}

func formatOutput(b *strings.Builder, key, value string) error {
	if strings.ContainsAny(key, "=\n") || key == "" {
		return fmt.Errorf("invalid output name %q", key)
	}
	if !strings.Contains(value, "\n") {
		fmt.Fprintf(b, "%s=%s\n", key, value)
		return nil
	}

	delimiter := "ghadelimiter_" + uuid.NewString()
	fmt.Fprintf(b, "%s<<%s\n%s\n%s\n", key, delimiter, value, delimiter)
	return nil
}
