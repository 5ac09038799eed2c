// Package config holds the release settings for a repository.
// Settings come from .changeset/release.yaml when present, layered over
// DefaultConfig; command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configFileName = "release.yaml"
const configDir = ".changeset"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid release config")

// Default values used when neither the config file nor flags set a field.
const (
	DefaultBranchPrefix   = "changeset-release/"
	DefaultTitle          = "Version Packages"
	DefaultCommitMessage  = "Version Packages"
	DefaultVersionCommand = "pnpm changeset version"
	DefaultPublishCommand = "pnpm publish -r --no-git-checks"
)

// Config is the full set of release settings.
type Config struct {
	// Cwd is the directory all commands run in. A relative value in the
	// config file is resolved against the repository root by ResolveCwd.
	Cwd string `yaml:"cwd,omitempty"`
	// BaseBranch is the branch pushes are released from. Empty means the
	// branch that triggered the run.
	BaseBranch   string `yaml:"base_branch,omitempty"`
	BranchPrefix string `yaml:"branch_prefix"`

	Title         string `yaml:"title"`
	CommitMessage string `yaml:"commit_message"`

	VersionCommand string `yaml:"version_command"`
	Dedupe         bool   `yaml:"dedupe"`

	// Publish enables the publish flow once no changesets remain.
	Publish        bool   `yaml:"publish"`
	PublishCommand string `yaml:"publish_command"`
	CreateReleases bool   `yaml:"create_releases"`

	SetupGitUser bool `yaml:"setup_git_user"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		BranchPrefix:   DefaultBranchPrefix,
		Title:          DefaultTitle,
		CommitMessage:  DefaultCommitMessage,
		VersionCommand: DefaultVersionCommand,
		PublishCommand: DefaultPublishCommand,
		CreateReleases: true,
		SetupGitUser:   true,
	}
}

// Load reads .changeset/release.yaml from the given repo path on top of
// DefaultConfig. Keys absent from the file keep their default value.
// Returns nil, nil if the file does not exist.
func Load(repoPath string) (*Config, error) {
	fp := filepath.Join(repoPath, configDir, configFileName)

	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read release config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse release config %s: %w", fp, err)
	}

	// A publish_command in the file turns publishing on unless the file
	// also says publish: false.
	var explicit struct {
		Publish        *bool   `yaml:"publish"`
		PublishCommand *string `yaml:"publish_command"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to parse release config %s: %w", fp, err)
	}
	if explicit.PublishCommand != nil && explicit.Publish == nil {
		cfg.Publish = true
	}

	return cfg, nil
}

// LoadOrDefault loads the config file, falling back to DefaultConfig when
// the repository has none.
func LoadOrDefault(repoPath string) (*Config, error) {
	cfg, err := Load(repoPath)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// ResolveCwd anchors Cwd at root. An empty Cwd becomes root and a relative
// one is joined onto it.
func (c *Config) ResolveCwd(root string) {
	switch {
	case c.Cwd == "":
		c.Cwd = root
	case !filepath.IsAbs(c.Cwd):
		c.Cwd = filepath.Join(root, c.Cwd)
	}
}

// ReleaseBranch returns the branch the version PR is pushed from.
func (c *Config) ReleaseBranch(base string) string {
	return c.BranchPrefix + base
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BranchPrefix) == "" {
		return fmt.Errorf("%w: branch_prefix must not be empty", ErrInvalid)
	}
	if strings.ContainsAny(c.BranchPrefix, " ~^:?*[\\") {
		return fmt.Errorf("%w: branch_prefix %q contains characters not allowed in a git ref", ErrInvalid, c.BranchPrefix)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(c.CommitMessage) == "" {
		return fmt.Errorf("%w: commit_message must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(c.VersionCommand) == "" {
		return fmt.Errorf("%w: version_command must not be empty", ErrInvalid)
	}
	if c.Publish && strings.TrimSpace(c.PublishCommand) == "" {
		return fmt.Errorf("%w: publish is enabled but publish_command is empty", ErrInvalid)
	}
	if c.BaseBranch != "" && strings.HasPrefix(c.BaseBranch, c.BranchPrefix) {
		return fmt.Errorf("%w: base branch %q is itself a release branch", ErrInvalid, c.BaseBranch)
	}
	return nil
}
