// Package paths provides centralized path resolution for the files
// changeset-release reads and writes outside the repository.
//
// Layout follows the XDG Base Directory Specification:
//
//   - State (XDG_STATE_HOME): logs/, optional log files for local runs
//   - Home: .npmrc, registry credentials read by pnpm publish
//
// NPM_CONFIG_USERCONFIG overrides the .npmrc location, matching npm and pnpm.
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

const appName = "changeset-release"

var (
	mu       sync.Mutex
	resolved *resolvedPaths
)

type resolvedPaths struct {
	home     string
	stateDir string
}

// resolve computes the path layout once and caches it.
func resolve() (*resolvedPaths, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}

	resolved = &resolvedPaths{
		home:     home,
		stateDir: filepath.Join(xdgState, appName),
	}
	return resolved, nil
}

// StateDir returns the directory for runtime state and logs.
func StateDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.stateDir, nil
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// NpmrcPath returns the user-level .npmrc that pnpm reads registry auth from.
func NpmrcPath() (string, error) {
	if p := os.Getenv("NPM_CONFIG_USERCONFIG"); p != "" {
		return p, nil
	}
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return filepath.Join(r.home, ".npmrc"), nil
}

// Reset clears the cached path resolution. This is intended for testing only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
