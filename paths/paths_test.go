package paths

import (
	"path/filepath"
	"testing"
)

// setupTestHome creates a temp directory, sets HOME to it, and resets the path cache.
func setupTestHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("NPM_CONFIG_USERCONFIG", "")
	Reset()
	t.Cleanup(Reset)
	return tmpDir
}

func TestStateDir_DefaultsUnderHome(t *testing.T) {
	home := setupTestHome(t)

	stateDir, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir: %v", err)
	}
	expected := filepath.Join(home, ".local", "state", "changeset-release")
	if stateDir != expected {
		t.Errorf("StateDir = %q, want %q", stateDir, expected)
	}

	logsDir, err := LogsDir()
	if err != nil {
		t.Fatalf("LogsDir: %v", err)
	}
	if logsDir != filepath.Join(expected, "logs") {
		t.Errorf("LogsDir = %q, want %q", logsDir, filepath.Join(expected, "logs"))
	}
}

func TestStateDir_XDG(t *testing.T) {
	setupTestHome(t)
	xdg := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdg)
	Reset()

	stateDir, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir: %v", err)
	}
	if stateDir != filepath.Join(xdg, "changeset-release") {
		t.Errorf("StateDir = %q, want under %q", stateDir, xdg)
	}
}

func TestNpmrcPath(t *testing.T) {
	home := setupTestHome(t)

	p, err := NpmrcPath()
	if err != nil {
		t.Fatalf("NpmrcPath: %v", err)
	}
	if p != filepath.Join(home, ".npmrc") {
		t.Errorf("NpmrcPath = %q, want %q", p, filepath.Join(home, ".npmrc"))
	}

	override := filepath.Join(t.TempDir(), "custom-npmrc")
	t.Setenv("NPM_CONFIG_USERCONFIG", override)
	p, err = NpmrcPath()
	if err != nil {
		t.Fatalf("NpmrcPath: %v", err)
	}
	if p != override {
		t.Errorf("NpmrcPath = %q, want override %q", p, override)
	}
}

func TestResolveIsCached(t *testing.T) {
	home := setupTestHome(t)

	first, _ := StateDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "elsewhere"))
	second, _ := StateDir()
	if first != second {
		t.Errorf("expected cached resolution, got %q then %q", first, second)
	}

	Reset()
	third, _ := StateDir()
	if third == first {
		t.Error("expected Reset to force re-resolution")
	}
}
