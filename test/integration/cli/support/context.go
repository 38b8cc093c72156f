package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastStdout    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir  string
	InputDir string
	DebugDir string
	EnvVars  []string
}

// NewTestContext creates a new test context with a scratch directory that
// doubles as the working directory of every command.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "qrscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		TempDir:  tempDir,
		InputDir: filepath.Join(tempDir, "images"),
		DebugDir: filepath.Join(tempDir, "result"),
		// Keep user and system configuration out of the scenarios.
		EnvVars:  []string{"HOME=" + tempDir, "XDG_CONFIG_HOME=" + filepath.Join(tempDir, ".config")},
	}, nil
}

// Cleanup removes the scenario's scratch directory.
func (testCtx *TestContext) Cleanup() error {
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// path resolves a scenario-relative path inside the scratch directory.
func (testCtx *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}
