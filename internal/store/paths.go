package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFileName is the recording database inside a .cvep directory.
const DBFileName = "cvep.db"

// GlobalCvepPath returns the path to the global .cvep directory.
// On Unix: ~/.cvep
// On Windows: %USERPROFILE%\.cvep
func GlobalCvepPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cvep"), nil
}

// LocalCvepPath returns the path to the local .cvep directory
// for the given project root.
func LocalCvepPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".cvep")
}

// DefaultDBPath returns the recording database for projectRoot.
func DefaultDBPath(projectRoot string) string {
	return filepath.Join(LocalCvepPath(projectRoot), DBFileName)
}
