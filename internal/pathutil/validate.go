// Package pathutil confines file paths received from remote clients to
// known output directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotsDirName is the snapshot directory inside a .cvep directory.
const SnapshotsDirName = "snapshots"

// RedactPath shortens a path to .../<parent>/<basename> for error messages,
// e.g. "/home/user/.cvep/snapshots/a.png" becomes ".../snapshots/a.png".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath checks that path lies inside one of allowedDirs once cleaned
// and with symlinks resolved. The file itself need not exist.
func ValidatePath(path string, allowedDirs []string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if len(allowedDirs) == 0 {
		return fmt.Errorf("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// Symlinked directories must not lead outside the allowed tree.
	resolvedDir, err := resolveExistingParent(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, allowed := range allowedDirs {
		allowedAbs, err := filepath.Abs(filepath.Clean(allowed))
		if err != nil {
			continue
		}
		allowedResolved, err := resolveExistingParent(allowedAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolved, allowedResolved) {
			return nil
		}
	}

	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(absPath))
}

// ResolveOutput validates an output path received from a client. Relative
// paths are taken relative to the first allowed directory.
func ResolveOutput(path string, allowedDirs []string) (string, error) {
	if path != "" && !filepath.IsAbs(path) && len(allowedDirs) > 0 {
		path = filepath.Join(allowedDirs[0], path)
	}
	if err := ValidatePath(path, allowedDirs); err != nil {
		return "", err
	}
	return path, nil
}

// resolveExistingParent resolves symlinks on the deepest existing ancestor of
// dir and re-appends the part that does not exist yet.
func resolveExistingParent(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath reports whether path is base or inside it.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar".
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// SnapshotDirs returns where grid snapshots may be written:
// <projectRoot>/.cvep/snapshots/ first, then ~/.cvep/snapshots/.
func SnapshotDirs(projectRoot string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{
		filepath.Join(projectRoot, ".cvep", SnapshotsDirName),
		filepath.Join(homeDir, ".cvep", SnapshotsDirName),
	}, nil
}
