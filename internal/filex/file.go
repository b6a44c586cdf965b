// Package filex contains filesystem helpers for locating the on-device cache.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) with owner-only permissions and returns
// its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// DefaultCacheDir returns <user cache dir>/<app>, falling back to ./.<app>
// when the platform has no user cache directory.
func DefaultCacheDir(app string) string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		return "." + app
	}
	return filepath.Join(base, app)
}
