// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsurePrivateDir creates dir, and any missing parents, readable by the
// owner only and returns its absolute path. An existing directory keeps
// its mode.
func EnsurePrivateDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// WritePrivateFile writes data to name with mode 0600, creating the parent
// directory when needed.
func WritePrivateFile(name string, data []byte) error {
	if _, err := EnsurePrivateDir(filepath.Dir(name)); err != nil {
		return err
	}
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
