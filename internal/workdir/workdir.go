// Package workdir resolves the directory the server serves from and makes
// it the process working directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// executable is replaced in tests.
var executable = os.Executable

// Resolve returns the absolute served root. A non-empty override wins;
// otherwise the directory holding the running binary is used, with
// symlinks to the binary resolved.
func Resolve(override string) (string, error) {
	if override != "" {
		dir, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve serve dir %q: %w", override, err)
		}
		return checkDir(dir)
	}

	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable %q: %w", exe, err)
	}

	return checkDir(filepath.Dir(exe))
}

// Enter resolves the served root and changes into it.
func Enter(override string) (string, error) {
	dir, err := Resolve(override)
	if err != nil {
		return "", err
	}
	if err := os.Chdir(dir); err != nil {
		return "", fmt.Errorf("chdir %q: %w", dir, err)
	}
	return dir, nil
}

func checkDir(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("serve dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("serve dir %q is not a directory", dir)
	}
	return dir, nil
}
