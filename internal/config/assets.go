package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveClientDir looks for a "client" directory next to the working
// directory or the executable, one level up included.
func ResolveClientDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve client assets: %w", err)
	}
	if dir, ok := resolveClientDirFrom(cwd); ok {
		return dir, nil
	}
	if exe, err := os.Executable(); err == nil {
		if dir, ok := resolveClientDirFrom(filepath.Dir(exe)); ok {
			return dir, nil
		}
	}
	return "", fmt.Errorf("client assets directory not found")
}

func resolveClientDirFrom(base string) (string, bool) {
	for _, candidate := range []string{
		filepath.Join(base, "client"),
		filepath.Join(base, "..", "client"),
	} {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}
