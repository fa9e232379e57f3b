package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome substitutes a leading "~" with home.
func ExpandHome(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolveUserJournalPath returns the absolute user-wide journal root. An empty homeOverride
// means the current user's home directory.
func ResolveUserJournalPath(cfg *Config, homeOverride string) (string, error) {
	home := homeOverride
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
	}
	return filepath.Abs(ExpandHome(cfg.UserJournalPath, home))
}

// ResolveProjectJournalPath returns the absolute project journal root, relative to cwd.
// An empty cwd means the process working directory.
func ResolveProjectJournalPath(cfg *Config, cwd string) (string, error) {
	if filepath.IsAbs(cfg.ProjectJournalPath) {
		return filepath.Clean(cfg.ProjectJournalPath), nil
	}
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
	}
	return filepath.Join(cwd, cfg.ProjectJournalPath), nil
}
