package journal

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/model"
	appErr "github.com/xxxsen/mjournal/internal/pkg/errors"
)

const (
	bucketLayout = "2006-01-02"
	entryExt     = ".md"
)

// Layout holds the absolute root directory of each scope.
type Layout struct {
	ProjectRoot string
	UserRoot    string
}

// NewLayout resolves both roots from cfg. Empty cwd and home fall back to the process values.
func NewLayout(cfg *config.Config, cwd string, home string) (*Layout, error) {
	project, err := config.ResolveProjectJournalPath(cfg, cwd)
	if err != nil {
		return nil, err
	}
	user, err := config.ResolveUserJournalPath(cfg, home)
	if err != nil {
		return nil, err
	}
	return &Layout{ProjectRoot: project, UserRoot: user}, nil
}

func (l *Layout) Root(scope model.Scope) (string, error) {
	switch scope {
	case model.ScopeProject:
		return l.ProjectRoot, nil
	case model.ScopeUser:
		return l.UserRoot, nil
	}
	return "", fmt.Errorf("%w: scope %q has no root", appErr.ErrInvalid, scope)
}

// Resolve maps path to an entry file inside one of the scope roots. An absolute path must lie
// under a root; a relative path is tried against the project root first, then the user root.
// Only regular files shaped "YYYY-MM-DD/<name>.md" count as entries. Anything else, including
// paths that leave the root they resolve against, is reported as ErrEntryNotFound.
func (l *Layout) Resolve(path string) (model.Scope, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: empty path", appErr.ErrEntryNotFound)
	}
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		for _, scope := range model.Scopes {
			root, _ := l.Root(scope)
			if within(root, clean) && l.isEntry(scope, clean) {
				return scope, clean, nil
			}
		}
		return "", "", fmt.Errorf("%w: %s is not an entry under the journal roots", appErr.ErrEntryNotFound, path)
	}
	for _, scope := range model.Scopes {
		root, _ := l.Root(scope)
		full := filepath.Join(root, path)
		if !within(root, full) {
			return "", "", fmt.Errorf("%w: %s escapes the journal root", appErr.ErrEntryNotFound, path)
		}
		if l.isEntry(scope, full) {
			return scope, full, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", appErr.ErrEntryNotFound, path)
}

func (l *Layout) isEntry(scope model.Scope, file string) bool {
	if filepath.Ext(file) != entryExt {
		return false
	}
	rel, err := l.Rel(scope, file)
	if err != nil {
		return false
	}
	if _, ok := entryTimestamp(rel); !ok {
		return false
	}
	return fileExists(file)
}

// Rel returns the slash-separated path of file relative to the root of scope.
func (l *Layout) Rel(scope model.Scope, file string) (string, error) {
	root, err := l.Root(scope)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func within(root string, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
