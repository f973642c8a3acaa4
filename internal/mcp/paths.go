package mcp

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrOutsideRoot is returned for paths that escape the configured root.
var ErrOutsideRoot = eris.New("path is outside the configured directory")

// PathGuard confines tool file access to one directory. An empty root
// allows any path.
type PathGuard struct {
	root string
}

// NewPathGuard creates a guard for root.
func NewPathGuard(root string) *PathGuard {
	return &PathGuard{root: root}
}

// Resolve returns the absolute, symlink-free form of path after checking it
// lies within the root.
func (g *PathGuard) Resolve(path string) (string, error) {
	if path == "" {
		return "", eris.New("path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", eris.Wrap(err, "resolve path")
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if g.root == "" {
		return abs, nil
	}

	root, err := filepath.Abs(g.root)
	if err != nil {
		return "", eris.Wrap(err, "resolve root")
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	if abs != root && !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", eris.Wrapf(ErrOutsideRoot, "%s", path)
	}
	return abs, nil
}
