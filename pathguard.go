package main

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// PathGuard confines filesystem operations to a working root directory.
// It is constructed once at startup and treated as immutable afterward.
type PathGuard struct {
	root       string
	foldCase   bool // true on case-insensitive filesystems (darwin, windows)
}

// NewPathGuard builds a PathGuard rooted at root, which must already be an
// absolute, existing directory.
func NewPathGuard(root string) (*PathGuard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving working root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		real = abs
	}
	return &PathGuard{
		root:     filepath.Clean(real),
		foldCase: runtime.GOOS == "darwin" || runtime.GOOS == "windows",
	}, nil
}

// Root returns the guarded working root.
func (g *PathGuard) Root() string {
	return g.root
}

// Resolve validates input and returns the absolute path it denotes, provided
// that path is the working root or one of its descendants. It never touches
// the filesystem beyond symlink resolution for path comparison.
func (g *PathGuard) Resolve(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("%w: empty path", ErrBadArgument)
	}
	if strings.ContainsRune(input, 0) {
		return "", fmt.Errorf("%w: embedded NUL in path", ErrBadArgument)
	}

	var abs string
	if filepath.IsAbs(input) {
		abs = filepath.Clean(input)
	} else {
		abs = filepath.Join(g.root, input)
	}

	resolved := abs
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		resolved = real
	} else {
		// Target may not exist yet (e.g. write_file creating a new file);
		// resolve the nearest existing ancestor and re-join the remainder.
		resolved = g.resolveNearestAncestor(abs)
	}

	if !g.contains(resolved) {
		return "", fmt.Errorf("%w: %q escapes working root %q", ErrPathEscape, input, g.root)
	}
	return abs, nil
}

// resolveNearestAncestor walks up from abs until it finds a directory that
// exists on disk (possibly via symlinks), then rebuilds the path from there.
func (g *PathGuard) resolveNearestAncestor(abs string) string {
	dir := filepath.Dir(abs)
	tail := []string{filepath.Base(abs)}
	for {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

func (g *PathGuard) contains(resolved string) bool {
	root, target := g.root, resolved
	if g.foldCase {
		root, target = strings.ToLower(root), strings.ToLower(target)
	}
	if root == target {
		return true
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
