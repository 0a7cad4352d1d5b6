package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// blacklistedDirs are pruned from descent during recursive listing, per
// spec.md §6. They still appear as an entry in their parent's listing.
var blacklistedDirs = map[string]bool{
	"node_modules": true, ".git": true, "venv": true, ".venv": true,
	"__pycache__": true, "bin": true, "obj": true, ".vs": true,
	"dist": true, "build": true, ".idea": true, "target": true,
	"vendor": true, ".next": true, ".nuxt": true, "coverage": true,
	".nyc_output": true, ".cache": true, ".parcel-cache": true,
	".webpack": true, ".rollup.cache": true,
}

func isBlacklisted(name string) bool {
	return blacklistedDirs[strings.ToLower(name)]
}

// ReadFileTool implements spec.md §4.2's read_file.
type ReadFileTool struct {
	guard *PathGuard
}

func NewReadFileTool(guard *PathGuard) *ReadFileTool { return &ReadFileTool{guard: guard} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) WriteCapable() bool   { return false }
func (t *ReadFileTool) Description() string {
	return "Reads a file within the working root and returns its size, last-modified time, sha256 checksum, and content."
}
func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"absolute_path": map[string]any{"type": "string", "description": "Absolute path to the file, within the working root"},
		},
		"required": []string{"absolute_path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	raw, ok := argString(args, "absolute_path")
	if !ok || strings.TrimSpace(raw) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: absolute_path is required", ErrBadArgument))
	}
	path, err := t.guard.Resolve(raw)
	if err != nil {
		return Failed(t.Name(), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Failed(t.Name(), fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrDenied, err))
	}
	if info.IsDir() {
		return Failed(t.Name(), fmt.Errorf("%w: %s is a directory", ErrBadArgument, path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrIO, err))
	}

	hash := sha256Sum(data)
	notes := fmt.Sprintf("size=%d bytes, modified=%s, sha256=%s",
		info.Size(), info.ModTime().UTC().Format(time.RFC3339), hash)
	return Success(t.Name(), notes).WithPath(path, hash).WithContent(string(data))
}

// ListFilesTool implements spec.md §4.2's list_files.
type ListFilesTool struct {
	guard *PathGuard
}

func NewListFilesTool(guard *PathGuard) *ListFilesTool { return &ListFilesTool{guard: guard} }

func (t *ListFilesTool) Name() string      { return "list_files" }
func (t *ListFilesTool) WriteCapable() bool { return false }
func (t *ListFilesTool) Description() string {
	return "Lists files and directories under a path relative to the working root, optionally recursive. Common build/vendor directories are not descended into."
}
func (t *ListFilesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "Path relative to the working root; defaults to '.'"},
			"recursive": map[string]any{"type": "boolean", "description": "Recurse into subdirectories, pruning blacklisted ones"},
		},
	}
}

type listedEntry struct {
	relPath string
	size    int64
	modTime time.Time
	isDir   bool
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	rel, _ := argString(args, "path")
	if rel == "" {
		rel = "."
	}
	recursive := argBool(args, "recursive", false)

	root, err := t.guard.Resolve(rel)
	if err != nil {
		return Failed(t.Name(), err)
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return Failed(t.Name(), fmt.Errorf("%w: %s", ErrNotFound, root))
		}
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrDenied, err))
	}
	if !info.IsDir() {
		return Failed(t.Name(), fmt.Errorf("%w: %s is not a directory", ErrBadArgument, root))
	}

	var entries []listedEntry
	var walk func(dir string) error
	walk = func(dir string) error {
		items, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, item := range items {
			full := filepath.Join(dir, item.Name())
			relPath, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			fi, err := item.Info()
			if err != nil {
				continue
			}
			entries = append(entries, listedEntry{relPath: relPath, size: fi.Size(), modTime: fi.ModTime(), isDir: item.IsDir()})
			if item.IsDir() {
				if isBlacklisted(item.Name()) {
					continue
				}
				if recursive {
					if err := walk(full); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrIO, err))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	var b strings.Builder
	for _, e := range entries {
		sizeCol := fmt.Sprintf("%d", e.size)
		suffix := ""
		if e.isDir {
			sizeCol = "<DIR>"
			suffix = "/"
		}
		fmt.Fprintf(&b, "%s  %s  %s%s\n", e.modTime.Format("2006-01-02 15:04:05"), sizeCol, e.relPath, suffix)
	}

	notes := fmt.Sprintf("%d entries", len(entries))
	return Success(t.Name(), notes).WithContent(b.String())
}
