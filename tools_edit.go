package main

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// WriteFileTool implements spec.md §4.2's write_file.
type WriteFileTool struct {
	guard *PathGuard
}

func NewWriteFileTool(guard *PathGuard) *WriteFileTool { return &WriteFileTool{guard: guard} }

func (t *WriteFileTool) Name() string      { return "write_file" }
func (t *WriteFileTool) WriteCapable() bool { return true }
func (t *WriteFileTool) Description() string {
	return "Writes full content to a file within the working root, creating or overwriting it and any missing parent directories."
}
func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"absolute_path": map[string]any{"type": "string", "description": "Absolute path to the file, within the working root"},
			"content":       map[string]any{"type": "string", "description": "Full file content to write"},
		},
		"required": []string{"absolute_path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	raw, ok := argString(args, "absolute_path")
	if !ok || strings.TrimSpace(raw) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: absolute_path is required", ErrBadArgument))
	}
	content, _ := argString(args, "content")

	path, err := t.guard.Resolve(raw)
	if err != nil {
		return Failed(t.Name(), err)
	}

	hash, err := integrityWrite(path, []byte(content))
	if err != nil {
		return Failed(t.Name(), err)
	}

	notes := fmt.Sprintf("wrote %d bytes, %d lines", len(content), strings.Count(content, "\n")+1)
	return Success(t.Name(), notes).WithPath(path, hash).WithContent(content)
}

// ReplaceTool implements spec.md §4.2's replace (aka edit).
type ReplaceTool struct {
	guard *PathGuard
}

func NewReplaceTool(guard *PathGuard) *ReplaceTool { return &ReplaceTool{guard: guard} }

func (t *ReplaceTool) Name() string      { return "replace" }
func (t *ReplaceTool) WriteCapable() bool { return true }
func (t *ReplaceTool) Description() string {
	return "Replaces an exact literal substring within a file a specified number of times; an empty old_string creates a new file."
}
func (t *ReplaceTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"absolute_path":         map[string]any{"type": "string"},
			"old_string":            map[string]any{"type": "string"},
			"new_string":            map[string]any{"type": "string"},
			"expected_replacements": map[string]any{"type": "integer", "description": "Defaults to 1"},
		},
		"required": []string{"absolute_path", "old_string", "new_string"},
	}
}

func (t *ReplaceTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	raw, ok := argString(args, "absolute_path")
	if !ok || strings.TrimSpace(raw) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: absolute_path is required", ErrBadArgument))
	}
	oldString, _ := argString(args, "old_string")
	newString, _ := argString(args, "new_string")
	expected := argInt(args, "expected_replacements", 1)

	path, err := t.guard.Resolve(raw)
	if err != nil {
		return Failed(t.Name(), err)
	}

	if oldString == "" {
		if _, statErr := os.Stat(path); statErr == nil {
			return Failed(t.Name(), fmt.Errorf("%w: %s already exists, cannot create", ErrConflict, path))
		}
		hash, err := integrityWrite(path, []byte(newString))
		if err != nil {
			return Failed(t.Name(), err)
		}
		return Success(t.Name(), fmt.Sprintf("created file (%d replacements)\nTotal lines: %d\nContent size: %d characters",
			1, strings.Count(newString, "\n")+1, len(newString))).WithPath(path, hash).WithContent(newString)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Failed(t.Name(), fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrIO, err))
	}

	normalized := strings.ReplaceAll(string(original), "\r\n", "\n")
	count := strings.Count(normalized, oldString)
	if count == 0 {
		return Failed(t.Name(), fmt.Errorf("%w: 0 occurrences of old_string found", ErrBadArgument))
	}
	if count != expected {
		return Failed(t.Name(), fmt.Errorf("%w: expected %d occurrence(s) but found %d", ErrBadArgument, expected, count))
	}

	updated := strings.ReplaceAll(normalized, oldString, newString)
	hash, err := integrityWrite(path, []byte(updated))
	if err != nil {
		return Failed(t.Name(), err)
	}

	notes := fmt.Sprintf("Successfully modified file: %s (%d replacement(s))\nTotal lines: %d\nContent size: %d characters",
		path, count, strings.Count(updated, "\n")+1, len(updated))
	return Success(t.Name(), notes).WithPath(path, hash).WithContent(updated)
}

const (
	searchMarker  = "------- SEARCH"
	dividerMarker = "======="
	replaceMarker = "+++++++ REPLACE"
)

type diffBlock struct {
	search  string
	replace string
}

// parseDiffBlocks splits a replace_in_file diff document into SEARCH/REPLACE
// pairs delimited by the literal markers from spec.md §4.2.
func parseDiffBlocks(diff string) ([]diffBlock, error) {
	lines := strings.Split(diff, "\n")
	var blocks []diffBlock
	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) != searchMarker {
			i++
			continue
		}
		i++
		var search, replace []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != dividerMarker {
			search = append(search, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("%w: unterminated SEARCH block", ErrBadArgument)
		}
		i++ // skip divider
		for i < len(lines) && strings.TrimSpace(lines[i]) != replaceMarker {
			replace = append(replace, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("%w: unterminated REPLACE block", ErrBadArgument)
		}
		i++ // skip replace marker
		blocks = append(blocks, diffBlock{search: strings.Join(search, "\n"), replace: strings.Join(replace, "\n")})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no SEARCH/REPLACE blocks found", ErrBadArgument)
	}
	return blocks, nil
}

// ReplaceInFileTool implements spec.md §4.2's replace_in_file.
type ReplaceInFileTool struct {
	guard *PathGuard
}

func NewReplaceInFileTool(guard *PathGuard) *ReplaceInFileTool { return &ReplaceInFileTool{guard: guard} }

func (t *ReplaceInFileTool) Name() string      { return "replace_in_file" }
func (t *ReplaceInFileTool) WriteCapable() bool { return true }
func (t *ReplaceInFileTool) Description() string {
	return "Applies one or more SEARCH/REPLACE diff blocks to a file; each SEARCH block must match exactly once."
}
func (t *ReplaceInFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"absolute_path": map[string]any{"type": "string"},
			"diff": map[string]any{
				"type":        "string",
				"description": "One or more blocks of the form '------- SEARCH\\n<old>\\n=======\\n<new>\\n+++++++ REPLACE'",
			},
		},
		"required": []string{"absolute_path", "diff"},
	}
}

func (t *ReplaceInFileTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	raw, ok := argString(args, "absolute_path")
	if !ok || strings.TrimSpace(raw) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: absolute_path is required", ErrBadArgument))
	}
	diff, _ := argString(args, "diff")

	path, err := t.guard.Resolve(raw)
	if err != nil {
		return Failed(t.Name(), err)
	}

	blocks, err := parseDiffBlocks(diff)
	if err != nil {
		return Failed(t.Name(), err)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Failed(t.Name(), fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrIO, err))
	}

	content := strings.ReplaceAll(string(original), "\r\n", "\n")
	for idx, block := range blocks {
		count := strings.Count(content, block.search)
		if count == 0 {
			return Failed(t.Name(), fmt.Errorf("%w: block %d: SEARCH text not found", ErrBadArgument, idx+1))
		}
		if count > 1 {
			return Failed(t.Name(), fmt.Errorf("%w: block %d: SEARCH text matches %d times, expected exactly once", ErrBadArgument, idx+1, count))
		}
		content = strings.Replace(content, block.search, block.replace, 1)
	}

	hash, err := integrityWrite(path, []byte(content))
	if err != nil {
		return Failed(t.Name(), err)
	}

	notes := fmt.Sprintf("Applied %d block(s) to %s\nTotal lines: %d\nContent size: %d characters",
		len(blocks), path, strings.Count(content, "\n")+1, len(content))
	return Success(t.Name(), notes).WithPath(path, hash).WithContent(content)
}
