package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileToolCreatesFile(t *testing.T) {
	guard, root := newTestGuard(t)
	tool := NewWriteFileTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{"absolute_path": "out.txt", "content": "line1\nline2"})
	require.True(t, resp.Ok())

	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(data))
}

func TestWriteFileToolRequiresAbsolutePath(t *testing.T) {
	guard, _ := newTestGuard(t)
	tool := NewWriteFileTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{"content": "x"})
	assert.False(t, resp.Ok())
}

func TestReplaceToolCreatesFileWhenOldStringEmpty(t *testing.T) {
	guard, root := newTestGuard(t)
	tool := NewReplaceTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{
		"absolute_path": "new.txt", "old_string": "", "new_string": "fresh",
	})
	require.True(t, resp.Ok())

	data, err := os.ReadFile(filepath.Join(root, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestReplaceToolRejectsCreateWhenFileAlreadyExists(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "exists.txt"), []byte("old"), 0o644))
	tool := NewReplaceTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{
		"absolute_path": "exists.txt", "old_string": "", "new_string": "new",
	})
	assert.False(t, resp.Ok())
	assert.Contains(t, resp.Error, "already exists")
}

func TestReplaceToolReplacesSingleOccurrence(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("foo bar foo"), 0o644))
	tool := NewReplaceTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{
		"absolute_path": "f.txt", "old_string": "bar", "new_string": "baz",
	})
	require.True(t, resp.Ok())

	data, err := os.ReadFile(filepath.Join(root, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "foo baz foo", string(data))
}

func TestReplaceToolFailsWhenCountMismatchesExpected(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("foo foo foo"), 0o644))
	tool := NewReplaceTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{
		"absolute_path": "f.txt", "old_string": "foo", "new_string": "bar", "expected_replacements": 2,
	})
	assert.False(t, resp.Ok())
}

func TestReplaceToolFailsWhenOldStringMissing(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("hello"), 0o644))
	tool := NewReplaceTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{
		"absolute_path": "f.txt", "old_string": "nope", "new_string": "x",
	})
	assert.False(t, resp.Ok())
}

func TestReplaceToolNormalizesCRLFBeforeMatching(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("a\r\nb\r\nc"), 0o644))
	tool := NewReplaceTool(guard)

	resp := tool.Execute(context.Background(), map[string]any{
		"absolute_path": "f.txt", "old_string": "a\nb", "new_string": "x",
	})
	require.True(t, resp.Ok())
}

func TestParseDiffBlocksParsesSingleBlock(t *testing.T) {
	diff := "------- SEARCH\nold line\n=======\nnew line\n+++++++ REPLACE"
	blocks, err := parseDiffBlocks(diff)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "old line", blocks[0].search)
	assert.Equal(t, "new line", blocks[0].replace)
}

func TestParseDiffBlocksParsesMultipleBlocks(t *testing.T) {
	diff := "------- SEARCH\na\n=======\nb\n+++++++ REPLACE\n" +
		"------- SEARCH\nc\n=======\nd\n+++++++ REPLACE"
	blocks, err := parseDiffBlocks(diff)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "a", blocks[0].search)
	assert.Equal(t, "d", blocks[1].replace)
}

func TestParseDiffBlocksRejectsUnterminatedSearch(t *testing.T) {
	diff := "------- SEARCH\nold line\n"
	_, err := parseDiffBlocks(diff)
	assert.Error(t, err)
}

func TestParseDiffBlocksRejectsNoBlocks(t *testing.T) {
	_, err := parseDiffBlocks("just some text")
	assert.Error(t, err)
}

func TestReplaceInFileToolAppliesBlock(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("func main() {\n\tprintln(\"old\")\n}"), 0o644))
	tool := NewReplaceInFileTool(guard)

	diff := "------- SEARCH\n\tprintln(\"old\")\n=======\n\tprintln(\"new\")\n+++++++ REPLACE"
	resp := tool.Execute(context.Background(), map[string]any{"absolute_path": "f.txt", "diff": diff})
	require.True(t, resp.Ok())

	data, err := os.ReadFile(filepath.Join(root, "f.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "println(\"new\")")
}

func TestReplaceInFileToolFailsWhenSearchMatchesMultipleTimes(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("foo\nfoo\n"), 0o644))
	tool := NewReplaceInFileTool(guard)

	diff := "------- SEARCH\nfoo\n=======\nbar\n+++++++ REPLACE"
	resp := tool.Execute(context.Background(), map[string]any{"absolute_path": "f.txt", "diff": diff})
	assert.False(t, resp.Ok())
}

func TestReplaceInFileToolFailsWhenFileMissing(t *testing.T) {
	guard, _ := newTestGuard(t)
	tool := NewReplaceInFileTool(guard)

	diff := "------- SEARCH\nfoo\n=======\nbar\n+++++++ REPLACE"
	resp := tool.Execute(context.Background(), map[string]any{"absolute_path": "missing.txt", "diff": diff})
	assert.False(t, resp.Ok())
}
