package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*PathGuard, string) {
	t.Helper()
	root := t.TempDir()
	guard, err := NewPathGuard(root)
	require.NoError(t, err)
	return guard, guard.Root()
}

func TestPathGuardResolveWithinRoot(t *testing.T) {
	guard, root := newTestGuard(t)

	resolved, err := guard.Resolve("sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "file.txt"), resolved)
}

func TestPathGuardResolveRootItself(t *testing.T) {
	guard, root := newTestGuard(t)

	resolved, err := guard.Resolve(".")
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Clean(resolved))
}

func TestPathGuardRejectsEscapeViaDotDot(t *testing.T) {
	guard, _ := newTestGuard(t)

	_, err := guard.Resolve("../outside.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestPathGuardRejectsEscapeViaAbsolutePath(t *testing.T) {
	guard, _ := newTestGuard(t)

	_, err := guard.Resolve("/etc/passwd")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestPathGuardRejectsEmptyInput(t *testing.T) {
	guard, _ := newTestGuard(t)

	_, err := guard.Resolve("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestPathGuardRejectsEmbeddedNUL(t *testing.T) {
	guard, _ := newTestGuard(t)

	_, err := guard.Resolve("foo\x00bar")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestPathGuardAllowsNewFileUnderExistingDir(t *testing.T) {
	guard, root := newTestGuard(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	resolved, err := guard.Resolve("sub/new-file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "new-file.txt"), resolved)
}

func TestPathGuardRejectsEscapeThroughSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	guard, err := NewPathGuard(root)
	require.NoError(t, err)

	_, err = guard.Resolve("escape/secret.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathEscape))
}
