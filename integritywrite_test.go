package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrityWriteCreatesNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")

	hash, err := integrityWrite(path, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, sha256Sum([]byte("hello")), hash)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// No leftover temp or backup artifacts.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIntegrityWriteOverwritesExistingFileAndCleansBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	hash, err := integrityWrite(path, []byte("new content"))
	require.NoError(t, err)
	assert.Equal(t, sha256Sum([]byte("new content")), hash)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))

	_, err = os.Stat(path + ".backup")
	assert.True(t, os.IsNotExist(err), "backup should be removed on success")
}

func TestIntegrityWriteCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.txt")

	_, err := integrityWrite(path, []byte("nested"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestUniqueBackupPathAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path+".backup", []byte("taken"), 0o644))

	got := uniqueBackupPath(path)
	assert.Equal(t, path+".backup.1", got)
}

func TestSha256FileMatchesSha256Sum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	got, err := sha256File(path)
	require.NoError(t, err)
	assert.Equal(t, sha256Sum([]byte("payload")), got)
}
