package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// integrityWrite implements the shared write/edit protocol from spec.md
// §4.2.1: back up any existing target, write to a temp file in the same
// directory, verify the hash, rename atomically over the target, then
// re-verify. On any failure after the backup is taken, the original is
// restored.
func integrityWrite(path string, content []byte) (sha256Hex string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating parent directory: %v", ErrIO, err)
	}

	var backupPath string
	hadExisting := false
	if _, statErr := os.Stat(path); statErr == nil {
		hadExisting = true
		backupPath = uniqueBackupPath(path)
		if err := copyFile(path, backupPath); err != nil {
			return "", fmt.Errorf("%w: backing up existing file: %v", ErrIO, err)
		}
	}

	restore := func(writeErr error) (string, error) {
		if hadExisting {
			if restoreErr := copyFile(backupPath, path); restoreErr != nil {
				return "", fmt.Errorf("%w: write failed (%v) and restore failed (%v)", ErrIntegrityMismatch, writeErr, restoreErr)
			}
		}
		return "", fmt.Errorf("%w: %v", ErrIO, writeErr)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return restore(err)
	}

	wantHash := sha256Sum(content)
	gotHash, err := sha256File(tmpPath)
	if err != nil || gotHash != wantHash {
		os.Remove(tmpPath)
		if err == nil {
			err = fmt.Errorf("%w: temp file hash mismatch", ErrIntegrityMismatch)
		}
		return restore(err)
	}

	if hadExisting {
		if err := os.Remove(path); err != nil {
			os.Remove(tmpPath)
			return restore(err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return restore(err)
	}

	finalHash, err := sha256File(path)
	if err != nil || finalHash != wantHash {
		if err == nil {
			err = fmt.Errorf("%w: final file hash mismatch", ErrIntegrityMismatch)
		}
		return restore(err)
	}

	if hadExisting {
		os.Remove(backupPath)
	}
	return finalHash, nil
}

func uniqueBackupPath(path string) string {
	candidate := path + ".backup"
	n := 1
	for {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.backup.%d", path, n)
		n++
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func sha256Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sha256File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return sha256Sum(data), nil
}
