package main

import (
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// RepoInfo is the status-bar git context: branch and a short dirty marker,
// refreshed once at startup since a long-lived session does not poll it.
type RepoInfo struct {
	ProjectRoot string
	Branch      string
	Dirty       bool
}

// DetectRepoInfo opens the repository (if any) rooted at or above dir and
// reports its current branch and clean/dirty status.
func DetectRepoInfo(dir string) RepoInfo {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return RepoInfo{ProjectRoot: dir}
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil && wt.Filesystem.Root() != "" {
		root = wt.Filesystem.Root()
	}

	info := RepoInfo{ProjectRoot: root}

	head, err := repo.Head()
	if err != nil {
		return info
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	} else {
		info.Branch = head.Hash().String()[:7]
	}

	wt, err := repo.Worktree()
	if err != nil {
		return info
	}
	status, err := wt.Status()
	if err != nil {
		return info
	}
	info.Dirty = !status.IsClean()
	return info
}

// StatusMarker renders the short dirty indicator shown next to the branch
// name in the status bar.
func (r RepoInfo) StatusMarker() string {
	if r.Branch == "" {
		return ""
	}
	if r.Dirty {
		return "[" + r.Branch + "*]"
	}
	return "[" + r.Branch + "]"
}

// workingDirOrHome resolves the process working directory, falling back to
// the user's home directory if it cannot be determined.
func workingDirOrHome() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	home, _ := os.UserHomeDir()
	return filepath.Clean(home)
}
