package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRepoInfoOutsideGitRepoHasNoBranch(t *testing.T) {
	dir := t.TempDir()
	info := DetectRepoInfo(dir)
	assert.Equal(t, dir, info.ProjectRoot)
	assert.Empty(t, info.Branch)
	assert.False(t, info.Dirty)
}

func TestStatusMarkerFormatsCleanAndDirty(t *testing.T) {
	clean := RepoInfo{Branch: "main", Dirty: false}
	assert.Equal(t, "[main]", clean.StatusMarker())

	dirty := RepoInfo{Branch: "main", Dirty: true}
	assert.Equal(t, "[main*]", dirty.StatusMarker())
}

func TestStatusMarkerEmptyWithNoBranch(t *testing.T) {
	info := RepoInfo{}
	assert.Empty(t, info.StatusMarker())
}

func TestWorkingDirOrHomeReturnsNonEmptyPath(t *testing.T) {
	assert.NotEmpty(t, workingDirOrHome())
}
