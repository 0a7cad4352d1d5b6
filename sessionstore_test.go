package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogzi-run/mogzi/storage"
)

func TestSessionStoreSaveAndLoadRoundTrips(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)

	sess := NewSession("greeting")
	sess.History = append(sess.History, Message{
		Role: RoleAssistant,
		Text: "hi",
		Parts: []ContentPart{
			TextPart("hi"),
			FunctionCallPart("c1", "read_file", map[string]any{"absolute_path": "a.go"}),
		},
	})
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "greeting", loaded.Name)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "hi", loaded.History[0].Text)
	assert.Equal(t, []string{"c1"}, loaded.History[0].FunctionCallIDs())
}

func TestSessionStoreLoadRecoversFromCorruptedJSON(t *testing.T) {
	root := t.TempDir()
	store, err := NewSessionStore(root, 50)
	require.NoError(t, err)

	id := "bad-session"
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0o644))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, loaded.ID, "a fresh session id should be minted on recovery")

	_, statErr := os.Stat(filepath.Join(dir, "session.json.corrupted"))
	assert.NoError(t, statErr)
}

func TestSessionStoreLoadMissingReturnsNotFound(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)

	_, err = store.Load("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreListSortsByRecencyAndCaps(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 2)
	require.NoError(t, err)

	older := NewSession("older")
	older.LastModifiedAt = older.LastModifiedAt.Add(-time.Hour)
	middle := NewSession("middle")
	newest := NewSession("newest")
	newest.LastModifiedAt = newest.LastModifiedAt.Add(time.Hour)

	for _, s := range []*Session{older, middle, newest} {
		require.NoError(t, store.Save(s))
	}

	headers, err := store.List()
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "newest", headers[0].Name)
	assert.Equal(t, "middle", headers[1].Name)
}

func TestSessionStoreLookupByIDSuffixAndName(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)

	sess := NewSession("my-chat")
	require.NoError(t, store.Save(sess))

	byFull, err := store.Lookup(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byFull.ID)

	bySuffix, err := store.Lookup(sess.ID[len(sess.ID)-8:])
	require.NoError(t, err)
	assert.Equal(t, sess.ID, bySuffix.ID)

	byName, err := store.Lookup("MY-CHAT")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byName.ID)

	byNone, err := store.Lookup("nonexistent-name")
	assert.Error(t, err)
	assert.Nil(t, byNone)
}

func TestSessionStoreAttachmentRoundTrip(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)
	sess := NewSession("")
	require.NoError(t, store.Save(sess))

	att, err := store.AddAttachment(sess.ID, 0, 0, "pic.png", "image/png", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, "pic.png", att.OriginalFileName)

	data, err := store.ReadAttachment(sess.ID, att)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))
}

func TestSessionStoreTruncateClearsHistoryButKeepsIdentity(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)
	sess := NewSession("keepme")
	sess.History = []Message{{Role: RoleUser, Text: "hi"}}
	sess.UsageMetrics.InputTokens = 42
	require.NoError(t, store.Save(sess))

	require.NoError(t, store.Truncate(sess))
	assert.Empty(t, sess.History)
	assert.Zero(t, sess.UsageMetrics.InputTokens)
	assert.Equal(t, "keepme", sess.Name)

	reloaded, err := store.Load(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.History)
}

func TestSessionStoreAttachIndexUpsertsOnSave(t *testing.T) {
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)

	idx, err := storage.Open(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()
	store.AttachIndex(idx)

	sess := NewSession("indexed")
	require.NoError(t, store.Save(sess))

	rows, err := idx.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "indexed", rows[0].Name)
}

func TestSessionStoreRebuildIndexFromDisk(t *testing.T) {
	root := t.TempDir()
	store, err := NewSessionStore(root, 50)
	require.NoError(t, err)

	sess := NewSession("rebuilt")
	require.NoError(t, store.Save(sess))

	idx, err := storage.Open(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()
	store.AttachIndex(idx)

	require.NoError(t, store.RebuildIndex())

	rows, err := idx.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rebuilt", rows[0].Name)
}
