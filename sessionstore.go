package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mogzi-run/mogzi/storage"
)

// timeLayout is the on-disk timestamp format: RFC3339 with nanoseconds.
// Trailing zeros of the fraction are dropped, so the strings do not sort
// chronologically; orderings compare the parsed times instead.
const timeLayout = time.RFC3339Nano

// parseTime parses an on-disk timestamp, treating an empty or malformed
// value as the zero time rather than failing the whole session load.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SessionStore persists sessions under chatsRoot/<id>/session.json with a
// lazily-created attachments/ subdirectory, per spec.md §4.3 and §6.
type SessionStore struct {
	chatsRoot string
	listLimit int
	index     *storage.Index
}

// NewSessionStore prepares (creating if needed) the chats root directory.
func NewSessionStore(chatsRoot string, listLimit int) (*SessionStore, error) {
	if err := os.MkdirAll(chatsRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating chats root: %v", ErrIO, err)
	}
	if listLimit <= 0 {
		listLimit = 50
	}
	return &SessionStore{chatsRoot: chatsRoot, listLimit: listLimit}, nil
}

// AttachIndex wires an advisory rollup index into the store: every Save
// also upserts a rollup row, so usage summaries don't need to re-parse
// every session.json; List and Lookup still read the JSON files. The
// index is never authoritative; a nil
// index (the default) makes Save a pure JSON write, matching spec.md §4.3.
func (s *SessionStore) AttachIndex(idx *storage.Index) {
	s.index = idx
}

// RebuildIndex re-derives every rollup row from the on-disk session.json
// files and replaces the index's contents wholesale. Call this at startup
// when the index file is missing, empty, or suspected stale.
func (s *SessionStore) RebuildIndex() error {
	if s.index == nil {
		return nil
	}
	entries, err := os.ReadDir(s.chatsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: listing chats root: %v", ErrIO, err)
	}

	var rollups []storage.SessionRollup
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sess, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		rollups = append(rollups, rollupOf(sess))
	}
	return s.index.Rebuild(rollups)
}

func rollupOf(sess *Session) storage.SessionRollup {
	return storage.SessionRollup{
		ID:             sess.ID,
		Name:           sess.Name,
		CreatedAt:      sess.CreatedAt,
		LastModifiedAt: sess.LastModifiedAt,
		MessageCount:   len(sess.History),
		InputTokens:    sess.UsageMetrics.InputTokens,
		OutputTokens:   sess.UsageMetrics.OutputTokens,
	}
}

func (s *SessionStore) dir(id string) string {
	return filepath.Join(s.chatsRoot, id)
}

func (s *SessionStore) jsonPath(id string) string {
	return filepath.Join(s.dir(id), "session.json")
}

func (s *SessionStore) attachmentsDir(id string) string {
	return filepath.Join(s.dir(id), "attachments")
}

// onDiskSession mirrors the stable session.json schema from spec.md §6.
// Keeping it distinct from Session lets the in-memory model evolve (e.g.
// typed ContentPart) independently of the wire/disk shape.
type onDiskSession struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	CreatedAt      string              `json:"createdAt"`
	LastModifiedAt string              `json:"lastModifiedAt"`
	InitialPrompt  string              `json:"initialPrompt"`
	History        []onDiskMessage     `json:"history"`
	UsageMetrics   onDiskUsageMetrics  `json:"usageMetrics"`
}

type onDiskMessage struct {
	Role            string               `json:"role"`
	Content         string               `json:"content"`
	FunctionCalls   []onDiskFunctionCall `json:"functionCalls"`
	FunctionResults []onDiskFunctionResult `json:"functionResults"`
	Attachments     []Attachment         `json:"attachments"`
}

type onDiskFunctionCall struct {
	CallID    string         `json:"callId"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type onDiskFunctionResult struct {
	CallID string `json:"callId"`
	Result string `json:"result"`
}

type onDiskUsageMetrics struct {
	InputTokens      int64  `json:"inputTokens"`
	OutputTokens     int64  `json:"outputTokens"`
	CacheReadTokens  int64  `json:"cacheReadTokens"`
	CacheWriteTokens int64  `json:"cacheWriteTokens"`
	RequestCount     int64  `json:"requestCount"`
	LastUpdated      string `json:"lastUpdated"`
}

// SessionHeader is the subset of a session read cheaply for listings.
type SessionHeader struct {
	ID             string
	Name           string
	CreatedAt      string
	LastModifiedAt string
	InitialPrompt  string
}

// Save atomically (over)writes session.json: serialize, write to
// session.json.new, rename over session.json.
func (s *SessionStore) Save(sess *Session) error {
	if err := os.MkdirAll(s.dir(sess.ID), 0o755); err != nil {
		return fmt.Errorf("%w: creating session directory: %v", ErrIO, err)
	}
	disk := toOnDisk(sess)
	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling session: %v", ErrIO, err)
	}
	final := s.jsonPath(sess.ID)
	tmp := final + ".new"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing session.json.new: %v", ErrIO, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("%w: renaming session.json.new: %v", ErrIO, err)
	}

	if s.index != nil {
		if err := s.index.Upsert(rollupOf(sess)); err != nil {
			slog.Warn("session index upsert failed", "id", sess.ID, "error", err)
		}
	}
	return nil
}

// Load reads a session by id. A malformed session.json is renamed to
// session.json.corrupted and a fresh empty session (new id) is returned
// instead of crashing, per spec.md §4.3.
func (s *SessionStore) Load(id string) (*Session, error) {
	path := s.jsonPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: session %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: reading session.json: %v", ErrIO, err)
	}

	var disk onDiskSession
	if err := json.Unmarshal(data, &disk); err != nil {
		slog.Warn("session.json malformed, recovering", "id", id, "error", err)
		corrupted := path + ".corrupted"
		if renameErr := os.Rename(path, corrupted); renameErr != nil {
			slog.Error("failed to rename corrupted session.json", "id", id, "error", renameErr)
		}
		return NewSession(""), nil
	}

	return fromOnDisk(&disk), nil
}

// List enumerates chat directories, reads each header, sorts by
// lastModifiedAt descending and applies the configured cap.
func (s *SessionStore) List() ([]SessionHeader, error) {
	entries, err := os.ReadDir(s.chatsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing chats root: %v", ErrIO, err)
	}

	var headers []SessionHeader
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.chatsRoot, e.Name(), "session.json"))
		if err != nil {
			continue
		}
		var disk onDiskSession
		if err := json.Unmarshal(data, &disk); err != nil {
			continue
		}
		headers = append(headers, SessionHeader{
			ID:             disk.ID,
			Name:           disk.Name,
			CreatedAt:      disk.CreatedAt,
			LastModifiedAt: disk.LastModifiedAt,
			InitialPrompt:  disk.InitialPrompt,
		})
	}

	sort.Slice(headers, func(i, j int) bool {
		return parseTime(headers[i].LastModifiedAt).After(parseTime(headers[j].LastModifiedAt))
	})
	if len(headers) > s.listLimit {
		headers = headers[:s.listLimit]
	}
	return headers, nil
}

// Lookup resolves an identifier per spec.md §4.3: exact UUID, suffix match
// (length >= 8), or case-insensitive name match. Name collisions resolve to
// the most recently modified session.
func (s *SessionStore) Lookup(identifier string) (*Session, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrBadArgument)
	}

	if _, err := os.Stat(s.jsonPath(identifier)); err == nil {
		return s.Load(identifier)
	}

	headers, err := s.List()
	if err != nil {
		return nil, err
	}
	// List() already caps and sorts by recency; for lookup we want every
	// session considered, so re-scan uncapped.
	allHeaders, err := s.listAll()
	if err != nil {
		return nil, err
	}
	_ = headers

	var suffixMatches, nameMatches []SessionHeader
	lowerID := strings.ToLower(identifier)
	for _, h := range allHeaders {
		if len(identifier) >= 8 && strings.HasSuffix(h.ID, identifier) {
			suffixMatches = append(suffixMatches, h)
		}
		if strings.EqualFold(h.Name, identifier) {
			nameMatches = append(nameMatches, h)
		}
	}
	_ = lowerID

	switch {
	case len(suffixMatches) == 1:
		return s.Load(suffixMatches[0].ID)
	case len(suffixMatches) > 1:
		return nil, fmt.Errorf("%w: suffix %q matches %d sessions", ErrNameAmbiguous, identifier, len(suffixMatches))
	case len(nameMatches) >= 1:
		sort.Slice(nameMatches, func(i, j int) bool {
			return parseTime(nameMatches[i].LastModifiedAt).After(parseTime(nameMatches[j].LastModifiedAt))
		})
		return s.Load(nameMatches[0].ID)
	default:
		return nil, fmt.Errorf("%w: no session matches %q", ErrNotFound, identifier)
	}
}

func (s *SessionStore) listAll() ([]SessionHeader, error) {
	entries, err := os.ReadDir(s.chatsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing chats root: %v", ErrIO, err)
	}
	var headers []SessionHeader
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.chatsRoot, e.Name(), "session.json"))
		if err != nil {
			continue
		}
		var disk onDiskSession
		if err := json.Unmarshal(data, &disk); err != nil {
			continue
		}
		headers = append(headers, SessionHeader{
			ID: disk.ID, Name: disk.Name, CreatedAt: disk.CreatedAt,
			LastModifiedAt: disk.LastModifiedAt, InitialPrompt: disk.InitialPrompt,
		})
	}
	return headers, nil
}

// AddAttachment writes data under the session's attachments directory using
// the content-addressed naming scheme from spec.md §3/§6, deduplicating by
// content hash within the session. Identical bytes at the same
// (msgIndex,contentIndex) produce identical stored filenames; identical
// bytes at different positions still share the hash16 segment.
func (s *SessionStore) AddAttachment(sessionID string, msgIndex, contentIndex int, originalName, mediaType string, data []byte) (Attachment, error) {
	dir := s.attachmentsDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Attachment{}, fmt.Errorf("%w: creating attachments dir: %v", ErrIO, err)
	}

	sum := sha256.Sum256(data)
	hash16 := hex.EncodeToString(sum[:])[:16]
	ext := strings.TrimPrefix(filepath.Ext(originalName), ".")
	stored := fmt.Sprintf("%d-%d-%s", msgIndex, contentIndex, hash16)
	if ext != "" {
		stored += "." + ext
	}

	path := filepath.Join(dir, stored)
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return Attachment{}, fmt.Errorf("%w: writing attachment: %v", ErrIO, err)
		}
	}

	return Attachment{
		OriginalFileName: originalName,
		MediaType:        mediaType,
		SizeBytes:        int64(len(data)),
		MessageIndex:     msgIndex,
		ContentIndex:     contentIndex,
		StoredFileName:   stored,
		ContentHash:      hash16,
	}, nil
}

// ReadAttachment loads the bytes of a previously stored attachment.
func (s *SessionStore) ReadAttachment(sessionID string, att Attachment) ([]byte, error) {
	path := filepath.Join(s.attachmentsDir(sessionID), att.StoredFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading attachment: %v", ErrIO, err)
	}
	return data, nil
}

// Truncate implements "/session clear": keeps id/name/createdAt, clears
// history and usage metrics, and persists the result.
func (s *SessionStore) Truncate(sess *Session) error {
	sess.History = nil
	sess.UsageMetrics.Reset()
	sess.Touch()
	return s.Save(sess)
}

func toOnDisk(sess *Session) onDiskSession {
	disk := onDiskSession{
		ID:             sess.ID,
		Name:           sess.Name,
		CreatedAt:      sess.CreatedAt.Format(timeLayout),
		LastModifiedAt: sess.LastModifiedAt.Format(timeLayout),
		InitialPrompt:  sess.InitialPrompt,
		UsageMetrics: onDiskUsageMetrics{
			InputTokens:      sess.UsageMetrics.InputTokens,
			OutputTokens:     sess.UsageMetrics.OutputTokens,
			CacheReadTokens:  sess.UsageMetrics.CacheReadTokens,
			CacheWriteTokens: sess.UsageMetrics.CacheWriteTokens,
			RequestCount:     sess.UsageMetrics.RequestCount,
			LastUpdated:      sess.UsageMetrics.LastUpdated.Format(timeLayout),
		},
	}
	for _, m := range sess.History {
		dm := onDiskMessage{Role: string(m.Role), Content: m.Text, Attachments: m.Attachments}
		for _, p := range m.Parts {
			switch p.Kind {
			case KindFunctionCall:
				dm.FunctionCalls = append(dm.FunctionCalls, onDiskFunctionCall{CallID: p.CallID, Name: p.Name, Arguments: p.Arguments})
			case KindFunctionResult:
				dm.FunctionResults = append(dm.FunctionResults, onDiskFunctionResult{CallID: p.ResultCallID, Result: p.Result})
			}
		}
		disk.History = append(disk.History, dm)
	}
	return disk
}

func fromOnDisk(disk *onDiskSession) *Session {
	sess := &Session{
		ID:            disk.ID,
		Name:          disk.Name,
		InitialPrompt: disk.InitialPrompt,
	}
	sess.CreatedAt = parseTime(disk.CreatedAt)
	sess.LastModifiedAt = parseTime(disk.LastModifiedAt)
	sess.UsageMetrics = UsageMetrics{
		InputTokens:      disk.UsageMetrics.InputTokens,
		OutputTokens:     disk.UsageMetrics.OutputTokens,
		CacheReadTokens:  disk.UsageMetrics.CacheReadTokens,
		CacheWriteTokens: disk.UsageMetrics.CacheWriteTokens,
		RequestCount:     disk.UsageMetrics.RequestCount,
		LastUpdated:      parseTime(disk.UsageMetrics.LastUpdated),
	}
	for _, dm := range disk.History {
		m := Message{Role: Role(dm.Role), Text: dm.Content, Attachments: dm.Attachments}
		if dm.Content != "" {
			m.Parts = append(m.Parts, TextPart(dm.Content))
		}
		for _, fc := range dm.FunctionCalls {
			m.Parts = append(m.Parts, FunctionCallPart(fc.CallID, fc.Name, fc.Arguments))
		}
		for _, fr := range dm.FunctionResults {
			m.Parts = append(m.Parts, FunctionResultPart(fr.CallID, fr.Result))
		}
		sess.History = append(sess.History, m)
	}
	return sess
}
