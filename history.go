package main

import "fmt"

// HistoryManager holds the in-memory conversation for one session, split
// into completed (durable) messages and at most one pending message being
// streamed, per spec.md §4.4. Only one task (the orchestrator) ever mutates
// it, so it carries no internal locking.
type HistoryManager struct {
	completed []Message
	pending   *Message
}

// NewHistoryManager seeds a manager with a session's already-persisted history.
func NewHistoryManager(completed []Message) *HistoryManager {
	h := &HistoryManager{}
	h.completed = append(h.completed, completed...)
	return h
}

// AppendCompleted appends an already-finished message (user or tool input
// that never streams) directly to the completed log.
func (h *HistoryManager) AppendCompleted(msg Message) {
	h.completed = append(h.completed, msg)
}

// BeginPending starts a new pending message of the given role. It panics if
// a pending message is already open, since only one may exist at a time by
// construction of the orchestrator's single-threaded turn loop.
func (h *HistoryManager) BeginPending(role Role) {
	if h.pending != nil {
		panic("history: BeginPending called while a pending message is open")
	}
	h.pending = &Message{Role: role}
}

// HasPending reports whether a message is currently being streamed.
func (h *HistoryManager) HasPending() bool {
	return h.pending != nil
}

// PendingRole returns the role of the open pending message, if any.
func (h *HistoryManager) PendingRole() (Role, bool) {
	if h.pending == nil {
		return "", false
	}
	return h.pending.Role, true
}

// AppendPart appends a content part to the open pending message.
func (h *HistoryManager) AppendPart(part ContentPart) error {
	if h.pending == nil {
		return fmt.Errorf("history: no pending message open")
	}
	h.pending.Parts = append(h.pending.Parts, part)
	if part.Kind == KindText {
		h.pending.Text += part.Text
	}
	return nil
}

// AttachToPending records an attachment against the pending message.
func (h *HistoryManager) AttachToPending(att Attachment) error {
	if h.pending == nil {
		return fmt.Errorf("history: no pending message open")
	}
	h.pending.Attachments = append(h.pending.Attachments, att)
	return nil
}

// Finalize moves the pending message to completed and clears it. Returns the
// finalized message so the caller can persist it.
func (h *HistoryManager) Finalize() (Message, error) {
	if h.pending == nil {
		return Message{}, fmt.Errorf("history: no pending message to finalize")
	}
	msg := *h.pending
	h.completed = append(h.completed, msg)
	h.pending = nil
	return msg, nil
}

// Discard drops the pending message without persisting it (cancellation or
// failure path).
func (h *HistoryManager) Discard() {
	h.pending = nil
}

// Completed returns the ordered view of durable messages. The pending
// message, if any, is not included — callers that need to render it should
// call Pending() separately and treat it as a live region.
func (h *HistoryManager) Completed() []Message {
	out := make([]Message, len(h.completed))
	copy(out, h.completed)
	return out
}

// Pending returns a copy of the in-progress message, if one is open.
func (h *HistoryManager) Pending() (Message, bool) {
	if h.pending == nil {
		return Message{}, false
	}
	return *h.pending, true
}

// Snapshot returns the completed history only — the view a ChatClient
// request is built from. Pending content is never sent or persisted.
func (h *HistoryManager) Snapshot() []Message {
	return h.Completed()
}
