package main

import "fmt"

// Role identifies the speaker of a Message, per spec.md §3.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ContentPart is a tagged variant (sum type) for message content, per the
// "tagged variants over inheritance" design note in spec.md §9. Dispatch on
// Kind rather than a type hierarchy, so persistence and rendering share one
// switch statement instead of duplicating logic across types.
type ContentKind string

const (
	KindText           ContentKind = "text"
	KindFunctionCall    ContentKind = "function_call"
	KindFunctionResult ContentKind = "function_result"
	KindData           ContentKind = "data"
)

// ContentPart holds exactly the fields relevant to its Kind; callers branch
// on Kind before reading the rest.
type ContentPart struct {
	Kind ContentKind

	// KindText
	Text string

	// KindFunctionCall
	CallID    string
	Name      string
	Arguments map[string]any

	// KindFunctionResult
	ResultCallID string
	Result       string

	// KindData
	DataBytes     []byte
	DataReference string
	MediaType     string
}

func TextPart(text string) ContentPart {
	return ContentPart{Kind: KindText, Text: text}
}

func FunctionCallPart(callID, name string, args map[string]any) ContentPart {
	return ContentPart{Kind: KindFunctionCall, CallID: callID, Name: name, Arguments: args}
}

func FunctionResultPart(callID, result string) ContentPart {
	return ContentPart{Kind: KindFunctionResult, ResultCallID: callID, Result: result}
}

func DataPart(mediaType string, bytes []byte, reference string) ContentPart {
	return ContentPart{Kind: KindData, MediaType: mediaType, DataBytes: bytes, DataReference: reference}
}

// Message is one turn element: a role, plain text (kept for quick rendering
// and for providers that want a flattened view), ordered content parts, and
// ordered attachments. See spec.md §3.
type Message struct {
	Role        Role
	Text        string
	Parts       []ContentPart
	Attachments []Attachment
}

// FunctionCallIDs returns the call ids of every FunctionCall part in the
// message, in order.
func (m Message) FunctionCallIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if p.Kind == KindFunctionCall {
			ids = append(ids, p.CallID)
		}
	}
	return ids
}

// FunctionResultIDs returns the call ids of every FunctionResult part.
func (m Message) FunctionResultIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if p.Kind == KindFunctionResult {
			ids = append(ids, p.ResultCallID)
		}
	}
	return ids
}

// ValidateCallPairing checks spec.md invariant 2: every FunctionResult(cid)
// in history is preceded by a FunctionCall(cid) with the same id, and call
// ids are unique within the session.
func ValidateCallPairing(messages []Message) error {
	seen := map[string]bool{}
	open := map[string]bool{}
	for _, msg := range messages {
		for _, p := range msg.Parts {
			switch p.Kind {
			case KindFunctionCall:
				if seen[p.CallID] {
					return fmt.Errorf("duplicate call id %q", p.CallID)
				}
				seen[p.CallID] = true
				open[p.CallID] = true
			case KindFunctionResult:
				if !open[p.ResultCallID] {
					return fmt.Errorf("function result %q has no preceding function call", p.ResultCallID)
				}
				delete(open, p.ResultCallID)
			}
		}
	}
	return nil
}
