package main

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequencedChatClient returns the next canned turn each time Stream is
// called, so a test can script a tool-call round followed by a final
// text-only round.
type sequencedChatClient struct {
	turns [][]StreamEvent
	calls int
}

func (s *sequencedChatClient) Stream(ctx context.Context, history []Message, tools []ToolSpec, emit func(StreamEvent) error) error {
	idx := s.calls
	s.calls++
	if idx >= len(s.turns) {
		return nil
	}
	for _, ev := range s.turns[idx] {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func newTestOrchestrator(t *testing.T, client ChatClient) (*Orchestrator, *Session, *SessionStore) {
	t.Helper()
	store, err := NewSessionStore(t.TempDir(), 50)
	require.NoError(t, err)
	sess := NewSession("")
	registry := NewToolRegistry(ApprovalAll)
	registry.Register(NewAttemptCompletionTool())
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	orch := NewOrchestrator(store, client, registry, logger, sess)
	return orch, sess, store
}

func TestRunTurnTextOnlyCompletesAndPersists(t *testing.T) {
	client := &fakeChatClient{events: []StreamEvent{
		{Kind: KindText, Text: "hello "},
		{Kind: KindText, Text: "world"},
	}}
	orch, sess, store := newTestOrchestrator(t, client)

	var events []TurnEvent
	err := orch.RunTurn(context.Background(), "hi", nil, func(ev TurnEvent) { events = append(events, ev) })
	require.NoError(t, err)

	require.Len(t, sess.History, 2)
	assert.Equal(t, RoleUser, sess.History[0].Role)
	assert.Equal(t, "hello world", sess.History[1].Text)

	last := events[len(events)-1]
	assert.Equal(t, TurnDone, last.Kind)

	reloaded, err := store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", reloaded.History[1].Text)
}

func TestRunTurnDispatchesToolCallsAndContinues(t *testing.T) {
	client := &sequencedChatClient{turns: [][]StreamEvent{
		{{Kind: KindFunctionCall, CallID: "c1", Name: "noop_tool", Arguments: map[string]any{}}},
		{{Kind: KindText, Text: "done"}},
	}}
	orch, sess, _ := newTestOrchestrator(t, client)
	orch.registry.Register(&fakeTool{name: "noop_tool"})

	var toolEvents []TurnEvent
	err := orch.RunTurn(context.Background(), "do it", nil, func(ev TurnEvent) {
		if ev.Kind == TurnToolStart || ev.Kind == TurnToolEnd {
			toolEvents = append(toolEvents, ev)
		}
	})
	require.NoError(t, err)
	require.Len(t, toolEvents, 2)
	assert.Equal(t, TurnToolStart, toolEvents[0].Kind)
	assert.Equal(t, TurnToolEnd, toolEvents[1].Kind)

	// user, assistant function-call, tool result, final assistant text.
	require.Len(t, sess.History, 4)
	assert.Equal(t, RoleTool, sess.History[2].Role)
}

func TestRunTurnAttemptCompletionEndsLoop(t *testing.T) {
	client := &fakeChatClient{events: []StreamEvent{
		{Kind: KindFunctionCall, CallID: "c1", Name: "attempt_completion", Arguments: map[string]any{"result": "done"}},
	}}
	orch, _, _ := newTestOrchestrator(t, client)

	var kinds []TurnEventKind
	err := orch.RunTurn(context.Background(), "finish", nil, func(ev TurnEvent) { kinds = append(kinds, ev.Kind) })
	require.NoError(t, err)
	assert.Contains(t, kinds, TurnCompletion)
	assert.Equal(t, TurnDone, kinds[len(kinds)-1])
}

func TestRunTurnAccumulatesUsage(t *testing.T) {
	client := &fakeChatClient{events: []StreamEvent{
		{Kind: KindText, Text: "hi"},
		{Usage: &UsageMetrics{InputTokens: 10, OutputTokens: 5}},
	}}
	orch, sess, _ := newTestOrchestrator(t, client)

	err := orch.RunTurn(context.Background(), "hi", nil, func(TurnEvent) {})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sess.UsageMetrics.InputTokens)
	assert.Equal(t, int64(5), sess.UsageMetrics.OutputTokens)
	assert.Equal(t, int64(1), sess.UsageMetrics.RequestCount)
}

func TestRunTurnCancellationDiscardsPendingMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &fakeChatClient{events: []StreamEvent{{Kind: KindText, Text: "partial"}}}
	orch, sess, _ := newTestOrchestrator(t, client)

	err := orch.RunTurn(ctx, "hi", nil, func(TurnEvent) {})
	require.NoError(t, err)
	// Only the user message persists; the partial assistant reply is discarded.
	assert.Len(t, sess.History, 1)
}

// cancelAfterFirstPartChatClient emits one real content part, then cancels
// the turn's context before emitting a second part — modeling cancellation
// landing mid-stream rather than before the first byte arrives.
type cancelAfterFirstPartChatClient struct {
	cancel context.CancelFunc
}

func (c *cancelAfterFirstPartChatClient) Stream(ctx context.Context, history []Message, tools []ToolSpec, emit func(StreamEvent) error) error {
	if err := emit(StreamEvent{Kind: KindText, Text: "partial"}); err != nil {
		return err
	}
	c.cancel()
	return emit(StreamEvent{Kind: KindText, Text: " more"})
}

func TestRunTurnCancellationMidStreamDiscardsPartialMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &cancelAfterFirstPartChatClient{}
	orch, sess, store := newTestOrchestrator(t, client)
	client.cancel = cancel

	err := orch.RunTurn(ctx, "hi", nil, func(TurnEvent) {})
	require.NoError(t, err)

	// Only the user message persists — the partial assistant text that
	// streamed before cancellation landed must not be saved, even though
	// a content part was already open when the context closed.
	require.Len(t, sess.History, 1)
	assert.Equal(t, RoleUser, sess.History[0].Role)

	reloaded, err := store.Load(sess.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.History, 1)
}
