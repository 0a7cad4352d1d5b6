package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Orchestrator drives one turn at a time: it appends the user message,
// streams a completion, dispatches tool calls synchronously, and persists
// history as messages complete. See spec.md §4.5.
type Orchestrator struct {
	store    *SessionStore
	client   ChatClient
	registry *ToolRegistry
	logger   *slog.Logger

	history *HistoryManager
	session *Session
}

func NewOrchestrator(store *SessionStore, client ChatClient, registry *ToolRegistry, logger *slog.Logger, sess *Session) *Orchestrator {
	return &Orchestrator{
		store:    store,
		client:   client,
		registry: registry,
		logger:   logger,
		history:  NewHistoryManager(sess.History),
		session:  sess,
	}
}

// TurnEvent notifies a UI layer of orchestrator progress; it carries enough
// to drive TuiStateMachine transitions without the renderer reaching into
// internal state.
type TurnEvent struct {
	Kind        TurnEventKind
	Text        string
	ToolName    string
	ToolArgs    map[string]any
	ToolResult  *ToolResponse
	Usage       UsageMetrics
	Err         error
}

type TurnEventKind string

const (
	TurnText          TurnEventKind = "text"
	TurnToolStart     TurnEventKind = "tool_start"
	TurnToolEnd       TurnEventKind = "tool_end"
	TurnUsage         TurnEventKind = "usage"
	TurnCompletion    TurnEventKind = "completion"
	TurnDone          TurnEventKind = "done"
	TurnError         TurnEventKind = "error"
)

// RunTurn implements the algorithm from spec.md §4.5. notify is called for
// every UI-relevant event; it must not block for long since it runs inline
// with the streaming loop.
func (o *Orchestrator) RunTurn(ctx context.Context, userText string, attachments []PendingAttachment, notify func(TurnEvent)) error {
	userMsg := Message{Role: RoleUser, Text: userText, Parts: []ContentPart{TextPart(userText)}}
	for i, att := range attachments {
		stored, err := o.store.AddAttachment(o.session.ID, len(o.history.Completed()), i, att.OriginalName, att.MediaType, att.Data)
		if err != nil {
			return fmt.Errorf("staging attachment: %w", err)
		}
		userMsg.Attachments = append(userMsg.Attachments, stored)
	}
	o.history.AppendCompleted(userMsg)
	o.session.History = o.history.Completed()
	o.session.Touch()
	if err := o.store.Save(o.session); err != nil {
		return fmt.Errorf("persisting user message: %w", err)
	}

	return o.stream(ctx, notify)
}

// stream runs the model-driven part of a turn: one or more chat-client
// streams, separated by synchronous tool dispatch, until the model stops
// requesting tools or the turn is cancelled.
func (o *Orchestrator) stream(ctx context.Context, notify func(TurnEvent)) error {
	for {
		tools := o.registry.List()
		history := o.history.Snapshot()

		var currentKind ContentKind
		var sawAnyPart bool
		var pendingCalls []ContentPart
		var usage UsageMetrics
		var sawUsage bool
		var completionSeen bool

		closeCurrent := func() error {
			if !o.history.HasPending() {
				return nil
			}
			if _, err := o.history.Finalize(); err != nil {
				return err
			}
			o.session.History = o.history.Completed()
			o.session.Touch()
			return o.store.Save(o.session)
		}

		openKind := func(kind ContentKind) error {
			role := RoleAssistant
			if kind == KindFunctionResult {
				role = RoleTool
			}
			o.history.BeginPending(role)
			currentKind = kind
			return nil
		}

		emit := func(ev StreamEvent) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if ev.Usage != nil {
				usage.Accumulate(*ev.Usage)
				sawUsage = true
				notify(TurnEvent{Kind: TurnUsage, Usage: *ev.Usage})
				return nil
			}

			boundaryKind := ev.Kind
			if boundaryKind == KindFunctionResult {
				// FunctionResult events only arrive as model acknowledgements,
				// which share the assistant-text boundary rather than opening
				// their own message.
				boundaryKind = KindText
			}

			if !sawAnyPart || boundaryKind != currentKind {
				if sawAnyPart {
					if err := closeCurrent(); err != nil {
						return err
					}
				}
				if err := openKind(boundaryKind); err != nil {
					return err
				}
				sawAnyPart = true
			}

			switch ev.Kind {
			case KindText:
				notify(TurnEvent{Kind: TurnText, Text: ev.Text})
				return o.history.AppendPart(TextPart(ev.Text))
			case KindFunctionCall:
				part := FunctionCallPart(ev.CallID, ev.Name, ev.Arguments)
				pendingCalls = append(pendingCalls, part)
				return o.history.AppendPart(part)
			default:
				return nil
			}
		}

		err := o.client.Stream(ctx, history, tools, emit)
		if err != nil && ctx.Err() != nil {
			if sawAnyPart {
				o.history.Discard()
			}
			if sawUsage {
				usage.RequestCount = 1
				o.session.UsageMetrics.Accumulate(usage)
				if err := o.store.Save(o.session); err != nil {
					return fmt.Errorf("persisting usage metrics: %w", err)
				}
			}
			notify(TurnEvent{Kind: TurnDone})
			return nil
		}
		if sawAnyPart {
			if cerr := closeCurrent(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if err != nil {
			notify(TurnEvent{Kind: TurnError, Err: fmt.Errorf("%w: %v", ErrTransport, err)})
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}

		if sawUsage {
			usage.RequestCount = 1
		}
		o.session.UsageMetrics.Accumulate(usage)
		if err := o.store.Save(o.session); err != nil {
			return fmt.Errorf("persisting usage metrics: %w", err)
		}

		if len(pendingCalls) == 0 {
			notify(TurnEvent{Kind: TurnDone})
			return nil
		}

		for _, call := range pendingCalls {
			notify(TurnEvent{Kind: TurnToolStart, ToolName: call.Name, ToolArgs: call.Arguments})
			resp := o.registry.Invoke(ctx, call.Name, call.Arguments)
			notify(TurnEvent{Kind: TurnToolEnd, ToolName: call.Name, ToolResult: resp})

			if resp.PendingAttachment != nil {
				o.logger.Debug("tool staged an attachment", "tool", call.Name, "name", resp.PendingAttachment.OriginalName)
			}
			if resp.IsCompletion {
				completionSeen = true
			}

			o.history.BeginPending(RoleTool)
			currentKind = KindFunctionResult
			if err := o.history.AppendPart(FunctionResultPart(call.CallID, resp.String())); err != nil {
				return err
			}
			if _, err := o.history.Finalize(); err != nil {
				return err
			}
			o.session.History = o.history.Completed()
			o.session.Touch()
			if err := o.store.Save(o.session); err != nil {
				return fmt.Errorf("persisting tool result: %w", err)
			}
		}

		if completionSeen {
			notify(TurnEvent{Kind: TurnCompletion})
			notify(TurnEvent{Kind: TurnDone})
			return nil
		}

		select {
		case <-ctx.Done():
			notify(TurnEvent{Kind: TurnDone})
			return nil
		default:
		}
		// Loop: re-invoke the ChatClient with tool results appended to history.
	}
}

// encodeArgsForLog renders call arguments for debug logging without risking
// a panic on unmarshalable values.
func encodeArgsForLog(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return "<unencodable>"
	}
	return string(b)
}
