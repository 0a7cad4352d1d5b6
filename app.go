package main

import "log/slog"

// App bundles the long-lived collaborators a running session needs, shared
// between the orchestrator, slash commands, and the TUI. It holds the
// current session only — starting a new one or switching sessions replaces
// Session and Orchestrator in place rather than constructing a new App.
type App struct {
	Config       *Config
	Logger       *slog.Logger
	Guard        *PathGuard
	Store        *SessionStore
	Client       ChatClient
	Registry     *ToolRegistry
	Commands     *SlashCommandRegistry
	Session      *Session
	Orchestrator *Orchestrator
}

// NewApp wires every collaborator for a fresh or resumed session, per
// spec.md §4's component list.
func NewApp(cfg *Config, logger *slog.Logger, guard *PathGuard, store *SessionStore, client ChatClient, approval ApprovalMode, sess *Session) *App {
	registry := NewToolRegistry(approval)
	registry.Register(NewReadFileTool(guard))
	registry.Register(NewListFilesTool(guard))
	registry.Register(NewWriteFileTool(guard))
	registry.Register(NewReplaceTool(guard))
	registry.Register(NewReplaceInFileTool(guard))
	registry.Register(NewReadImageFileTool(guard))
	registry.Register(NewAttemptCompletionTool())

	runner := NewShellRunner(cfg.Sandbox, guard.Root())
	registry.Register(NewRunShellCommandTool(guard, runner, registry))

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Guard:    guard,
		Store:    store,
		Client:   client,
		Registry: registry,
		Commands: NewSlashCommandRegistry(),
		Session:  sess,
	}
	app.Orchestrator = NewOrchestrator(store, client, registry, logger, sess)
	return app
}
