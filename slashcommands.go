package main

import (
	"fmt"
	"sort"
	"strings"
)

// SlashCommandResult tells the TUI what happened so it can drive its own
// state transitions; handlers never touch TuiStateMachine directly.
type SlashCommandResult struct {
	// InputContinuation means the editor should be repopulated with Prefix
	// and returned to Normal state for the user to type an argument.
	InputContinuation bool
	Prefix            string

	// OpenPicker means the TUI should enter UserSelection with Options and,
	// on choice, call Resolve(choice).
	OpenPicker bool
	Options    []string
	Resolve    func(choice string) SlashCommandResult

	// RequestExit signals the application should shut down.
	RequestExit bool

	// ClearScreen signals the scrollback view should be cleared.
	ClearScreen bool

	// Message is informational text to render (e.g. /help output, errors).
	Message string
}

// SlashCommand is one registered command, per spec.md §4.6.
type SlashCommand struct {
	Name        string
	Help        string
	// RequiresInputContinuation reports whether invoking with no arguments
	// should populate the editor rather than run immediately.
	RequiresInputContinuation func(args []string) bool
	Handler                   func(app *App, args []string) SlashCommandResult
}

// SlashCommandRegistry holds all built-in commands and implements the
// autocomplete/input-continuation rules from spec.md §4.6.
type SlashCommandRegistry struct {
	commands map[string]SlashCommand
	order    []string
}

func NewSlashCommandRegistry() *SlashCommandRegistry {
	r := &SlashCommandRegistry{commands: make(map[string]SlashCommand)}
	r.register(SlashCommand{Name: "help", Help: "List available commands", Handler: handleHelp})
	r.register(SlashCommand{Name: "exit", Help: "Exit the application", Handler: handleExit})
	r.register(SlashCommand{Name: "quit", Help: "Exit the application", Handler: handleExit})
	r.register(SlashCommand{Name: "clear", Help: "Clear the screen and history view", Handler: handleClear})
	r.register(SlashCommand{Name: "tool-approvals", Help: "Choose readonly or all tool approval mode", Handler: handleToolApprovals})
	r.register(SlashCommand{Name: "session", Help: "session list|clear|rename [NAME]", Handler: handleSession})
	return r
}

func (r *SlashCommandRegistry) register(c SlashCommand) {
	if _, exists := r.commands[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.commands[c.Name] = c
}

// IsSlashCommand reports whether input should be routed here instead of the
// model, per spec.md §4.6: slash commands never round-trip through the model.
func (r *SlashCommandRegistry) IsSlashCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Suggestions returns command names matching a typed "/" prefix, for the
// editor's Autocomplete state, sorted and case-insensitive.
func (r *SlashCommandRegistry) Suggestions(prefix string) []string {
	prefix = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(prefix), "/"))
	var out []string
	for _, name := range r.order {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Dispatch parses and runs a slash command line, per spec.md §4.6.
func (r *SlashCommandRegistry) Dispatch(app *App, line string) SlashCommandResult {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return SlashCommandResult{Message: "empty command"}
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	cmd, ok := r.commands[name]
	if !ok {
		return SlashCommandResult{Message: fmt.Sprintf("unknown command: /%s (try /help)", name)}
	}
	if cmd.RequiresInputContinuation != nil && cmd.RequiresInputContinuation(args) {
		return SlashCommandResult{InputContinuation: true, Prefix: "/" + name + " "}
	}
	return cmd.Handler(app, args)
}

func handleHelp(app *App, args []string) SlashCommandResult {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range app.Commands.order {
		cmd := app.Commands.commands[name]
		fmt.Fprintf(&b, "  /%-16s %s\n", cmd.Name, cmd.Help)
	}
	return SlashCommandResult{Message: b.String()}
}

func handleExit(app *App, args []string) SlashCommandResult {
	return SlashCommandResult{RequestExit: true}
}

func handleClear(app *App, args []string) SlashCommandResult {
	return SlashCommandResult{ClearScreen: true}
}

func handleToolApprovals(app *App, args []string) SlashCommandResult {
	options := []string{string(ApprovalReadonly), string(ApprovalAll)}
	return SlashCommandResult{
		OpenPicker: true,
		Options:    options,
		Resolve: func(choice string) SlashCommandResult {
			app.Registry.SetApprovalMode(ApprovalMode(choice))
			return SlashCommandResult{Message: fmt.Sprintf("tool approvals set to %s", choice)}
		},
	}
}

func handleSession(app *App, args []string) SlashCommandResult {
	if len(args) == 0 {
		return SlashCommandResult{Message: "usage: /session list|clear|rename [NAME]"}
	}
	switch args[0] {
	case "list":
		return sessionListPicker(app)
	case "clear":
		if err := app.Store.Truncate(app.Session); err != nil {
			return SlashCommandResult{Message: fmt.Sprintf("session clear failed: %v", err)}
		}
		app.Orchestrator = NewOrchestrator(app.Store, app.Client, app.Registry, app.Logger, app.Session)
		return SlashCommandResult{ClearScreen: true, Message: "session cleared"}
	case "rename":
		if len(args) >= 2 {
			return renameSession(app, strings.Join(args[1:], " "))
		}
		return SlashCommandResult{InputContinuation: true, Prefix: "/session rename "}
	default:
		return SlashCommandResult{Message: fmt.Sprintf("unknown /session subcommand: %s", args[0])}
	}
}

func sessionListPicker(app *App) SlashCommandResult {
	headers, err := app.Store.List()
	if err != nil {
		return SlashCommandResult{Message: fmt.Sprintf("listing sessions failed: %v", err)}
	}
	options := make([]string, 0, len(headers))
	byLabel := make(map[string]string, len(headers))
	for _, h := range headers {
		label := h.ID[:8]
		if h.Name != "" {
			label = fmt.Sprintf("%s  %s", h.ID[:8], h.Name)
		}
		options = append(options, label)
		byLabel[label] = h.ID
	}
	return SlashCommandResult{
		OpenPicker: true,
		Options:    options,
		Resolve: func(choice string) SlashCommandResult {
			id, ok := byLabel[choice]
			if !ok {
				return SlashCommandResult{Message: "no such session"}
			}
			sess, err := app.Store.Lookup(id)
			if err != nil {
				return SlashCommandResult{Message: fmt.Sprintf("loading session failed: %v", err)}
			}
			app.Session = sess
			app.Orchestrator = NewOrchestrator(app.Store, app.Client, app.Registry, app.Logger, app.Session)
			return SlashCommandResult{ClearScreen: true, Message: fmt.Sprintf("loaded session %s", sess.ID[:8])}
		},
	}
}

func renameSession(app *App, newName string) SlashCommandResult {
	app.Session.Name = newName
	app.Session.Touch()
	if err := app.Store.Save(app.Session); err != nil {
		return SlashCommandResult{Message: fmt.Sprintf("rename failed: %v", err)}
	}
	return SlashCommandResult{Message: fmt.Sprintf("renamed session to %q", newName)}
}
