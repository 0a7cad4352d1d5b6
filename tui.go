package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TuiState is one of the four states from spec.md §4.7.
type TuiState string

const (
	StateInput         TuiState = "input"
	StateThinking      TuiState = "thinking"
	StateToolExecution TuiState = "tool_execution"
	StateUserSelection TuiState = "user_selection"
)

// inputSubState distinguishes the editor's own Normal/Autocomplete modes
// from the TUI-level UserSelection state used for pickers.
type inputSubState string

const (
	inputNormal      inputSubState = "normal"
	inputAutocomplete inputSubState = "autocomplete"
)

// turnEventMsg wraps an orchestrator TurnEvent as a tea.Msg.
type turnEventMsg TurnEvent

// turnDoneMsg signals that the turn's event channel closed. waitForEvent
// sends it with a nil err; RunTurn's error reaches the UI as a TurnError.
type turnDoneMsg struct{ err error }

// tuiModel is the bubbletea Model implementing TuiStateMachine +
// ScrollbackTerminal, per spec.md §4.7/§4.8.
type tuiModel struct {
	app   *App
	theme *Theme
	repo  RepoInfo

	state    TuiState
	subState inputSubState

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	suggestions   []string
	suggestionIdx int

	pickerOptions []string
	pickerIdx     int
	pickerResolve func(string) SlashCommandResult

	turnCtx    context.Context
	turnCancel context.CancelFunc
	turnEvents chan TurnEvent

	streamingText strings.Builder
	width, height int
	quitting      bool
}

// NewTuiModel builds the initial model for a session, wiring the app's
// already-constructed collaborators (store, client, registry, orchestrator).
func NewTuiModel(app *App) *tuiModel {
	ta := textarea.New()
	ta.Placeholder = "Type a message, or /help for commands"
	ta.Focus()
	ta.ShowLineNumbers = false
	ta.SetHeight(3)

	vp := viewport.New(80, 20)
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &tuiModel{
		app:      app,
		theme:    NewTheme(app.Config.UI.Theme),
		repo:     DetectRepoInfo(app.Guard.Root()),
		state:    StateInput,
		subState: inputNormal,
		viewport: vp,
		input:    ta,
		spin:     sp,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spin.Tick}
	// An initial prompt on a session with no history yet is submitted as
	// the first turn without waiting for Enter.
	if p := m.app.Session.InitialPrompt; p != "" && len(m.app.Session.History) == 0 {
		_, cmd := m.startTurn(p)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.input.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg)

	case turnEventMsg:
		return m.onTurnEvent(TurnEvent(msg))

	case turnDoneMsg:
		m.state = StateInput
		if msg.err != nil {
			m.appendStatic(m.theme.RenderError("error: " + msg.err.Error()))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	if m.state == StateInput && m.subState == inputNormal {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *tuiModel) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case StateUserSelection:
		return m.onPickerKey(msg)
	case StateThinking, StateToolExecution:
		if msg.Type == tea.KeyCtrlC {
			if m.turnCancel != nil {
				m.turnCancel()
			}
			return m, nil
		}
		return m, nil
	}

	// StateInput.
	switch m.subState {
	case inputAutocomplete:
		return m.onAutocompleteKey(msg)
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if strings.HasPrefix(text, "/") {
			return m.runSlashCommand(text)
		}
		m.input.Reset()
		return m.startTurn(text)
	case tea.KeyRunes:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if strings.HasPrefix(m.input.Value(), "/") {
			m.subState = inputAutocomplete
			m.refreshSuggestions()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) refreshSuggestions() {
	m.suggestions = m.app.Commands.Suggestions(m.input.Value())
	m.suggestionIdx = 0
}

func (m *tuiModel) onAutocompleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.subState = inputNormal
		return m, nil
	case tea.KeyUp:
		if len(m.suggestions) > 0 {
			m.suggestionIdx = (m.suggestionIdx - 1 + len(m.suggestions)) % len(m.suggestions)
		}
		return m, nil
	case tea.KeyDown:
		if len(m.suggestions) > 0 {
			m.suggestionIdx = (m.suggestionIdx + 1) % len(m.suggestions)
		}
		return m, nil
	case tea.KeyTab:
		if len(m.suggestions) > 0 {
			m.input.SetValue("/" + m.suggestions[m.suggestionIdx] + " ")
			m.subState = inputNormal
		}
		return m, nil
	case tea.KeyEnter:
		if len(m.suggestions) == 1 {
			return m.runSlashCommand("/" + m.suggestions[0])
		}
		if len(m.suggestions) > 0 {
			m.input.SetValue("/" + m.suggestions[m.suggestionIdx] + " ")
			m.subState = inputNormal
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshSuggestions()
	return m, cmd
}

func (m *tuiModel) onPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = StateInput
		return m, nil
	case tea.KeyUp:
		if len(m.pickerOptions) > 0 {
			m.pickerIdx = (m.pickerIdx - 1 + len(m.pickerOptions)) % len(m.pickerOptions)
		}
		return m, nil
	case tea.KeyDown:
		if len(m.pickerOptions) > 0 {
			m.pickerIdx = (m.pickerIdx + 1) % len(m.pickerOptions)
		}
		return m, nil
	case tea.KeyEnter:
		m.state = StateInput
		if m.pickerResolve != nil && len(m.pickerOptions) > 0 {
			result := m.pickerResolve(m.pickerOptions[m.pickerIdx])
			m.applyResult(result)
		}
		return m, nil
	}
	return m, nil
}

func (m *tuiModel) runSlashCommand(line string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	m.subState = inputNormal
	result := m.app.Commands.Dispatch(m.app, line)
	m.applyResult(result)
	if m.quitting {
		return m, tea.Quit
	}
	return m, nil
}

func (m *tuiModel) applyResult(result SlashCommandResult) {
	if result.RequestExit {
		m.quitting = true
		return
	}
	if result.ClearScreen {
		m.viewport.SetContent("")
	}
	if result.InputContinuation {
		m.input.SetValue(result.Prefix)
		return
	}
	if result.OpenPicker {
		m.state = StateUserSelection
		m.pickerOptions = result.Options
		m.pickerIdx = 0
		m.pickerResolve = result.Resolve
		return
	}
	if result.Message != "" {
		m.appendStatic(result.Message)
	}
}

// startTurn begins an orchestrator turn on a background goroutine, piping
// TurnEvents back into the bubbletea event loop via a channel, the
// suspension-point model from spec.md §5.
func (m *tuiModel) startTurn(text string) (tea.Model, tea.Cmd) {
	m.appendStatic(m.theme.RenderUser("> " + text))
	m.state = StateThinking
	m.streamingText.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	m.turnCtx, m.turnCancel = ctx, cancel
	events := make(chan TurnEvent, 16)
	m.turnEvents = events

	go func() {
		err := m.app.Orchestrator.RunTurn(ctx, text, nil, func(ev TurnEvent) {
			events <- ev
		})
		if err != nil {
			// A transport error was already sent as TurnError, which stops
			// the UI reading this channel, so it is never shown twice.
			events <- TurnEvent{Kind: TurnError, Err: err}
		}
		close(events)
	}()

	return m, m.waitForEvent()
}

func (m *tuiModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.turnEvents
		if !ok {
			return turnDoneMsg{}
		}
		return turnEventMsg(ev)
	}
}

func (m *tuiModel) onTurnEvent(ev TurnEvent) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case TurnText:
		m.streamingText.WriteString(ev.Text)
	case TurnToolStart:
		m.state = StateToolExecution
		m.appendStatic(m.theme.RenderTool(fmt.Sprintf("[%s] %s", ev.ToolName, encodeArgsForLog(ev.ToolArgs))))
	case TurnToolEnd:
		m.state = StateThinking
		if ev.ToolResult != nil && !ev.ToolResult.Ok() {
			m.appendStatic(m.theme.RenderError(ev.ToolResult.Error))
		}
	case TurnCompletion:
		m.appendStatic(m.theme.RenderAssistant("✓ " + ev.Text))
	case TurnDone:
		if m.streamingText.Len() > 0 {
			m.appendStatic(m.theme.RenderAssistant(m.streamingText.String()))
			m.streamingText.Reset()
		}
		m.state = StateInput
		return m, nil
	case TurnError:
		m.appendStatic(m.theme.RenderError(ev.Err.Error()))
		m.state = StateInput
		return m, nil
	}
	return m, m.waitForEvent()
}

// appendStatic writes to ScrollbackTerminal's append-only region, clearing
// any updatable region per spec.md §4.8.
func (m *tuiModel) appendStatic(s string) {
	m.viewport.SetContent(m.viewport.View() + "\n" + s)
	m.viewport.GotoBottom()
}

func (m *tuiModel) View() string {
	if m.quitting {
		return "bye\n"
	}

	var b strings.Builder
	status := fmt.Sprintf(" %s  tokens=%s  tools=%s ",
		m.repo.StatusMarker(),
		FormatTokens(m.app.Session.UsageMetrics.InputTokens+m.app.Session.UsageMetrics.OutputTokens),
		m.app.Registry.ApprovalMode())
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.TextColor).Render(status))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch m.state {
	case StateThinking:
		b.WriteString(m.spin.View() + " thinking… (ctrl-c to cancel)\n")
	case StateToolExecution:
		b.WriteString(m.spin.View() + " running tool… (ctrl-c to cancel)\n")
	case StateUserSelection:
		for i, opt := range m.pickerOptions {
			line := "  " + opt
			if i == m.pickerIdx {
				line = m.theme.Highlight.Render("> " + opt)
			}
			b.WriteString(line + "\n")
		}
	default:
		b.WriteString(m.theme.Border.Render(m.input.View()))
		b.WriteString("\n")
		if m.subState == inputAutocomplete {
			for i, s := range m.suggestions {
				marker := "  "
				if i == m.suggestionIdx {
					marker = "> "
				}
				b.WriteString(marker + "/" + s + "\n")
			}
		}
	}
	return b.String()
}

// RunTUI starts the bubbletea program for an interactive session.
func RunTUI(app *App) error {
	m := NewTuiModel(app)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
