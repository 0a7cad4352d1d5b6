package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/mogzi-run/mogzi/storage"
)

// version is set at release time; "dev" disables the self-update check.
var version = "dev"

type chatCmd struct {
	Session    string `help:"Resume a session by id, id suffix, or name" optional:""`
	AutoSubmit bool   `short:"a" help:"Submit the initial prompt immediately without waiting for Enter"`
	Prompt     string `short:"p" help:"Initial prompt; combine with --auto-submit for a non-interactive first turn"`
}

type sessionListCmd struct{}

type sessionInfoCmd struct {
	Identifier string `arg:"" help:"Session id, id suffix, or name"`
}

type sessionRenameCmd struct {
	Identifier string `arg:"" help:"Session id, id suffix, or name"`
	NewName    string `arg:"" help:"New session name"`
}

type sessionCmd struct {
	List   sessionListCmd   `cmd:"" help:"List recent sessions"`
	Info   sessionInfoCmd   `cmd:"" help:"Show a session's metadata"`
	Rename sessionRenameCmd `cmd:"" help:"Rename a session"`
}

type versionCmd struct{}

type updateCmd struct{}

var cli struct {
	Debug   bool       `help:"Enable debug logging"`
	Config  string     `help:"Path to a project config.toml to load in addition to the user/env layers"`
	Chat    chatCmd    `cmd:"" default:"1" help:"Start or resume an interactive chat session"`
	Session sessionCmd `cmd:"" help:"Inspect or manage sessions"`
	Version versionCmd `cmd:"" help:"Print version information"`
	Update  updateCmd  `cmd:"" help:"Check for and install updates"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("mogzi"),
		kong.Description("A terminal chat agent with filesystem and shell tools."),
	)

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: using default configuration:", err)
		defaults := defaultConfig()
		cfg = &defaults
	}

	if cli.Config != "" {
		if err := LoadConfigOverride(cli.Config, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "warning: ignoring --config:", err)
		}
	}

	logger, err := InitLogger(cfg.Logging, cli.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: logging disabled:", err)
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	slog.SetDefault(logger)

	if err := ctx.Run(cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *versionCmd) Run(cfg *Config, logger *slog.Logger) error {
	fmt.Printf("mogzi %s\n", version)
	return nil
}

func (c *updateCmd) Run(cfg *Config, logger *slog.Logger) error {
	checker := NewUpdateChecker(version)
	latest, hasUpdate, err := checker.Latest()
	if err != nil {
		return err
	}
	if !hasUpdate {
		fmt.Println("already up to date")
		printTrackedUsage(cfg)
		return nil
	}
	fmt.Printf("updating to %s...\n", latest.Version)
	if err := checker.Apply(); err != nil {
		return err
	}
	printTrackedUsage(cfg)
	return nil
}

// printTrackedUsage reports the workspace's total tracked token usage from
// the advisory session index, so `mogzi update` doubles as a quick usage
// summary at a point the user is already checking in on the install.
// It's best-effort: a missing or unreadable index is silently skipped.
func printTrackedUsage(cfg *Config) {
	idx, err := storage.Open(cfg.Storage.IndexPath)
	if err != nil {
		return
	}
	defer idx.Close()

	input, output, err := idx.TotalUsage()
	if err != nil || (input == 0 && output == 0) {
		return
	}
	fmt.Printf("tracked usage across sessions: %s in / %s out\n", FormatTokens(input), FormatTokens(output))
}

// openSessionStore builds a SessionStore and attaches the advisory sqlite
// index, rebuilding it from session.json files the first time it's created.
func openSessionStore(cfg *Config) (*SessionStore, error) {
	store, err := NewSessionStore(cfg.Storage.ChatsRoot, cfg.Session.ListLimit)
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(cfg.Storage.IndexPath)
	idx, err := storage.Open(cfg.Storage.IndexPath)
	if err != nil {
		slog.Warn("session index unavailable, falling back to JSON scans", "error", err)
		return store, nil
	}
	store.AttachIndex(idx)
	if os.IsNotExist(statErr) {
		if err := store.RebuildIndex(); err != nil {
			slog.Warn("session index rebuild failed", "error", err)
		}
	}
	return store, nil
}

func (c *chatCmd) Run(cfg *Config, logger *slog.Logger) error {
	guard, err := NewPathGuard(workingDirOrHome())
	if err != nil {
		return err
	}
	store, err := openSessionStore(cfg)
	if err != nil {
		return err
	}

	var sess *Session
	if c.Session != "" {
		sess, err = store.Lookup(c.Session)
		if err != nil {
			return err
		}
	} else {
		sess = NewSession("")
	}

	client, err := NewChatClient(&cfg.LLM)
	if err != nil {
		return err
	}

	app := NewApp(cfg, logger, guard, store, client, ApprovalReadonly, sess)

	if c.Prompt != "" && c.AutoSubmit {
		app.Session.InitialPrompt = c.Prompt
	}

	return RunTUI(app)
}

func (c *sessionListCmd) Run(cfg *Config, logger *slog.Logger) error {
	store, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	headers, err := store.List()
	if err != nil {
		return err
	}
	for _, h := range headers {
		name := h.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %-20s  %s\n", h.ID[:8], name, h.LastModifiedAt)
	}
	return nil
}

func (c *sessionInfoCmd) Run(cfg *Config, logger *slog.Logger) error {
	store, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	sess, err := store.Lookup(c.Identifier)
	if err != nil {
		return err
	}
	fmt.Printf("id:              %s\n", sess.ID)
	fmt.Printf("name:            %s\n", sess.Name)
	fmt.Printf("created:         %s\n", sess.CreatedAt)
	fmt.Printf("last modified:   %s\n", sess.LastModifiedAt)
	fmt.Printf("messages:        %d\n", len(sess.History))
	fmt.Printf("tokens in/out:   %d/%d\n", sess.UsageMetrics.InputTokens, sess.UsageMetrics.OutputTokens)
	return nil
}

func (c *sessionRenameCmd) Run(cfg *Config, logger *slog.Logger) error {
	store, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	sess, err := store.Lookup(c.Identifier)
	if err != nil {
		return err
	}
	sess.Name = c.NewName
	sess.Touch()
	return store.Save(sess)
}
