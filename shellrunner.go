package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

// ShellCommand is the normalized input to a ShellRunner, per spec.md §4.2's
// run_shell_command tool.
type ShellCommand struct {
	Command    string
	WorkingDir string // relative to the working root; empty means the root itself
}

// ShellResult is what run_shell_command reports back, per spec.md §4.2.
type ShellResult struct {
	ExitCode int
	Pid      int
	Stdout   string
	Stderr   string
	Combined string
}

// ShellRunner executes one shell command to completion. Implementations
// never allocate a TTY and accept no interactive input.
type ShellRunner interface {
	Run(ctx context.Context, cmd ShellCommand) (ShellResult, error)
}

// shellPath returns the per-OS shell invocation per spec.md §4.2.
func shellPath() (string, string) {
	switch runtime.GOOS {
	case "windows":
		return "cmd.exe", "/c"
	case "darwin":
		return "/bin/zsh", "-c"
	default:
		return "/bin/bash", "-c"
	}
}

// NewShellRunner selects the sandbox backend per config: "podman" sandboxes
// every command in a one-shot container, falling back to the host when
// allowed and podman is unreachable; "host" runs directly.
func NewShellRunner(cfg SandboxConfig, root string) ShellRunner {
	if cfg.Mode == "podman" {
		return NewPodmanShellRunner(cfg.Image, root, cfg.AllowHostFallback)
	}
	return NewHostShellRunner(root)
}

// HostShellRunner runs commands directly on the host.
type HostShellRunner struct {
	root string
}

func NewHostShellRunner(root string) *HostShellRunner {
	return &HostShellRunner{root: root}
}

func (h *HostShellRunner) Run(ctx context.Context, sc ShellCommand) (ShellResult, error) {
	shell, flag := shellPath()
	cmd := exec.CommandContext(ctx, shell, flag, sc.Command)
	cmd.Dir = h.root
	if sc.WorkingDir != "" {
		cmd.Dir = h.root + string(os.PathSeparator) + sc.WorkingDir
	}

	var stdout, stderr, combined syncBuffer
	cmd.Stdout = multiWriter(&stdout, &combined)
	cmd.Stderr = multiWriter(&stderr, &combined)

	runErr := cmd.Run()

	result := ShellResult{
		Stdout:   stripansi.Strip(stdout.String()),
		Stderr:   stripansi.Strip(stderr.String()),
		Combined: stripansi.Strip(combined.String()),
	}
	if cmd.Process != nil {
		result.Pid = cmd.Process.Pid
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, fmt.Errorf("%w: running command: %v", ErrIO, runErr)
		}
	}
	return result, nil
}

// syncBuffer lets concurrent stdout/stderr copies write into one buffer
// without interleaving corruption, per spec.md §4.2's concurrent capture.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func multiWriter(writers ...*syncBuffer) *fanoutWriter {
	return &fanoutWriter{writers: writers}
}

type fanoutWriter struct {
	writers []*syncBuffer
}

func (f *fanoutWriter) Write(p []byte) (int, error) {
	for _, w := range f.writers {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// tokenizeShellRoot extracts the root token of a command for the "all"
// approval mode whitelist, per spec.md §6: strip grouping characters,
// split on space/;/&/|, take the first token, then split on path
// separators and take the last segment.
func tokenizeShellRoot(command string) string {
	stripped := strings.NewReplacer("(", "", ")", "", "{", "", "}", "").Replace(command)
	first := strings.FieldsFunc(stripped, func(r rune) bool {
		return r == ' ' || r == ';' || r == '&' || r == '|' || r == '\t' || r == '\n'
	})
	if len(first) == 0 {
		return ""
	}
	token := first[0]
	parts := strings.FieldsFunc(token, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) == 0 {
		return token
	}
	return parts[len(parts)-1]
}
