package main

import (
	"context"
	"fmt"
	"strings"
)

// RunShellCommandTool implements spec.md §4.2's run_shell_command, dispatching
// to whichever ShellRunner backend the sandbox config selected.
type RunShellCommandTool struct {
	guard    *PathGuard
	runner   ShellRunner
	registry *ToolRegistry
	approval ApprovalMode
}

// NewRunShellCommandTool wires a runner against a registry so first-use
// root-token approval (spec.md §6, "all" mode) can be recorded process-wide.
func NewRunShellCommandTool(guard *PathGuard, runner ShellRunner, registry *ToolRegistry) *RunShellCommandTool {
	return &RunShellCommandTool{guard: guard, runner: runner, registry: registry}
}

func (t *RunShellCommandTool) Name() string      { return "run_shell_command" }
func (t *RunShellCommandTool) WriteCapable() bool { return true }
func (t *RunShellCommandTool) Description() string {
	return "Runs a shell command to completion within the working root and reports its exit code, stdout, stderr, and combined output."
}
func (t *RunShellCommandTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command":     map[string]any{"type": "string", "description": "The shell command to run"},
			"working_dir": map[string]any{"type": "string", "description": "Directory relative to the working root; defaults to the root itself"},
		},
		"required": []string{"command"},
	}
}

func (t *RunShellCommandTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	command, ok := argString(args, "command")
	if !ok || strings.TrimSpace(command) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: command is required", ErrBadArgument))
	}
	workingDir, _ := argString(args, "working_dir")

	if workingDir != "" {
		if _, err := t.guard.Resolve(workingDir); err != nil {
			return Failed(t.Name(), err)
		}
	}

	// A root token is whitelisted once per process; later commands sharing
	// it skip the announcement rather than repeating it on every call.
	root := tokenizeShellRoot(command)
	firstApproval := false
	if t.registry != nil && t.registry.ApprovalMode() == ApprovalAll && root != "" && !t.registry.IsRootApproved(root) {
		t.registry.ApproveRoot(root)
		firstApproval = true
	}

	result, err := t.runner.Run(ctx, ShellCommand{Command: command, WorkingDir: workingDir})
	if err != nil {
		return Failed(t.Name(), err)
	}

	notes := fmt.Sprintf("exit_code=%d pid=%d", result.ExitCode, result.Pid)
	if firstApproval {
		notes = fmt.Sprintf("%s root_approved=%s", notes, root)
	}
	resp := Success(t.Name(), notes).WithContent(result.Combined)
	resp.HasShellResult = true
	resp.Stdout = result.Stdout
	resp.Stderr = result.Stderr
	resp.ExitCode = result.ExitCode
	resp.Pid = result.Pid
	return resp
}
