package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"
	"github.com/containers/podman/v5/pkg/bindings"
	"github.com/containers/podman/v5/pkg/bindings/containers"
	"github.com/containers/podman/v5/pkg/specgen"
	spec "github.com/opencontainers/runtime-spec/specs-go"
)

// PodmanShellRunner runs each command in a fresh, auto-removed container,
// mounting the working root at the same absolute path it has on the host.
// Unlike a persistent shell, every invocation is a clean one-shot container
// since run_shell_command per-call semantics don't assume shared state
// across calls.
type PodmanShellRunner struct {
	image         string
	root          string
	allowFallback bool
	host          *HostShellRunner
}

func NewPodmanShellRunner(image, root string, allowFallback bool) *PodmanShellRunner {
	if image == "" {
		image = "localhost/mogzi-shell:latest"
	}
	return &PodmanShellRunner{
		image:         image,
		root:          root,
		allowFallback: allowFallback,
		host:          NewHostShellRunner(root),
	}
}

func (r *PodmanShellRunner) Run(ctx context.Context, sc ShellCommand) (ShellResult, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		if r.allowFallback {
			slog.Warn("podman unavailable, falling back to host shell", "error", err)
			return r.host.Run(ctx, sc)
		}
		return ShellResult{}, fmt.Errorf("%w: connecting to podman: %v", ErrIO, err)
	}

	absRoot, err := filepath.Abs(r.root)
	if err != nil {
		return ShellResult{}, fmt.Errorf("%w: resolving working root: %v", ErrIO, err)
	}
	workdir := absRoot
	if sc.WorkingDir != "" {
		workdir = filepath.Join(absRoot, sc.WorkingDir)
	}

	shell, flag := shellPath()
	s := specgen.NewSpecGenerator(r.image, false)
	autoRemove := true
	s.Remove = &autoRemove
	s.Command = []string{shell, flag, sc.Command}
	s.WorkDir = workdir
	s.Mounts = []spec.Mount{{Type: "bind", Source: absRoot, Destination: absRoot}}

	created, err := containers.CreateWithSpec(conn, s, nil)
	if err != nil {
		return ShellResult{}, fmt.Errorf("%w: creating sandbox container: %v", ErrIO, err)
	}
	if err := containers.Start(conn, created.ID, nil); err != nil {
		return ShellResult{}, fmt.Errorf("%w: starting sandbox container: %v", ErrIO, err)
	}

	exitCode, waitErr := containers.Wait(conn, created.ID, nil)

	var stdout, stderr bytes.Buffer
	stdoutWriter := io.Writer(&stdout)
	stderrWriter := io.Writer(&stderr)
	logOpts := new(containers.LogOptions).WithStdout(true).WithStderr(true)
	if logErr := containers.Logs(conn, created.ID, logOpts, stdoutWriter, stderrWriter); logErr != nil {
		slog.Warn("failed to collect sandbox container logs", "error", logErr)
	}

	if waitErr != nil {
		return ShellResult{}, fmt.Errorf("%w: waiting for sandbox container: %v", ErrIO, waitErr)
	}

	return ShellResult{
		ExitCode: int(exitCode),
		Stdout:   stripansi.Strip(stdout.String()),
		Stderr:   stripansi.Strip(stderr.String()),
		Combined: stripansi.Strip(stdout.String() + stderr.String()),
	}, nil
}

func (r *PodmanShellRunner) connect(ctx context.Context) (context.Context, error) {
	if sock := os.Getenv("PODMAN_SOCKET"); sock != "" {
		return bindings.NewConnection(ctx, "unix://"+sock)
	}
	if conn, err := bindings.NewConnection(ctx, ""); err == nil {
		return conn, nil
	}
	uid := os.Getuid()
	userSocket := fmt.Sprintf("unix:///run/user/%d/podman/podman.sock", uid)
	if conn, err := bindings.NewConnection(ctx, userSocket); err == nil {
		return conn, nil
	}
	return bindings.NewConnection(ctx, "unix:///var/run/podman/podman.sock")
}
