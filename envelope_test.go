package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessEnvelopeRendersNotesAndStatus(t *testing.T) {
	resp := Success("read_file", "read 42 bytes")
	assert.True(t, resp.Ok())

	out := resp.String()
	assert.Contains(t, out, `tool_name="read_file"`)
	assert.Contains(t, out, `<notes>read 42 bytes</notes>`)
	assert.Contains(t, out, `status="SUCCESS"`)
	assert.False(t, strings.Contains(out, "<error>"))
}

func TestFailedEnvelopeRendersError(t *testing.T) {
	resp := Failed("write_file", errors.New("boom"))
	assert.False(t, resp.Ok())

	out := resp.String()
	assert.Contains(t, out, `status="FAILED"`)
	assert.Contains(t, out, "<error>boom</error>")
}

func TestWithPathAddsAbsolutePathAndChecksum(t *testing.T) {
	resp := Success("write_file", "").WithPath("/tmp/foo.txt", "deadbeef")
	out := resp.String()
	assert.Contains(t, out, `absolute_path="/tmp/foo.txt"`)
	assert.Contains(t, out, `sha256_checksum="deadbeef"`)
}

func TestWithContentIncludesContentOnDisk(t *testing.T) {
	resp := Success("read_file", "").WithContent("hello <world>")
	out := resp.String()
	assert.Contains(t, out, "<content_on_disk>hello &lt;world&gt;</content_on_disk>")
}

func TestShellResultFieldsRendered(t *testing.T) {
	resp := Success("run_shell_command", "")
	resp.HasShellResult = true
	resp.Stdout = "out"
	resp.Stderr = "err"
	resp.ExitCode = 7
	resp.Pid = 1234

	out := resp.String()
	assert.Contains(t, out, "<exit_code>7</exit_code>")
	assert.Contains(t, out, "<pid>1234</pid>")
	assert.Contains(t, out, "<stdout>out</stdout>")
	assert.Contains(t, out, "<stderr>err</stderr>")
}

func TestNoShellResultOmitsShellFields(t *testing.T) {
	resp := Success("read_file", "")
	out := resp.String()
	assert.NotContains(t, out, "<exit_code>")
	assert.NotContains(t, out, "<stdout>")
}
