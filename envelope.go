package main

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// ToolStatus is the outcome of a tool invocation.
type ToolStatus string

const (
	StatusSuccess ToolStatus = "SUCCESS"
	StatusFailed  ToolStatus = "FAILED"
)

// ToolResponse is the stable envelope every tool returns, per spec.md §3/§6.
// It serializes to the literal XML-like document the model and the renderer
// both consume.
type ToolResponse struct {
	ToolName      string
	Status        ToolStatus
	AbsolutePath  string
	Sha256        string
	Notes         string
	ContentOnDisk string
	HasContent    bool
	Error         string

	// Populated by run_shell_command only.
	HasShellResult bool
	Stdout         string
	Stderr         string
	ExitCode       int
	Pid            int

	// PendingAttachment is set by read_image_file: the orchestrator attaches
	// it to the next outbound user message rather than inlining it here.
	PendingAttachment *PendingAttachment

	// IsCompletion is set by attempt_completion to end the tool-use loop.
	IsCompletion bool
}

// PendingAttachment is binary content staged by a tool for inclusion in the
// next message sent to the model.
type PendingAttachment struct {
	OriginalName string
	MediaType    string
	Data         []byte
}

// Success builds a SUCCESS envelope.
func Success(toolName, notes string) *ToolResponse {
	return &ToolResponse{ToolName: toolName, Status: StatusSuccess, Notes: notes}
}

// Failed builds a FAILED envelope carrying the error text.
func Failed(toolName string, err error) *ToolResponse {
	return &ToolResponse{ToolName: toolName, Status: StatusFailed, Error: err.Error()}
}

// WithPath attaches the absolute path and checksum of the affected file.
func (r *ToolResponse) WithPath(absPath, sha256Hex string) *ToolResponse {
	r.AbsolutePath = absPath
	r.Sha256 = sha256Hex
	return r
}

// WithContent attaches the literal content-on-disk block.
func (r *ToolResponse) WithContent(content string) *ToolResponse {
	r.ContentOnDisk = content
	r.HasContent = true
	return r
}

// String renders the envelope as the literal XML-like document from spec.md §6.
func (r *ToolResponse) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<tool_response tool_name=%q>\n", r.ToolName)
	if r.Notes != "" {
		fmt.Fprintf(&b, "  <notes>%s</notes>\n", xmlEscape(r.Notes))
	}
	b.WriteString("  <result status=" + quoteAttr(string(r.Status)))
	if r.AbsolutePath != "" {
		b.WriteString(" absolute_path=" + quoteAttr(r.AbsolutePath))
	}
	if r.Sha256 != "" {
		b.WriteString(" sha256_checksum=" + quoteAttr(r.Sha256))
	}
	b.WriteString("/>\n")
	if r.HasContent {
		fmt.Fprintf(&b, "  <content_on_disk>%s</content_on_disk>\n", xmlEscape(r.ContentOnDisk))
	}
	if r.HasShellResult {
		fmt.Fprintf(&b, "  <exit_code>%d</exit_code>\n  <pid>%d</pid>\n", r.ExitCode, r.Pid)
		fmt.Fprintf(&b, "  <stdout>%s</stdout>\n", xmlEscape(r.Stdout))
		fmt.Fprintf(&b, "  <stderr>%s</stderr>\n", xmlEscape(r.Stderr))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "  <error>%s</error>\n", xmlEscape(r.Error))
	}
	b.WriteString("</tool_response>")
	return b.String()
}

func quoteAttr(s string) string {
	return fmt.Sprintf("%q", s)
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

// Ok reports whether the envelope represents a successful invocation.
func (r *ToolResponse) Ok() bool {
	return r.Status == StatusSuccess
}
