package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var imageMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
}

// ReadImageFileTool implements spec.md §4.2's read_image_file. It never
// inlines image bytes into the text envelope; instead it reports metadata
// and leaves attaching the binary content to the orchestrator's next
// outbound message, the way a multimodal attachment is staged.
type ReadImageFileTool struct {
	guard *PathGuard
}

func NewReadImageFileTool(guard *PathGuard) *ReadImageFileTool { return &ReadImageFileTool{guard: guard} }

func (t *ReadImageFileTool) Name() string      { return "read_image_file" }
func (t *ReadImageFileTool) WriteCapable() bool { return false }
func (t *ReadImageFileTool) Description() string {
	return "Reads an image file within the working root and stages it as a multimodal attachment for the next model turn."
}
func (t *ReadImageFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"absolute_path": map[string]any{"type": "string", "description": "Absolute path to the image, within the working root"},
		},
		"required": []string{"absolute_path"},
	}
}

func (t *ReadImageFileTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	raw, ok := argString(args, "absolute_path")
	if !ok || strings.TrimSpace(raw) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: absolute_path is required", ErrBadArgument))
	}

	ext := strings.ToLower(filepath.Ext(raw))
	mediaType, known := imageMediaTypes[ext]
	if !known {
		return Failed(t.Name(), fmt.Errorf("%w: unsupported image extension %q", ErrBadArgument, ext))
	}

	path, err := t.guard.Resolve(raw)
	if err != nil {
		return Failed(t.Name(), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Failed(t.Name(), fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrDenied, err))
	}
	if info.IsDir() {
		return Failed(t.Name(), fmt.Errorf("%w: %s is a directory", ErrBadArgument, path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Failed(t.Name(), fmt.Errorf("%w: %v", ErrIO, err))
	}

	hash := sha256Sum(data)
	notes := fmt.Sprintf("name=%s size=%d media_type=%s sha256=%s [attached to next message]",
		filepath.Base(path), info.Size(), mediaType, hash)
	resp := Success(t.Name(), notes).WithPath(path, hash)
	resp.PendingAttachment = &PendingAttachment{
		OriginalName: filepath.Base(path),
		MediaType:    mediaType,
		Data:         data,
	}
	return resp
}

// AttemptCompletionTool implements spec.md §4.2's attempt_completion: a
// write-capable terminal signal that a task is finished, carrying the
// summary the UI renders and ending the orchestrator's tool-use loop.
type AttemptCompletionTool struct{}

func NewAttemptCompletionTool() *AttemptCompletionTool { return &AttemptCompletionTool{} }

func (t *AttemptCompletionTool) Name() string      { return "attempt_completion" }
func (t *AttemptCompletionTool) WriteCapable() bool { return true }
func (t *AttemptCompletionTool) Description() string {
	return "Signals that the requested task is complete and presents a final result summary to the user."
}
func (t *AttemptCompletionTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{"type": "string", "description": "The final result summary to present"},
		},
		"required": []string{"result"},
	}
}

func (t *AttemptCompletionTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	result, ok := argString(args, "result")
	if !ok || strings.TrimSpace(result) == "" {
		return Failed(t.Name(), fmt.Errorf("%w: result is required", ErrBadArgument))
	}
	resp := Success(t.Name(), result)
	resp.IsCompletion = true
	return resp
}
