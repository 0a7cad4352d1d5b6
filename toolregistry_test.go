package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name         string
	writeCapable bool
	calls        int
}

func (f *fakeTool) Name() string              { return f.name }
func (f *fakeTool) Description() string       { return "fake tool " + f.name }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{} }
func (f *fakeTool) WriteCapable() bool        { return f.writeCapable }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) *ToolResponse {
	f.calls++
	return Success(f.name, "ok")
}

func TestToolRegistryInvokeUnknownTool(t *testing.T) {
	r := NewToolRegistry(ApprovalAll)
	resp := r.Invoke(context.Background(), "nope", nil)
	assert.False(t, resp.Ok())
	assert.Contains(t, resp.Error, "unknown tool")
}

func TestToolRegistryRejectsWriteCapableToolUnderReadonly(t *testing.T) {
	r := NewToolRegistry(ApprovalReadonly)
	tool := &fakeTool{name: "write_file", writeCapable: true}
	r.Register(tool)

	resp := r.Invoke(context.Background(), "write_file", nil)
	assert.False(t, resp.Ok())
	assert.Equal(t, 0, tool.calls)
}

func TestToolRegistryAllowsWriteCapableToolUnderAll(t *testing.T) {
	r := NewToolRegistry(ApprovalAll)
	tool := &fakeTool{name: "write_file", writeCapable: true}
	r.Register(tool)

	resp := r.Invoke(context.Background(), "write_file", nil)
	assert.True(t, resp.Ok())
	assert.Equal(t, 1, tool.calls)
}

func TestToolRegistryAlwaysAllowsReadonlyTools(t *testing.T) {
	r := NewToolRegistry(ApprovalReadonly)
	tool := &fakeTool{name: "read_file"}
	r.Register(tool)

	resp := r.Invoke(context.Background(), "read_file", nil)
	assert.True(t, resp.Ok())
}

func TestToolRegistryListPreservesRegistrationOrder(t *testing.T) {
	r := NewToolRegistry(ApprovalAll)
	r.Register(&fakeTool{name: "b"})
	r.Register(&fakeTool{name: "a"})
	r.Register(&fakeTool{name: "c"})

	specs := r.List()
	require.Len(t, specs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{specs[0].Name, specs[1].Name, specs[2].Name})
}

func TestToolRegistryApproveRootIsPerProcessWhitelist(t *testing.T) {
	r := NewToolRegistry(ApprovalAll)
	assert.False(t, r.IsRootApproved("rm"))
	r.ApproveRoot("rm")
	assert.True(t, r.IsRootApproved("rm"))
}

func TestToolRegistrySetApprovalModeTakesEffectImmediately(t *testing.T) {
	r := NewToolRegistry(ApprovalReadonly)
	tool := &fakeTool{name: "write_file", writeCapable: true}
	r.Register(tool)

	resp := r.Invoke(context.Background(), "write_file", nil)
	assert.False(t, resp.Ok())

	r.SetApprovalMode(ApprovalAll)
	resp = r.Invoke(context.Background(), "write_file", nil)
	assert.True(t, resp.Ok())
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{"path": "a.go", "count": float64(3), "recursive": true}

	s, ok := argString(args, "path")
	assert.True(t, ok)
	assert.Equal(t, "a.go", s)

	_, ok = argString(args, "missing")
	assert.False(t, ok)

	assert.Equal(t, 3, argInt(args, "count", 0))
	assert.Equal(t, 7, argInt(args, "missing", 7))
	assert.True(t, argBool(args, "recursive", false))
	assert.False(t, argBool(args, "missing", false))
}
