package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThemeRendersNonEmptyOutputForEachRole(t *testing.T) {
	theme := NewTheme("default")
	require.NotNil(t, theme)

	assert.NotEmpty(t, theme.RenderUser("hi"))
	assert.NotEmpty(t, theme.RenderAssistant("hi"))
	assert.NotEmpty(t, theme.RenderTool("hi"))
	assert.NotEmpty(t, theme.RenderError("hi"))
}

func TestNewThemeProducesDistinctColors(t *testing.T) {
	theme := NewTheme("default")
	colors := map[string]bool{
		string(theme.PromptBorder): true,
		string(theme.ChatBorder):   true,
		string(theme.Warning):      true,
		string(theme.ErrorColor):   true,
	}
	assert.Len(t, colors, 4, "each semantic color should be visually distinct")
}
