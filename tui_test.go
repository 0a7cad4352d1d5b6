package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTuiModelStartsInInputState(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)

	assert.Equal(t, StateInput, m.state)
	assert.Equal(t, inputNormal, m.subState)
}

func TestRefreshSuggestionsMatchesCommandPrefix(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)

	m.input.SetValue("/se")
	m.refreshSuggestions()
	assert.Equal(t, []string{"session"}, m.suggestions)
	assert.Equal(t, 0, m.suggestionIdx)
}

func TestAppendStaticGrowsScrollback(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)

	before := m.viewport.View()
	m.appendStatic("hello world")
	assert.NotEqual(t, before, m.viewport.View())
	assert.Contains(t, m.viewport.View(), "hello world")
}

func TestApplyResultRequestExitSetsQuitting(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)

	m.applyResult(SlashCommandResult{RequestExit: true})
	assert.True(t, m.quitting)
}

func TestApplyResultOpenPickerEntersUserSelectionState(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)

	resolve := func(string) SlashCommandResult { return SlashCommandResult{} }
	m.applyResult(SlashCommandResult{OpenPicker: true, Options: []string{"a", "b"}, Resolve: resolve})

	assert.Equal(t, StateUserSelection, m.state)
	assert.Equal(t, []string{"a", "b"}, m.pickerOptions)
	assert.Equal(t, 0, m.pickerIdx)
	require.NotNil(t, m.pickerResolve)
}

func TestApplyResultInputContinuationSeedsInput(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)

	m.applyResult(SlashCommandResult{InputContinuation: true, Prefix: "/session rename "})
	assert.Equal(t, "/session rename ", m.input.Value())
}

func TestRunSlashCommandClearsInputAndAppliesResult(t *testing.T) {
	app := newTestApp(t)
	m := NewTuiModel(app)
	m.input.SetValue("/help")

	model, _ := m.runSlashCommand("/help")
	updated := model.(*tuiModel)
	assert.Empty(t, updated.input.Value())
	assert.Equal(t, inputNormal, updated.subState)
}
