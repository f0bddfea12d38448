package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(styles.DefaultStyles(), keymap.DefaultKeyMap().ChatHelp())

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
	assert.Equal(t, 80, bar.Width())
}

func TestNewBar_NilStyles(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.NotNil(t, bar.styles)
}

func TestBar_ViewStates(t *testing.T) {
	tests := []struct {
		state   State
		message string
		want    string
	}{
		{StateReady, "", "Ready"},
		{StateReady, "Conversation cleared", "Conversation cleared"},
		{StateThinking, "", "Thinking..."},
		{StateSearching, "", "Searching..."},
		{StateError, "boom", "Error: boom"},
		{StateError, "", "Error"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state)+tt.message, func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetWidth(120)
			bar.SetState(tt.state)
			bar.SetMessage(tt.message)

			assert.Contains(t, bar.View(), tt.want)
		})
	}
}

func TestBar_ViewShowsSessionAndHints(t *testing.T) {
	bar := NewBar(nil, keymap.DefaultKeyMap().ChatHelp())
	bar.SetWidth(160)
	bar.SetSession("abc")

	view := bar.View()

	assert.Contains(t, view, "session abc")
	assert.Contains(t, view, "enter: send")
	assert.Contains(t, view, "tab: chat/search")
}

func TestBar_NarrowWidthStillRenders(t *testing.T) {
	bar := NewBar(nil, keymap.DefaultKeyMap().ChatHelp())
	bar.SetWidth(5)

	assert.NotEmpty(t, bar.View())
}

func TestBar_Clear(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetState(StateError)
	bar.SetMessage("boom")

	bar.Clear()

	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
}
