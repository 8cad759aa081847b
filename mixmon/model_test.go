package main

import (
	"testing"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTransport struct{}

func (nopTransport) Send(x32.Command) {}
func (nopTransport) Close()           {}

func newTestModel(t *testing.T) model {
	t.Helper()

	c, ok := catalog.Get("Behringer X32")
	require.True(t, ok)
	d, err := x32.New("127.0.0.1", c, x32.WithTransport(func(string, func([]byte)) x32.Transport {
		return nopTransport{}
	}))
	require.NoError(t, err)
	t.Cleanup(d.Stop)
	return newModel(d, "bus01")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m model, keys ...string) model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	return m
}

func TestRowsListRoutableInputs(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	// the mix itself plus 32 channels, 8 aux ins and 8 fx returns
	require.Len(t, m.rows, 1+48)
	assert.Equal(t, mixer.Self, m.rows[0].input)
	assert.Equal(t, "ch01", m.rows[1].input)
}

func TestKeysChangeLevelAndMute(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	m = update(m, "down", "right", "right", "left", "m")

	d, ok := m.mixer.InputData("bus01", "ch01")
	require.True(t, ok)
	assert.InDelta(t, 0.05, d.Level, 1e-6)
	assert.False(t, d.Mute)

	m = update(m, "up", "up", "left", "m")
	mix, _ := m.mixer.MixData("bus01")
	assert.Equal(t, 0.0, mix.Level)
	assert.False(t, mix.Mute)
	assert.Equal(t, 0, m.selected)
}

func TestQuit(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	next, cmd := m.Update(key("q"))
	assert.True(t, next.(model).quitting)
	assert.NotNil(t, cmd)
	assert.NotEmpty(t, next.View())
}
