package main

import (
	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	levelStep = 0.05
	barWidth  = 40
)

// changedMsg tells the model that the mixer state changed.
type changedMsg struct{}

type row struct {
	input string // mixer.Self for the mix itself
	level progress.Model
	meter progress.Model
}

type model struct {
	mixer    mixer.Mixer
	mix      string
	rows     []row
	selected int
	quitting bool
}

func newBar() progress.Model {
	return progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
}

func newModel(m mixer.Mixer, mix string) model {
	inputs := []string{mixer.Self}
	if c, ok := catalog.Get(m.ConsoleTypeName()); ok {
		for _, input := range c.Inputs() {
			if _, ok := m.InputData(mix, input); ok {
				inputs = append(inputs, input)
			}
		}
	}

	rows := make([]row, 0, len(inputs))
	for _, input := range inputs {
		meter := progress.New(
			progress.WithScaledGradient("#00ff00", "#ff0000"),
			progress.WithWidth(barWidth/2),
			progress.WithoutPercentage(),
		)
		rows = append(rows, row{input: input, level: newBar(), meter: meter})
	}

	return model{mixer: m, mix: mix, rows: rows}
}

func (m model) Init() tea.Cmd {
	return nil
}

// state returns level and mute of a row.
func (m model) state(r row) (float64, bool) {
	if r.input == mixer.Self {
		d, _ := m.mixer.MixData(m.mix)
		return d.Level, d.Mute
	}
	d, _ := m.mixer.InputData(m.mix, r.input)
	return d.Level, d.Mute
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
		case "left", "h", "right", "l":
			r := m.rows[m.selected]
			level, _ := m.state(r)
			step := levelStep
			if s := msg.String(); s == "left" || s == "h" {
				step = -levelStep
			}
			m.mixer.SetLevel(utils.Clamp(level+step, 0, 1), m.mix, r.input)
		case "m", " ":
			r := m.rows[m.selected]
			_, mute := m.state(r)
			m.mixer.SetMute(!mute, m.mix, r.input)
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case changedMsg:
		return m, nil
	}
	return m, nil
}
