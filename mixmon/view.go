package main

import (
	"fmt"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Margin(0, 0, 1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	appStyle    = lipgloss.NewStyle().Margin(1, 2, 0, 2)

	grey = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
)

// nameStyle colors a name with the color of its entity, faded when muted.
func nameStyle(color string, mute bool) lipgloss.Style {
	style := lipgloss.NewStyle().Width(14)
	hex, ok := x32.ColorHex(color)
	if !ok {
		return style
	}
	if mute {
		c, err := colorful.Hex(hex)
		if err == nil {
			hex = c.BlendLab(grey, 0.6).Clamped().Hex()
		}
	}
	return style.Foreground(lipgloss.Color(hex))
}

func (m model) View() string {
	mix, _ := m.mixer.MixData(m.mix)
	s := titleStyle.Render(fmt.Sprintf("%s on %s (%s)", mix.Name, m.mixer.ConsoleTypeName(), m.mixer.Address()))
	s += "\n"

	for i, r := range m.rows {
		var name, color string
		if r.input == mixer.Self {
			name, color = mix.Name, mix.Color
		} else {
			d, _ := m.mixer.InputData(m.mix, r.input)
			name, color = d.Name, d.Color
		}
		level, mute := m.state(r)

		cursor := "  "
		if i == m.selected {
			cursor = cursorStyle.Render("> ")
		}
		muted := "   "
		if mute {
			muted = mutedStyle.Render("M  ")
		}

		meterID := r.input
		if meterID == mixer.Self {
			meterID = m.mix
		}
		meter := utils.B64Decode(m.mixer.MetersString([]string{meterID}))
		if meter < 0 {
			meter = 0
		}

		s += fmt.Sprintf("%s%s%s%s %s\n",
			cursor,
			nameStyle(color, mute).Render(name),
			muted,
			r.level.ViewAs(level),
			r.meter.ViewAs(float64(meter)/mixer.MeterMax),
		)
	}

	s += helpStyle.Render("up/down select  left/right level  m mute  q quit")
	if m.quitting {
		s += "\n"
	}
	return appStyle.Render(s)
}
