package main

import (
	"fmt"
	"os"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/console"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	ip          string
	consoleType string
	port        int
	mix         string
)

var rootCmd = &cobra.Command{
	Use:          "mixmon",
	Short:        "Watch and control one mix of a console",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// keep log lines out of the terminal UI
		if err := logger.SetLevel("error"); err != nil {
			return err
		}

		m, err := console.New(consoleType, ip, x32.WithPort(port))
		if err != nil {
			return errors.Wrap(err, "connecting to console")
		}
		defer m.Stop()

		if _, ok := m.MixData(mix); !ok {
			return errors.Errorf("%s has no mix %q", consoleType, mix)
		}

		p := tea.NewProgram(newModel(m, mix))
		id := m.RegisterListeners(mixer.Listeners{
			OnMixChange:    func(string) { p.Send(changedMsg{}) },
			OnInputChange:  func(string) { p.Send(changedMsg{}) },
			OnLevelChange:  func(string, string) { p.Send(changedMsg{}) },
			OnMuteChange:   func(string, string) { p.Send(changedMsg{}) },
			OnMetersChange: func() { p.Send(changedMsg{}) },
		})
		defer m.UnregisterListeners(id)

		_, err = p.Run()
		return errors.Wrap(err, "running program")
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&ip, "ip", "192.168.2.208", "console IP address")
	flags.StringVar(&consoleType, "type", "Behringer X32", "console type")
	flags.IntVar(&port, "port", x32.DefaultPort, "console UDP port")
	flags.StringVar(&mix, "mix", "bus01", "mix to watch")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}
