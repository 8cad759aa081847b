package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/console"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	"github.com/spf13/cobra"
)

var (
	ip          string
	consoleType string
	port        int
	settle      time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "mixdump [mix...]",
	Short:        "Dump the state of mixes after letting the driver sync",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := console.New(consoleType, ip, x32.WithPort(port))
		if err != nil {
			return err
		}
		defer m.Stop()

		logger.GetProjectLogger().WithField("settle", settle).Info("Waiting for console state")
		time.Sleep(settle)

		c, _ := catalog.Get(consoleType)
		mixes := args
		if len(mixes) == 0 {
			mixes = c.Mixes()
		}
		return dump(cmd.OutOrStdout(), m, mixes, c.Inputs())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&ip, "ip", "192.168.2.208", "console IP address")
	flags.StringVar(&consoleType, "type", "Behringer X32", "console type")
	flags.IntVar(&port, "port", x32.DefaultPort, "console UDP port")
	flags.DurationVar(&settle, "settle", 2*time.Second, "time to wait for the console state")
}

// dump prints every mix followed by the inputs routed into it.
func dump(w io.Writer, m mixer.Mixer, mixes, inputs []string) error {
	for _, id := range mixes {
		mix, ok := m.MixData(id)
		if !ok {
			if _, err := fmt.Fprintf(w, "%s: unknown mix\n", id); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%-8s %-16s %-8s level=%.3f mute=%t\n", mix.ID, mix.Name, mix.Color, mix.Level, mix.Mute); err != nil {
			return err
		}
		for _, input := range inputs {
			in, ok := m.InputData(id, input)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %-8s %-16s %-8s level=%.3f mute=%t\n", in.ID, in.Name, in.Color, in.Level, in.Mute); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
