package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	"github.com/spf13/cobra"
)

var (
	host string
	port int
)

var rootCmd = &cobra.Command{
	Use:          "x32sim",
	Short:        "Simulate an X32 console on UDP",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := NewSimulator(net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return err
		}
		logger.GetProjectLogger().WithField("addr", sim.Addr()).Info("Simulator listening")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return sim.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen address")
	rootCmd.Flags().IntVar(&port, "port", 10023, "listen port")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error running simulator:", err)
		os.Exit(1)
	}
}
