package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/app"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/config"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const meterLogInterval = time.Second

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "svc",
	Short:        "SimpleVolumeControl mixer driver",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the console and log its state changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("ip") {
			cfg.IP, _ = flags.GetString("ip")
		}
		if flags.Changed("type") {
			cfg.MixerType, _ = flags.GetString("type")
		}
		if flags.Changed("port") {
			cfg.Port, _ = flags.GetInt("port")
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return Run(ctx, cfg)
	},
}

var consolesCmd = &cobra.Command{
	Use:   "consoles",
	Short: "List the supported console types",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range catalog.Names() {
			c, _ := catalog.Get(name)
			if _, err := fmt.Fprintf(out, "%-16s %3d inputs %3d mixes\n", name, len(c.Inputs()), len(c.Mixes())); err != nil {
				return errors.Wrap(err, "write console list")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "svc.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	runCmd.Flags().String("ip", config.DefaultIP, "console IP address")
	runCmd.Flags().String("type", config.DefaultMixerType, "console type, see 'svc consoles'")
	runCmd.Flags().Int("port", x32.DefaultPort, "console UDP port")

	rootCmd.AddCommand(runCmd, consolesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Run starts the mixer described by cfg and logs its events until ctx is
// done.
func Run(ctx context.Context, cfg config.Config) error {
	// initialize the logger
	log := logger.GetProjectLogger()
	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	var opts []x32.Option
	if cfg.Port != 0 {
		opts = append(opts, x32.WithPort(cfg.Port))
	}

	log.WithFields(logrus.Fields{"type": cfg.MixerType, "ip": cfg.IP}).Info("Starting mixer...")
	a, err := app.New(cfg, app.ConsoleFactory(opts...))
	if err != nil {
		return err
	}

	a.OnConfigChange(func(c config.Config) {
		if err := c.Save(configPath); err != nil {
			log.WithError(err).Error("Cannot save config")
		}
	})
	a.RegisterListeners(eventLogger(a, log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return logMeters(ctx, a, log)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		a.Stop()
		return nil
	})
	return g.Wait()
}

func eventLogger(a *app.App, log *logrus.Entry) mixer.Listeners {
	return mixer.Listeners{
		OnMixChange: func(mix string) {
			if d, ok := a.Mixer().MixData(mix); ok {
				log.WithFields(logrus.Fields{"mix": mix, "name": d.Name, "color": d.Color}).Info("Mix changed")
			}
		},
		OnInputChange: func(input string) {
			log.WithField("input", input).Info("Input changed")
		},
		OnLevelChange: func(mix, input string) {
			log.WithFields(logrus.Fields{"mix": mix, "input": input, "level": levelOf(a.Mixer(), mix, input)}).Info("Level changed")
		},
		OnMuteChange: func(mix, input string) {
			log.WithFields(logrus.Fields{"mix": mix, "input": input, "mute": muteOf(a.Mixer(), mix, input)}).Info("Mute changed")
		},
	}
}

func levelOf(m mixer.Mixer, mix, input string) float64 {
	if input == mixer.Self {
		d, _ := m.MixData(mix)
		return d.Level
	}
	d, _ := m.InputData(mix, input)
	return d.Level
}

func muteOf(m mixer.Mixer, mix, input string) bool {
	if input == mixer.Self {
		d, _ := m.MixData(mix)
		return d.Mute
	}
	d, _ := m.InputData(mix, input)
	return d.Mute
}

// logMeters writes the meters of all assigned mixes at debug level.
func logMeters(ctx context.Context, a *app.App, log *logrus.Entry) error {
	t := time.NewTicker(meterLogInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !log.Logger.IsLevelEnabled(logrus.DebugLevel) {
				continue
			}
			mixes := a.Mixes()
			ids := make([]string, len(mixes))
			for i, m := range mixes {
				ids[i] = m.Mix
			}
			log.WithField("meters", a.Mixer().MetersString(ids)).Debug("Meters")
		}
	}
}
