// Package app ties the configuration to the active mixer and swaps the mixer
// when the configured console changes.
package app

import (
	"net"
	"sync"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/config"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/console"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Factory creates the mixer for a console type.
type Factory func(consoleType, ip string) (mixer.Mixer, error)

// ConsoleFactory creates mixers through the console package. Options are
// passed to X32 family drivers.
func ConsoleFactory(opts ...x32.Option) Factory {
	return func(consoleType, ip string) (mixer.Mixer, error) {
		return console.New(consoleType, ip, opts...)
	}
}

// App owns the configuration and the active mixer. Listeners registered with
// the App keep receiving events across mixer swaps.
type App struct {
	factory  Factory
	registry *mixer.Registry
	log      *logrus.Entry

	// lifeMu serializes mixer swaps; mu guards the fields below and is never
	// held while a mixer starts or stops.
	lifeMu    sync.Mutex
	mu        sync.RWMutex
	cfg       config.Config
	mixer     mixer.Mixer
	forwardID mixer.ListenerID

	configMu        sync.Mutex
	configListeners []func(config.Config)
}

// New creates the App and starts the mixer described by cfg.
func New(cfg config.Config, factory Factory) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	a := &App{
		factory:  factory,
		registry: mixer.NewRegistry(),
		log:      logger.GetProjectLogger(),
		cfg:      cfg,
	}
	if err := a.startMixer(cfg.MixerType, cfg.IP); err != nil {
		return nil, err
	}
	return a, nil
}

// startMixer creates a mixer and makes it the active one. If the factory
// fails a Dummy takes its place.
func (a *App) startMixer(consoleType, ip string) error {
	m, err := a.factory(consoleType, ip)
	if err != nil {
		a.log.WithError(err).WithField("type", consoleType).Error("Cannot create mixer, falling back to dummy")
		m = mixer.NewDummy(ip)
		err = errors.Wrapf(err, "create %s mixer", consoleType)
	} else {
		a.log.WithFields(logrus.Fields{"type": consoleType, "ip": ip}).Info("Mixer ready")
	}
	id := m.RegisterListeners(a.registry.Forward())

	a.mu.Lock()
	a.mixer = m
	a.forwardID = id
	a.mu.Unlock()
	return err
}

func (a *App) stopMixer() {
	a.mu.RLock()
	m, id := a.mixer, a.forwardID
	a.mu.RUnlock()

	if m == nil {
		return
	}
	m.UnregisterListeners(id)
	m.Stop()
}

// Mixer returns the active mixer. The returned value becomes stale after a
// console type change.
func (a *App) Mixer() mixer.Mixer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mixer
}

// Config returns a copy of the current configuration.
func (a *App) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c := a.cfg
	c.Mixes = slices.Clone(a.cfg.Mixes)
	return c
}

// SetMixerIP points the active mixer at a new console address.
func (a *App) SetMixerIP(ip string) error {
	if net.ParseIP(ip) == nil {
		return errors.Errorf("ip %q is not an IP address", ip)
	}

	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	if a.Config().IP == ip {
		return nil
	}
	if err := a.Mixer().SetAddress(ip); err != nil {
		return errors.Wrap(err, "set mixer address")
	}
	a.mu.Lock()
	a.cfg.IP = ip
	a.mu.Unlock()

	a.log.WithField("ip", ip).Info("Mixer address changed")
	a.notifyConfig()
	return nil
}

// SetMixerType replaces the active mixer with one for consoleType. Mix
// assignments that the new console does not offer are dropped.
func (a *App) SetMixerType(consoleType string) error {
	c, ok := catalog.Get(consoleType)
	if !ok {
		return errors.Errorf("unknown mixer type %q", consoleType)
	}

	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	cfg := a.Config()
	if cfg.MixerType == consoleType {
		return nil
	}
	a.stopMixer()

	a.mu.Lock()
	a.cfg.MixerType = consoleType
	a.cfg.Mixes = filterMixes(a.cfg.Mixes, c)
	a.mu.Unlock()

	err := a.startMixer(consoleType, cfg.IP)
	a.notifyConfig()
	return err
}

// SetMixes replaces the mix assignments.
func (a *App) SetMixes(mixes []config.MixAssignment) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	cfg := a.Config()
	cfg.Mixes = slices.Clone(mixes)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	a.cfg.Mixes = cfg.Mixes
	a.mu.Unlock()

	a.notifyConfig()
	return nil
}

// Mixes returns the assigned mixes that the active console offers.
func (a *App) Mixes() []config.MixAssignment {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, ok := catalog.Get(a.cfg.MixerType)
	if !ok {
		return nil
	}
	return filterMixes(a.cfg.Mixes, c)
}

func filterMixes(mixes []config.MixAssignment, c catalog.Console) []config.MixAssignment {
	out := make([]config.MixAssignment, 0, len(mixes))
	for _, m := range mixes {
		if c.HasMix(m.Mix) {
			out = append(out, m)
		}
	}
	return out
}

// RegisterListeners subscribes to events of whichever mixer is active.
func (a *App) RegisterListeners(l mixer.Listeners) mixer.ListenerID {
	return a.registry.Register(l)
}

func (a *App) UnregisterListeners(id mixer.ListenerID) {
	a.registry.Unregister(id)
}

// OnConfigChange registers fn to be called with the new config after every
// change.
func (a *App) OnConfigChange(fn func(config.Config)) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.configListeners = append(a.configListeners, fn)
}

func (a *App) notifyConfig() {
	cfg := a.Config()

	a.configMu.Lock()
	listeners := slices.Clone(a.configListeners)
	a.configMu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// Stop stops the active mixer.
func (a *App) Stop() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	a.stopMixer()
}
