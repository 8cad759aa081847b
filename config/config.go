package config

import (
	"net"
	"os"
	"path/filepath"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIP        = "192.168.2.208"
	DefaultMixerType = "Behringer X32"
	DefaultLogLevel  = "info"
)

// MixAssignment makes a mix available to users under a display name.
type MixAssignment struct {
	Mix   string `yaml:"mix"`
	Title string `yaml:"title,omitempty"`
}

// Config represents the options of the program
type Config struct {
	// IP of the console
	IP string `yaml:"ip"`

	// Catalog name of the console type
	MixerType string `yaml:"mixerType"`

	// UDP port of the console, 0 for the default of the console type
	Port int `yaml:"port,omitempty"`

	// Mixes offered to users
	Mixes []MixAssignment `yaml:"mixes,omitempty"`

	LogLevel string `yaml:"logLevel,omitempty"`
}

// NewConfig creates a Config with reasonable defaults for real usage
func NewConfig() Config {
	return Config{
		IP:        DefaultIP,
		MixerType: DefaultMixerType,
		LogLevel:  DefaultLogLevel,
	}
}

// Validate checks the config against the console catalog.
func (c Config) Validate() error {
	if net.ParseIP(c.IP) == nil {
		return errors.Errorf("ip %q is not an IP address", c.IP)
	}
	console, ok := catalog.Get(c.MixerType)
	if !ok {
		return errors.Errorf("unknown mixer type %q", c.MixerType)
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(err, "log level")
		}
	}
	seen := make(map[string]struct{}, len(c.Mixes))
	for _, m := range c.Mixes {
		if !console.HasMix(m.Mix) {
			return errors.Errorf("mix %q is not available on %s", m.Mix, c.MixerType)
		}
		if _, dup := seen[m.Mix]; dup {
			return errors.Errorf("mix %q assigned twice", m.Mix)
		}
		seen[m.Mix] = struct{}{}
	}
	return nil
}

// Load reads a config file. Fields missing from the file keep their defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	c := NewConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "parse config %s", path)
	}
	return c, nil
}

// Save writes the config file, creating its directory if needed.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}
