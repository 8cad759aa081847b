// Package catalog lists the supported console types together with the
// identifiers of their inputs and mixes.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const (
	DriverX32   = "x32"
	DriverDummy = "dummy"
)

//go:embed consoles.yaml
var consolesYAML []byte

// Range describes a run of identifiers sharing a prefix. A range with zero
// From and To stands for the bare prefix.
type Range struct {
	Prefix string `yaml:"prefix"`
	From   int    `yaml:"from"`
	To     int    `yaml:"to"`
}

// IDs expands the range into identifiers.
func (r Range) IDs() []string {
	if r.From == 0 && r.To == 0 {
		return []string{r.Prefix}
	}
	ids := make([]string, 0, r.To-r.From+1)
	for i := r.From; i <= r.To; i++ {
		ids = append(ids, fmt.Sprintf("%s%02d", r.Prefix, i))
	}
	return ids
}

type consoleDef struct {
	Name   string  `yaml:"name"`
	Driver string  `yaml:"driver"`
	Inputs []Range `yaml:"inputs"`
	Mixes  []Range `yaml:"mixes"`
}

// Console is one console type of the catalog.
type Console struct {
	Name   string
	Driver string

	inputs   []string
	mixes    []string
	inputSet map[string]struct{}
	mixSet   map[string]struct{}
}

// NewConsole builds a console from explicit identifier lists. Mostly useful
// for tests and for consoles that are not part of the embedded catalog.
func NewConsole(name, driver string, inputs, mixes []string) Console {
	c := Console{
		Name:     name,
		Driver:   driver,
		inputs:   slices.Clone(inputs),
		mixes:    slices.Clone(mixes),
		inputSet: make(map[string]struct{}, len(inputs)),
		mixSet:   make(map[string]struct{}, len(mixes)),
	}
	for _, id := range inputs {
		c.inputSet[id] = struct{}{}
	}
	for _, id := range mixes {
		c.mixSet[id] = struct{}{}
	}
	return c
}

// Inputs returns the input identifiers in catalog order.
func (c Console) Inputs() []string { return slices.Clone(c.inputs) }

// Mixes returns the mix identifiers in catalog order.
func (c Console) Mixes() []string { return slices.Clone(c.mixes) }

func (c Console) HasInput(id string) bool {
	_, ok := c.inputSet[id]
	return ok
}

func (c Console) HasMix(id string) bool {
	_, ok := c.mixSet[id]
	return ok
}

// Parse reads a catalog in the YAML format of the embedded consoles.yaml.
func Parse(data []byte) (map[string]Console, error) {
	var defs []consoleDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, errors.Wrap(err, "parse console catalog")
	}

	consoles := make(map[string]Console, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("console without name in catalog")
		}
		if _, dup := consoles[d.Name]; dup {
			return nil, errors.Errorf("console %q listed twice in catalog", d.Name)
		}
		var inputs, mixes []string
		for _, r := range d.Inputs {
			if r.To < r.From {
				return nil, errors.Errorf("console %q: input range %s%02d..%02d is empty", d.Name, r.Prefix, r.From, r.To)
			}
			inputs = append(inputs, r.IDs()...)
		}
		for _, r := range d.Mixes {
			if r.To < r.From {
				return nil, errors.Errorf("console %q: mix range %s%02d..%02d is empty", d.Name, r.Prefix, r.From, r.To)
			}
			mixes = append(mixes, r.IDs()...)
		}
		consoles[d.Name] = NewConsole(d.Name, d.Driver, inputs, mixes)
	}
	return consoles, nil
}

var (
	loadOnce sync.Once
	builtin  map[string]Console
)

func consoles() map[string]Console {
	loadOnce.Do(func() {
		var err error
		builtin, err = Parse(consolesYAML)
		if err != nil {
			panic(err)
		}
	})
	return builtin
}

// Get looks up a console type by name.
func Get(name string) (Console, bool) {
	c, ok := consoles()[name]
	return c, ok
}

// Names returns the names of all console types, sorted.
func Names() []string {
	names := maps.Keys(consoles())
	slices.Sort(names)
	return names
}
