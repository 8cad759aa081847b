package mixer

import (
	"strings"
	"sync"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
)

// DummyTypeName is the catalog name of the Dummy mixer.
const DummyTypeName = "Dummy Mixer"

// Dummy is a Mixer that knows no entities and ignores all changes. It serves
// as a placeholder while no console is configured.
type Dummy struct {
	mu       sync.Mutex
	ip       string
	registry *Registry
}

// NewDummy creates a Dummy mixer for ip.
func NewDummy(ip string) *Dummy {
	return &Dummy{ip: ip, registry: NewRegistry()}
}

func (d *Dummy) Stop() {}

func (d *Dummy) SetAddress(ip string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ip = ip
	return nil
}

func (d *Dummy) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ip
}

func (d *Dummy) InputData(mix, input string) (InputData, bool) {
	return InputData{}, false
}

func (d *Dummy) MixData(mix string) (MixData, bool) {
	return MixData{}, false
}

func (d *Dummy) MetersString(ids []string) string {
	return strings.Repeat(utils.B64Encode(0), len(ids))
}

func (d *Dummy) SetLevel(level float64, mix, input string) {}

func (d *Dummy) SetMute(mute bool, mix, input string) {}

func (d *Dummy) RegisterListeners(l Listeners) ListenerID {
	return d.registry.Register(l)
}

func (d *Dummy) UnregisterListeners(id ListenerID) {
	d.registry.Unregister(id)
}

func (d *Dummy) ConsoleTypeName() string {
	return DummyTypeName
}

var _ Mixer = (*Dummy)(nil)
