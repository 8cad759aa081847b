// Package mixer defines the contract every console driver implements.
package mixer

const (
	// Self is passed as the input identifier to address a mix bus itself
	// instead of one of its sends.
	Self = ""

	// DefaultColor is reported for entities whose color is not known yet.
	DefaultColor = "none"

	// MeterMax is the highest meter value, i.e. the number of lit LEDs of a
	// fully driven meter.
	MeterMax = 20
)

// InputData bundles the data of an input. Level and mute refer to the send of
// the input into one specific mix.
type InputData struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
	Level float64 `json:"level"`
	Mute  bool    `json:"mute"`
}

// MixData bundles the data of a mix bus.
type MixData struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
	Level float64 `json:"level"`
	Mute  bool    `json:"mute"`
}

// Mixer is the set of operations a console driver supports. Queries never
// block on the network, they answer from the driver's cache. Mutations of
// unknown identifiers are ignored.
type Mixer interface {
	// Stop releases all network resources. The mixer must not be used
	// afterwards.
	Stop()

	// SetAddress points the mixer at a new console IP, rebuilding all
	// network state.
	SetAddress(ip string) error

	// Address returns the IP of the console.
	Address() string

	// InputData returns the data of input as sent to mix.
	InputData(mix, input string) (InputData, bool)

	// MixData returns the data of a mix bus.
	MixData(mix string) (MixData, bool)

	// MetersString encodes the meter value of every id as one character, in
	// the requested order.
	MetersString(ids []string) string

	// SetLevel changes the level (0..1) of a send, or of the mix itself when
	// input is Self.
	SetLevel(level float64, mix, input string)

	// SetMute changes the mute state of a send, or of the mix itself when
	// input is Self.
	SetMute(mute bool, mix, input string)

	RegisterListeners(l Listeners) ListenerID
	UnregisterListeners(id ListenerID)

	// ConsoleTypeName returns the catalog name of the console type.
	ConsoleTypeName() string
}
