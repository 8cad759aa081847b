// Package console creates the driver matching a console type of the catalog.
package console

import (
	"fmt"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/x32"
	"github.com/gruntwork-io/go-commons/errors"
)

// ErrUnknownConsole is returned for console types missing from the catalog or
// without a driver.
type ErrUnknownConsole struct {
	Type string
}

func (err ErrUnknownConsole) Error() string {
	return fmt.Sprintf("unknown console type %q", err.Type)
}

// New creates and starts the mixer for a console type. The options apply to
// X32 family drivers only.
func New(consoleType, ip string, opts ...x32.Option) (mixer.Mixer, error) {
	c, ok := catalog.Get(consoleType)
	if !ok {
		return nil, errors.WithStackTrace(ErrUnknownConsole{Type: consoleType})
	}

	switch c.Driver {
	case catalog.DriverX32:
		d, err := x32.New(ip, c, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	case catalog.DriverDummy:
		return mixer.NewDummy(ip), nil
	}
	return nil, errors.WithStackTrace(ErrUnknownConsole{Type: consoleType})
}

// Types returns the names of all supported console types.
func Types() []string {
	return catalog.Names()
}
