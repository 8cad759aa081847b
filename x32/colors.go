package x32

import (
	"strings"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/lucasb-eyer/go-colorful"
)

// colorCodes maps the console's color index to its color code. The second
// half holds the inverted variants of the first.
var colorCodes = []string{
	"OFF", "RD", "GN", "YE", "BL", "MG", "CY", "WH",
	"OFFi", "RDi", "GNi", "YEi", "BLi", "MGi", "CYi", "WHi",
}

var colorNames = map[string]string{
	"OFF": mixer.DefaultColor,
	"RD":  "red",
	"GN":  "green",
	"YE":  "yellow",
	"BL":  "blue",
	"MG":  "magenta",
	"CY":  "cyan",
	"WH":  "white",
}

var colorValues = map[string]colorful.Color{
	"red":     {R: 1, G: 0, B: 0},
	"green":   {R: 0, G: 1, B: 0},
	"yellow":  {R: 1, G: 1, B: 0},
	"blue":    {R: 0, G: 0, B: 1},
	"magenta": {R: 1, G: 0, B: 1},
	"cyan":    {R: 0, G: 1, B: 1},
	"white":   {R: 1, G: 1, B: 1},
}

// colorFromCode converts a color code like RD or RDi to its color name.
func colorFromCode(code string) (string, bool) {
	name, ok := colorNames[strings.TrimSuffix(code, "i")]
	return name, ok
}

// colorFromIndex converts a color index to its color name.
func colorFromIndex(index int32) (string, bool) {
	if index < 0 || int(index) >= len(colorCodes) {
		return "", false
	}
	return colorFromCode(colorCodes[index])
}

// ColorHex returns the hex RGB value of a color name, e.g. #ff0000 for red.
// The default color has no RGB value.
func ColorHex(name string) (string, bool) {
	c, ok := colorValues[name]
	if !ok {
		return "", false
	}
	return c.Hex(), true
}
