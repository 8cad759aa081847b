package x32

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
	"github.com/fogleman/ease"
)

const (
	meters1 = "/meters/1"
	meters2 = "/meters/2"

	// MeterFloorDB is the level at and below which a meter shows no LED.
	MeterFloorDB = -60.0
	// MeterCeilDB is the level at and above which a meter is fully lit.
	MeterCeilDB = -3.0
)

// LEDCurve shapes the dB range between MeterFloorDB and MeterCeilDB onto the
// LEDs of a meter. It is an approximation of the console's own meters and may
// be replaced.
var LEDCurve ease.Function = ease.OutQuad

var dbToUnit = utils.ToUnitClamp(MeterFloorDB, MeterCeilDB)

// LEDCount converts a linear meter value (1.0 = 0 dBFS) to the number of lit
// LEDs, 0 to mixer.MeterMax.
func LEDCount(v float32) int {
	if !(v > 0) {
		return 0
	}
	db := 20 * math.Log10(float64(v))
	if db <= MeterFloorDB {
		return 0
	}
	if db >= MeterCeilDB {
		return mixer.MeterMax
	}
	n := int(math.Round(LEDCurve(dbToUnit(db)) * mixer.MeterMax))
	if n < 0 {
		return 0
	}
	if n > mixer.MeterMax {
		return mixer.MeterMax
	}
	return n
}

// meterSlot assigns one or two consecutive floats of a meter blob to an
// entity. Slots without id are skipped.
type meterSlot struct {
	id   string
	pair bool
}

func idRange(prefix string, from, to int) []meterSlot {
	slots := make([]meterSlot, 0, to-from+1)
	for i := from; i <= to; i++ {
		slots = append(slots, meterSlot{id: fmt.Sprintf("%s%02d", prefix, i)})
	}
	return slots
}

func concat(parts ...[]meterSlot) []meterSlot {
	var out []meterSlot
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var meterLayouts = map[string][]meterSlot{
	meters1: concat(
		idRange("ch", 1, 32),
		idRange("auxin", 1, 8),
		idRange("fxrtn", 1, 8),
	),
	meters2: concat(
		idRange("bus", 1, 16),
		idRange("mtx", 1, 6),
		[]meterSlot{{id: "main", pair: true}, {id: "mono"}, {}, {}},
	),
}

// decodeMeters reads a meter blob of the given stream: a big-endian int32
// value count followed by big-endian float32 values. It returns the LED count
// of every mapped entity. Values missing from a short blob are left out.
func decodeMeters(stream string, blob []byte) map[string]int {
	layout, ok := meterLayouts[stream]
	if !ok || len(blob) < 4 {
		return nil
	}

	count := int(int32(binary.BigEndian.Uint32(blob)))
	if avail := (len(blob) - 4) / 4; count > avail {
		count = avail
	}
	value := func(i int) float32 {
		return math.Float32frombits(binary.BigEndian.Uint32(blob[4+4*i:]))
	}

	out := make(map[string]int, len(layout))
	i := 0
	for _, slot := range layout {
		width := 1
		if slot.pair {
			width = 2
		}
		if i+width > count {
			break
		}
		if slot.id != "" {
			v := value(i)
			if slot.pair {
				v = (v + value(i+1)) / 2
			}
			out[slot.id] = LEDCount(v)
		}
		i += width
	}
	return out
}
