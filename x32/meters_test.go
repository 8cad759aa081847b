package x32

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dbToLinear(db float64) float32 {
	return float32(math.Pow(10, db/20))
}

func meterBlob(values ...float32) []byte {
	blob := binary.BigEndian.AppendUint32(nil, uint32(len(values)))
	for _, v := range values {
		blob = binary.BigEndian.AppendUint32(blob, math.Float32bits(v))
	}
	return blob
}

func TestLEDCountBounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, LEDCount(0))
	assert.Equal(t, 0, LEDCount(-1))
	assert.Equal(t, 0, LEDCount(float32(math.NaN())))
	assert.Equal(t, 0, LEDCount(dbToLinear(-90)))
	assert.Equal(t, 0, LEDCount(dbToLinear(MeterFloorDB)))
	assert.Equal(t, mixer.MeterMax, LEDCount(dbToLinear(MeterCeilDB)))
	assert.Equal(t, mixer.MeterMax, LEDCount(1))
	assert.Equal(t, mixer.MeterMax, LEDCount(8))
}

func TestLEDCountIsMonotonic(t *testing.T) {
	t.Parallel()

	prev := 0
	for db := -80.0; db <= 6; db += 0.5 {
		n := LEDCount(dbToLinear(db))
		assert.GreaterOrEqual(t, n, prev, "at %v dB", db)
		assert.LessOrEqual(t, n, mixer.MeterMax)
		prev = n
	}
	assert.Equal(t, mixer.MeterMax, prev)
}

func TestDecodeMeters1(t *testing.T) {
	t.Parallel()

	values := make([]float32, 48)
	values[0] = 1                        // ch01
	values[31] = dbToLinear(-30)         // ch32
	values[32] = 1                       // auxin01
	values[47] = dbToLinear(MeterCeilDB) // fxrtn08

	got := decodeMeters(meters1, meterBlob(values...))
	require.Len(t, got, 48)
	assert.Equal(t, mixer.MeterMax, got["ch01"])
	assert.Equal(t, 0, got["ch02"])
	assert.Equal(t, LEDCount(dbToLinear(-30)), got["ch32"])
	assert.Equal(t, mixer.MeterMax, got["auxin01"])
	assert.Equal(t, mixer.MeterMax, got["fxrtn08"])
}

func TestDecodeMeters2AveragesMain(t *testing.T) {
	t.Parallel()

	values := make([]float32, 16+6+2+1+2)
	values[0] = 1  // bus01
	values[22] = 1 // main L
	values[23] = 0 // main R
	values[24] = 1 // mono
	values[25] = 1 // unmapped
	values[26] = 1 // unmapped

	got := decodeMeters(meters2, meterBlob(values...))
	require.Len(t, got, 16+6+2)
	assert.Equal(t, mixer.MeterMax, got["bus01"])
	assert.Equal(t, LEDCount(0.5), got["main"])
	assert.Equal(t, mixer.MeterMax, got["mono"])
}

func TestDecodeMetersShortBlob(t *testing.T) {
	t.Parallel()

	assert.Nil(t, decodeMeters(meters1, nil))
	assert.Nil(t, decodeMeters("/meters/9", meterBlob(1)))

	got := decodeMeters(meters1, meterBlob(1, 1))
	assert.Equal(t, map[string]int{"ch01": mixer.MeterMax, "ch02": mixer.MeterMax}, got)

	// count larger than the data present
	blob := meterBlob(1, 1, 1)
	binary.BigEndian.PutUint32(blob, 100)
	assert.Len(t, decodeMeters(meters1, blob), 3)

	// main pair cut in half is not read
	values := make([]float32, 23)
	got = decodeMeters(meters2, meterBlob(values...))
	assert.NotContains(t, got, "main")
	assert.Contains(t, got, "mtx06")
}
