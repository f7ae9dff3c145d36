package outputsink

import (
	"math"
	"testing"
)

func TestApplyFadesRampUpAndDown(t *testing.T) {
	planar := [][]float32{{1, 1, 1, 1, 1, 1}}
	applyFades(planar, 2, 2)

	want := []float32{0, 0.5, 1, 1, 0.5, 0}
	for i, w := range want {
		if math.Abs(float64(planar[0][i]-w)) > 1e-6 {
			t.Errorf("planar[0][%d] = %v, want %v", i, planar[0][i], w)
		}
	}
}

func TestApplyFadesNoopWhenZero(t *testing.T) {
	planar := [][]float32{{1, 1, 1}}
	applyFades(planar, 0, 0)
	for i, v := range planar[0] {
		if v != 1 {
			t.Errorf("planar[0][%d] = %v, want unchanged 1", i, v)
		}
	}
}

func TestApplyVolumeUnityIsNoop(t *testing.T) {
	raw := []byte{0x10, 0x20}
	before := append([]byte{}, raw...)
	applyVolume(raw, 16, 1.0)
	for i := range raw {
		if raw[i] != before[i] {
			t.Errorf("unity volume mutated byte %d", i)
		}
	}
}

func TestApplyVolumeZeroAttenuatesTowardSilence(t *testing.T) {
	raw := make([]byte, 2)
	raw[0] = 0xFF
	raw[1] = 0x7F // int16 max (32767)

	applyVolume(raw, 16, 0.0)

	v := int16(uint16(raw[0]) | uint16(raw[1])<<8)
	if math.Abs(float64(v)) > 327 { // curve = 10^-2, max/100
		t.Errorf("volume 0 left sample at %d, want close to 0", v)
	}
}

func TestDecodeSampleFloatRoundTrips16Bit(t *testing.T) {
	raw := []byte{0x00, 0x40} // int16 16384, half of max
	v := decodeSampleFloat(raw, 2)
	if math.Abs(float64(v)-0.5) > 0.01 {
		t.Errorf("decodeSampleFloat = %v, want close to 0.5", v)
	}
}
