package audio

import "math"

// Loudness below floorDB maps to 0, 0 dBFS maps to 1.
const floorDB = -60.0

// Level returns the loudness of a buffer normalized into [0, 1]: RMS,
// converted to dBFS, with [-60 dB, 0 dB] mapped linearly onto [0, 1].
func Level(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	if rms == 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	norm := (db - floorDB) / -floorDB
	return float32(min(1, max(0, norm)))
}

// ToPCM16 scales float samples in [-1, 1] to signed 16-bit PCM, clamping
// anything outside that range.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * math.MaxInt16
		v = min(math.MaxInt16, max(math.MinInt16, v))
		out[i] = int16(v)
	}
	return out
}
