package audio

import (
	"encoding/binary"
	"math"
)

// DownmixStereoToMono averages the channels of an interleaved stereo
// buffer. A trailing odd sample is dropped.
func DownmixStereoToMono(stereo []float32) []float32 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}
	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) * 0.5
	}
	return mono
}

// DecodeF32LE converts little-endian float32 PCM bytes to samples. A
// trailing partial sample is ignored.
func DecodeF32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
