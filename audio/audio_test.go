package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullDevice(t *testing.T) {
	d := NewNullDevice(22050)
	assert.Equal(t, 22050, d.SampleRate())

	ch, err := d.Start()
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("null device produced a chunk")
	default:
	}

	require.NoError(t, d.Stop())
	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, d.Stop())
}

func TestDownmixStereoToMono(t *testing.T) {
	assert.Equal(t, []float32{0.5, 0}, DownmixStereoToMono([]float32{1, 0, -1, 1}))
	assert.Equal(t, []float32{1}, DownmixStereoToMono([]float32{1, 1, 0.25}))
	assert.Empty(t, DownmixStereoToMono(nil))
}

func f32le(samples ...float32) []byte {
	b := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return b
}

func TestDecodeF32LE(t *testing.T) {
	b := append(f32le(0.25, -1), 0x01, 0x02)
	assert.Equal(t, []float32{0.25, -1}, DecodeF32LE(b))
}

func TestReadChunks(t *testing.T) {
	samples := make([]float32, chunkSamples+3)
	for i := range samples {
		samples[i] = float32(i)
	}
	out := make(chan []float32, 4)
	readChunks(bytes.NewReader(f32le(samples...)), out, make(chan struct{}))

	var got [][]float32
	for c := range out {
		got = append(got, c)
	}
	require.Len(t, got, 2)
	assert.Len(t, got[0], chunkSamples)
	assert.Equal(t, []float32{1024, 1025, 1026}, got[1])
}

func TestFileDeviceArgs(t *testing.T) {
	d := NewFileDevice("song.wav", 0, true)
	assert.Equal(t, DefaultSampleRate, d.SampleRate())
	assert.Contains(t, d.inputArgs(), "re")
	assert.Equal(t, "44100", d.outputArgs()["ar"])
	assert.Equal(t, "f32le", d.outputArgs()["f"])

	assert.NotContains(t, NewFileDevice("song.wav", 8000, false).inputArgs(), "re")
	assert.NoError(t, d.Stop())
}
