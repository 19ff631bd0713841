package inputs

import (
	"fmt"
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/richinsley/goshadergraph/audio"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/params"
)

const (
	// SpectrumBins is the length of the spectrum and waveform arrays.
	SpectrumBins = 512
	// 2048 samples give 1024 frequency bins; the lowest 512 are published.
	fftInputSize      = 2048
	historyBufferSize = fftInputSize * 4

	minDecibels = -100.0
	maxDecibels = -30.0

	defaultSmoothing = 0.8
)

// Audio analyses an audio.Device and publishes, for a provider named n:
//
//	n_spectrum  FloatArray of SpectrumBins magnitudes in [0, 1]
//	n_waveform  FloatArray of the latest SpectrumBins samples in [0, 1]
//	n_volume    Float RMS of the analysis window
//
// Samples arrive on a goroutine; the analysis runs on the first Get after
// each SetTime.
type Audio struct {
	name   string
	device audio.Device

	mu            sync.Mutex
	historyBuffer []float32
	bufferPos     int
	received      int

	window    []float64
	smoothing float64
	lastFFT   []float64
	stale     bool
	raw       []float32
	spectrum  []float32
	waveform  []float32
	volume    float32
}

// NewAudio starts device and begins collecting its samples.
func NewAudio(name string, device audio.Device) (*Audio, error) {
	a := &Audio{
		name:          name,
		device:        device,
		historyBuffer: make([]float32, historyBufferSize),
		window:        blackmanWindow(fftInputSize),
		smoothing:     defaultSmoothing,
		lastFFT:       make([]float64, SpectrumBins),
		raw:           make([]float32, SpectrumBins),
		spectrum:      make([]float32, SpectrumBins),
		waveform:      make([]float32, SpectrumBins),
		stale:         true,
	}
	for i := range a.lastFFT {
		a.lastFFT[i] = minDecibels
	}
	ch, err := device.Start()
	if err != nil {
		return nil, fmt.Errorf("could not start audio device: %w", err)
	}
	go a.listen(ch)
	logger.Logger().Debug("audio input started", "name", name, "rate", device.SampleRate())
	return a, nil
}

func (a *Audio) listen(ch <-chan []float32) {
	for samples := range ch {
		a.Push(samples)
	}
	logger.Logger().Debug("audio input channel closed", "name", a.name)
}

// Push appends samples to the history as if the device had sent them.
func (a *Audio) Push(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.historyBuffer[a.bufferPos] = s
		a.bufferPos = (a.bufferPos + 1) % historyBufferSize
	}
	a.received += len(samples)
}

// recent returns the latest n samples, oldest first. Caller holds mu.
func (a *Audio) recent(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = a.historyBuffer[(a.bufferPos-n+i+historyBufferSize)%historyBufferSize]
	}
	return out
}

func (a *Audio) analyse() {
	samples := a.recent(fftInputSize)
	windowed := make([]float64, fftInputSize)
	var sum float64
	for i, s := range samples {
		windowed[i] = float64(s) * a.window[i]
		sum += float64(s) * float64(s)
	}
	a.volume = float32(math.Sqrt(sum / fftInputSize))

	bins := fft.FFTReal(windowed)
	for i := range SpectrumBins {
		re, im := real(bins[i]), imag(bins[i])
		magnitude := math.Sqrt(re*re+im*im) * (2.0 / fftInputSize)
		db := 20 * math.Log10(magnitude+1e-9)
		a.lastFFT[i] = a.smoothing*a.lastFFT[i] + (1-a.smoothing)*db
		a.raw[i] = scaleDecibels(db)
		a.spectrum[i] = scaleDecibels(a.lastFFT[i])
	}

	for i, s := range samples[len(samples)-SpectrumBins:] {
		a.waveform[i] = (s + 1) * 0.5
	}
	a.stale = false
}

func scaleDecibels(db float64) float32 {
	switch {
	case db < minDecibels:
		return 0
	case db > maxDecibels:
		return 1
	}
	return float32((db - minDecibels) / (maxDecibels - minDecibels))
}

func (a *Audio) Provides() []string {
	return []string{a.name + "_spectrum", a.name + "_volume", a.name + "_waveform"}
}

// Get returns the current analysis. Without interpolate the spectrum is
// the unsmoothed magnitude of the latest window.
func (a *Audio) Get(name string, interpolate bool) (params.Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stale {
		a.analyse()
	}
	switch name {
	case a.name + "_spectrum":
		if !interpolate {
			return params.FloatArray(a.raw), true
		}
		return params.FloatArray(a.spectrum), true
	case a.name + "_waveform":
		return params.FloatArray(a.waveform), true
	case a.name + "_volume":
		return params.Float(a.volume), true
	}
	return params.Value{}, false
}

// SetTime marks the analysis stale; the next Get recomputes it.
func (a *Audio) SetTime(float64, bool) {
	a.mu.Lock()
	a.stale = true
	a.mu.Unlock()
}

func (a *Audio) SetBeat(float64, bool) {}

// SampleRate returns the sample rate of the device.
func (a *Audio) SampleRate() int { return a.device.SampleRate() }

// Received returns the number of samples pushed so far.
func (a *Audio) Received() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.received
}

// Close stops the device, which ends the listener.
func (a *Audio) Close() error {
	return a.device.Stop()
}

// blackmanWindow generates a Blackman window of the given size.
func blackmanWindow(size int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	window := make([]float64, size)
	inv := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * inv
		window[i] = a0 - a1*math.Cos(2*math.Pi*t) + a2*math.Cos(4*math.Pi*t)
	}
	return window
}
