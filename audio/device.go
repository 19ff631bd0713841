// Package audio produces streams of mono float32 sample chunks for the
// audio input provider.
//
// The microphone source uses portaudio:
//
//	macos:   brew install portaudio
//	debian:  sudo apt-get install portaudio19-dev
//	windows: pacman -S mingw-w64-x86_64-portaudio
package audio

// DefaultSampleRate is used when a source is configured without one.
const DefaultSampleRate = 44100

// Device produces audio sample chunks.
type Device interface {
	// Start begins capture and returns a receive-only channel of mono chunks.
	Start() (<-chan []float32, error)
	// Stop terminates the stream and closes the channel.
	Stop() error
	SampleRate() int
}

// NullDevice is a silent Device.
type NullDevice struct {
	rate int
	ch   chan []float32
}

func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{rate: sampleRate}
}

// Start returns a channel that never sends and is closed by Stop.
func (d *NullDevice) Start() (<-chan []float32, error) {
	if d.ch == nil {
		d.ch = make(chan []float32)
	}
	return d.ch, nil
}

func (d *NullDevice) Stop() error {
	if d.ch != nil {
		close(d.ch)
		d.ch = nil
	}
	return nil
}

func (d *NullDevice) SampleRate() int { return d.rate }
