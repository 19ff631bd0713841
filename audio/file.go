package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/richinsley/goshadergraph/logger"
)

// chunkSamples is the number of samples per chunk sent by FileDevice.
const chunkSamples = 1024

// FileDevice decodes an audio file (or any ffmpeg input) to mono float32
// samples through an ffmpeg pipe.
type FileDevice struct {
	path       string
	sampleRate int
	realtime   bool
	ffmpegPath string

	mu   sync.Mutex
	cmd  *exec.Cmd
	pipe *io.PipeReader
	done chan struct{}
}

// NewFileDevice decodes path at sampleRate. With realtime set ffmpeg paces
// its output to the input's native rate.
func NewFileDevice(path string, sampleRate int, realtime bool) *FileDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FileDevice{path: path, sampleRate: sampleRate, realtime: realtime}
}

// SetFFmpegPath selects the ffmpeg binary. The default is "ffmpeg" on PATH.
func (d *FileDevice) SetFFmpegPath(path string) { d.ffmpegPath = path }

func (d *FileDevice) inputArgs() ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{}
	if d.realtime {
		args["re"] = ""
	}
	return args
}

func (d *FileDevice) outputArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"f":   "f32le",
		"c:a": "pcm_f32le",
		"ac":  "1",
		"ar":  strconv.Itoa(d.sampleRate),
	}
}

func (d *FileDevice) Start() (<-chan []float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return nil, errors.New("audio file device already started")
	}

	pipeReader, pipeWriter := io.Pipe()
	stream := ffmpeg.Input(d.path, d.inputArgs()).
		Output("pipe:", d.outputArgs()).
		WithOutput(pipeWriter).
		ErrorToStdOut()
	if d.ffmpegPath != "" {
		stream = stream.SetFfmpegPath(d.ffmpegPath)
	}

	cmd := stream.Compile()
	if err := cmd.Start(); err != nil {
		pipeWriter.Close()
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", d.path, err)
	}
	d.cmd = cmd
	d.pipe = pipeReader
	d.done = make(chan struct{})

	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Logger().Warn("ffmpeg audio decode finished with error", "path", d.path, "err", err)
		}
		pipeWriter.Close()
	}()

	out := make(chan []float32, 16)
	go readChunks(pipeReader, out, d.done)
	logger.Logger().Info("audio file started", "path", d.path, "rate", d.sampleRate, "realtime", d.realtime)
	return out, nil
}

// readChunks decodes f32le PCM from r into chunks until r ends or done is
// closed, then closes out.
func readChunks(r io.Reader, out chan<- []float32, done <-chan struct{}) {
	defer close(out)
	buf := make([]byte, chunkSamples*4)
	for {
		n, err := io.ReadFull(r, buf)
		if n >= 4 {
			select {
			case out <- DecodeF32LE(buf[:n]):
			case <-done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (d *FileDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return nil
	}
	close(d.done)
	d.pipe.Close()
	var err error
	if d.cmd.Process != nil {
		err = d.cmd.Process.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
	}
	d.cmd = nil
	return err
}

func (d *FileDevice) SampleRate() int { return d.sampleRate }
