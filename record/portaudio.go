package record

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

const (
	defaultSampleRate = 16000
	defaultChannels   = 1
	captureFrames     = 1024
)

// MicCapturer streams the default input device into a WAV file using
// PortAudio. The stream is pulled on a dedicated goroutine between Start
// and Stop.
type MicCapturer struct {
	SampleRate int
	Channels   int

	mu      sync.Mutex
	path    string
	stop    chan struct{}
	done    chan error
	running bool
}

// NewMicCapturer returns a capturer at 16 kHz mono, the rate speech
// endpoints expect.
func NewMicCapturer() *MicCapturer {
	return &MicCapturer{SampleRate: defaultSampleRate, Channels: defaultChannels}
}

// Start opens the default input stream and begins writing WAV data to path.
func (c *MicCapturer) Start(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrBusy
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	in := make([]int16, captureFrames)
	stream, err := portaudio.OpenDefaultStream(c.Channels, 0, float64(c.SampleRate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("create wav: %w", err)
	}

	c.path = path
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan error, 1)
	go c.capture(stream, f, in)
	return nil
}

func (c *MicCapturer) capture(stream *portaudio.Stream, f *os.File, in []int16) {
	defer portaudio.Terminate()

	enc := wav.NewEncoder(f, c.SampleRate, 16, c.Channels, 1)
	format := &audio.Format{NumChannels: c.Channels, SampleRate: c.SampleRate}
	data := make([]int, len(in))

	var werr error
	for {
		select {
		case <-c.stop:
			goto done
		default:
		}
		if err := stream.Read(); err != nil {
			// Overflows and transient read errors drop one buffer.
			continue
		}
		for i, v := range in {
			data[i] = int(v)
		}
		buf := &audio.IntBuffer{Format: format, Data: data, SourceBitDepth: 16}
		if err := enc.Write(buf); err != nil {
			werr = fmt.Errorf("write wav: %w", err)
			goto done
		}
	}

done:
	_ = stream.Stop()
	_ = stream.Close()
	if cerr := enc.Close(); werr == nil && cerr != nil {
		werr = fmt.Errorf("close wav: %w", cerr)
	}
	if cerr := f.Close(); werr == nil && cerr != nil {
		werr = cerr
	}
	c.done <- werr
}

// Stop ends the capture and returns the path of the finished WAV file.
func (c *MicCapturer) Stop() (Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return Payload{}, ErrNotRecording
	}
	c.running = false
	close(c.stop)
	if err := <-c.done; err != nil {
		_ = os.Remove(c.path)
		return Payload{}, err
	}
	return Payload{Path: c.path}, nil
}
