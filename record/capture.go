// Package record drives microphone recording sessions: a state machine with
// duration limits and deterministic teardown on top of a pluggable audio
// capturer.
package record

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Errors reported by sessions and capturers.
var (
	ErrBusy         = errors.New("record: session already active")
	ErrNotRecording = errors.New("record: no active recording")
	ErrStopTimeout  = errors.New("record: capturer did not stop in time")
	ErrNoAudioData  = errors.New("record: no audio data captured")
)

// Payload is captured audio in whichever shape the capturer produced.
// Capturers set exactly one field; WritePayload consumes the first usable
// one in declaration order.
type Payload struct {
	// Path names a finished WAV file already on disk.
	Path string
	// WAV holds a complete WAV file.
	WAV []byte
	// Chunks holds a WAV file split into sequential byte chunks.
	Chunks [][]byte
	// Samples holds raw 16-bit PCM needing a WAV container, described by
	// SampleRate and Channels.
	Samples    []int16
	SampleRate int
	Channels   int
}

// Capturer records microphone audio. Start begins capture aimed at path;
// Stop ends it and hands back the audio. A capturer is single-use per
// Start/Stop pair.
type Capturer interface {
	Start(path string) error
	Stop() (Payload, error)
}

// WritePayload materializes a capture payload as a WAV file at path. A
// payload whose Path already equals path needs no work; other shapes are
// written out. An empty payload returns ErrNoAudioData.
func WritePayload(path string, p Payload) error {
	switch {
	case p.Path != "":
		if p.Path == path {
			return nil
		}
		return os.Rename(p.Path, path)
	case len(p.WAV) > 0:
		return os.WriteFile(path, p.WAV, 0o600)
	case len(p.Chunks) > 0:
		total := 0
		for _, c := range p.Chunks {
			total += len(c)
		}
		if total == 0 {
			return ErrNoAudioData
		}
		data := make([]byte, 0, total)
		for _, c := range p.Chunks {
			data = append(data, c...)
		}
		return os.WriteFile(path, data, 0o600)
	case len(p.Samples) > 0:
		return writeSamples(path, p)
	default:
		return ErrNoAudioData
	}
}

func writeSamples(path string, p Payload) error {
	rate, channels := p.SampleRate, p.Channels
	if rate <= 0 {
		rate = defaultSampleRate
	}
	if channels <= 0 {
		channels = defaultChannels
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	data := make([]int, len(p.Samples))
	for i, v := range p.Samples {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("close wav: %w", err)
	}
	return f.Close()
}
