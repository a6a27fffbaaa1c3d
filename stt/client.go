package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultWhisperModel = "whisper-1"

// Recognizer converts one audio file into text.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// WhisperRecognizer recognizes speech through OpenAI's transcription
// endpoint.
type WhisperRecognizer struct {
	client openai.Client
	model  string
}

// NewWhisperRecognizer returns a recognizer using the given API key. An
// empty model falls back to whisper-1.
func NewWhisperRecognizer(apiKey, model string) *WhisperRecognizer {
	if model == "" {
		model = defaultWhisperModel
	}
	return &WhisperRecognizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Recognize uploads the audio file and returns the transcript text.
// Failures come back classified as ProviderError.
func (w *WhisperRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", Classify(0, fmt.Errorf("open audio: %w", err))
	}
	defer f.Close()

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(w.model),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return "", Classify(apierr.StatusCode, err)
		}
		return "", Classify(0, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
