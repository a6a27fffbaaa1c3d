package stt

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// File size limits for a single upload.
const (
	MinFileBytes   = 1024
	MaxFileBytes   = 25 << 20
	ChunkThreshold = 20 << 20

	maxAttempts = 3
)

// Pipeline validates, optionally chunks, and transcribes audio files. It
// consumes its input: the file (and any chunk files) are deleted once
// processed, success or not.
type Pipeline struct {
	rec     Recognizer
	backoff time.Duration
	probe   func(string) (time.Duration, error)
	split   func(string, time.Duration) ([]string, error)
}

// NewPipeline returns a pipeline recognizing through rec.
func NewPipeline(rec Recognizer) *Pipeline {
	return &Pipeline{
		rec:     rec,
		backoff: time.Second,
		probe:   probeDuration,
		split:   splitChunks,
	}
}

// Transcribe converts the audio file at path to text. The file is deleted
// before returning. Files above ChunkThreshold go through the chunked path;
// above MaxFileBytes they are rejected outright.
func (p *Pipeline) Transcribe(ctx context.Context, path string) (string, error) {
	defer os.Remove(path)

	info, err := os.Stat(path)
	if err != nil {
		return "", Classify(0, err)
	}
	switch {
	case info.Size() < MinFileBytes:
		return "", ErrFileTooSmall
	case info.Size() > MaxFileBytes:
		return "", ErrFileTooLarge
	}

	var text string
	if info.Size() > ChunkThreshold {
		slog.Info("audio above chunk threshold, splitting", "bytes", info.Size())
		text, err = p.transcribeChunked(ctx, path)
	} else {
		text, err = p.recognizeWithRetry(ctx, path)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoSpeechDetected
	}
	return strings.TrimSpace(text), nil
}

// recognizeWithRetry attempts recognition up to maxAttempts times with
// exponential backoff. Errors a retry cannot fix fail immediately.
func (p *Pipeline) recognizeWithRetry(ctx context.Context, path string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := p.rec.Recognize(ctx, path)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !Retryable(err) {
			break
		}
		if attempt < maxAttempts {
			delay := p.backoff * (1 << (attempt - 1))
			slog.Warn("transcription attempt failed",
				"attempt", attempt, "retry_in", delay, "err", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// transcribeChunked splits the file into time-based segments and joins the
// transcripts. Failed chunks are skipped; only when every chunk fails does
// the whole transcription fail.
func (p *Pipeline) transcribeChunked(ctx context.Context, path string) (string, error) {
	total, err := p.probe(path)
	if err != nil {
		return "", err
	}
	chunks, err := p.split(path, total)
	if err != nil {
		return "", err
	}

	var parts []string
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			for _, rest := range chunks[i:] {
				_ = os.Remove(rest)
			}
			return "", ctx.Err()
		}
		text, err := p.recognizeWithRetry(ctx, chunk)
		_ = os.Remove(chunk)
		if err != nil {
			slog.Warn("chunk transcription failed, skipping",
				"chunk", i, "of", len(chunks), "err", err)
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSuccessfulChunks
	}
	return strings.Join(parts, " "), nil
}
