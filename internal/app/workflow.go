package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.voxkey.app/voxkey/clipboard"
	"go.voxkey.app/voxkey/config"
	"go.voxkey.app/voxkey/hotkey"
	"go.voxkey.app/voxkey/internal/types"
	"go.voxkey.app/voxkey/llm"
)

// Delays before the status line falls back to Ready.
const (
	readyAfterSuccess = 2 * time.Second
	readyAfterFailure = 3 * time.Second
)

// ─────────────────────────────────────────────────────────────────────────────
// Recording workflow
// ─────────────────────────────────────────────────────────────────────────────

// startRecording begins a recording session. The returned bool tells the
// router whether the session actually started; a rejected start must not
// arm a stop on key release.
func (s *Service) startRecording(combo hotkey.Combo) bool {
	if s.shuttingDown() {
		return false
	}
	if !s.guard.TryEnter(opRecording) {
		slog.Warn("recording start dropped, operation in flight", "active", s.guard.Active())
		s.emit(EventStatus, "Cannot record while busy")
		return false
	}

	s.emit(EventStatus, StatusListening)
	if err := s.session.Start(); err != nil {
		s.guard.Leave()
		s.failStatus("Error: " + err.Error())
		return false
	}
	slog.Info("recording started", "combo", string(combo))
	return true
}

// finishRecording stops the session and runs the transcribe → respond →
// inject pipeline. Both the key release and the max-duration auto-stop
// land here; only the first caller proceeds.
func (s *Service) finishRecording() {
	s.mu.Lock()
	if s.finishing {
		s.mu.Unlock()
		return
	}
	s.finishing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.finishing = false
		s.mu.Unlock()
		s.router.SessionEnded()
		s.guard.Leave()
	}()

	started := time.Now()
	s.emit(EventStatus, StatusProcessing)

	path, err := s.session.Stop()
	if err != nil {
		s.failStatus("Error: " + err.Error())
		return
	}

	s.emit(EventStatus, StatusTranscribe)
	transcript, err := s.transcriber.Transcribe(context.Background(), path)
	if err != nil {
		s.failStatus("Error: " + err.Error())
		return
	}

	s.emit(EventStatus, StatusThinking)
	instruction := s.effectiveInstruction()

	prompt, err := llm.BuildPrompt(instruction, transcript)
	if err != nil {
		s.failStatus("Error: " + err.Error())
		return
	}

	result, err := s.engine.Respond(context.Background(), prompt, s.cfg.GetAssociations(), s.cfg.WebSearch)
	if err != nil {
		s.failStatus("Error: " + err.Error())
		return
	}

	s.emit(EventTranscript, transcript)
	s.emit(EventResponse, result)

	inj := s.injector.InjectText(result.Text)
	if !inj.Success {
		s.failStatus("Error: " + inj.Error)
		return
	}

	elapsed := time.Since(started).Seconds()
	s.emit(EventStatus, fmt.Sprintf("Done in %.1fs - Ctrl+V to paste", elapsed))
	s.maybeAutoPaste()
}

// ─────────────────────────────────────────────────────────────────────────────
// Copy workflow
// ─────────────────────────────────────────────────────────────────────────────

// copySelection captures the current selection into the in-memory LLM
// clipboard. In immediate mode the capture is processed right away.
func (s *Service) copySelection() {
	if s.shuttingDown() {
		return
	}
	if !s.guard.TryEnter(opCopy) {
		slog.Warn("copy dropped, operation in flight", "active", s.guard.Active())
		s.emit(EventStatus, "Cannot copy while busy")
		return
	}
	defer s.guard.Leave()

	s.emit(EventStatus, StatusCopying)

	capture, err := s.injector.CaptureSelection()
	if err != nil {
		if errors.Is(err, clipboard.ErrNothingSelected) || errors.Is(err, clipboard.ErrEmptySelection) {
			s.emit(EventStatus, "No text selected")
			s.readyAfter(readyAfterSuccess)
			return
		}
		s.failStatus("LLM Copy failed: " + err.Error())
		return
	}

	s.mu.Lock()
	s.llmClipboard = &capture
	s.mu.Unlock()

	s.emit(EventClipboardUpdated, nil)
	s.emit(EventStatus, fmt.Sprintf("Copied %d characters to LLM clipboard", len(capture.Text)))

	if s.cfg.CopySendMode == config.CopySendImmediate {
		s.processCapture(capture.Text)
		return
	}
	s.readyAfter(readyAfterSuccess)
}

// ─────────────────────────────────────────────────────────────────────────────
// Send workflow
// ─────────────────────────────────────────────────────────────────────────────

// sendClipboard processes the stored LLM clipboard through the engine.
func (s *Service) sendClipboard() {
	if s.shuttingDown() {
		return
	}
	if !s.guard.TryEnter(opSend) {
		slog.Warn("send dropped, operation in flight", "active", s.guard.Active())
		s.emit(EventStatus, "Cannot paste while busy")
		return
	}
	defer s.guard.Leave()

	s.mu.Lock()
	stored := s.llmClipboard
	s.mu.Unlock()

	if stored == nil || stored.Text == "" {
		s.emit(EventStatus, "LLM clipboard is empty")
		s.readyAfter(readyAfterSuccess)
		return
	}

	s.processCapture(stored.Text)
}

// processCapture runs the instruction → prompt → respond → inject pipeline
// on captured text. The deferred result slot is cleared after the paste
// attempt, success or not.
func (s *Service) processCapture(text string) {
	s.emit(EventStatus, StatusSendWorking)

	instruction := s.effectiveInstruction()

	prompt, err := llm.BuildPrompt(instruction, text)
	if err != nil {
		s.failStatus("LLM Paste failed: " + err.Error())
		return
	}

	result, err := s.engine.Respond(context.Background(), prompt, s.cfg.GetAssociations(), s.cfg.WebSearch)
	if err != nil {
		s.failStatus("LLM Paste failed: " + err.Error())
		return
	}

	s.mu.Lock()
	s.result = &types.ProcessedResult{
		Text:          result.Text,
		OriginalText:  text,
		Instruction:   instruction,
		Timestamp:     time.Now(),
		Citations:     result.Citations,
		RAGUsed:       result.RAGUsed,
		WebSearchUsed: result.WebSearchUsed,
	}
	s.mu.Unlock()
	s.emit(EventResponse, result)

	inj := s.injector.InjectText(result.Text)

	s.mu.Lock()
	s.result = nil
	s.mu.Unlock()

	if !inj.Success {
		s.failStatus("Paste failed: " + inj.Error)
		return
	}

	s.emit(EventStatus, "LLM response pasted successfully")
	s.maybeAutoPaste()
	s.readyAfter(readyAfterSuccess)
}

// ─────────────────────────────────────────────────────────────────────────────
// Status helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) maybeAutoPaste() {
	if !s.cfg.AutoPaste {
		return
	}
	if err := s.injector.AutoPaste(); err != nil {
		slog.Warn("auto paste", "error", err)
	}
}

// failStatus shows an error line, then returns the UI to Ready.
func (s *Service) failStatus(msg string) {
	s.emit(EventStatus, msg)
	s.readyAfter(readyAfterFailure)
}

func (s *Service) readyAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}
	s.resetTimer = time.AfterFunc(d, func() {
		s.emit(EventStatus, StatusReady)
	})
}
