package app

import (
	"log/slog"
	"time"
)

// Teardown bounds. Each risky phase gets its own deadline so one stuck
// collaborator cannot eat the whole shutdown budget.
const (
	lifecycleBudget  = 5 * time.Second
	recordingStopMax = 100 * time.Millisecond
	hookDisposeMax   = time.Second
)

// RunLifecycle tears the service down in order: abort in-flight work,
// stop recording, release the keyboard hook, clear state, stop timers.
// Re-entrant calls are no-ops; the whole sequence is raced against a
// five second budget so shutdown can never hang the process.
func (s *Service) RunLifecycle() {
	if s.cleanup == nil || !s.cleanup.Begin() {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.teardown()
	}()

	select {
	case <-done:
		slog.Info("lifecycle complete")
	case <-time.After(lifecycleBudget):
		slog.Error("lifecycle budget exceeded, abandoning teardown")
	}
}

func (s *Service) teardown() {
	// Phase 1: abort pending round trips and in-flight operations.
	s.instruction.Abort()
	if s.guard != nil {
		if active := s.guard.Active(); active != "" {
			slog.Warn("aborting in-flight operation", "operation", active)
		}
		s.guard.Leave()
	}
	s.mu.Lock()
	s.llmClipboard = nil
	s.result = nil
	s.mu.Unlock()

	// Phase 2: stop any recording, bounded. The collaborator fields stay
	// set: a workflow goroutine blocked on a provider call may still come
	// back and walk through them, and completing harmlessly beats a nil
	// dereference mid-shutdown.
	if s.session != nil {
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			s.session.Cleanup()
		}()
		select {
		case <-stopped:
		case <-time.After(recordingStopMax):
			slog.Warn("recording cleanup still running, moving on")
		}
	}

	// Phase 3: release the global keyboard hook, bounded.
	if s.listener != nil {
		disposed := make(chan struct{})
		go func() {
			defer close(disposed)
			s.listener.Dispose()
		}()
		select {
		case <-disposed:
		case <-time.After(hookDisposeMax):
			slog.Warn("keyboard hook dispose timed out")
		}
	}
	if s.router != nil {
		s.router.Reset()
	}

	// Phase 4: clear remaining in-memory state.
	s.mu.Lock()
	s.llmClipboard = nil
	s.result = nil
	s.mu.Unlock()

	// Phase 5: stop timers and close the cache.
	s.mu.Lock()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Error("close cache", "error", err)
		}
		s.cache = nil
	}
}
