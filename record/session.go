package record

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.voxkey.app/voxkey/internal/types"
)

// Duration limits and pacing for a recording session.
const (
	MaxDuration      = 5 * time.Minute
	WarnAfter        = 4 * time.Minute
	ProgressInterval = time.Second
	StopTimeout      = 10 * time.Second
)

// Phase is the session state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseActive
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseStopping:
		return "stopping"
	}
	return "unknown"
}

// Hooks are optional callbacks fired from the session's timer goroutine.
// They must not block.
type Hooks struct {
	// OnProgress fires once per second while recording.
	OnProgress func(types.RecordingProgress)
	// OnWarning fires once per session when WarnAfter elapses.
	OnWarning func(remaining time.Duration)
	// OnAutoStop fires when MaxDuration elapses. The owner is expected to
	// stop the session; the session itself only stops ticking.
	OnAutoStop func()
}

// pendingStop is the single slot a stop in flight publishes its result
// through. Concurrent Stop callers wait on the same slot, so a second Stop
// during PhaseStopping joins the first instead of failing.
type pendingStop struct {
	once sync.Once
	done chan struct{}
	path string
	err  error
}

func (p *pendingStop) finish(path string, err error) {
	p.once.Do(func() {
		p.path, p.err = path, err
		close(p.done)
	})
}

// Session is the recording state machine: Idle → Starting → Active →
// Stopping → Idle, with every error path landing back on Idle. On a
// successful Stop the finished WAV file's ownership transfers to the
// caller, who deletes it after consumption.
type Session struct {
	mu       sync.Mutex
	phase    Phase
	capturer Capturer
	hooks    Hooks
	tempDir  string

	path      string
	startedAt time.Time
	warned    bool
	tickStop  chan struct{}
	pending   *pendingStop

	maxDuration  time.Duration
	warnAfter    time.Duration
	progressTick time.Duration
	stopTimeout  time.Duration
}

// NewSession returns an idle session recording through capturer. Temp WAV
// files land in os.TempDir().
func NewSession(capturer Capturer, hooks Hooks) *Session {
	return &Session{
		capturer:     capturer,
		hooks:        hooks,
		tempDir:      os.TempDir(),
		maxDuration:  MaxDuration,
		warnAfter:    WarnAfter,
		progressTick: ProgressInterval,
		stopTimeout:  StopTimeout,
	}
}

// Start begins a recording. It returns ErrBusy when the session is not
// idle; a rejected or failed start leaves the session idle.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.phase = PhaseStarting
	path := tempWavPath(s.tempDir)
	s.mu.Unlock()

	if err := s.capturer.Start(path); err != nil {
		s.mu.Lock()
		s.phase = PhaseIdle
		s.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	s.mu.Lock()
	s.phase = PhaseActive
	s.path = path
	s.startedAt = time.Now()
	s.warned = false
	s.tickStop = make(chan struct{})
	s.pending = nil
	tick, started := s.tickStop, s.startedAt
	s.mu.Unlock()

	go s.tick(tick, started)
	slog.Info("recording started", "path", path)
	return nil
}

// Stop ends the active recording and returns the finished WAV path. A Stop
// arriving while another Stop is in flight waits for that one and returns
// its result. The capturer gets StopTimeout to finish; past that the
// session is forced idle and ErrStopTimeout returned.
func (s *Session) Stop() (string, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseIdle, PhaseStarting:
		s.mu.Unlock()
		return "", ErrNotRecording
	case PhaseStopping:
		p := s.pending
		s.mu.Unlock()
		<-p.done
		return p.path, p.err
	}
	s.phase = PhaseStopping
	p := &pendingStop{done: make(chan struct{})}
	s.pending = p
	path := s.path
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	s.mu.Unlock()

	resCh := make(chan error, 1)
	go func() {
		payload, err := s.capturer.Stop()
		if err == nil {
			err = WritePayload(path, payload)
		}
		resCh <- err
	}()

	var err error
	select {
	case err = <-resCh:
	case <-time.After(s.stopTimeout):
		err = ErrStopTimeout
		slog.Error("capturer stop timed out, forcing idle")
		// The abandoned capturer may still materialize the file after the
		// removal below; reap it once the late stop finally returns.
		go func() {
			<-resCh
			_ = os.Remove(path)
		}()
	}

	s.mu.Lock()
	s.phase = PhaseIdle
	s.path = ""
	s.pending = nil
	s.mu.Unlock()

	if err != nil {
		p.finish("", fmt.Errorf("stop capture: %w", err))
	} else {
		p.finish(path, nil)
	}

	<-p.done
	if p.err != nil {
		_ = os.Remove(path)
		return "", p.err
	}
	slog.Info("recording stopped", "path", p.path)
	return p.path, nil
}

// Phase returns the current state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Elapsed returns how long the active recording has run, or zero when idle.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return 0
	}
	return time.Since(s.startedAt)
}

// Cleanup forces the session back to idle whatever its phase: timers stop,
// the capturer gets a short bounded stop, the temp file is removed, and any
// waiters on a pending stop are released with ErrNotRecording. It never
// fails and is safe to call repeatedly or concurrently with Stop.
func (s *Session) Cleanup() {
	s.mu.Lock()
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	phase := s.phase
	path := s.path
	p := s.pending
	s.phase = PhaseIdle
	s.path = ""
	s.pending = nil
	s.mu.Unlock()

	if phase == PhaseActive || phase == PhaseStarting {
		done := make(chan struct{})
		go func() {
			_, _ = s.capturer.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}
	if path != "" {
		_ = os.Remove(path)
	}
	if p != nil {
		p.finish("", ErrNotRecording)
	}
	if phase != PhaseIdle {
		slog.Info("recording session cleaned up", "phase", phase.String())
	}
}

func (s *Session) tick(stop chan struct{}, started time.Time) {
	t := time.NewTicker(s.progressTick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		elapsed := time.Since(started)
		if elapsed >= s.maxDuration {
			slog.Warn("recording hit maximum duration", "elapsed", elapsed)
			if s.hooks.OnAutoStop != nil {
				s.hooks.OnAutoStop()
			}
			return
		}
		if elapsed >= s.warnAfter && s.markWarned() && s.hooks.OnWarning != nil {
			s.hooks.OnWarning(s.maxDuration - elapsed)
		}
		if s.hooks.OnProgress != nil {
			s.hooks.OnProgress(types.RecordingProgress{
				Elapsed:   elapsed,
				Remaining: s.maxDuration - elapsed,
				Percent:   float64(elapsed) / float64(s.maxDuration) * 100,
			})
		}
	}
}

func (s *Session) markWarned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warned {
		return false
	}
	s.warned = true
	return true
}

func tempWavPath(dir string) string {
	name := fmt.Sprintf("voxkey_%d_%s.wav", time.Now().UnixMilli(), uuid.NewString()[:8])
	return filepath.Join(dir, name)
}
