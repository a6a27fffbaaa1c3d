package hotkey

import (
	"errors"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// ErrDisposed is returned by Start after the listener has been disposed.
var ErrDisposed = errors.New("hotkey: listener disposed")

// Handler receives one normalized key event. down is true for key-down and
// key-hold (auto-repeat), false for key-up.
type Handler func(name string, down bool)

// Listener owns the OS-level global keyboard hook and feeds its events to a
// Handler on a dedicated goroutine.
type Listener struct {
	handler Handler

	mu       sync.Mutex
	started  bool
	disposed bool
	done     chan struct{}
}

// NewListener returns a listener feeding handler. Start must be called
// before any events are delivered.
func NewListener(handler Handler) *Listener {
	return &Listener{
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start installs the global hook and begins delivering events. It returns
// immediately; events flow on an internal goroutine until Dispose.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return ErrDisposed
	}
	if l.started {
		return nil
	}
	l.started = true

	events := hook.Start()
	go l.run(events)
	slog.Info("keyboard hook installed")
	return nil
}

func (l *Listener) run(events chan hook.Event) {
	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			l.dispatch(ev)
		}
	}
}

func (l *Listener) dispatch(ev hook.Event) {
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		l.handler(hook.RawcodetoKeychar(ev.Rawcode), true)
	case hook.KeyUp:
		l.handler(hook.RawcodetoKeychar(ev.Rawcode), false)
	}
}

// Dispose uninstalls the global hook and stops event delivery. It is
// idempotent and safe to call concurrently with event dispatch.
func (l *Listener) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return
	}
	l.disposed = true
	close(l.done)
	if l.started {
		hook.End()
	}
	slog.Info("keyboard hook removed")
}
