package hotkey

import "sync"

// Combo identifies which key combination started a recording session.
type Combo string

const (
	ComboMetaAlt   Combo = "meta-alt"
	ComboCtrlShift Combo = "ctrl-shift"
)

// comboKeys lists, in priority order, the start combinations and the keys
// each one requires. Meta+Alt wins when both combinations are satisfied
// by the same key-down.
var comboKeys = []struct {
	combo Combo
	keys  []Key
}{
	{ComboMetaAlt, []Key{KeyMeta, KeyAlt}},
	{ComboCtrlShift, []Key{KeyCtrl, KeyShift}},
}

const (
	copyKey = Key("c")
	sendKey = Key("v")
)

// Triggers are the callbacks the router fires in response to key events.
// All of them run on the listener goroutine and must not block; handlers
// that do real work hand off to their own goroutine.
//
// StartRecording returns whether the session was actually accepted. A
// rejected start (another operation in flight, capture failure) leaves the
// router idle so the eventual key release does not fire a spurious stop.
type Triggers struct {
	StartRecording func(Combo) bool
	StopRecording  func(Combo)
	Copy           func()
	Send           func()
	Help           func()
}

// Router evaluates normalized key events against the trigger conditions
// and tracks which combination owns the active recording session. Only
// releasing a key of the owning combination stops the session; releasing
// keys of the other combination is ignored.
type Router struct {
	mu        sync.Mutex
	state     *State
	triggers  Triggers
	shortcuts func() bool

	recording bool
	startedBy Combo
	// fired marks trigger keys whose key-down already fired, so OS
	// auto-repeat does not re-fire the trigger until the key is released.
	fired map[Key]bool
}

// NewRouter returns a router firing into triggers. shortcutsEnabled gates
// the copy and send triggers; it is consulted on every matching key-down.
func NewRouter(triggers Triggers, shortcutsEnabled func() bool) *Router {
	if shortcutsEnabled == nil {
		shortcutsEnabled = func() bool { return true }
	}
	return &Router{
		state:     NewState(),
		triggers:  triggers,
		shortcuts: shortcutsEnabled,
		fired:     make(map[Key]bool),
	}
}

// HandleKey processes one raw key event. Unknown key names are ignored.
func (r *Router) HandleKey(name string, down bool) {
	k, ok := Normalize(name)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if down {
		r.state.Press(k)
		r.keyDown(k)
		return
	}
	r.state.Release(k)
	delete(r.fired, k)
	r.keyUp(k)
}

func (r *Router) keyDown(k Key) {
	if k == KeyHelp {
		if !r.fired[k] && r.triggers.Help != nil {
			r.fired[k] = true
			r.triggers.Help()
		}
		return
	}

	// Copy and send are chords on top of Ctrl+Alt. They never fire while
	// a recording session is active and only when shortcuts are enabled.
	// A held letter key auto-repeats key-down events; the chord fires once
	// per press and re-arms on the letter's release.
	if (k == copyKey || k == sendKey) &&
		r.state.Down(KeyCtrl) && r.state.Down(KeyAlt) {
		if r.recording || !r.shortcuts() || r.fired[k] {
			return
		}
		r.fired[k] = true
		if k == copyKey {
			if r.triggers.Copy != nil {
				r.triggers.Copy()
			}
		} else if r.triggers.Send != nil {
			r.triggers.Send()
		}
		return
	}

	if r.recording {
		return
	}
	for _, c := range comboKeys {
		if r.state.AllDown(c.keys) {
			if r.triggers.StartRecording != nil && r.triggers.StartRecording(c.combo) {
				r.recording = true
				r.startedBy = c.combo
			}
			return
		}
	}
}

func (r *Router) keyUp(k Key) {
	if !r.recording {
		return
	}
	for _, c := range comboKeys {
		if c.combo != r.startedBy {
			continue
		}
		for _, ck := range c.keys {
			if ck == k {
				combo := r.startedBy
				r.recording = false
				r.startedBy = ""
				if r.triggers.StopRecording != nil {
					r.triggers.StopRecording(combo)
				}
				return
			}
		}
	}
}

// SessionEnded clears the active-session tracking without firing a stop
// trigger. Called when a session ends for reasons other than a key release:
// the maximum-duration auto-stop, a capture error, or shutdown.
func (r *Router) SessionEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.startedBy = ""
}

// StartedBy reports the combination owning the active session, or "" when
// no session is active.
func (r *Router) StartedBy() Combo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedBy
}

// Reset forgets all pressed keys and any active-session tracking.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Reset()
	clear(r.fired)
	r.recording = false
	r.startedBy = ""
}
