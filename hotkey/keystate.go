// Package hotkey turns the raw global keyboard event stream into discrete
// application triggers: start/stop recording, copy, send, help.
package hotkey

import "strings"

// Key is a canonical logical key. Modifiers have named constants; letter
// keys are their lowercase letter ("a".."z").
type Key string

const (
	KeyMeta  Key = "meta"
	KeyAlt   Key = "alt"
	KeyCtrl  Key = "ctrl"
	KeyShift Key = "shift"
	KeyHelp  Key = "f1"
)

// aliases maps platform-specific key captions to canonical keys. The hook
// library reports different names per OS and per physical side (left/right),
// so normalization is a many-to-one lookup rather than string comparisons.
var aliases = map[string]Key{
	"meta":          KeyMeta,
	"left meta":     KeyMeta,
	"right meta":    KeyMeta,
	"lmeta":         KeyMeta,
	"rmeta":         KeyMeta,
	"cmd":           KeyMeta,
	"left cmd":      KeyMeta,
	"right cmd":     KeyMeta,
	"command":       KeyMeta,
	"win":           KeyMeta,
	"windows":       KeyMeta,
	"left windows":  KeyMeta,
	"right windows": KeyMeta,
	"super":         KeyMeta,

	"alt":       KeyAlt,
	"left alt":  KeyAlt,
	"right alt": KeyAlt,
	"lalt":      KeyAlt,
	"ralt":      KeyAlt,
	"option":    KeyAlt,
	"menu":      KeyAlt,

	"ctrl":          KeyCtrl,
	"left ctrl":     KeyCtrl,
	"right ctrl":    KeyCtrl,
	"lctrl":         KeyCtrl,
	"rctrl":         KeyCtrl,
	"control":       KeyCtrl,
	"left control":  KeyCtrl,
	"right control": KeyCtrl,

	"shift":       KeyShift,
	"left shift":  KeyShift,
	"right shift": KeyShift,
	"lshift":      KeyShift,
	"rshift":      KeyShift,

	"f1": KeyHelp,
}

// Normalize maps a platform-specific key caption to its canonical Key.
// Single letters normalize to their lowercase form. Unknown captions
// return ok=false and are ignored by the router.
func Normalize(name string) (Key, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k, ok := aliases[n]; ok {
		return k, true
	}
	if len(n) == 1 && n[0] >= 'a' && n[0] <= 'z' {
		return Key(n), true
	}
	return "", false
}

// State tracks the live pressed/released state of keys. It is mutated only
// by key-down/key-up events. A key's state is always the result of the most
// recent event for that key; a missed key-up (focus loss, alt-tab) can leave
// a stale pressed entry until the next matching down/up pair corrects it.
type State struct {
	pressed map[Key]bool
}

// NewState returns an empty key state.
func NewState() *State {
	return &State{pressed: make(map[Key]bool)}
}

// Press records a key-down for k.
func (s *State) Press(k Key) {
	s.pressed[k] = true
}

// Release records a key-up for k.
func (s *State) Release(k Key) {
	delete(s.pressed, k)
}

// Down reports whether k is currently pressed.
func (s *State) Down(k Key) bool {
	return s.pressed[k]
}

// AllDown reports whether every key in keys is currently pressed.
func (s *State) AllDown(keys []Key) bool {
	for _, k := range keys {
		if !s.pressed[k] {
			return false
		}
	}
	return len(keys) > 0
}

// Reset forgets all pressed keys.
func (s *State) Reset() {
	clear(s.pressed)
}
