package clipboard

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.voxkey.app/voxkey/internal/types"
)

const (
	// MaxCaptureChars bounds how much selected text a capture keeps.
	MaxCaptureChars = 10000

	injectMethod      = "clipboard"
	injectDescription = "Text is copied to clipboard - use Ctrl+V to paste"

	copySettleDelay = 500 * time.Millisecond
)

// Injector delivers result text through the clipboard and captures the
// user's current selection. Injected text stays on the clipboard; earlier
// contents are not restored.
type Injector struct {
	sys    System
	keys   Keystrokes
	settle time.Duration
}

// NewInjector returns an injector over the given clipboard and keystroke
// simulator.
func NewInjector(sys System, keys Keystrokes) *Injector {
	return &Injector{sys: sys, keys: keys, settle: copySettleDelay}
}

// InjectText writes text to the clipboard and verifies it landed by
// reading it back, retrying the write exactly once on mismatch.
func (i *Injector) InjectText(text string) types.InjectResult {
	for attempt := 0; attempt < 2; attempt++ {
		if err := i.sys.WriteText(text); err != nil {
			if attempt == 0 {
				slog.Warn("clipboard write failed, retrying", "err", err)
				continue
			}
			return types.InjectResult{Method: injectMethod, Error: err.Error()}
		}
		got, err := i.sys.ReadText()
		if err == nil && got == text {
			return types.InjectResult{Success: true, Method: injectMethod}
		}
		if attempt == 0 {
			slog.Warn("clipboard verification mismatch, retrying")
		}
	}
	return types.InjectResult{
		Method: injectMethod,
		Error:  "clipboard verification failed after retry",
	}
}

// Status reports injector availability for the UI.
func (i *Injector) Status() types.InjectorStatus {
	return types.InjectorStatus{
		Available:   true,
		Method:      injectMethod,
		Description: injectDescription,
	}
}

// CaptureSelection grabs whatever the user has selected by simulating the
// copy chord, waiting for the clipboard to settle, and validating that its
// contents actually changed. The previous clipboard contents are restored
// and the captured text is truncated to MaxCaptureChars.
func (i *Injector) CaptureSelection() (types.ClipboardCapture, error) {
	original, err := i.sys.ReadText()
	if err != nil {
		original = ""
	}

	if err := i.keys.Copy(); err != nil {
		return types.ClipboardCapture{}, fmt.Errorf("capture selection: %w", err)
	}
	time.Sleep(i.settle)

	selected, err := i.sys.ReadText()
	restoreErr := i.sys.WriteText(original)
	if err != nil {
		return types.ClipboardCapture{}, fmt.Errorf("capture selection: %w", err)
	}
	if restoreErr != nil {
		slog.Warn("failed to restore clipboard after capture", "err", restoreErr)
	}

	if selected == original {
		return types.ClipboardCapture{}, ErrNothingSelected
	}
	if strings.TrimSpace(selected) == "" {
		return types.ClipboardCapture{}, ErrEmptySelection
	}

	if len(selected) > MaxCaptureChars {
		cut := MaxCaptureChars
		// Back up to a rune boundary so the cut never splits a UTF-8
		// sequence.
		for cut > 0 && !utf8.RuneStart(selected[cut]) {
			cut--
		}
		selected = selected[:cut] + "..."
	}
	return types.ClipboardCapture{Text: selected, Timestamp: time.Now()}, nil
}

// AutoPaste simulates the paste chord so an injected result lands in the
// focused application without a manual Ctrl+V.
func (i *Injector) AutoPaste() error {
	if err := i.keys.Paste(); err != nil {
		return fmt.Errorf("auto paste: %w", err)
	}
	return nil
}
