// Package clipboard provides system clipboard access, keystroke simulation
// for copy/paste, and the text injector that delivers results to the user.
package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Capture errors.
var (
	ErrNothingSelected = errors.New("clipboard: no text selected or clipboard unchanged")
	ErrEmptySelection  = errors.New("clipboard: selected text is empty")
)

// System reads and writes the OS clipboard.
type System interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// NewSystem returns the platform clipboard, implemented over the standard
// clipboard command for each OS.
func NewSystem() System {
	return execClipboard{goos: runtime.GOOS}
}

type execClipboard struct {
	goos string
}

func (c execClipboard) ReadText() (string, error) {
	var cmd *exec.Cmd
	switch c.goos {
	case "darwin":
		cmd = exec.Command("pbpaste")
	case "windows":
		cmd = exec.Command("powershell", "-NoProfile", "-Command", "Get-Clipboard", "-Raw")
	default:
		cmd = exec.Command("xclip", "-selection", "clipboard", "-o")
	}

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// An empty clipboard makes xclip exit non-zero.
		if c.goos != "darwin" && c.goos != "windows" && out.Len() == 0 {
			return "", nil
		}
		return "", fmt.Errorf("read clipboard: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	text := out.String()
	if c.goos == "windows" {
		text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
	}
	return text, nil
}

func (c execClipboard) WriteText(text string) error {
	var cmd *exec.Cmd
	switch c.goos {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "windows":
		cmd = exec.Command("powershell", "-NoProfile", "-Command", "$input | Set-Clipboard")
	default:
		cmd = exec.Command("xclip", "-selection", "clipboard")
	}

	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("write clipboard: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Memory is an in-process clipboard for tests.
type Memory struct {
	mu       sync.Mutex
	text     string
	ReadErr  error
	WriteErr error
	Writes   int
}

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.text, nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.text = text
	return nil
}

// SetText seeds the fake clipboard directly.
func (m *Memory) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}
