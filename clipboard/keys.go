package clipboard

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Keystrokes simulates the platform copy and paste chords in the focused
// application.
type Keystrokes interface {
	Copy() error
	Paste() error
}

// NewKeystrokes returns the platform keystroke simulator.
func NewKeystrokes() Keystrokes {
	return osKeystrokes{goos: runtime.GOOS}
}

type osKeystrokes struct {
	goos string
}

func (k osKeystrokes) Copy() error {
	return k.press("c", "^c")
}

func (k osKeystrokes) Paste() error {
	return k.press("v", "^v")
}

func (k osKeystrokes) press(mac, win string) error {
	var cmd *exec.Cmd
	switch k.goos {
	case "darwin":
		cmd = exec.Command("osascript", "-e",
			fmt.Sprintf(`tell application "System Events" to keystroke "%s" using command down`, mac))
	case "windows":
		cmd = exec.Command("powershell", "-WindowStyle", "Hidden", "-Command",
			fmt.Sprintf("Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.SendKeys]::SendWait('%s'); Start-Sleep -Milliseconds 300", win))
	default:
		cmd = exec.Command("xdotool", "key", "--clearmodifiers", "ctrl+"+mac)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("simulate keystroke: %w", err)
	}
	return nil
}
