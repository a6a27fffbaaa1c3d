// Package app provides the core application service for Wails bindings.
package app

// Event names for frontend communication.
const (
	EventStatus           = "status-update"
	EventTranscript       = "transcript-update"
	EventResponse         = "response-update"
	EventRecordingTick    = "recording-progress"
	EventRecordingWarning = "recording-warning"
	EventGetInstruction   = "get-instruction"
	EventClipboardUpdated = "llm-clipboard-updated"
	EventShortcutsToggled = "shortcuts-toggled"
)

// Status line texts shown in the UI.
const (
	StatusReady       = "Ready"
	StatusListening   = "Listening..."
	StatusProcessing  = "Processing audio..."
	StatusTranscribe  = "Transcribing..."
	StatusThinking    = "Thinking..."
	StatusCopying     = "Copying to LLM clipboard..."
	StatusSendWorking = "Processing LLM clipboard..."
)
