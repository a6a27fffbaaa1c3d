// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.voxkey.app/voxkey/cache"
	"go.voxkey.app/voxkey/clipboard"
	"go.voxkey.app/voxkey/config"
	"go.voxkey.app/voxkey/guard"
	"go.voxkey.app/voxkey/hotkey"
	"go.voxkey.app/voxkey/internal/types"
	"go.voxkey.app/voxkey/llm"
	"go.voxkey.app/voxkey/record"
	"go.voxkey.app/voxkey/stt"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// Operation names tracked by the guard.
const (
	opRecording = "recording"
	opCopy      = "llm-copy"
	opSend      = "llm-send"
)

// instructionTimeout bounds the frontend instruction round trip before
// falling back to the configured template.
const instructionTimeout = 3 * time.Second

// Recorder is the recording session surface the workflows need.
type Recorder interface {
	Start() error
	Stop() (string, error)
	Phase() record.Phase
	Cleanup()
}

// Transcriber turns a WAV file into text, consuming the file.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Responder produces a completion for a built prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string, assocs []types.RetrievalAssociation, web types.WebSearchConfig) (types.CompletionResult, error)
}

// TextInjector is the clipboard surface the workflows need.
type TextInjector interface {
	InjectText(text string) types.InjectResult
	CaptureSelection() (types.ClipboardCapture, error)
	AutoPaste() error
	Status() types.InjectorStatus
}

// Disposer releases the global keyboard hook.
type Disposer interface {
	Dispose()
}

// Service owns all workflow state and provides application functionality
// bound to Wails. The hotkey callback goroutine and workflow goroutines
// share it; mu protects the mutable slots.
type Service struct {
	cfg   *config.Config
	cache *cache.Cache

	session     Recorder
	transcriber Transcriber
	engine      Responder
	injector    TextInjector

	router   *hotkey.Router
	listener Disposer
	guard    *guard.OperationGuard
	cleanup  *guard.CleanupGuard

	// UI references - set via Init
	app    *application.App
	window application.Window

	mu           sync.Mutex
	llmClipboard *types.ClipboardCapture
	result       *types.ProcessedResult
	instruction  pendingRequest
	resetTimer   *time.Timer
	finishing    bool

	// notify overrides event emission, set in tests.
	notify func(name string, data any)
	// instructionWait overrides instructionTimeout, set in tests.
	instructionWait time.Duration

	version string
}

// New creates a new Service. Call Init() after the Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after the Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = &config.Config{}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	s.cfg = cfg

	s.guard = guard.NewOperationGuard()
	s.cleanup = &guard.CleanupGuard{}

	s.setupCache()
	s.setupPipeline()
	s.setupHotkey()

	s.emit(EventStatus, StatusReady)
}

func (s *Service) setupCache() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for cache", "error", err)
		return
	}

	cachePath := filepath.Join(configDir, "voxkey", "cache")
	c, err := cache.Open(cachePath)
	if err != nil {
		slog.Error("init cache", "error", err)
		return
	}
	s.cache = c
	slog.Info("cache initialized", "path", cachePath)
}

func (s *Service) setupPipeline() {
	s.session = record.NewSession(record.NewMicCapturer(), record.Hooks{
		OnProgress: func(p types.RecordingProgress) { s.emit(EventRecordingTick, p) },
		OnWarning: func(remaining time.Duration) {
			s.emit(EventRecordingWarning, remaining.Seconds())
		},
		OnAutoStop: func() { go s.finishRecording() },
	})

	s.transcriber = stt.NewPipeline(stt.NewWhisperRecognizer(s.cfg.APIKey, ""))

	completer := llm.NewOpenAIClient(s.cfg.APIKey, "", s.cfg.Model, llm.Options{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	var engineCache llm.Cache
	if s.cache != nil {
		engineCache = s.cache
	}
	s.engine = llm.NewEngine(completer, engineCache)

	s.injector = clipboard.NewInjector(clipboard.NewSystem(), clipboard.NewKeystrokes())
}

func (s *Service) setupHotkey() {
	s.router = hotkey.NewRouter(hotkey.Triggers{
		StartRecording: s.startRecording,
		StopRecording:  func(hotkey.Combo) { go s.finishRecording() },
		Copy:           func() { go s.copySelection() },
		Send:           func() { go s.sendClipboard() },
		Help:           func() { s.showWindow() },
	}, func() bool { return s.cfg.ShortcutsEnabled })

	listener := hotkey.NewListener(s.router.HandleKey)
	if err := listener.Start(); err != nil {
		slog.Error("start keyboard hook", "error", err)
		return
	}
	s.listener = listener
}

// Shutdown runs the teardown sequence. Safe to call more than once.
func (s *Service) Shutdown() {
	s.RunLifecycle()
}

// shuttingDown reports whether teardown has begun. New triggers landing
// while the keyboard hook is still live are dropped silently.
func (s *Service) shuttingDown() bool {
	return s.cleanup != nil && s.cleanup.Started()
}

// emit is a safe wrapper around app.Event.Emit.
func (s *Service) emit(name string, data any) {
	if s.notify != nil {
		s.notify(name, data)
		return
	}
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

func (s *Service) showWindow() {
	if s.window != nil {
		s.window.Show()
		s.window.Focus()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Instruction round trip
// ─────────────────────────────────────────────────────────────────────────────

// effectiveInstruction asks the frontend for the current instruction and
// falls back to the active template when the frontend does not answer in
// time or a request is already outstanding.
func (s *Service) effectiveInstruction() string {
	ch, err := s.instruction.Arm()
	if err != nil {
		slog.Warn("instruction request already pending")
		return s.cfg.EffectiveInstruction()
	}
	s.emit(EventGetInstruction, nil)
	wait := s.instructionWait
	if wait <= 0 {
		wait = instructionTimeout
	}
	if text, ok := s.instruction.Wait(ch, wait); ok {
		return text
	}
	return s.cfg.EffectiveInstruction()
}

// ProvideInstruction is called by the frontend in reply to a
// get-instruction event.
func (s *Service) ProvideInstruction(text string) {
	s.instruction.Resolve(text)
}

// ─────────────────────────────────────────────────────────────────────────────
// LLM Clipboard & Results
// ─────────────────────────────────────────────────────────────────────────────

// GetLLMClipboard returns the in-memory capture slot, or nil.
func (s *Service) GetLLMClipboard() *types.ClipboardCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmClipboard
}

// ClearLLMClipboard empties the capture slot.
func (s *Service) ClearLLMClipboard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmClipboard = nil
}

// GetProcessedResult returns the deferred result slot, or nil.
func (s *Service) GetProcessedResult() *types.ProcessedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings passthrough
// ─────────────────────────────────────────────────────────────────────────────

// GetTemplates returns all instruction templates.
func (s *Service) GetTemplates() []types.InstructionTemplate {
	return s.cfg.GetTemplates()
}

// AddTemplate adds a new instruction template.
func (s *Service) AddTemplate(t types.InstructionTemplate) error {
	return s.cfg.AddTemplate(t)
}

// UpdateTemplate updates an existing template.
func (s *Service) UpdateTemplate(id string, t types.InstructionTemplate) error {
	return s.cfg.UpdateTemplate(id, t)
}

// RemoveTemplate removes a template by ID.
func (s *Service) RemoveTemplate(id string) error {
	return s.cfg.RemoveTemplate(id)
}

// SetTemplateActive sets a template as active.
func (s *Service) SetTemplateActive(id string) error {
	return s.cfg.SetTemplateActive(id)
}

// ExportTemplates serializes all templates.
func (s *Service) ExportTemplates() (string, error) {
	data, err := s.cfg.ExportTemplates()
	return string(data), err
}

// ImportTemplates merges an exported template payload, returning how many
// were added.
func (s *Service) ImportTemplates(payload string) (int, error) {
	return s.cfg.ImportTemplates([]byte(payload))
}

// GetAssociations returns the configured retrieval associations.
func (s *Service) GetAssociations() []types.RetrievalAssociation {
	return s.cfg.GetAssociations()
}

// AddAssociation links a vector store.
func (s *Service) AddAssociation(a types.RetrievalAssociation) error {
	return s.cfg.AddAssociation(a)
}

// RemoveAssociation unlinks a vector store.
func (s *Service) RemoveAssociation(vectorStoreID string) error {
	return s.cfg.RemoveAssociation(vectorStoreID)
}

// SetWebSearch updates the web search configuration.
func (s *Service) SetWebSearch(ws types.WebSearchConfig) error {
	return s.cfg.SetWebSearch(ws)
}

// GetShortcutsEnabled reports whether the copy/send shortcuts are active.
func (s *Service) GetShortcutsEnabled() bool {
	return s.cfg.ShortcutsEnabled
}

// SetShortcutsEnabled toggles the copy/send shortcuts.
func (s *Service) SetShortcutsEnabled(enabled bool) error {
	if err := s.cfg.SetShortcutsEnabled(enabled); err != nil {
		return err
	}
	s.emit(EventShortcutsToggled, enabled)
	return nil
}

// SetAutoPaste toggles auto-paste after injection.
func (s *Service) SetAutoPaste(enabled bool) error {
	return s.cfg.SetAutoPaste(enabled)
}

// SetCopySendMode selects immediate or manual processing of captures.
func (s *Service) SetCopySendMode(mode string) error {
	return s.cfg.SetCopySendMode(mode)
}

// TestConnection verifies the configured API key against the provider.
func (s *Service) TestConnection() error {
	client := llm.NewOpenAIClient(s.cfg.APIKey, "", s.cfg.Model, llm.Options{})
	return client.TestConnection(context.Background())
}

// GetInjectorStatus reports clipboard availability for the UI.
func (s *Service) GetInjectorStatus() types.InjectorStatus {
	return s.injector.Status()
}
