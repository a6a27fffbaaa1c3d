package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.voxkey.app/voxkey/clipboard"
	"go.voxkey.app/voxkey/config"
	"go.voxkey.app/voxkey/guard"
	"go.voxkey.app/voxkey/hotkey"
	"go.voxkey.app/voxkey/internal/types"
	"go.voxkey.app/voxkey/record"
)

// mockRecorder implements Recorder for testing.
type mockRecorder struct {
	mu       sync.Mutex
	startErr error
	stopPath string
	stopErr  error
	starts   int
	stops    int
	cleanups int
}

func (m *mockRecorder) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

func (m *mockRecorder) Stop() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return m.stopPath, m.stopErr
}

func (m *mockRecorder) Phase() record.Phase { return record.PhaseIdle }

func (m *mockRecorder) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups++
}

// mockTranscriber implements Transcriber for testing.
type mockTranscriber struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	lastPath string
}

func (m *mockTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPath = path
	return m.text, m.err
}

// mockResponder implements Responder for testing. A non-nil block channel
// holds Respond until the test releases it.
type mockResponder struct {
	mu         sync.Mutex
	result     types.CompletionResult
	err        error
	block      chan struct{}
	calls      int
	lastPrompt string
}

func (m *mockResponder) Respond(_ context.Context, prompt string, _ []types.RetrievalAssociation, _ types.WebSearchConfig) (types.CompletionResult, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result, m.err
}

// mockInjector implements TextInjector for testing.
type mockInjector struct {
	mu         sync.Mutex
	injectFail string
	capture    types.ClipboardCapture
	captureErr error
	injected   []string
	pastes     int
}

func (m *mockInjector) InjectText(text string) types.InjectResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injected = append(m.injected, text)
	if m.injectFail != "" {
		return types.InjectResult{Method: "clipboard", Error: m.injectFail}
	}
	return types.InjectResult{Success: true, Method: "clipboard"}
}

func (m *mockInjector) CaptureSelection() (types.ClipboardCapture, error) {
	return m.capture, m.captureErr
}

func (m *mockInjector) AutoPaste() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pastes++
	return nil
}

func (m *mockInjector) Status() types.InjectorStatus {
	return types.InjectorStatus{Available: true, Method: "clipboard"}
}

// eventLog records emitted events in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(name string, data any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name == EventStatus {
		l.events = append(l.events, data.(string))
	} else {
		l.events = append(l.events, name)
	}
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) contains(s string) bool {
	for _, e := range l.snapshot() {
		if strings.Contains(e, s) {
			return true
		}
	}
	return false
}

type testHarness struct {
	svc    *Service
	rec    *mockRecorder
	trans  *mockTranscriber
	resp   *mockResponder
	inj    *mockInjector
	events *eventLog
}

func newTestService(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		rec:    &mockRecorder{stopPath: "/tmp/voxkey_test.wav"},
		trans:  &mockTranscriber{text: "hello world"},
		resp:   &mockResponder{result: types.CompletionResult{Text: "the answer"}},
		inj:    &mockInjector{capture: types.ClipboardCapture{Text: "selected text", Timestamp: time.Now()}},
		events: &eventLog{},
	}
	h.svc = &Service{
		cfg: &config.Config{
			ShortcutsEnabled: true,
			CopySendMode:     config.CopySendManual,
		},
		guard:           guard.NewOperationGuard(),
		cleanup:         &guard.CleanupGuard{},
		session:         h.rec,
		transcriber:     h.trans,
		engine:          h.resp,
		injector:        h.inj,
		instructionWait: 10 * time.Millisecond,
	}
	h.svc.notify = h.events.record
	h.svc.router = hotkey.NewRouter(hotkey.Triggers{
		StartRecording: h.svc.startRecording,
		StopRecording:  func(hotkey.Combo) { h.svc.finishRecording() },
		Copy:           h.svc.copySelection,
		Send:           h.svc.sendClipboard,
	}, func() bool { return h.svc.cfg.ShortcutsEnabled })
	return h
}

func TestRecordingWorkflow(t *testing.T) {
	h := newTestService(t)

	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Fatal("startRecording() rejected")
	}
	h.svc.finishRecording()

	if h.trans.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", h.trans.calls)
	}
	if h.trans.lastPath != "/tmp/voxkey_test.wav" {
		t.Errorf("transcribed path = %q", h.trans.lastPath)
	}
	if h.resp.calls != 1 {
		t.Errorf("responder calls = %d, want 1", h.resp.calls)
	}
	if !strings.Contains(h.resp.lastPrompt, `Transcript: "hello world"`) {
		t.Errorf("prompt missing transcript: %q", h.resp.lastPrompt)
	}
	if len(h.inj.injected) != 1 || h.inj.injected[0] != "the answer" {
		t.Errorf("injected = %v, want [the answer]", h.inj.injected)
	}
	if h.svc.guard.Active() != "" {
		t.Errorf("guard still held: %q", h.svc.guard.Active())
	}

	events := h.events.snapshot()
	wantOrder := []string{StatusListening, StatusProcessing, StatusTranscribe, StatusThinking}
	idx := 0
	for _, e := range events {
		if idx < len(wantOrder) && e == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Errorf("status order = %v, want subsequence %v", events, wantOrder)
	}
	if !h.events.contains("Done in ") || !h.events.contains("Ctrl+V to paste") {
		t.Errorf("missing done status in %v", events)
	}
}

func TestRecordingRejectedWhileBusy(t *testing.T) {
	h := newTestService(t)

	if !h.svc.guard.TryEnter("other") {
		t.Fatal("TryEnter() failed on idle guard")
	}
	defer h.svc.guard.Leave()

	if h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Error("startRecording() accepted while another operation in flight")
	}
	if h.rec.starts != 0 {
		t.Errorf("recorder starts = %d, want 0", h.rec.starts)
	}
}

func TestRejectedTriggersEmitBusyStatus(t *testing.T) {
	h := newTestService(t)

	if !h.svc.guard.TryEnter("other") {
		t.Fatal("TryEnter() failed on idle guard")
	}
	defer h.svc.guard.Leave()

	tests := []struct {
		name       string
		trigger    func()
		wantStatus string
	}{
		{"recording", func() { h.svc.startRecording(hotkey.ComboMetaAlt) }, "Cannot record while busy"},
		{"copy", h.svc.copySelection, "Cannot copy while busy"},
		{"send", h.svc.sendClipboard, "Cannot paste while busy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.trigger()
			if !h.events.contains(tt.wantStatus) {
				t.Errorf("missing %q in %v", tt.wantStatus, h.events.snapshot())
			}
		})
	}

	// The dropped triggers must not have touched any collaborator.
	if h.rec.starts != 0 || h.trans.calls != 0 || h.resp.calls != 0 {
		t.Errorf("rejected triggers reached collaborators: starts=%d transcribes=%d responds=%d",
			h.rec.starts, h.trans.calls, h.resp.calls)
	}
}

func TestRecordingStartFailureReleasesGuard(t *testing.T) {
	h := newTestService(t)
	h.rec.startErr = errors.New("no microphone")

	if h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Error("startRecording() reported success despite capture failure")
	}
	if h.svc.guard.Active() != "" {
		t.Errorf("guard still held: %q", h.svc.guard.Active())
	}
	if !h.events.contains("Error: no microphone") {
		t.Errorf("missing error status in %v", h.events.snapshot())
	}

	// A later start must work again.
	h.rec.startErr = nil
	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Error("startRecording() rejected after recovery")
	}
}

func TestFinishRecordingOnlyRunsOnce(t *testing.T) {
	h := newTestService(t)
	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Fatal("startRecording() rejected")
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.svc.finishRecording()
		}()
	}
	wg.Wait()

	if h.trans.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", h.trans.calls)
	}
}

func TestTranscriptionFailureResetsState(t *testing.T) {
	h := newTestService(t)
	h.trans.err = errors.New("no speech detected in audio")

	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Fatal("startRecording() rejected")
	}
	h.svc.finishRecording()

	if h.resp.calls != 0 {
		t.Errorf("responder calls = %d, want 0", h.resp.calls)
	}
	if !h.events.contains("Error: no speech detected") {
		t.Errorf("missing error status in %v", h.events.snapshot())
	}
	if h.svc.guard.Active() != "" {
		t.Errorf("guard still held: %q", h.svc.guard.Active())
	}

	// Workflow must be startable again.
	h.trans.err = nil
	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Error("startRecording() rejected after failure reset")
	}
}

func TestInjectionFailureReportsError(t *testing.T) {
	h := newTestService(t)
	h.inj.injectFail = "clipboard verification failed"

	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Fatal("startRecording() rejected")
	}
	h.svc.finishRecording()

	if !h.events.contains("Error: clipboard verification failed") {
		t.Errorf("missing injection error in %v", h.events.snapshot())
	}
	if h.events.contains("Done in ") {
		t.Error("done status emitted despite injection failure")
	}
}

func TestAutoPasteAfterRecording(t *testing.T) {
	h := newTestService(t)
	h.svc.cfg.AutoPaste = true

	if !h.svc.startRecording(hotkey.ComboMetaAlt) {
		t.Fatal("startRecording() rejected")
	}
	h.svc.finishRecording()

	if h.inj.pastes != 1 {
		t.Errorf("pastes = %d, want 1", h.inj.pastes)
	}
}

func TestCopyStoresClipboard(t *testing.T) {
	h := newTestService(t)

	h.svc.copySelection()

	stored := h.svc.GetLLMClipboard()
	if stored == nil || stored.Text != "selected text" {
		t.Fatalf("GetLLMClipboard() = %v, want selected text", stored)
	}
	if !h.events.contains("Copied 13 characters") {
		t.Errorf("missing copied status in %v", h.events.snapshot())
	}
	if h.resp.calls != 0 {
		t.Errorf("responder calls = %d, want 0 in manual mode", h.resp.calls)
	}
}

func TestCopyImmediateModeProcesses(t *testing.T) {
	h := newTestService(t)
	h.svc.cfg.CopySendMode = config.CopySendImmediate

	h.svc.copySelection()

	if h.resp.calls != 1 {
		t.Errorf("responder calls = %d, want 1", h.resp.calls)
	}
	if len(h.inj.injected) != 1 || h.inj.injected[0] != "the answer" {
		t.Errorf("injected = %v", h.inj.injected)
	}
}

func TestCopyNothingSelected(t *testing.T) {
	h := newTestService(t)
	h.inj.captureErr = clipboard.ErrNothingSelected

	h.svc.copySelection()

	if h.svc.GetLLMClipboard() != nil {
		t.Error("clipboard slot set despite empty selection")
	}
	if !h.events.contains("No text selected") {
		t.Errorf("missing status in %v", h.events.snapshot())
	}
}

func TestSendEmptyClipboard(t *testing.T) {
	h := newTestService(t)

	h.svc.sendClipboard()

	if !h.events.contains("LLM clipboard is empty") {
		t.Errorf("missing status in %v", h.events.snapshot())
	}
	if h.resp.calls != 0 {
		t.Errorf("responder calls = %d, want 0", h.resp.calls)
	}
}

func TestSendProcessesStoredText(t *testing.T) {
	h := newTestService(t)

	h.svc.copySelection()
	h.svc.sendClipboard()

	if h.resp.calls != 1 {
		t.Errorf("responder calls = %d, want 1", h.resp.calls)
	}
	if !strings.Contains(h.resp.lastPrompt, `Transcript: "selected text"`) {
		t.Errorf("prompt = %q", h.resp.lastPrompt)
	}
	if !h.events.contains("LLM response pasted successfully") {
		t.Errorf("missing status in %v", h.events.snapshot())
	}
	if h.svc.GetProcessedResult() != nil {
		t.Error("result slot not cleared after paste")
	}
}

func TestSendFailureClearsResultSlot(t *testing.T) {
	h := newTestService(t)
	h.inj.injectFail = "write failed"

	h.svc.copySelection()
	h.svc.sendClipboard()

	if h.svc.GetProcessedResult() != nil {
		t.Error("result slot not cleared after failed paste")
	}
	if !h.events.contains("Paste failed: write failed") {
		t.Errorf("missing status in %v", h.events.snapshot())
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	h := newTestService(t)
	h.svc.instructionWait = 200 * time.Millisecond

	// Respond when the request event arrives, like the frontend would.
	prev := h.svc.notify
	h.svc.notify = func(name string, data any) {
		prev(name, data)
		if name == EventGetInstruction {
			go h.svc.ProvideInstruction("Summarize this.")
		}
	}

	got := h.svc.effectiveInstruction()
	if got != "Summarize this." {
		t.Errorf("effectiveInstruction() = %q, want frontend reply", got)
	}
}

func TestInstructionTimeoutFallsBackToTemplate(t *testing.T) {
	h := newTestService(t)
	h.svc.cfg.Templates = []types.InstructionTemplate{
		{ID: "t1", Name: "A", Text: "Translate to French.", Active: true},
	}

	got := h.svc.effectiveInstruction()
	if got != "Translate to French." {
		t.Errorf("effectiveInstruction() = %q, want template fallback", got)
	}
}

func TestConcurrentInstructionRequestRejected(t *testing.T) {
	var p pendingRequest
	ch, err := p.Arm()
	if err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if _, err := p.Arm(); !errors.Is(err, ErrRequestPending) {
		t.Errorf("second Arm() error = %v, want ErrRequestPending", err)
	}

	if !p.Resolve("reply") {
		t.Error("Resolve() found no outstanding request")
	}
	if got, ok := p.Wait(ch, time.Second); !ok || got != "reply" {
		t.Errorf("Wait() = %q, %v", got, ok)
	}

	// Slot is free again after resolution.
	if _, err := p.Arm(); err != nil {
		t.Errorf("Arm() after resolve error = %v", err)
	}
	if p.Resolve("late") && p.Resolve("later") {
		t.Error("Resolve() succeeded twice for one request")
	}
}

func TestPendingRequestAbort(t *testing.T) {
	var p pendingRequest
	ch, err := p.Arm()
	if err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	p.Abort()

	if _, ok := p.Wait(ch, 10*time.Millisecond); ok {
		t.Error("Wait() returned a value after abort")
	}
	if p.Resolve("stale") {
		t.Error("Resolve() delivered to an aborted request")
	}
}
