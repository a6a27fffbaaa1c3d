// Package types provides shared type definitions for the application.
package types

import "time"

// DefaultMaxTokens is the default max output tokens if not specified.
const DefaultMaxTokens = 1000

// DefaultTemperature is the default sampling temperature if not specified.
const DefaultTemperature = 0.7

// Citation is an annotation attached to a completion, pointing at a
// retrieved file or web source.
type Citation struct {
	Type  string `json:"type"` // "file_citation", "url_citation"
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	File  string `json:"file,omitempty"`
}

// CompletionMetadata carries provider diagnostics for a completion.
type CompletionMetadata struct {
	TotalOutputItems int  `json:"totalOutputItems"`
	HasAnnotations   bool `json:"hasAnnotations"`
	CacheHit         bool `json:"cacheHit"`
}

// CompletionResult is the normalized shape every completion strategy
// returns. Legacy bare-string provider responses are converted into this
// at the provider adapter, never inside workflow logic.
type CompletionResult struct {
	Text          string             `json:"text"`
	WebSearchUsed bool               `json:"webSearchUsed"`
	RAGUsed       bool               `json:"ragUsed"`
	Citations     []Citation         `json:"citations"`
	Metadata      CompletionMetadata `json:"metadata"`
}

// RetrievalAssociation links an instruction template to an external
// vector store, with per-link search settings.
type RetrievalAssociation struct {
	VectorStoreID  string `json:"vector_store_id"`
	MaxResults     int    `json:"max_results,omitempty"`
	IncludeResults bool   `json:"include_results"`
}

// WebSearchConfig enables web search for a workflow.
type WebSearchConfig struct {
	Enabled bool     `json:"enabled"`
	Sites   []string `json:"sites,omitempty"` // display only, not sent to the provider
}

// InstructionTemplate is a named, reusable instruction for processing
// transcripts and captured text.
type InstructionTemplate struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// ClipboardCapture is the in-memory LLM clipboard slot. It is never
// persisted; it lives only for the process lifetime.
type ClipboardCapture struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ProcessedResult is the single deferred result slot for copy-then-send
// mode. Cleared after a successful paste or on error.
type ProcessedResult struct {
	Text         string     `json:"text"`
	OriginalText string     `json:"originalText"`
	Instruction  string     `json:"instruction"`
	Timestamp    time.Time  `json:"timestamp"`
	Citations    []Citation `json:"citations"`
	RAGUsed      bool       `json:"ragUsed"`
	WebSearchUsed bool      `json:"webSearchUsed"`
}

// RecordingProgress is emitted once per second while a recording session
// is active.
type RecordingProgress struct {
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	Percent   float64       `json:"percent"`
}

// InjectResult reports the outcome of a clipboard injection.
type InjectResult struct {
	Success bool   `json:"success"`
	Method  string `json:"method"`
	Error   string `json:"error,omitempty"`
}

// InjectorStatus reports clipboard availability for diagnostics.
type InjectorStatus struct {
	Available   bool   `json:"available"`
	Method      string `json:"method"`
	Description string `json:"description"`
}
