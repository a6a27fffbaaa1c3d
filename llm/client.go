// Package llm builds prompts and runs them through the OpenAI Responses
// API, optionally with retrieval (file search) and web search tools.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.voxkey.app/voxkey/internal/types"
)

const (
	defaultResponsesURL = "https://api.openai.com/v1/responses"

	// DefaultModel is the fallback when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// Tool is a Responses API tool entry.
type Tool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
	MaxNumResults  int      `json:"max_num_results,omitempty"`
}

// Request is one completion request.
type Request struct {
	Prompt  string
	Tools   []Tool
	Include []string

	// Overrides; zero values fall back to the client's configuration.
	MaxTokens   int
	Temperature *float64
}

// Completer performs completions.
type Completer interface {
	Complete(ctx context.Context, req Request) (types.CompletionResult, error)
}

// Options configures completion behavior.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// completerConfig holds all parameters needed by the client.
type completerConfig struct {
	http        *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
}

// OpenAIClient implements Completer against the Responses API.
type OpenAIClient struct {
	cfg completerConfig
}

// NewOpenAIClient creates a client. baseURL may be empty for the public
// endpoint; zero options fall back to the shared defaults.
func NewOpenAIClient(apiKey, baseURL, model string, opts Options) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultResponsesURL
	}
	if model == "" {
		model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = types.DefaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = types.DefaultTemperature
	}
	return &OpenAIClient{cfg: completerConfig{
		http:        &http.Client{Timeout: 120 * time.Second},
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}}
}

// Responses API request/response types.
type responsesRequest struct {
	Model           string   `json:"model"`
	Input           string   `json:"input"`
	Tools           []Tool   `json:"tools,omitempty"`
	Temperature     float64  `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
	Include         []string `json:"include,omitempty"`
}

type responsesResponse struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Type    string          `json:"type"`
	Content []outputContent `json:"content"`
}

type outputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Annotations []annotation `json:"annotations"`
}

type annotation struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (types.CompletionResult, error) {
	if c.cfg.apiKey == "" {
		return types.CompletionResult{}, ErrNotConfigured
	}

	maxTokens := c.cfg.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := c.cfg.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	reqBody := responsesRequest{
		Model:           c.cfg.model,
		Input:           req.Prompt,
		Tools:           req.Tools,
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
		Include:         req.Include,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return types.CompletionResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return types.CompletionResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.apiKey)

	resp, err := c.cfg.http.Do(httpReq)
	if err != nil {
		return types.CompletionResult{}, classify(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.CompletionResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.CompletionResult{}, classify(resp.StatusCode,
			fmt.Errorf("api error: %d - %s", resp.StatusCode, string(body)))
	}

	var apiResp responsesResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return types.CompletionResult{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return parseOutput(apiResp)
}

// parseOutput extracts the final message, citations, and tool usage flags
// from the output item list.
func parseOutput(resp responsesResponse) (types.CompletionResult, error) {
	if len(resp.Output) == 0 {
		return types.CompletionResult{}, ErrNoResponse
	}

	result := types.CompletionResult{
		Metadata: types.CompletionMetadata{TotalOutputItems: len(resp.Output)},
	}

	var msg *outputItem
	for i := range resp.Output {
		item := &resp.Output[i]
		switch item.Type {
		case "web_search_call":
			result.WebSearchUsed = true
		case "file_search_call":
			result.RAGUsed = true
		case "message":
			if msg == nil && len(item.Content) > 0 {
				msg = item
			}
		}
	}
	if msg == nil {
		msg = &resp.Output[len(resp.Output)-1]
	}
	if len(msg.Content) == 0 {
		return types.CompletionResult{}, ErrNoResponse
	}

	content := msg.Content[0]
	result.Text = content.Text
	for _, a := range content.Annotations {
		result.Citations = append(result.Citations, types.Citation{
			Type:  a.Type,
			Title: a.Title,
			URL:   a.URL,
			File:  a.Filename,
		})
	}
	result.Metadata.HasAnnotations = len(result.Citations) > 0
	if result.Text == "" {
		return types.CompletionResult{}, ErrNoResponse
	}
	return result, nil
}

// TestConnection runs a tiny completion to verify key and connectivity.
func (c *OpenAIClient) TestConnection(ctx context.Context) error {
	zero := 0.0
	_, err := c.Complete(ctx, Request{
		Prompt:      "Hello, this is a test message.",
		MaxTokens:   16,
		Temperature: &zero,
	})
	if err != nil {
		return fmt.Errorf("API test failed: %w", err)
	}
	return nil
}
