package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.voxkey.app/voxkey/internal/types"
)

const (
	defaultMaxResults = 8
	maxResultsLimit   = 20

	searchResultsInclude = "output[*].file_search_call.search_results"
)

// Cache stores serialized completion results keyed by request fingerprint.
// Implementations are best effort; a failed store is not an error.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Engine decides which tools a completion needs and runs it, with an
// optional result cache in front of the provider.
type Engine struct {
	completer Completer
	cache     Cache
	keyFn     func(prompt string, tools []Tool) string
}

// NewEngine returns an engine over completer. cache may be nil.
func NewEngine(completer Completer, cache Cache) *Engine {
	return &Engine{completer: completer, cache: cache}
}

// mergeAssociations folds retrieval associations into one file-search tool
// parameter set. Associations without a vector store ID are skipped. The
// effective result count is the highest requested, clipped to the provider
// limit; raw search results are included only when every association
// allows them.
func mergeAssociations(assocs []types.RetrievalAssociation) (ids []string, maxResults int, includeResults bool) {
	maxResults = defaultMaxResults
	includeResults = true
	for _, a := range assocs {
		if a.VectorStoreID == "" {
			continue
		}
		ids = append(ids, a.VectorStoreID)
		if a.MaxResults > maxResults {
			maxResults = a.MaxResults
		}
		if !a.IncludeResults {
			includeResults = false
		}
	}
	if maxResults > maxResultsLimit {
		maxResults = maxResultsLimit
	}
	return ids, maxResults, includeResults
}

// Respond runs the prompt through the provider with whichever tools the
// configuration calls for: retrieval and web search combined, either alone,
// or a plain completion.
func (e *Engine) Respond(ctx context.Context, prompt string, assocs []types.RetrievalAssociation, web types.WebSearchConfig) (types.CompletionResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return types.CompletionResult{}, ErrEmptyInput
	}

	req := Request{Prompt: prompt}
	ids, maxResults, includeResults := mergeAssociations(assocs)
	hasRAG := len(ids) > 0
	if hasRAG {
		req.Tools = append(req.Tools, Tool{
			Type:           "file_search",
			VectorStoreIDs: ids,
			MaxNumResults:  maxResults,
		})
		if includeResults {
			req.Include = []string{searchResultsInclude}
		}
	}
	if web.Enabled {
		req.Tools = append(req.Tools, Tool{Type: "web_search"})
	}
	slog.Debug("completion strategy chosen",
		"rag", hasRAG, "web_search", web.Enabled, "vector_stores", len(ids))

	key := e.cacheKey(prompt, req.Tools)
	if cached, ok := e.lookup(key); ok {
		slog.Info("completion served from cache")
		cached.Metadata.CacheHit = true
		return cached, nil
	}

	result, err := e.completer.Complete(ctx, req)
	if err != nil {
		return types.CompletionResult{}, err
	}
	e.store(key, result)
	return result, nil
}

func (e *Engine) lookup(key string) (types.CompletionResult, bool) {
	if e.cache == nil || key == "" {
		return types.CompletionResult{}, false
	}
	raw, ok := e.cache.Get(key)
	if !ok {
		return types.CompletionResult{}, false
	}
	return decodeCached(raw)
}

func (e *Engine) store(key string, result types.CompletionResult) {
	if e.cache == nil || key == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	e.cache.Set(key, data)
}

func (e *Engine) cacheKey(prompt string, tools []Tool) string {
	if e.cache == nil {
		return ""
	}
	if e.keyFn != nil {
		return e.keyFn(prompt, tools)
	}
	return Fingerprint(prompt, tools)
}

// Fingerprint derives a stable cache key from the prompt and the tool
// configuration it runs with.
func Fingerprint(prompt string, tools []Tool) string {
	h := sha256.New()
	io.WriteString(h, prompt)
	for _, t := range tools {
		io.WriteString(h, "|"+t.Type)
		for _, id := range t.VectorStoreIDs {
			io.WriteString(h, ","+id)
		}
		io.WriteString(h, ":"+strconv.Itoa(t.MaxNumResults))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// decodeCached normalizes a cached value. Entries written by earlier
// versions hold the bare response text, either as a JSON string or as raw
// bytes; those become a plain CompletionResult.
func decodeCached(raw []byte) (types.CompletionResult, bool) {
	var result types.CompletionResult
	if err := json.Unmarshal(raw, &result); err == nil && result.Text != "" {
		return result, true
	}
	var legacy string
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy != "" {
		return types.CompletionResult{Text: legacy}, true
	}
	if s := strings.TrimSpace(string(raw)); s != "" && !strings.HasPrefix(s, "{") {
		return types.CompletionResult{Text: s}, true
	}
	return types.CompletionResult{}, false
}
