package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.voxkey.app/voxkey/internal/types"
)

// mockCompleter records the request it received and returns a canned
// result.
type mockCompleter struct {
	lastReq Request
	calls   int
	result  types.CompletionResult
	err     error
}

func (m *mockCompleter) Complete(_ context.Context, req Request) (types.CompletionResult, error) {
	m.lastReq = req
	m.calls++
	if m.err != nil {
		return types.CompletionResult{}, m.err
	}
	return m.result, nil
}

type mapCache struct {
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key string, value []byte) { c.data[key] = value }

func TestMergeAssociations(t *testing.T) {
	tests := []struct {
		name        string
		assocs      []types.RetrievalAssociation
		wantIDs     int
		wantMax     int
		wantInclude bool
	}{
		{"empty", nil, 0, defaultMaxResults, true},
		{
			"skips blank store ids",
			[]types.RetrievalAssociation{{MaxResults: 15, IncludeResults: true}},
			0, defaultMaxResults, true,
		},
		{
			"takes highest max results",
			[]types.RetrievalAssociation{
				{VectorStoreID: "vs_1", MaxResults: 5, IncludeResults: true},
				{VectorStoreID: "vs_2", MaxResults: 12, IncludeResults: true},
			},
			2, 12, true,
		},
		{
			"clips to provider limit",
			[]types.RetrievalAssociation{
				{VectorStoreID: "vs_1", MaxResults: 50, IncludeResults: true},
			},
			1, maxResultsLimit, true,
		},
		{
			"any opt-out suppresses results",
			[]types.RetrievalAssociation{
				{VectorStoreID: "vs_1", MaxResults: 10, IncludeResults: true},
				{VectorStoreID: "vs_2", MaxResults: 4, IncludeResults: false},
			},
			2, 10, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, maxResults, include := mergeAssociations(tt.assocs)
			if len(ids) != tt.wantIDs || maxResults != tt.wantMax || include != tt.wantInclude {
				t.Errorf("mergeAssociations = (%d ids, %d, %v), want (%d, %d, %v)",
					len(ids), maxResults, include, tt.wantIDs, tt.wantMax, tt.wantInclude)
			}
		})
	}
}

func TestRespondStrategies(t *testing.T) {
	assoc := []types.RetrievalAssociation{{VectorStoreID: "vs_1", MaxResults: 10, IncludeResults: true}}
	tests := []struct {
		name      string
		assocs    []types.RetrievalAssociation
		web       types.WebSearchConfig
		wantTools []string
	}{
		{"plain", nil, types.WebSearchConfig{}, nil},
		{"rag only", assoc, types.WebSearchConfig{}, []string{"file_search"}},
		{"web only", nil, types.WebSearchConfig{Enabled: true}, []string{"web_search"}},
		{"rag and web", assoc, types.WebSearchConfig{Enabled: true}, []string{"file_search", "web_search"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockCompleter{result: types.CompletionResult{Text: "ok"}}
			e := NewEngine(m, nil)

			if _, err := e.Respond(context.Background(), "prompt", tt.assocs, tt.web); err != nil {
				t.Fatalf("Respond: %v", err)
			}
			var gotTools []string
			for _, tool := range m.lastReq.Tools {
				gotTools = append(gotTools, tool.Type)
			}
			if len(gotTools) != len(tt.wantTools) {
				t.Fatalf("tools = %v, want %v", gotTools, tt.wantTools)
			}
			for i := range gotTools {
				if gotTools[i] != tt.wantTools[i] {
					t.Fatalf("tools = %v, want %v", gotTools, tt.wantTools)
				}
			}
		})
	}
}

func TestRespondIncludeFollowsOptOut(t *testing.T) {
	m := &mockCompleter{result: types.CompletionResult{Text: "ok"}}
	e := NewEngine(m, nil)

	in := []types.RetrievalAssociation{{VectorStoreID: "vs_1", IncludeResults: true}}
	if _, err := e.Respond(context.Background(), "p", in, types.WebSearchConfig{}); err != nil {
		t.Fatal(err)
	}
	if len(m.lastReq.Include) != 1 || m.lastReq.Include[0] != searchResultsInclude {
		t.Errorf("Include = %v, want search results requested", m.lastReq.Include)
	}

	out := []types.RetrievalAssociation{{VectorStoreID: "vs_1", IncludeResults: false}}
	if _, err := e.Respond(context.Background(), "p", out, types.WebSearchConfig{}); err != nil {
		t.Fatal(err)
	}
	if len(m.lastReq.Include) != 0 {
		t.Errorf("Include = %v, want empty after opt-out", m.lastReq.Include)
	}
}

func TestRespondEmptyPrompt(t *testing.T) {
	e := NewEngine(&mockCompleter{}, nil)
	if _, err := e.Respond(context.Background(), "  ", nil, types.WebSearchConfig{}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Respond = %v, want ErrEmptyInput", err)
	}
}

func TestRespondPropagatesError(t *testing.T) {
	providerErr := classify(429, errors.New("slow down"))
	e := NewEngine(&mockCompleter{err: providerErr}, nil)
	_, err := e.Respond(context.Background(), "p", nil, types.WebSearchConfig{})
	if KindOf(err) != KindRateLimited {
		t.Errorf("kind = %v, want rate-limited", KindOf(err))
	}
}

func TestRespondCaches(t *testing.T) {
	m := &mockCompleter{result: types.CompletionResult{Text: "answer", WebSearchUsed: true}}
	cache := newMapCache()
	e := NewEngine(m, cache)

	first, err := e.Respond(context.Background(), "p", nil, types.WebSearchConfig{Enabled: true})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first response should not be a cache hit")
	}

	second, err := e.Respond(context.Background(), "p", nil, types.WebSearchConfig{Enabled: true})
	if err != nil {
		t.Fatalf("Respond (cached): %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second response should be a cache hit")
	}
	if second.Text != "answer" || !second.WebSearchUsed {
		t.Errorf("cached result = %+v, want original payload", second)
	}
	if m.calls != 1 {
		t.Errorf("completer called %d times, want 1", m.calls)
	}
}

func TestRespondCacheKeyVariesByTools(t *testing.T) {
	m := &mockCompleter{result: types.CompletionResult{Text: "x"}}
	cache := newMapCache()
	e := NewEngine(m, cache)

	if _, err := e.Respond(context.Background(), "p", nil, types.WebSearchConfig{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Respond(context.Background(), "p", nil, types.WebSearchConfig{Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if m.calls != 2 {
		t.Errorf("completer called %d times, want 2 for distinct tool sets", m.calls)
	}
}

func TestDecodeCachedLegacyShapes(t *testing.T) {
	full, _ := json.Marshal(types.CompletionResult{Text: "structured", RAGUsed: true})
	tests := []struct {
		name string
		raw  []byte
		want string
		ok   bool
	}{
		{"structured", full, "structured", true},
		{"json string", []byte(`"bare text"`), "bare text", true},
		{"raw bytes", []byte("plain old text"), "plain old text", true},
		{"garbage object", []byte(`{"other":1}`), "", false},
		{"empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeCached(tt.raw)
			if ok != tt.ok || got.Text != tt.want {
				t.Errorf("decodeCached = (%q, %v), want (%q, %v)", got.Text, ok, tt.want, tt.ok)
			}
		})
	}
}
