// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.voxkey.app/voxkey/internal/types"
)

const (
	appName        = "voxkey"
	configFileName = "config.json"
)

// CopySendMode controls what happens after a selection is captured.
const (
	CopySendImmediate = "immediate" // process right away
	CopySendManual    = "manual"    // store, wait for the send shortcut
)

// Config represents the application configuration.
type Config struct {
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	ShortcutsEnabled bool   `json:"shortcuts_enabled"`
	AutoPaste        bool   `json:"auto_paste"`
	CopySendMode     string `json:"copy_send_mode,omitempty"`

	Templates    []types.InstructionTemplate  `json:"templates,omitempty"`
	Associations []types.RetrievalAssociation `json:"associations,omitempty"`
	WebSearch    types.WebSearchConfig        `json:"web_search"`

	// path overrides the default location, used in tests.
	path string
}

// Load loads configuration from the config file. A missing file returns
// the default config.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.path = path
	cfg.applyDefaults()
	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		c.path = path
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = types.DefaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = types.DefaultMaxTokens
	}
	if c.CopySendMode == "" {
		c.CopySendMode = CopySendManual
	}
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultConfig() *Config {
	cfg := &Config{ShortcutsEnabled: true}
	cfg.applyDefaults()
	return cfg
}

// ─────────────────────────────────────────────────────────────────────────────
// Instruction Template Management
// ─────────────────────────────────────────────────────────────────────────────

// GetTemplates returns all instruction templates.
func (c *Config) GetTemplates() []types.InstructionTemplate {
	return c.Templates
}

// GetActiveTemplate returns the active template, auto-activating the first
// one when none is marked active.
func (c *Config) GetActiveTemplate() *types.InstructionTemplate {
	for i := range c.Templates {
		if c.Templates[i].Active {
			return &c.Templates[i]
		}
	}
	if len(c.Templates) > 0 {
		c.Templates[0].Active = true
		_ = c.Save()
		return &c.Templates[0]
	}
	return nil
}

// EffectiveInstruction returns the active template's text, or "" so the
// prompt builder falls back to its default instruction.
func (c *Config) EffectiveInstruction() string {
	if t := c.GetActiveTemplate(); t != nil {
		return t.Text
	}
	return ""
}

// AddTemplate adds a new instruction template.
func (c *Config) AddTemplate(t types.InstructionTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if c.templateByName(t.Name) != nil {
		return fmt.Errorf("template name already exists: %s", t.Name)
	}

	// First template or explicitly active: deactivate others
	if len(c.Templates) == 0 || t.Active {
		for i := range c.Templates {
			c.Templates[i].Active = false
		}
		t.Active = true
	}
	c.Templates = append(c.Templates, t)
	return c.Save()
}

// UpdateTemplate updates an existing template by ID.
func (c *Config) UpdateTemplate(id string, t types.InstructionTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	idx := slices.IndexFunc(c.Templates, func(x types.InstructionTemplate) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("template not found: %s", id)
	}

	wasActive := c.Templates[idx].Active
	if t.Active && !wasActive {
		for i := range c.Templates {
			c.Templates[i].Active = false
		}
	} else {
		t.Active = wasActive
	}
	t.ID = id // Preserve ID
	c.Templates[idx] = t
	return c.Save()
}

// RemoveTemplate removes a template by ID.
func (c *Config) RemoveTemplate(id string) error {
	idx := slices.IndexFunc(c.Templates, func(x types.InstructionTemplate) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("template not found: %s", id)
	}

	wasActive := c.Templates[idx].Active
	c.Templates = slices.Delete(c.Templates, idx, idx+1)
	if wasActive && len(c.Templates) > 0 {
		c.Templates[0].Active = true
	}
	return c.Save()
}

// SetTemplateActive activates the template with the given ID.
func (c *Config) SetTemplateActive(id string) error {
	found := false
	for i := range c.Templates {
		if c.Templates[i].ID == id {
			c.Templates[i].Active = true
			found = true
		} else {
			c.Templates[i].Active = false
		}
	}
	if !found {
		return fmt.Errorf("template not found: %s", id)
	}
	return c.Save()
}

// ExportTemplates serializes all templates for sharing.
func (c *Config) ExportTemplates() ([]byte, error) {
	data, err := json.MarshalIndent(c.Templates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal templates: %w", err)
	}
	return data, nil
}

// ImportTemplates merges templates from an exported payload. Imported
// entries get fresh IDs and never steal the active flag; a name collision
// gets a numeric suffix instead of overwriting.
func (c *Config) ImportTemplates(data []byte) (int, error) {
	var incoming []types.InstructionTemplate
	if err := json.Unmarshal(data, &incoming); err != nil {
		return 0, fmt.Errorf("unmarshal templates: %w", err)
	}

	added := 0
	for _, t := range incoming {
		if err := validateTemplate(t); err != nil {
			continue
		}
		t.ID = uuid.New().String()
		t.Active = false
		t.Name = c.dedupeName(t.Name)
		c.Templates = append(c.Templates, t)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, c.Save()
}

func (c *Config) dedupeName(name string) string {
	if c.templateByName(name) == nil {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if c.templateByName(candidate) == nil {
			return candidate
		}
	}
}

func (c *Config) templateByName(name string) *types.InstructionTemplate {
	for i := range c.Templates {
		if c.Templates[i].Name == name {
			return &c.Templates[i]
		}
	}
	return nil
}

func validateTemplate(t types.InstructionTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name required")
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("template text required")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Retrieval Associations & Web Search
// ─────────────────────────────────────────────────────────────────────────────

// GetAssociations returns the configured retrieval associations.
func (c *Config) GetAssociations() []types.RetrievalAssociation {
	return c.Associations
}

// AddAssociation links a vector store.
func (c *Config) AddAssociation(a types.RetrievalAssociation) error {
	if a.VectorStoreID == "" {
		return fmt.Errorf("vector store id required")
	}
	if slices.ContainsFunc(c.Associations, func(x types.RetrievalAssociation) bool {
		return x.VectorStoreID == a.VectorStoreID
	}) {
		return fmt.Errorf("vector store already associated: %s", a.VectorStoreID)
	}
	c.Associations = append(c.Associations, a)
	return c.Save()
}

// RemoveAssociation unlinks a vector store.
func (c *Config) RemoveAssociation(vectorStoreID string) error {
	idx := slices.IndexFunc(c.Associations, func(x types.RetrievalAssociation) bool {
		return x.VectorStoreID == vectorStoreID
	})
	if idx == -1 {
		return fmt.Errorf("association not found: %s", vectorStoreID)
	}
	c.Associations = slices.Delete(c.Associations, idx, idx+1)
	return c.Save()
}

// SetWebSearch updates the web search configuration.
func (c *Config) SetWebSearch(ws types.WebSearchConfig) error {
	c.WebSearch = ws
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// Toggles
// ─────────────────────────────────────────────────────────────────────────────

// SetShortcutsEnabled toggles the copy/send shortcuts.
func (c *Config) SetShortcutsEnabled(enabled bool) error {
	c.ShortcutsEnabled = enabled
	return c.Save()
}

// SetAutoPaste toggles automatic pasting after injection.
func (c *Config) SetAutoPaste(enabled bool) error {
	c.AutoPaste = enabled
	return c.Save()
}

// SetCopySendMode selects immediate or manual processing of captures.
func (c *Config) SetCopySendMode(mode string) error {
	if mode != CopySendImmediate && mode != CopySendManual {
		return fmt.Errorf("unknown copy-send mode: %s", mode)
	}
	c.CopySendMode = mode
	return c.Save()
}
