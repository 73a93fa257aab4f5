package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Attention is the pipeline policy: which events escalate, where
// notifications go, and how the classification backend is constrained.
// Loaded once at startup, reloaded only on explicit operator action; the
// pipeline itself never writes it.
type Attention struct {
	// Thresholds maps a source name to its urgency cutoff. Events scoring
	// at or above the cutoff escalate.
	Thresholds map[string]float64 `json:"thresholds"`
	// DefaultThreshold applies to sources with no Thresholds entry.
	DefaultThreshold float64 `json:"default_threshold"`
	// ChannelPreferences maps a source name to its ordered notification
	// channels, used when no planner overrides them.
	ChannelPreferences map[string][]string `json:"channel_preferences"`
	Guardrails         Guardrails          `json:"guardrails"`
	// DispatchTargets holds per-channel delivery settings keyed by channel
	// name (e.g. the slack channel id and mention behaviour).
	DispatchTargets map[string]DispatchTarget `json:"dispatch_targets"`
}

// Guardrails constrain the classification backend call. The API key itself
// is operator config; only its requiredness is policy.
type Guardrails struct {
	Provider        string   `json:"provider"` // "openai", "ollama" or "anthropic"
	Model           string   `json:"model"`
	BaseURL         string   `json:"base_url,omitempty"`
	RequireAPIKey   bool     `json:"require_api_key"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	AllowedTools    []string `json:"allowed_tools,omitempty"`
	PolicyRef       string   `json:"policy_ref,omitempty"`
	InjectHeaders   bool     `json:"inject_headers"`
}

// DispatchTarget is a named delivery destination for a transport.
type DispatchTarget struct {
	Transport string `json:"transport"`
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts,omitempty"`
	Mention   string `json:"mention,omitempty"`
}

// DefaultAttention returns the built-in policy used when no document exists
// or the existing one cannot be read.
func DefaultAttention() *Attention {
	return &Attention{
		Thresholds:       map[string]float64{},
		DefaultThreshold: 7,
		ChannelPreferences: map[string][]string{
			"digest": {"slack"},
		},
		Guardrails: Guardrails{
			Provider:        "openai",
			Model:           "o4-mini",
			RequireAPIKey:   true,
			MaxOutputTokens: 1024,
		},
		DispatchTargets: map[string]DispatchTarget{
			"slack": {Transport: "slack"},
		},
	}
}

// Store owns the attention policy document. Reads are frequent (one snapshot
// per pipeline run); writes are rare and operator-triggered, so a RWMutex
// around the current snapshot is all the coordination needed.
type Store struct {
	path string

	mu      sync.RWMutex
	current *Attention
}

// NewStore creates a store for the document at path. Call Load or
// EnsureDefaults before Current.
func NewStore(path string) *Store {
	return &Store{path: path, current: DefaultAttention()}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active policy snapshot. Callers must treat it as
// immutable for the duration of a pipeline run.
func (s *Store) Current() *Attention {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// EnsureDefaults writes the built-in defaults to disk when no document
// exists yet. An existing document is left untouched, so the call is
// idempotent.
func (s *Store) EnsureDefaults() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking attention config: %w", err)
	}
	return s.Save(DefaultAttention())
}

// Load reads the document from disk. A missing, malformed, or schema-invalid
// document is not fatal: the store logs a warning and falls back to the
// built-in defaults.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("attention_config_unreadable_using_defaults")
		}
		s.swap(DefaultAttention())
		return nil
	}

	cfg, err := ParseAttention(data)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("attention_config_invalid_using_defaults")
		s.swap(DefaultAttention())
		return nil
	}

	s.swap(cfg)
	return nil
}

// ParseAttention validates and decodes a policy document. Sections the
// document omits are filled from the defaults, but omission is decided by
// key presence, not zero values: an explicit "default_threshold": 0
// (escalate everything unfiltered) or "require_api_key": false survives
// the merge.
func ParseAttention(data []byte) (*Attention, error) {
	if err := validateAttentionDocument(data); err != nil {
		return nil, err
	}

	var cfg Attention
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding attention config: %w", err)
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return nil, fmt.Errorf("decoding attention config: %w", err)
	}

	def := DefaultAttention()
	if _, ok := present["default_threshold"]; !ok {
		cfg.DefaultThreshold = def.DefaultThreshold
	}
	if raw, ok := present["guardrails"]; !ok {
		cfg.Guardrails = def.Guardrails
	} else {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err == nil {
			if _, ok := fields["require_api_key"]; !ok {
				cfg.Guardrails.RequireAPIKey = def.Guardrails.RequireAPIKey
			}
		}
	}

	normalize(&cfg)
	return &cfg, nil
}

// Reload re-reads the document. Same fallback semantics as Load.
func (s *Store) Reload() error {
	return s.Load()
}

// Save persists cfg as the new policy and makes it the current snapshot.
// The document is schema-validated before it is written, so a bad policy is
// rejected instead of persisted. The write is atomic (temp file then rename)
// so a concurrent reader never observes a partially-written document.
func (s *Store) Save(cfg *Attention) error {
	normalize(cfg)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling attention config: %w", err)
	}
	if err := validateAttentionDocument(data); err != nil {
		return fmt.Errorf("rejecting attention config: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing attention config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing attention config: %w", err)
	}

	s.swap(cfg)
	return nil
}

func (s *Store) swap(cfg *Attention) {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
}

// normalize fills structural gaps a caller-built policy may carry (nil maps,
// empty provider/model) so the rest of the pipeline never has to nil-check.
// Valid zero values (threshold 0, require_api_key false) are left alone;
// absence-vs-zero for those is resolved in ParseAttention, where the raw
// document is still available.
func normalize(cfg *Attention) {
	def := DefaultAttention()
	if cfg.Thresholds == nil {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.ChannelPreferences == nil {
		cfg.ChannelPreferences = def.ChannelPreferences
	}
	if cfg.DispatchTargets == nil {
		cfg.DispatchTargets = def.DispatchTargets
	}
	if cfg.Guardrails.Provider == "" {
		cfg.Guardrails.Provider = def.Guardrails.Provider
	}
	if cfg.Guardrails.Model == "" {
		cfg.Guardrails.Model = def.Guardrails.Model
	}
	if cfg.Guardrails.MaxOutputTokens == 0 {
		cfg.Guardrails.MaxOutputTokens = def.Guardrails.MaxOutputTokens
	}
}
