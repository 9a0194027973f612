// Package config holds the engine configuration. Retrieval weights, step
// toggles, validation limits and timeouts are all configuration rather than
// constants: source deployments disagree on the defaults, so nothing here is
// hard-coded beyond a fallback.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the turn-processing engine.
type Config struct {
	Validation Validation `yaml:"validation"`
	Retrieval  Retrieval  `yaml:"retrieval"`
	Session    Session    `yaml:"session"`
	LLM        LLM        `yaml:"llm"`
	Steps      Steps      `yaml:"steps"`
}

// Validation configures the input gate.
type Validation struct {
	// MaxLength is the maximum accepted message length in runes.
	MaxLength int `yaml:"max_length"`
	// Denylist holds regular expressions; a match rejects the message.
	Denylist []string `yaml:"denylist"`
}

// Collection configures one retrieval collection.
type Collection struct {
	Name string `yaml:"name"`
	// LexicalWeight and SemanticWeight control the hybrid merge. They do
	// not need to sum to one; the merge normalizes scores per strategy
	// before weighting.
	LexicalWeight  float64 `yaml:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
}

// Retrieval configures the hybrid retriever.
type Retrieval struct {
	// TopK is the number of candidates returned per retrieval.
	TopK int `yaml:"top_k"`
	// PerCollectionTopK applies TopK per collection instead of globally.
	PerCollectionTopK bool `yaml:"per_collection_top_k"`
	// CallTimeout bounds each lexical or vector call independently.
	CallTimeout time.Duration `yaml:"call_timeout"`
	Collections []Collection  `yaml:"collections"`
}

// Weights returns the merge weights for a collection, falling back to the
// 0.5/0.5 default for unknown collections.
func (r Retrieval) Weights(collection string) (lexical, semantic float64) {
	for _, c := range r.Collections {
		if c.Name == collection {
			return c.LexicalWeight, c.SemanticWeight
		}
	}
	return 0.5, 0.5
}

// Session configures persistence behavior.
type Session struct {
	// AppendRetries is the number of additional attempts after a failed
	// history append before the turn is flagged as persistence-degraded.
	AppendRetries int `yaml:"append_retries"`
	// RetryBackoff is the fixed delay between append attempts.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// MaxTurns caps retained history per session; zero keeps everything.
	// Trimming drops the oldest turns and never reorders the remainder.
	MaxTurns int `yaml:"max_turns"`
}

// LLM configures the synthesis collaborator.
type LLM struct {
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// Steps toggles the optional synthesis steps. The mainline steps cannot be
// disabled.
type Steps struct {
	Diagram bool `yaml:"diagram"`
	Report  bool `yaml:"report"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Validation: Validation{
			MaxLength: 1000,
		},
		Retrieval: Retrieval{
			TopK:        5,
			CallTimeout: 3 * time.Second,
			Collections: []Collection{
				{Name: "career_cases", LexicalWeight: 0.7, SemanticWeight: 0.3},
				{Name: "education_courses", LexicalWeight: 0.5, SemanticWeight: 0.5},
			},
		},
		Session: Session{
			AppendRetries: 2,
			RetryBackoff:  100 * time.Millisecond,
		},
		LLM: LLM{
			Model:       "gpt-4o-mini",
			Timeout:     30 * time.Second,
			Temperature: 0.7,
		},
		Steps: Steps{
			Diagram: true,
			Report:  true,
		},
	}
}

// Load reads a YAML configuration file, layering it over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.Validation.MaxLength <= 0 {
		return fmt.Errorf("validation.max_length must be positive, got %d", c.Validation.MaxLength)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.CallTimeout <= 0 {
		return fmt.Errorf("retrieval.call_timeout must be positive, got %s", c.Retrieval.CallTimeout)
	}
	for _, col := range c.Retrieval.Collections {
		if col.Name == "" {
			return fmt.Errorf("retrieval collection without a name")
		}
		if col.LexicalWeight < 0 || col.SemanticWeight < 0 {
			return fmt.Errorf("collection %s has negative weight", col.Name)
		}
		if col.LexicalWeight == 0 && col.SemanticWeight == 0 {
			return fmt.Errorf("collection %s has all-zero weights", col.Name)
		}
	}
	if c.Session.AppendRetries < 0 {
		return fmt.Errorf("session.append_retries must not be negative, got %d", c.Session.AppendRetries)
	}
	return nil
}
