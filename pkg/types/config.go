// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "manuscript-engine/0.1 (you@example.com)").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ReferenceConfig holds settings for the reference-source stage.
type ReferenceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the maximum number of search results (default 30).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"gte=0,lte=200"`

	// Concurrency bounds in-flight fetches (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" validate:"gte=0,lte=32"`

	// Email is sent to NCBI and OpenAlex for polite-pool identification.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email" validate:"omitempty,email"`

	// NCBIAPIKey raises the PubMed rate limit when set.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`

	// EnableOpenAlex adds OpenAlex as a secondary source.
	EnableOpenAlex bool `json:"enable_openalex" yaml:"enable_openalex" mapstructure:"enable_openalex"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

// GenerationConfig holds settings for the generation orchestrator.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// CallTimeout bounds a single generation call (default 3m).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`

	// BackoffBase is the first retry delay; each retry doubles it (default 2s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// MaxTokens caps the generated text per call (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
}

// QAConfig tunes the QA validator.
type QAConfig struct {
	// ExemptNumbers are numeric tokens treated as generic statistical
	// conventions and never reported as unverified figures.
	ExemptNumbers []string `json:"exempt_numbers" yaml:"exempt_numbers" mapstructure:"exempt_numbers"`

	// ClaimSections are scanned for literature claims lacking a citation.
	ClaimSections []SectionKind `json:"claim_sections" yaml:"claim_sections" mapstructure:"claim_sections"`
}

// SimilarityConfig tunes the duplication checker. Thresholds are Jaccard
// scores in [0, 1]; a pair at or above its axis threshold is reported.
type SimilarityConfig struct {
	ShingleSize        int     `json:"shingle_size" yaml:"shingle_size" mapstructure:"shingle_size" validate:"gte=1"`
	PlanThreshold      float64 `json:"plan_threshold" yaml:"plan_threshold" mapstructure:"plan_threshold" validate:"gte=0,lte=1"`
	GuidelineThreshold float64 `json:"guideline_threshold" yaml:"guideline_threshold" mapstructure:"guideline_threshold" validate:"gte=0,lte=1"`
	SectionThreshold   float64 `json:"section_threshold" yaml:"section_threshold" mapstructure:"section_threshold" validate:"gte=0,lte=1"`

	// Samples is the number of overlapping shingles quoted per match.
	Samples int `json:"samples" yaml:"samples" mapstructure:"samples" validate:"gte=0"`
}

// EngineConfig groups all stage configurations.
type EngineConfig struct {
	Workspace  string           `json:"workspace" yaml:"workspace" mapstructure:"workspace"`
	References ReferenceConfig  `json:"references" yaml:"references" mapstructure:"references"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	QA         QAConfig         `json:"qa" yaml:"qa" mapstructure:"qa"`
	Similarity SimilarityConfig `json:"similarity" yaml:"similarity" mapstructure:"similarity"`
}

// DefaultQAConfig returns the QA defaults: common significance thresholds
// and the 95 of "95% CI" are exempt; Introduction and Discussion are
// scanned for uncited claims.
func DefaultQAConfig() QAConfig {
	return QAConfig{
		ExemptNumbers: []string{"0.05", "0.01", "0.001", "95"},
		ClaimSections: []SectionKind{SectionIntroduction, SectionDiscussion},
	}
}

// DefaultSimilarityConfig returns 5-token shingles with the heuristic
// thresholds used for protocol and guideline overlap.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		ShingleSize:        5,
		PlanThreshold:      0.12,
		GuidelineThreshold: 0.12,
		SectionThreshold:   0.20,
		Samples:            3,
	}
}

// DefaultGenerationConfig returns the orchestrator defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		AIConfig: AIConfig{
			Model:      "claude-sonnet-4-5-20250929",
			MaxRetries: 3,
		},
		CallTimeout: 3 * time.Minute,
		BackoffBase: 2 * time.Second,
		MaxTokens:   4096,
	}
}

// DefaultReferenceConfig returns the reference-source defaults.
func DefaultReferenceConfig() ReferenceConfig {
	return ReferenceConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   45 * time.Second,
			UserAgent: "manuscript-engine/0.1",
		},
		MaxResults:  30,
		Concurrency: 4,
	}
}

// DefaultEngineConfig returns every stage's defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workspace:  ".",
		References: DefaultReferenceConfig(),
		Generation: DefaultGenerationConfig(),
		QA:         DefaultQAConfig(),
		Similarity: DefaultSimilarityConfig(),
	}
}
