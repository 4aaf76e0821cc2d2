package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that call remote APIs.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout. The per-call screening timeout in
	// OrchestratorConfig is normally tighter.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "screening-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// BackendKind identifies the wire protocol of an inference backend.
type BackendKind string

const (
	BackendAnthropic BackendKind = "anthropic"
	BackendOpenAI    BackendKind = "openai"
)

// BackendConfig describes one configured inference backend.
type BackendConfig struct {
	// ID is the model id used in weights, calibrators and audit entries.
	// Defaults to Model when empty.
	ID string `json:"id" yaml:"id" mapstructure:"id"`

	// Kind selects the wire protocol: anthropic or openai (also used for
	// OpenAI-compatible servers such as vLLM and Ollama).
	Kind BackendKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Model is the provider model name (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Version is recorded in the audit trail. Defaults to Model.
	Version string `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKeySecret names the file under .secrets/ holding the API key.
	APIKeySecret string `json:"api_key_secret,omitempty" yaml:"api_key_secret,omitempty" mapstructure:"api_key_secret"`

	// MaxTokens bounds the completion length (default 1024).
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`

	// MaxRetries is the number of 429 retries before surfacing failure (default 5).
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" mapstructure:"max_retries"`
}

// OrchestratorConfig holds Layer 1 settings.
type OrchestratorConfig struct {
	// Seed is sent with every backend call of a run.
	Seed int64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// CallTimeout bounds a single backend call (default 60s).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`

	// MaxInFlight caps concurrent backend calls across all records (default 8).
	MaxInFlight int `json:"max_in_flight" yaml:"max_in_flight" mapstructure:"max_in_flight"`

	// CacheBytes sizes the response cache. Zero disables caching.
	CacheBytes int64 `json:"cache_bytes" yaml:"cache_bytes" mapstructure:"cache_bytes"`
}

// ArtifactConfig points at the persisted fitted artifacts. Empty paths mean
// defaults: identity calibrators, equal weights, default thresholds.
type ArtifactConfig struct {
	ThresholdsPath  string `json:"thresholds_path" yaml:"thresholds_path" mapstructure:"thresholds_path"`
	WeightsPath     string `json:"weights_path" yaml:"weights_path" mapstructure:"weights_path"`
	CalibratorsPath string `json:"calibrators_path" yaml:"calibrators_path" mapstructure:"calibrators_path"`
}

// RulesConfig selects and tunes the rule set.
type RulesConfig struct {
	// Enabled lists rule names in evaluation order. Empty means the default set.
	Enabled []string `json:"enabled,omitempty" yaml:"enabled,omitempty" mapstructure:"enabled"`

	// DefaultLanguages is the language allow-list used when criteria carry none.
	DefaultLanguages []string `json:"default_languages,omitempty" yaml:"default_languages,omitempty" mapstructure:"default_languages"`
}

// StoreConfig holds settings for the audit ledger.
type StoreConfig struct {
	// Dir is the directory containing screening.db and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// OptimizerConfig holds settings for the offline fitting commands.
type OptimizerConfig struct {
	// MinSensitivity is the recall floor for threshold search (default 0.95).
	MinSensitivity float64 `json:"min_sensitivity" yaml:"min_sensitivity" mapstructure:"min_sensitivity"`

	// GridStep is the threshold grid resolution (default 0.05).
	GridStep float64 `json:"grid_step" yaml:"grid_step" mapstructure:"grid_step"`

	// WeightFloor is the minimum weight any model may receive (default 0.01).
	WeightFloor float64 `json:"weight_floor" yaml:"weight_floor" mapstructure:"weight_floor"`

	// Calibrator selects "platt" or "isotonic" (default platt).
	Calibrator string `json:"calibrator" yaml:"calibrator" mapstructure:"calibrator"`
}

// PipelineConfig groups all configuration for a screening deployment.
type PipelineConfig struct {
	HTTP         HTTPConfig         `json:"http" yaml:"http" mapstructure:"http"`
	Backends     []BackendConfig    `json:"backends" yaml:"backends" mapstructure:"backends"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator" mapstructure:"orchestrator"`
	Artifacts    ArtifactConfig     `json:"artifacts" yaml:"artifacts" mapstructure:"artifacts"`
	Rules        RulesConfig        `json:"rules" yaml:"rules" mapstructure:"rules"`
	Store        StoreConfig        `json:"store" yaml:"store" mapstructure:"store"`
	Optimizer    OptimizerConfig    `json:"optimizer" yaml:"optimizer" mapstructure:"optimizer"`
	Workers      int                `json:"workers" yaml:"workers" mapstructure:"workers"`
}
