package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// ModelStrength selects between the standard and the strong classification
// model at a call site.
type ModelStrength string

// Available model strengths.
const (
	StrengthStandard ModelStrength = "standard"
	StrengthStrong   ModelStrength = "strong"
)

// LLMSettings holds classification engine configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is used for boundary and opinion classification.
	Model string

	// StrongModel is used for block segmentation. Falls back to Model.
	StrongModel string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ModelFor returns the model name for the given strength.
func (l LLMSettings) ModelFor(strength ModelStrength) string {
	if strength == StrengthStrong && l.StrongModel != "" {
		return l.StrongModel
	}
	return l.Model
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// NERProvider selects the person-mention detector.
type NERProvider string

// Available person-mention detectors.
const (
	// NERProviderHeuristic detects capitalised name-like tokens locally.
	NERProviderHeuristic NERProvider = "heuristic"

	// NERProviderHTTP calls an external person-NER service.
	NERProviderHTTP NERProvider = "http"
)

// IsValid returns true if the provider is recognised.
func (p NERProvider) IsValid() bool {
	return p == NERProviderHeuristic || p == NERProviderHTTP
}

// NERSettings holds person-mention detector configuration.
type NERSettings struct {
	Provider  NERProvider
	BaseURL   string
	BatchSize int
}

// PipelineSettings holds segmentation and filtering parameters.
type PipelineSettings struct {
	// WindowChars caps the formatted prompt lines per boundary window.
	WindowChars int

	// MinWindowUtterances is the smallest boundary window, even past WindowChars.
	MinWindowUtterances int

	// QAConfidenceFloor is the confidence under which an uncued qa segment
	// is downgraded to narrative.
	QAConfidenceFloor float64

	// BlockWindowChars caps the characters per block segmentation call.
	BlockWindowChars int

	// MaxTextLength truncates block text before opinion classification.
	MaxTextLength int

	// BatchSize is the number of blocks per mention/opinion batch.
	BatchSize int

	// Concurrency bounds the number of in-flight opinion batches.
	Concurrency int

	// RequestsPerSecond throttles classification calls.
	RequestsPerSecond float64

	// MaxAttempts is the retry ceiling for a single capability call.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the exponential backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter is the fractional randomisation applied to each delay.
	Jitter float64

	// CallTimeout bounds every individual capability call.
	CallTimeout time.Duration

	// VocabularyFile optionally overrides the built-in cue vocabulary.
	VocabularyFile string
}

// StorageBackend selects where opinion records live.
type StorageBackend string

// Available opinion ledger backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageSQLite || b == StorageRedis
}

// StorageSettings holds ledger and export locations.
type StorageSettings struct {
	// Backend is the opinion ledger backend. Segments always live in SQLite.
	Backend StorageBackend

	// RedisAddr is used by the redis backend and the job queue.
	RedisAddr string

	// ExportDir receives the JSON export files.
	ExportDir string
}

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	// Mode is the search retrieval mode.
	Mode SearchMode

	// Limit is the default number of results.
	Limit int
}

// AppSettings holds all application settings.
type AppSettings struct {
	LLM       LLMSettings
	Embedding EmbeddingSettings
	NER       NERSettings
	Pipeline  PipelineSettings
	Storage   StorageSettings
	Search    SearchSettings
}

// DefaultPipelineSettings returns the tuned defaults for Russian
// commentary streams.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		WindowChars:         4000,
		MinWindowUtterances: 8,
		QAConfidenceFloor:   0.5,
		BlockWindowChars:    24000,
		MaxTextLength:       4000,
		BatchSize:           8,
		Concurrency:         4,
		RequestsPerSecond:   2,
		MaxAttempts:         3,
		BaseDelay:           time.Second,
		MaxDelay:            10 * time.Second,
		Jitter:              0.2,
		CallTimeout:         60 * time.Second,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// Embeddings are left unconfigured until the user opts into search.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       "gpt-4o-mini",
			StrongModel: "gpt-4o",
		},
		Embedding: EmbeddingSettings{},
		NER: NERSettings{
			Provider:  NERProviderHeuristic,
			BatchSize: 32,
		},
		Pipeline: DefaultPipelineSettings(),
		Storage: StorageSettings{
			Backend:   StorageSQLite,
			RedisAddr: "localhost:6379",
		},
		Search: SearchSettings{
			Mode:  SearchModeText,
			Limit: 10,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default standard models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// DefaultStrongModels returns default strong models for each LLM provider.
func DefaultStrongModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.1:70b",
		AIProviderOpenAI:    "gpt-4o",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
