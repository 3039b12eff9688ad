package services

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMStrongModel  = "llm.strong_model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyNERProvider     = "ner.provider"
	keyNERBaseURL      = "ner.base_url"
	keyNERBatchSize    = "ner.batch_size"
	keyWindowChars     = "pipeline.window_chars"
	keyMinWindow       = "pipeline.min_window_utterances"
	keyQAFloor         = "pipeline.qa_confidence_floor"
	keyBlockWindow     = "pipeline.block_window_chars"
	keyMaxTextLength   = "pipeline.max_text_length"
	keyBatchSize       = "pipeline.batch_size"
	keyConcurrency     = "pipeline.concurrency"
	keyRPS             = "pipeline.requests_per_second"
	keyMaxAttempts     = "pipeline.max_attempts"
	keyBaseDelay       = "pipeline.base_delay"
	keyMaxDelay        = "pipeline.max_delay"
	keyJitter          = "pipeline.jitter"
	keyCallTimeout     = "pipeline.call_timeout"
	keyVocabularyFile  = "pipeline.vocabulary_file"
	keyStorageBackend  = "storage.backend"
	keyStorageRedis    = "storage.redis_addr"
	keyStorageExports  = "storage.export_dir"
	keySearchMode      = "search.mode"
	keySearchLimit     = "search.limit"
)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindDuration
)

// settingKinds lists every key Set accepts and how its value is parsed.
var settingKinds = map[string]settingKind{
	keyLLMProvider: kindString, keyLLMModel: kindString, keyLLMStrongModel: kindString,
	keyLLMBaseURL: kindString, keyLLMAPIKey: kindString,
	keyEmbedProvider: kindString, keyEmbedModel: kindString, keyEmbedBaseURL: kindString, keyEmbedAPIKey: kindString,
	keyNERProvider: kindString, keyNERBaseURL: kindString, keyNERBatchSize: kindInt,
	keyWindowChars: kindInt, keyMinWindow: kindInt, keyQAFloor: kindFloat, keyBlockWindow: kindInt,
	keyMaxTextLength: kindInt, keyBatchSize: kindInt, keyConcurrency: kindInt, keyRPS: kindFloat,
	keyMaxAttempts: kindInt, keyBaseDelay: kindDuration, keyMaxDelay: kindDuration, keyJitter: kindFloat,
	keyCallTimeout: kindDuration, keyVocabularyFile: kindString,
	keyStorageBackend: kindString, keyStorageRedis: kindString, keyStorageExports: kindString,
	keySearchMode: kindString, keySearchLimit: kindInt,
}

// SettingKeys returns every settable key, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()
	p := d.Pipeline

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:       s.getString(keyLLMModel, d.LLM.Model),
			StrongModel: s.getString(keyLLMStrongModel, d.LLM.StrongModel),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		NER: domain.NERSettings{
			Provider:  domain.NERProvider(s.getString(keyNERProvider, string(d.NER.Provider))),
			BaseURL:   s.configStore.GetString(keyNERBaseURL),
			BatchSize: s.getInt(keyNERBatchSize, d.NER.BatchSize),
		},
		Pipeline: domain.PipelineSettings{
			WindowChars:         s.getInt(keyWindowChars, p.WindowChars),
			MinWindowUtterances: s.getInt(keyMinWindow, p.MinWindowUtterances),
			QAConfidenceFloor:   s.getFloat(keyQAFloor, p.QAConfidenceFloor),
			BlockWindowChars:    s.getInt(keyBlockWindow, p.BlockWindowChars),
			MaxTextLength:       s.getInt(keyMaxTextLength, p.MaxTextLength),
			BatchSize:           s.getInt(keyBatchSize, p.BatchSize),
			Concurrency:         s.getInt(keyConcurrency, p.Concurrency),
			RequestsPerSecond:   s.getFloat(keyRPS, p.RequestsPerSecond),
			MaxAttempts:         s.getInt(keyMaxAttempts, p.MaxAttempts),
			BaseDelay:           s.getDuration(keyBaseDelay, p.BaseDelay),
			MaxDelay:            s.getDuration(keyMaxDelay, p.MaxDelay),
			Jitter:              s.getFloat(keyJitter, p.Jitter),
			CallTimeout:         s.getDuration(keyCallTimeout, p.CallTimeout),
			VocabularyFile:      s.configStore.GetString(keyVocabularyFile),
		},
		Storage: domain.StorageSettings{
			Backend:   domain.StorageBackend(s.getString(keyStorageBackend, string(d.Storage.Backend))),
			RedisAddr: s.getString(keyStorageRedis, d.Storage.RedisAddr),
			ExportDir: s.configStore.GetString(keyStorageExports),
		},
		Search: domain.SearchSettings{
			Mode:  s.getSearchMode(d.Search.Mode),
			Limit: s.getInt(keySearchLimit, d.Search.Limit),
		},
	}
	if !settings.NER.Provider.IsValid() {
		settings.NER.Provider = d.NER.Provider
	}
	if !settings.Storage.Backend.IsValid() {
		settings.Storage.Backend = d.Storage.Backend
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMStrongModel, settings.LLM.StrongModel},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyNERProvider, string(settings.NER.Provider)},
		{keyNERBaseURL, settings.NER.BaseURL},
		{keyNERBatchSize, settings.NER.BatchSize},
		{keyWindowChars, settings.Pipeline.WindowChars},
		{keyMinWindow, settings.Pipeline.MinWindowUtterances},
		{keyQAFloor, settings.Pipeline.QAConfidenceFloor},
		{keyBlockWindow, settings.Pipeline.BlockWindowChars},
		{keyMaxTextLength, settings.Pipeline.MaxTextLength},
		{keyBatchSize, settings.Pipeline.BatchSize},
		{keyConcurrency, settings.Pipeline.Concurrency},
		{keyRPS, settings.Pipeline.RequestsPerSecond},
		{keyMaxAttempts, settings.Pipeline.MaxAttempts},
		{keyBaseDelay, settings.Pipeline.BaseDelay.String()},
		{keyMaxDelay, settings.Pipeline.MaxDelay.String()},
		{keyJitter, settings.Pipeline.Jitter},
		{keyCallTimeout, settings.Pipeline.CallTimeout.String()},
		{keyVocabularyFile, settings.Pipeline.VocabularyFile},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStorageRedis, settings.Storage.RedisAddr},
		{keyStorageExports, settings.Storage.ExportDir},
		{keySearchMode, settings.Search.Mode.String()},
		{keySearchLimit, settings.Search.Limit},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when present so they can live in the environment instead.
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	return nil
}

// Set stores a single dot-notation key after validating it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var typed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		typed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		typed = f
	case kindDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s must be a duration such as 10s", domain.ErrInvalidInput, key)
		}
		typed = value
	default:
		if err := validateEnum(key, value); err != nil {
			return err
		}
		typed = value
	}
	return s.configStore.Set(key, typed)
}

func validateEnum(key, value string) error {
	valid := true
	switch key {
	case keyLLMProvider, keyEmbedProvider:
		valid = domain.AIProvider(value).IsValid()
	case keyNERProvider:
		valid = domain.NERProvider(value).IsValid()
	case keyStorageBackend:
		valid = domain.StorageBackend(value).IsValid()
	case keySearchMode:
		valid = domain.SearchMode(value).IsValid()
	}
	if !valid {
		return fmt.Errorf("%w: %q is not a valid value for %s", domain.ErrInvalidInput, value, key)
	}
	return nil
}

// SetSearchMode updates the search mode.
func (s *SettingsService) SetSearchMode(mode domain.SearchMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("invalid search mode: %s", mode)
	}
	return s.configStore.Set(keySearchMode, mode.String())
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider. Empty models fall back to the
// provider defaults.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, strongModel, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.StrongModel = strongModel
	if strongModel == "" {
		settings.LLM.StrongModel = domain.DefaultStrongModels()[provider]
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is not configured", domain.ErrLLMUnavailable, settings.LLM.Provider)
	}
	if !settings.Search.Mode.IsValid() {
		return fmt.Errorf("invalid search mode: %s", settings.Search.Mode)
	}
	if settings.Search.Mode.RequiresEmbedding() && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("search mode %q requires embedding provider to be configured",
			settings.Search.Mode.Description())
	}
	if settings.NER.Provider == domain.NERProviderHTTP && settings.NER.BaseURL == "" {
		return fmt.Errorf("ner provider %q requires ner.base_url", settings.NER.Provider)
	}

	p := settings.Pipeline
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("pipeline.max_delay (%s) is shorter than pipeline.base_delay (%s)", p.MaxDelay, p.BaseDelay)
	}
	if p.QAConfidenceFloor > 1 {
		return fmt.Errorf("pipeline.qa_confidence_floor must be within [0,1], got %.2f", p.QAConfidenceFloor)
	}
	if p.Jitter >= 1 {
		return fmt.Errorf("pipeline.jitter must be below 1, got %.2f", p.Jitter)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getSearchMode(defaultVal domain.SearchMode) domain.SearchMode {
	mode := domain.SearchMode(s.configStore.GetString(keySearchMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
