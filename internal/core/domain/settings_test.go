package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider   AIProvider
		valid      bool
		needsKey   bool
		local      bool
		descriptor string
	}{
		{AIProviderOllama, true, false, true, "Ollama (local)"},
		{AIProviderOpenAI, true, true, false, "OpenAI (cloud)"},
		{AIProviderAnthropic, true, true, false, "Anthropic (cloud)"},
		{AIProvider("gemini"), false, false, false, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.needsKey, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.local, tt.provider.IsLocal())
			assert.Equal(t, tt.descriptor, tt.provider.Description())
		})
	}
}

func TestLLMSettings(t *testing.T) {
	l := LLMSettings{Provider: AIProviderOpenAI, Model: "gpt-4o-mini", StrongModel: "gpt-4o"}
	assert.False(t, l.IsConfigured())

	l.APIKey = "sk-test"
	assert.True(t, l.IsConfigured())
	assert.Equal(t, "gpt-4o", l.ModelFor(StrengthStrong))
	assert.Equal(t, "gpt-4o-mini", l.ModelFor(StrengthStandard))

	l.StrongModel = ""
	assert.Equal(t, "gpt-4o-mini", l.ModelFor(StrengthStrong))

	local := LLMSettings{Provider: AIProviderOllama}
	assert.True(t, local.IsConfigured())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.False(t, EmbeddingSettings{}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
	assert.Equal(t, "gpt-4o", s.LLM.StrongModel)
	assert.Equal(t, NERProviderHeuristic, s.NER.Provider)
	assert.Equal(t, StorageSQLite, s.Storage.Backend)
	assert.Equal(t, SearchModeText, s.Search.Mode)
	assert.False(t, s.Embedding.IsConfigured())

	p := s.Pipeline
	assert.Equal(t, 4000, p.WindowChars)
	assert.Equal(t, 8, p.MinWindowUtterances)
	assert.Equal(t, 0.5, p.QAConfidenceFloor)
	assert.Equal(t, 4000, p.MaxTextLength)
	assert.Equal(t, 4, p.Concurrency)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 10*time.Second, p.MaxDelay)
	assert.Equal(t, 60*time.Second, p.CallTimeout)
}

func TestSearchMode(t *testing.T) {
	assert.True(t, SearchModeText.IsValid())
	assert.True(t, SearchModeSemantic.IsValid())
	assert.False(t, SearchMode("hybrid").IsValid())
	assert.True(t, SearchModeSemantic.RequiresEmbedding())
	assert.False(t, SearchModeText.RequiresEmbedding())
	assert.Len(t, AllSearchModes(), 2)
	assert.Equal(t, "Unknown", SearchMode("x").Description())
}

func TestBackendsAndNER(t *testing.T) {
	assert.True(t, StorageRedis.IsValid())
	assert.False(t, StorageBackend("postgres").IsValid())
	assert.True(t, NERProviderHTTP.IsValid())
	assert.False(t, NERProvider("spacy").IsValid())
}
