package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	_, ok := store.Get("llm.provider")
	assert.False(t, ok)
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mentions", "config.toml"), store.Path())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))
	require.NoError(t, store.Set("pipeline.batch_size", 20))
	require.NoError(t, store.Set("pipeline.requests_per_second", 2.5))
	require.NoError(t, store.Set("pipeline.debug", true))
	require.NoError(t, store.Set("vocabulary.transitions", []string{"ваши вопросы"}))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("llm.model"), "gpt-4o-mini"},
		{"int", store.GetInt("pipeline.batch_size"), 20},
		{"float", store.GetFloat("pipeline.requests_per_second"), 2.5},
		{"int widens to float", store.GetFloat("pipeline.batch_size"), 20.0},
		{"bool", store.GetBool("pipeline.debug"), true},
		{"slice", store.GetStringSlice("vocabulary.transitions"), []string{"ваши вопросы"}},
		{"wrong type string", store.GetString("pipeline.batch_size"), ""},
		{"wrong type int", store.GetInt("llm.model"), 0},
		{"wrong type float", store.GetFloat("llm.model"), 0.0},
		{"missing bool", store.GetBool("nope"), false},
		{"missing slice", store.GetStringSlice("nope"), []string(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.provider", "ollama"))
	require.NoError(t, store.Set("pipeline.max_attempts", 5))
	require.NoError(t, store.Set("pipeline.qa_confidence_floor", 0.35))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[llm]")
	assert.Contains(t, string(data), "[pipeline]")

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "ollama", reopened.GetString("llm.provider"))
	assert.Equal(t, 5, reopened.GetInt("pipeline.max_attempts"))
	assert.InDelta(t, 0.35, reopened.GetFloat("pipeline.qa_confidence_floor"), 1e-9)
}

func TestConfigStore_LoadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[storage]
backend = "redis"
redis_addr = "cache:6379"

[search]
limit = 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, "redis", store.GetString("storage.backend"))
	assert.Equal(t, "cache:6379", store.GetString("storage.redis_addr"))
	assert.Equal(t, 25, store.GetInt("search.limit"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.api_key", "sk-test"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0o600))

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	_, ok := store.Get("llm.provider")
	assert.False(t, ok)
}

func TestConfigStore_Errors(t *testing.T) {
	t.Run("corrupted file on open", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not toml {{[["), 0o600))

		store, err := NewConfigStore(dir)

		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("uncreatable directory", func(t *testing.T) {
		store, err := NewConfigStore("/dev/null/cannot/create")

		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("write fails", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, os.Mkdir(store.Path(), 0o700))

		assert.Error(t, store.Set("llm.model", "x"))
	})
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "pipeline.k" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetFloat(key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		assert.Equal(t, i, store.GetInt("pipeline.k"+string(rune('0'+i))))
	}
}
