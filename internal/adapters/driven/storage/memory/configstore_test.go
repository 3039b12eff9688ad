package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	store := NewConfigStore()
	require.NotNil(t, store)
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Load())
	assert.NoError(t, store.Save())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))
	require.NoError(t, store.Set("llm.model", "gpt-4o"))

	val, ok := store.Get("llm.model")
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o", val)

	_, ok = store.Get("llm.missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("pipeline.window_chars", 4000)
	_ = store.Set("pipeline.batch_size", int64(8))
	_ = store.Set("pipeline.concurrency", 4.0)
	_ = store.Set("pipeline.jitter", 0.2)
	_ = store.Set("pipeline.requests_per_second", 2)
	_ = store.Set("debug", true)
	_ = store.Set("vocab.transitions", []any{"перейдём к вопросам", 42, "вопросы"})

	assert.Equal(t, 4000, store.GetInt("pipeline.window_chars"))
	assert.Equal(t, 8, store.GetInt("pipeline.batch_size"))
	assert.Equal(t, 4, store.GetInt("pipeline.concurrency"))
	assert.InDelta(t, 0.2, store.GetFloat("pipeline.jitter"), 1e-9)
	assert.InDelta(t, 2.0, store.GetFloat("pipeline.requests_per_second"), 1e-9)
	assert.True(t, store.GetBool("debug"))
	assert.Equal(t, []string{"перейдём к вопросам", "вопросы"}, store.GetStringSlice("vocab.transitions"))
}

func TestConfigStore_WrongTypesReturnZeroValues(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("key", map[string]int{"a": 1})

	assert.Empty(t, store.GetString("key"))
	assert.Zero(t, store.GetInt("key"))
	assert.Zero(t, store.GetFloat("key"))
	assert.False(t, store.GetBool("key"))
	assert.Nil(t, store.GetStringSlice("key"))

	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetFloat("missing"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key.%d", n))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key.%d", i)))
	}
}

func TestConfigStore_InstancesAreIsolated(t *testing.T) {
	a := NewConfigStore()
	b := NewConfigStore()
	_ = a.Set("search.mode", "semantic")

	assert.Equal(t, "semantic", a.GetString("search.mode"))
	assert.Empty(t, b.GetString("search.mode"))
}
