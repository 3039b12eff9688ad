package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

func testDefaults() map[string]string {
	return map[string]string{
		driven.PromptBoundarySystem: "boundary default",
		driven.PromptBlockSystem:    "block default",
		driven.PromptOpinionSystem:  "opinion default",
	}
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("", nil)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mentions", "prompts"), store.Dir())
}

func TestPromptStore_Load_SeedsDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir, testDefaults())
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptBoundarySystem)

	require.NoError(t, err)
	assert.Equal(t, "boundary default", prompt)
	for _, f := range []string{"boundary_system.txt", "block_system.txt", "opinion_system.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected %s", f)
	}
}

func TestPromptStore_Load_PrefersFileContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "opinion_system.txt"), []byte("  custom opinion prompt\n\n"), 0o600))
	store, err := NewPromptStore(dir, testDefaults())
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptOpinionSystem)

	require.NoError(t, err)
	assert.Equal(t, "custom opinion prompt", prompt, "whitespace is trimmed")

	data, err := os.ReadFile(filepath.Join(dir, "opinion_system.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom opinion prompt", "existing files are not overwritten")
}

func TestPromptStore_Load_EmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "block_system.txt"), []byte("   "), 0o600))
	store, err := NewPromptStore(dir, testDefaults())
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptBlockSystem)

	require.NoError(t, err)
	assert.Equal(t, "block default", prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir(), testDefaults())
	require.NoError(t, err)

	_, err = store.Load("nonexistent")

	assert.Error(t, err)
}

func TestPromptStore_Load_InitFailureUsesDefaults(t *testing.T) {
	store, err := NewPromptStore("/dev/null/prompts", testDefaults())
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptBoundarySystem)
	require.NoError(t, err)
	assert.Equal(t, "boundary default", prompt)

	_, err = store.Load("nonexistent")
	assert.Error(t, err)
}

func TestPromptStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir, testDefaults())
	require.NoError(t, err)

	_, err = store.Load(driven.PromptBoundarySystem)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boundary_system.txt"), []byte("edited"), 0o600))

	cached, err := store.Load(driven.PromptBoundarySystem)
	require.NoError(t, err)
	assert.Equal(t, "boundary default", cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptBoundarySystem)
	require.NoError(t, err)
	assert.Equal(t, "edited", fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir(), testDefaults())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 10; i++ {
		for _, name := range []string{driven.PromptBoundarySystem, driven.PromptBlockSystem, driven.PromptOpinionSystem} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if _, err := store.Load(name); err != nil {
					errs <- err
				}
			}(name)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent load: %v", err)
	}
}
