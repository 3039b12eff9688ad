package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/adapters/driven/config/env"
	"github.com/custodia-labs/mentions/internal/adapters/driving/cli"
	"github.com/custodia-labs/mentions/internal/core/domain"
)

func TestBootstrap_WithoutLLM(t *testing.T) {
	t.Setenv("MENTIONS_LLM_API_KEY", "")
	t.Setenv("MENTIONS_STORAGE_BACKEND", "")
	dir := t.TempDir()

	svc, cleanup, err := bootstrap(context.Background(), cli.Options{ConfigDir: dir, Viper: env.NewViper()})
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, svc.Processor)
	assert.ErrorIs(t, svc.PipelineErr, domain.ErrLLMUnavailable)
	require.NotNil(t, svc.Results)
	require.NotNil(t, svc.Search)
	require.NotNil(t, svc.Settings)
	assert.NotNil(t, svc.Export)
	assert.NotNil(t, svc.Loader)
	assert.NotNil(t, svc.Queue)

	videos, err := svc.Results.Videos(context.Background())
	require.NoError(t, err)
	assert.Empty(t, videos)

	results, err := svc.Search.Search(context.Background(), "петров", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = os.Stat(filepath.Join(dir, "data", "ledger.db"))
	assert.NoError(t, err)
}

func TestBootstrap_EnvOverridesConfig(t *testing.T) {
	t.Setenv("MENTIONS_LLM_API_KEY", "")
	t.Setenv("MENTIONS_SEARCH_LIMIT", "25")
	dir := t.TempDir()

	svc, cleanup, err := bootstrap(context.Background(), cli.Options{ConfigDir: dir, Viper: env.NewViper()})
	require.NoError(t, err)
	defer cleanup()

	settings, err := svc.Settings.Get()
	require.NoError(t, err)
	assert.Equal(t, 25, settings.Search.Limit)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	assert.True(t, os.IsNotExist(err), "env values are not written back")
}

func TestResolveConfigDir(t *testing.T) {
	dir, err := resolveConfigDir("/srv/mentions")
	require.NoError(t, err)
	assert.Equal(t, "/srv/mentions", dir)

	t.Setenv("HOME", "/home/tester")
	dir, err = resolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".mentions"), dir)
}
