// Package cli provides the mentions command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/custodia-labs/mentions/internal/adapters/driven/config/env"
	"github.com/custodia-labs/mentions/internal/adapters/driving/queue"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
	"github.com/custodia-labs/mentions/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=v1.2.3".
var version = "dev"

// Services holds everything the commands drive. Any field may be nil when
// the corresponding backend is not configured; commands report that.
type Services struct {
	Processor driving.Processor
	Export    driving.ExportService
	Results   driving.ResultsService
	Search    driving.SearchService
	Settings  driving.SettingsService
	Loader    driven.TranscriptLoader
	Queue     *queue.Queue

	// PipelineErr explains why Processor is nil.
	PipelineErr error
}

// Options are the global settings passed to the bootstrap function.
type Options struct {
	// ConfigDir holds config.toml, prompts and the ledger (default ~/.mentions).
	ConfigDir string

	// Viper carries MENTIONS_* environment variables and bound flags.
	Viper *viper.Viper
}

// BootstrapFunc builds the services. The returned cleanup is called once
// the command finishes.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	bootstrap BootstrapFunc
	cleanup   func()
	cfg       = env.NewViper()

	processor       driving.Processor
	exportService   driving.ExportService
	resultsService  driving.ResultsService
	searchService   driving.SearchService
	settingsService driving.SettingsService
	loader          driven.TranscriptLoader
	jobQueue        *queue.Queue
	pipelineErr     error
)

var rootCmd = &cobra.Command{
	Use:   "mentions",
	Short: "Find opinions about people in stream transcripts",
	Long: `Mentions segments stream transcripts into narrative and Q&A regions,
splits the Q&A into question/answer blocks and records whether each block
expresses an opinion about the people it mentions.

Every stage is cached in a local ledger: re-running a video only pays for
the work that is missing.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "print pipeline progress")
	flags.Bool("log-json", false, "log as JSON lines")
	flags.String("config-dir", "", "configuration directory (default ~/.mentions)")
	for key, name := range map[string]string{
		"verbose":    "verbose",
		"log_json":   "log-json",
		"config_dir": "config-dir",
	} {
		_ = cfg.BindPFlag(key, flags.Lookup(name)) //nolint:errcheck // flag names are static
	}
}

// SetBootstrap registers the function that builds the services.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs services directly, bypassing bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	processor = s.Processor
	exportService = s.Export
	resultsService = s.Results
	searchService = s.Search
	settingsService = s.Settings
	loader = s.Loader
	jobQueue = s.Queue
	pipelineErr = s.PipelineErr
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// setup configures logging and builds the services on first use.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(cfg.GetBool("verbose"))
	logger.SetJSON(cfg.GetBool("log_json"))

	if cmd == versionCmd || bootstrap == nil {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, done, err := bootstrap(ctx, Options{ConfigDir: cfg.GetString("config_dir"), Viper: cfg})
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	SetServices(s)
	cleanup = done
	return nil
}

// requirePipeline returns the processor or explains why there is none.
func requirePipeline() (driving.Processor, error) {
	if processor != nil {
		return processor, nil
	}
	if pipelineErr != nil {
		return nil, fmt.Errorf("pipeline not available: %w", pipelineErr)
	}
	return nil, errors.New("pipeline not configured")
}
