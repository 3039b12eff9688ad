package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/mentions/internal/adapters/driven/ai"
	"github.com/custodia-labs/mentions/internal/adapters/driven/config/env"
	configfile "github.com/custodia-labs/mentions/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mentions/internal/adapters/driven/ner/heuristic"
	"github.com/custodia-labs/mentions/internal/adapters/driven/ner/remote"
	storagefile "github.com/custodia-labs/mentions/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/mentions/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/mentions/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mentions/internal/adapters/driving/cli"
	"github.com/custodia-labs/mentions/internal/adapters/driving/queue"
	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/services"
	"github.com/custodia-labs/mentions/internal/logger"
	"github.com/custodia-labs/mentions/internal/transcripts"
)

// bootstrap builds every service from the configuration directory. A
// missing or unreachable LLM only disables the pipeline; read-only commands
// keep working.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	configDir, err := resolveConfigDir(opts.ConfigDir)
	if err != nil {
		return nil, nil, err
	}
	if opts.Viper == nil {
		opts.Viper = env.NewViper()
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Cleanup: %v", err)
			}
		}
	}
	fail := func(err error) (*cli.Services, func(), error) {
		cleanup()
		return nil, nil, err
	}

	store, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return fail(fmt.Errorf("open config: %w", err))
	}
	configStore := env.NewOverlay(store, opts.Viper)
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fail(fmt.Errorf("load settings: %w", err))
	}

	ledger, err := sqlite.NewStore(filepath.Join(configDir, "data"))
	if err != nil {
		return fail(fmt.Errorf("open ledger: %w", err))
	}
	closers = append(closers, ledger.Close)

	opinions, closeOpinions, err := opinionLedger(ctx, settings.Storage, ledger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeOpinions)

	exportDir := settings.Storage.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(configDir, storagefile.DefaultDir)
	}
	sink := storagefile.NewExportSink(exportDir)
	segments := ledger.SegmentLedger()
	exporter := services.NewExportAssembler(segments, opinions, ledger.ExportStore(), sink)

	svc := &cli.Services{
		Export:   exporter,
		Results:  services.NewResultsService(segments, opinions, ledger.ExportStore(), sink, ledger.VectorIndex()),
		Settings: settingsService,
		Loader:   transcripts.NewDefaultLoader(),
	}

	var embedder driven.EmbeddingService
	engine, err := ai.Init(settings)
	if err != nil {
		logger.Debug("Pipeline disabled: %v", err)
		svc.PipelineErr = err
	} else {
		closers = append(closers, func() error { engine.Close(); return nil })
		for _, w := range engine.Warnings {
			logger.Warn("%s", w)
		}
		embedder = engine.EmbeddingService

		processor, err := buildProcessor(configDir, settings, engine.Classifier, exporter, segments, opinions)
		if err != nil {
			return fail(err)
		}
		svc.Processor = processor
	}
	svc.Search = services.NewSearchService(segments, opinions, ledger.VectorIndex(), embedder, settings.Search.Mode)

	q := queue.NewQueue(queue.Config{
		RedisAddr:   settings.Storage.RedisAddr,
		Concurrency: opts.Viper.GetInt("worker_concurrency"),
	})
	closers = append(closers, q.Close)
	svc.Queue = q

	return svc, cleanup, nil
}

// buildProcessor wires the pipeline stages around the classifier.
func buildProcessor(
	configDir string,
	settings *domain.AppSettings,
	classifier driven.Classifier,
	exporter *services.ExportAssembler,
	segments driven.SegmentLedger,
	opinions driven.OpinionLedger,
) (*services.Processor, error) {
	p := settings.Pipeline

	vocab, err := configfile.LoadVocabulary(p.VocabularyFile)
	if err != nil {
		return nil, err
	}
	prompts, err := configfile.NewPromptStore(filepath.Join(configDir, "prompts"), services.DefaultSystemPrompts())
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	detector, err := mentionDetector(settings, vocab)
	if err != nil {
		return nil, err
	}

	policy := services.RetryPolicyFromSettings(p)
	boundaries := services.NewBoundarySegmenter(classifier, vocab, prompts, policy, services.BoundaryConfig{
		WindowChars:         p.WindowChars,
		MinWindowUtterances: p.MinWindowUtterances,
		QAConfidenceFloor:   p.QAConfidenceFloor,
	})
	blocks := services.NewBlockSegmenter(classifier, vocab, prompts, policy, services.BlockConfig{
		WindowChars: p.BlockWindowChars,
	})
	filter := services.NewOpinionFilter(detector, classifier, opinions, prompts, policy, services.FilterConfig{
		MentionBatchSize: settings.NER.BatchSize,
		BatchSize:        p.BatchSize,
		Concurrency:      p.Concurrency,
		MaxTextLength:    p.MaxTextLength,
	})
	return services.NewProcessor(boundaries, blocks, filter, exporter, segments, opinions), nil
}

func mentionDetector(settings *domain.AppSettings, vocab domain.Vocabulary) (driven.MentionDetector, error) {
	switch settings.NER.Provider {
	case domain.NERProviderHTTP:
		client, err := remote.NewClient(remote.Config{BaseURL: settings.NER.BaseURL})
		if err != nil {
			return nil, fmt.Errorf("ner: %w", err)
		}
		return client, nil
	default:
		return heuristic.NewDetector(vocab), nil
	}
}

// opinionLedger selects the opinion record backend. Segments and exports
// always stay in SQLite.
func opinionLedger(
	ctx context.Context,
	s domain.StorageSettings,
	ledger *sqlite.Store,
) (driven.OpinionLedger, func() error, error) {
	if s.Backend != domain.StorageRedis {
		return ledger.OpinionLedger(), func() error { return nil }, nil
	}
	l, err := redis.NewOpinionLedger(ctx, redis.Config{Addr: s.RedisAddr})
	if err != nil {
		return nil, nil, fmt.Errorf("open redis ledger: %w", err)
	}
	logger.Debug("Opinion ledger: redis at %s", s.RedisAddr)
	return l, l.Close, nil
}

func resolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Join(errors.New("cannot locate config directory, pass --config-dir"), err)
	}
	return filepath.Join(home, ".mentions"), nil
}
