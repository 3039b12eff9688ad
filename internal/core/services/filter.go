package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/logger"
)

// FilterConfig tunes the progressive filter.
type FilterConfig struct {
	// MentionBatchSize is the number of texts per mention detector call.
	MentionBatchSize int

	// BatchSize is the number of blocks per opinion call.
	BatchSize int

	// Concurrency bounds in-flight opinion batches.
	Concurrency int

	// MaxTextLength truncates block text in opinion prompts.
	MaxTextLength int
}

// FilterResult is the outcome of filtering one video's blocks.
type FilterResult struct {
	// Records holds one record per block with persons that was cached or
	// judged successfully, in block order.
	Records []domain.OpinionRecord

	// Mentions holds the mention results of blocks that were not cached.
	Mentions []domain.MentionResult

	CacheHits       int
	MentionNegative int
	Written         int

	// OpinionCalls counts classifier invocations, batch and single.
	OpinionCalls int

	Failures []domain.UnitFailure
}

// OpinionFilter runs the mention filter and opinion detection over blocks,
// consulting the ledger before any billable call.
type OpinionFilter struct {
	detector   driven.MentionDetector
	classifier driven.Classifier
	ledger     driven.OpinionLedger
	prompts    promptSet
	policy     RetryPolicy
	cfg        FilterConfig
}

// NewOpinionFilter creates an opinion filter. prompts may be nil.
func NewOpinionFilter(
	detector driven.MentionDetector,
	classifier driven.Classifier,
	ledger driven.OpinionLedger,
	prompts driven.PromptStore,
	policy RetryPolicy,
	cfg FilterConfig,
) *OpinionFilter {
	defaults := domain.DefaultPipelineSettings()
	if cfg.MentionBatchSize <= 0 {
		cfg.MentionBatchSize = 32
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaults.MaxTextLength
	}
	return &OpinionFilter{
		detector:   detector,
		classifier: classifier,
		ledger:     ledger,
		prompts:    promptSet{store: prompts},
		policy:     policy,
		cfg:        cfg,
	}
}

// pendingBlock is a block that passed the mention filter.
type pendingBlock struct {
	block   domain.QABlock
	persons []string
}

// Run filters blocks in fixed order: ledger check, mention filter, opinion
// detection, ledger write. Per-block failures land in the result; ledger
// errors abort the run. Cancellation stops new batch dispatches, lets
// in-flight batches finish and persist, then returns domain.ErrCancelled.
func (f *OpinionFilter) Run(ctx context.Context, videoID string, blocks []domain.QABlock, force bool) (*FilterResult, error) {
	result := &FilterResult{}
	records := make(map[string]domain.OpinionRecord, len(blocks))

	// 1. Ledger check.
	var uncached []domain.QABlock
	for _, b := range blocks {
		chunkID := domain.ChunkID(videoID, b.BlockID)
		if !force {
			rec, err := f.ledger.GetOpinion(ctx, chunkID)
			if err == nil {
				records[chunkID] = *rec
				result.CacheHits++
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return result, fmt.Errorf("check ledger for %s: %w", chunkID, err)
			}
		}
		uncached = append(uncached, b)
	}
	logger.Debug("filter: %s %d blocks, %d cached", videoID, len(blocks), result.CacheHits)

	// 2. Mention filter.
	mentions, failures, err := f.detectMentions(ctx, uncached)
	result.Failures = append(result.Failures, failures...)
	if err != nil {
		result.Records = collectRecords(videoID, blocks, records)
		return result, err
	}
	var pending []pendingBlock
	for i, b := range uncached {
		m, ok := mentions[i]
		if !ok {
			continue
		}
		result.Mentions = append(result.Mentions, m)
		if !m.HasPersons {
			result.MentionNegative++
			continue
		}
		pending = append(pending, pendingBlock{block: b, persons: m.Persons})
	}

	// 3 + 4. Opinion detection and ledger write.
	written, calls, failures, err := f.detectOpinions(ctx, videoID, pending, force, records)
	result.Written = written
	result.OpinionCalls = calls
	result.Failures = append(result.Failures, failures...)
	result.Records = collectRecords(videoID, blocks, records)
	return result, err
}

// collectRecords returns the known records of blocks in block order.
func collectRecords(videoID string, blocks []domain.QABlock, records map[string]domain.OpinionRecord) []domain.OpinionRecord {
	var out []domain.OpinionRecord
	for _, b := range blocks {
		if rec, ok := records[domain.ChunkID(videoID, b.BlockID)]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// detectMentions returns mention results keyed by position in blocks.
// Batches whose result count mismatches fall back to per-item calls.
// Cancellation is checked before each call; a call already made runs to
// completion and then domain.ErrCancelled is returned.
func (f *OpinionFilter) detectMentions(
	ctx context.Context,
	blocks []domain.QABlock,
) (map[int]domain.MentionResult, []domain.UnitFailure, error) {
	out := make(map[int]domain.MentionResult, len(blocks))
	var failures []domain.UnitFailure
	workCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(blocks); start += f.cfg.MentionBatchSize {
		if ctx.Err() != nil {
			return out, failures, domain.ErrCancelled
		}
		end := min(start+f.cfg.MentionBatchSize, len(blocks))
		batch := blocks[start:end]
		texts := make([]string, len(batch))
		for i, b := range batch {
			texts[i] = b.Text
		}

		results, err := Retry(workCtx, f.policy, "mentions batch", func(ctx context.Context) ([]domain.MentionResult, error) {
			return f.detector.DetectPersons(ctx, texts)
		})
		if err == nil && len(results) == len(batch) {
			for i, r := range results {
				out[start+i] = domain.NewMentionResult(batch[i].BlockID, r.Persons)
			}
			continue
		}
		if err == nil {
			logger.Warn("mentions: batch returned %d results for %d blocks, retrying one by one", len(results), len(batch))
		} else {
			logger.Warn("mentions: batch failed (%v), retrying one by one", err)
		}

		for i, b := range batch {
			if ctx.Err() != nil {
				return out, failures, domain.ErrCancelled
			}
			single, err := Retry(workCtx, f.policy, "mentions "+b.BlockID, func(ctx context.Context) ([]domain.MentionResult, error) {
				return f.detector.DetectPersons(ctx, []string{b.Text})
			})
			if err == nil && len(single) != 1 {
				err = fmt.Errorf("%w: %d results for 1 text", domain.ErrMalformedResponse, len(single))
			}
			if err != nil {
				failures = append(failures, domain.UnitFailure{
					UnitID: b.BlockID, Stage: domain.StageMentions, Kind: domain.FailureCapability, Reason: err.Error(),
				})
				continue
			}
			out[start+i] = domain.NewMentionResult(b.BlockID, single[0].Persons)
		}
	}
	return out, failures, nil
}

// detectOpinions classifies pending blocks in concurrent batches and writes
// each record to the ledger as soon as it is judged.
func (f *OpinionFilter) detectOpinions(
	ctx context.Context,
	videoID string,
	pending []pendingBlock,
	force bool,
	records map[string]domain.OpinionRecord,
) (int, int, []domain.UnitFailure, error) {
	if len(pending) == 0 {
		return 0, 0, nil, nil
	}

	var (
		mu       sync.Mutex
		failures []domain.UnitFailure
		written  int
		calls    atomic.Int64
	)
	fail := func(pb pendingBlock, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, domain.UnitFailure{
			UnitID: domain.ChunkID(videoID, pb.block.BlockID),
			Stage:  domain.StageOpinions,
			Kind:   domain.FailureCapability,
			Reason: err.Error(),
		})
	}

	// In-flight work runs detached from cancellation; results are billed
	// and get persisted.
	workCtx := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(workCtx)
	g.SetLimit(f.cfg.Concurrency)

	cancelled := false
	for start := 0; start < len(pending); start += f.cfg.BatchSize {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if gctx.Err() != nil {
			break
		}
		batch := pending[start:min(start+f.cfg.BatchSize, len(pending))]
		g.Go(func() error {
			judged := f.judgeBatch(gctx, videoID, batch, &calls, fail)
			for _, rec := range judged {
				stored, ok, err := f.ledger.PutOpinion(gctx, rec, force)
				if err != nil {
					return fmt.Errorf("write opinion %s: %w", rec.ChunkID, err)
				}
				mu.Lock()
				records[rec.ChunkID] = *stored
				if ok {
					written++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && cancelled {
		err = domain.ErrCancelled
	}
	return written, int(calls.Load()), failures, err
}

// judgeBatch returns records for the blocks of batch that were judged.
// A batch reply with the wrong shape falls back to one call per block;
// a batch that exhausts its retries fails every block in it.
func (f *OpinionFilter) judgeBatch(
	ctx context.Context,
	videoID string,
	batch []pendingBlock,
	calls *atomic.Int64,
	fail func(pendingBlock, error),
) []domain.OpinionRecord {
	system := f.prompts.system(driven.PromptOpinionSystem)

	if len(batch) > 1 {
		items := make([]opinionItem, len(batch))
		for i, pb := range batch {
			items[i] = opinionItem{ID: pb.block.BlockID, Text: truncateText(pb.block.Text, f.cfg.MaxTextLength), Persons: pb.persons}
		}
		prompt := buildOpinionBatchPrompt(items)
		var model string
		j, err := Retry(ctx, f.policy, fmt.Sprintf("opinions %s batch of %d", videoID, len(batch)),
			func(ctx context.Context) (*OpinionBatchJudgment, error) {
				calls.Add(1)
				resp, err := f.classifier.Classify(ctx, driven.ClassifyRequest{System: system, Prompt: prompt, Strength: domain.StrengthStandard})
				if err != nil {
					return nil, err
				}
				model = resp.Model
				return ParseOpinionBatch(resp.Content, len(batch))
			})
		switch {
		case err == nil:
			out := make([]domain.OpinionRecord, len(batch))
			for i, pb := range batch {
				out[i] = f.record(videoID, pb, &j.Results[i], model)
			}
			return out
		case errors.Is(err, errBatchMismatch):
			logger.Warn("opinions: %v, retrying one by one", err)
		default:
			for _, pb := range batch {
				fail(pb, err)
			}
			return nil
		}
	}

	var out []domain.OpinionRecord
	for _, pb := range batch {
		prompt := buildOpinionPrompt(opinionItem{
			ID: pb.block.BlockID, Text: truncateText(pb.block.Text, f.cfg.MaxTextLength), Persons: pb.persons,
		})
		var model string
		j, err := Retry(ctx, f.policy, "opinion "+domain.ChunkID(videoID, pb.block.BlockID),
			func(ctx context.Context) (*OpinionJudgment, error) {
				calls.Add(1)
				resp, err := f.classifier.Classify(ctx, driven.ClassifyRequest{System: system, Prompt: prompt, Strength: domain.StrengthStandard})
				if err != nil {
					return nil, err
				}
				model = resp.Model
				return ParseOpinionJudgment(resp.Content)
			})
		if err != nil {
			fail(pb, err)
			continue
		}
		out = append(out, f.record(videoID, pb, j, model))
	}
	return out
}

func (f *OpinionFilter) record(videoID string, pb pendingBlock, j *OpinionJudgment, model string) domain.OpinionRecord {
	rec := domain.NoOpinion(videoID, pb.block, pb.persons)
	rec.Model = model
	rec.CreatedAt = time.Now()
	if j.Apply(&rec, pb.block.Text) {
		logger.Warn("opinions: repaired judgment for %s (targets or spans not in source)", rec.ChunkID)
	}
	return rec
}
