package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// segmentLedger implements driven.SegmentLedger.
type segmentLedger struct {
	store *Store
}

var _ driven.SegmentLedger = (*segmentLedger)(nil)

const videoColumns = `video_id, fingerprint, utterance_count, first_index, last_index, updated_at`

const segmentColumns = `segment_id, type, start_index, end_index, start_time, end_time, confidence, notes, created_at`

const blockColumns = `block_id, start_index, end_index, start_time, end_time, questions, answer_summary,
	confidence, text, created_at`

// GetVideo returns the recorded transcript state.
func (l *segmentLedger) GetVideo(ctx context.Context, videoID string) (*domain.VideoState, error) {
	row := l.store.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, videoID)
	return scanVideo(row)
}

// ListVideos returns every recorded video, most recent first.
func (l *segmentLedger) ListVideos(ctx context.Context) ([]domain.VideoState, error) {
	rows, err := l.store.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY updated_at DESC, video_id`)
	if err != nil {
		return nil, fmt.Errorf("querying videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.VideoState //nolint:prealloc // size unknown from query
	for rows.Next() {
		state, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating videos: %w", err)
	}
	return videos, nil
}

// PutBoundaries records the boundary set. A matching fingerprint without
// force returns the stored set; anything else replaces the boundaries and
// drops every block of the video in the same transaction.
func (l *segmentLedger) PutBoundaries(
	ctx context.Context,
	state domain.VideoState,
	segments []domain.BoundarySegment,
	force bool,
) ([]domain.BoundarySegment, error) {
	if err := domain.ValidatePartition(segments, state.FirstIndex, state.LastIndex); err != nil {
		return nil, err
	}

	var result []domain.BoundarySegment
	err := l.store.withTx(ctx, func(tx *sql.Tx) error {
		if !force {
			stored, err := scanVideo(tx.QueryRowContext(ctx,
				`SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, state.VideoID))
			switch {
			case errors.Is(err, domain.ErrNotFound):
			case err != nil:
				return err
			case stored.Fingerprint == state.Fingerprint:
				existing, err := querySegments(ctx, tx, state.VideoID)
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					result = existing
					return nil
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM qa_blocks WHERE video_id = ?`, state.VideoID); err != nil {
			return fmt.Errorf("deleting blocks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM qa_regions WHERE video_id = ?`, state.VideoID); err != nil {
			return fmt.Errorf("deleting regions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM boundary_segments WHERE video_id = ?`, state.VideoID); err != nil {
			return fmt.Errorf("deleting boundaries: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO videos (`+videoColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(video_id) DO UPDATE SET
				fingerprint = excluded.fingerprint,
				utterance_count = excluded.utterance_count,
				first_index = excluded.first_index,
				last_index = excluded.last_index,
				updated_at = excluded.updated_at
		`, state.VideoID, state.Fingerprint, state.UtteranceCount, state.FirstIndex, state.LastIndex,
			time.Now().UTC())
		if err != nil {
			return fmt.Errorf("saving video: %w", err)
		}

		now := time.Now().UTC()
		for _, seg := range segments {
			if seg.CreatedAt.IsZero() {
				seg.CreatedAt = now
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO boundary_segments (video_id, `+segmentColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, state.VideoID, seg.SegmentID(), string(seg.Type), seg.StartIndex, seg.EndIndex,
				seg.Start, seg.End, seg.Confidence, seg.Notes, seg.CreatedAt)
			if err != nil {
				return fmt.Errorf("saving segment %s: %w", seg.SegmentID(), err)
			}
		}

		result, err = querySegments(ctx, tx, state.VideoID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBoundaries returns the boundary set ordered by start index.
func (l *segmentLedger) GetBoundaries(ctx context.Context, videoID string) ([]domain.BoundarySegment, error) {
	return querySegments(ctx, l.store.db, videoID)
}

// PutBlocks records the blocks of one qa region.
func (l *segmentLedger) PutBlocks(
	ctx context.Context,
	videoID string,
	region domain.Range,
	blocks []domain.QABlock,
	force bool,
) ([]domain.QABlock, error) {
	if err := domain.ValidateBlocks(blocks, region); err != nil {
		return nil, err
	}

	var result []domain.QABlock
	err := l.store.withTx(ctx, func(tx *sql.Tx) error {
		var isQA int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM boundary_segments
			WHERE video_id = ? AND type = ? AND start_index = ? AND end_index = ?
		`, videoID, string(domain.SegmentQA), region.Start, region.End).Scan(&isQA)
		if err != nil {
			return fmt.Errorf("checking region: %w", err)
		}
		if isQA == 0 {
			return fmt.Errorf("%w: %s is not a qa segment of %s", domain.ErrInvariantViolation, region, videoID)
		}

		segmented, err := regionExists(ctx, tx, videoID, region)
		if err != nil {
			return err
		}
		if segmented && !force {
			result, err = queryRegionBlocks(ctx, tx, videoID, region)
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM qa_blocks WHERE video_id = ? AND region_start = ? AND region_end = ?
		`, videoID, region.Start, region.End); err != nil {
			return fmt.Errorf("deleting region blocks: %w", err)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO qa_regions (video_id, start_index, end_index, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(video_id, start_index, end_index) DO UPDATE SET created_at = excluded.created_at
		`, videoID, region.Start, region.End, now); err != nil {
			return fmt.Errorf("saving region: %w", err)
		}

		for _, b := range blocks {
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			questions, err := marshalStrings(b.Questions)
			if err != nil {
				return fmt.Errorf("marshalling questions: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO qa_blocks (video_id, region_start, region_end, `+blockColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, videoID, region.Start, region.End, b.BlockID, b.StartIndex, b.EndIndex, b.Start, b.End,
				questions, b.AnswerSummary, b.Confidence, b.Text, b.CreatedAt)
			if err != nil {
				return fmt.Errorf("saving block %s: %w", b.BlockID, err)
			}
		}

		result, err = queryRegionBlocks(ctx, tx, videoID, region)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetRegionBlocks returns the blocks of one region and whether it was segmented.
func (l *segmentLedger) GetRegionBlocks(
	ctx context.Context,
	videoID string,
	region domain.Range,
) ([]domain.QABlock, bool, error) {
	segmented, err := regionExists(ctx, l.store.db, videoID, region)
	if err != nil || !segmented {
		return nil, false, err
	}
	blocks, err := queryRegionBlocks(ctx, l.store.db, videoID, region)
	if err != nil {
		return nil, false, err
	}
	return blocks, true, nil
}

// GetBlocks returns every block of a video ordered by start index.
func (l *segmentLedger) GetBlocks(ctx context.Context, videoID string) ([]domain.QABlock, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT `+blockColumns+` FROM qa_blocks WHERE video_id = ? ORDER BY start_index
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %w", err)
	}
	return scanBlocks(rows)
}

// PurgeVideo deletes all segmentation rows for a video.
func (l *segmentLedger) PurgeVideo(ctx context.Context, videoID string) error {
	return l.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"qa_blocks", "qa_regions", "boundary_segments", "videos"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE video_id = ?`, videoID); err != nil {
				return fmt.Errorf("purging %s: %w", table, err)
			}
		}
		return nil
	})
}

// ==================== Helper Functions ====================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*domain.VideoState, error) {
	var state domain.VideoState
	var updatedAt sql.NullTime
	if err := row.Scan(&state.VideoID, &state.Fingerprint, &state.UtteranceCount,
		&state.FirstIndex, &state.LastIndex, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning video: %w", err)
	}
	if updatedAt.Valid {
		state.UpdatedAt = updatedAt.Time
	}
	return &state, nil
}

func querySegments(ctx context.Context, q querier, videoID string) ([]domain.BoundarySegment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+segmentColumns+` FROM boundary_segments WHERE video_id = ? ORDER BY start_index
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var segments []domain.BoundarySegment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var seg domain.BoundarySegment
		var segmentID, segType string
		var createdAt sql.NullTime
		if err := rows.Scan(&segmentID, &segType, &seg.StartIndex, &seg.EndIndex, &seg.Start, &seg.End,
			&seg.Confidence, &seg.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		seg.Type = domain.SegmentType(segType)
		if createdAt.Valid {
			seg.CreatedAt = createdAt.Time
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating segments: %w", err)
	}
	return segments, nil
}

func regionExists(ctx context.Context, q querier, videoID string, region domain.Range) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM qa_regions WHERE video_id = ? AND start_index = ? AND end_index = ?
	`, videoID, region.Start, region.End).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking region: %w", err)
	}
	return n > 0, nil
}

func queryRegionBlocks(ctx context.Context, q querier, videoID string, region domain.Range) ([]domain.QABlock, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+blockColumns+` FROM qa_blocks
		WHERE video_id = ? AND region_start = ? AND region_end = ?
		ORDER BY start_index
	`, videoID, region.Start, region.End)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %w", err)
	}
	return scanBlocks(rows)
}

func scanBlocks(rows *sql.Rows) ([]domain.QABlock, error) {
	defer rows.Close()

	blocks := []domain.QABlock{}
	for rows.Next() {
		var b domain.QABlock
		var questions string
		var createdAt sql.NullTime
		if err := rows.Scan(&b.BlockID, &b.StartIndex, &b.EndIndex, &b.Start, &b.End, &questions,
			&b.AnswerSummary, &b.Confidence, &b.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		var err error
		if b.Questions, err = unmarshalStrings(questions); err != nil {
			return nil, fmt.Errorf("unmarshaling questions: %w", err)
		}
		if createdAt.Valid {
			b.CreatedAt = createdAt.Time
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blocks: %w", err)
	}
	return blocks, nil
}
