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

// opinionLedger implements driven.OpinionLedger.
type opinionLedger struct {
	store *Store
}

var _ driven.OpinionLedger = (*opinionLedger)(nil)

const opinionColumns = `chunk_id, video_id, block_id, start_time, end_time, persons, has_opinion, targets,
	opinion_spans, polarity, confidence, model, created_at`

// GetOpinion looks up a record by exact chunk ID.
func (l *opinionLedger) GetOpinion(ctx context.Context, chunkID string) (*domain.OpinionRecord, error) {
	row := l.store.db.QueryRowContext(ctx, `SELECT `+opinionColumns+` FROM opinions WHERE chunk_id = ?`, chunkID)
	return scanOpinion(row)
}

// PutOpinion writes a record. Without force the insert is ON CONFLICT DO
// NOTHING and the stored record is returned when the key was occupied.
func (l *opinionLedger) PutOpinion(
	ctx context.Context,
	rec domain.OpinionRecord,
	force bool,
) (*domain.OpinionRecord, bool, error) {
	if rec.ChunkID == "" {
		return nil, false, fmt.Errorf("%w: opinion record has no chunk id", domain.ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	persons, err := marshalStrings(rec.Persons)
	if err != nil {
		return nil, false, fmt.Errorf("marshalling persons: %w", err)
	}
	targets, err := marshalStrings(rec.Targets)
	if err != nil {
		return nil, false, fmt.Errorf("marshalling targets: %w", err)
	}
	spans, err := marshalStrings(rec.OpinionSpans)
	if err != nil {
		return nil, false, fmt.Errorf("marshalling spans: %w", err)
	}

	conflict := `ON CONFLICT(chunk_id) DO NOTHING`
	if force {
		conflict = `ON CONFLICT(chunk_id) DO UPDATE SET
			video_id = excluded.video_id,
			block_id = excluded.block_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			persons = excluded.persons,
			has_opinion = excluded.has_opinion,
			targets = excluded.targets,
			opinion_spans = excluded.opinion_spans,
			polarity = excluded.polarity,
			confidence = excluded.confidence,
			model = excluded.model,
			created_at = excluded.created_at`
	}

	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO opinions (`+opinionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`+conflict,
		rec.ChunkID, rec.VideoID, rec.BlockID, rec.Start, rec.End, persons, rec.HasOpinion, targets,
		spans, string(rec.Polarity), rec.Confidence, rec.Model, rec.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("saving opinion: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("saving opinion: %w", err)
	}
	if affected == 0 {
		stored, err := l.GetOpinion(ctx, rec.ChunkID)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}
	return &rec, true, nil
}

// ListOpinions returns a video's records ordered by start time.
func (l *opinionLedger) ListOpinions(ctx context.Context, videoID string) ([]domain.OpinionRecord, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT `+opinionColumns+` FROM opinions WHERE video_id = ? ORDER BY start_time, block_id
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("querying opinions: %w", err)
	}
	defer rows.Close()

	var records []domain.OpinionRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanOpinion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opinions: %w", err)
	}
	return records, nil
}

// InvalidateOpinions deletes every record of a video.
func (l *opinionLedger) InvalidateOpinions(ctx context.Context, videoID string) (int, error) {
	res, err := l.store.db.ExecContext(ctx, `DELETE FROM opinions WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, fmt.Errorf("deleting opinions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting opinions: %w", err)
	}
	return int(n), nil
}

func scanOpinion(row rowScanner) (*domain.OpinionRecord, error) {
	var rec domain.OpinionRecord
	var persons, targets, spans, polarity string
	var createdAt sql.NullTime
	if err := row.Scan(&rec.ChunkID, &rec.VideoID, &rec.BlockID, &rec.Start, &rec.End, &persons,
		&rec.HasOpinion, &targets, &spans, &polarity, &rec.Confidence, &rec.Model, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning opinion: %w", err)
	}

	var err error
	if rec.Persons, err = unmarshalStrings(persons); err != nil {
		return nil, fmt.Errorf("unmarshaling persons: %w", err)
	}
	if rec.Targets, err = unmarshalStrings(targets); err != nil {
		return nil, fmt.Errorf("unmarshaling targets: %w", err)
	}
	if rec.OpinionSpans, err = unmarshalStrings(spans); err != nil {
		return nil, fmt.Errorf("unmarshaling spans: %w", err)
	}
	rec.Polarity = domain.Polarity(polarity)
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	return &rec, nil
}
