package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// exportStore implements driven.ExportStore.
type exportStore struct {
	store *Store
}

var _ driven.ExportStore = (*exportStore)(nil)

// SaveExport replaces the video's snapshot.
func (s *exportStore) SaveExport(ctx context.Context, snapshot *domain.ExportSnapshot) error {
	if snapshot == nil || snapshot.VideoID == "" {
		return fmt.Errorf("%w: export snapshot has no video id", domain.ErrInvalidInput)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshalling export: %w", err)
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO exports (video_id, export_id, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			export_id = excluded.export_id,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, snapshot.VideoID, snapshot.ExportID, string(payload), snapshot.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving export: %w", err)
	}
	return nil
}

// GetExport returns the current snapshot.
func (s *exportStore) GetExport(ctx context.Context, videoID string) (*domain.ExportSnapshot, error) {
	var payload string
	err := s.store.db.QueryRowContext(ctx, `SELECT payload FROM exports WHERE video_id = ?`, videoID).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying export: %w", err)
	}

	var snapshot domain.ExportSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling export: %w", err)
	}
	return &snapshot, nil
}

// DeleteExport removes the snapshot, if any.
func (s *exportStore) DeleteExport(ctx context.Context, videoID string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM exports WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("deleting export: %w", err)
	}
	return nil
}
