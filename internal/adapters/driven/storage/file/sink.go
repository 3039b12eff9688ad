// Package file publishes export snapshots as JSON files, one per video.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure ExportSink implements the interface.
var _ driven.ExportSink = (*ExportSink)(nil)

// DefaultDir is the export directory when none is configured.
const DefaultDir = "exports"

// ExportSink writes <dir>/<video_id>.json.
type ExportSink struct {
	dir string
}

// NewExportSink creates a sink rooted at dir.
func NewExportSink(dir string) *ExportSink {
	if dir == "" {
		dir = DefaultDir
	}
	return &ExportSink{dir: dir}
}

// Dir returns the export directory.
func (s *ExportSink) Dir() string {
	return s.dir
}

// Write replaces the video's export file atomically.
func (s *ExportSink) Write(_ context.Context, snapshot *domain.ExportSnapshot) (string, error) {
	path, err := s.pathFor(snapshot.VideoID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+snapshot.VideoID+"-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Remove deletes the video's export file, if any.
func (s *ExportSink) Remove(_ context.Context, videoID string) error {
	path, err := s.pathFor(videoID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove export file: %w", err)
	}
	return nil
}

func (s *ExportSink) pathFor(videoID string) (string, error) {
	if videoID == "" || strings.ContainsAny(videoID, `/\`) || videoID == "." || videoID == ".." {
		return "", fmt.Errorf("%w: unusable video id for export file: %q", domain.ErrInvalidInput, videoID)
	}
	return filepath.Join(s.dir, videoID+".json"), nil
}
