package transcripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/transcripts/deepgram"
	"github.com/custodia-labs/mentions/internal/transcripts/srt"
	"github.com/custodia-labs/mentions/internal/transcripts/utterances"
)

// Ensure Loader implements the interface.
var _ driven.TranscriptLoader = (*Loader)(nil)

// Format parses one transcription file format.
type Format interface {
	// Name identifies the format in errors.
	Name() string

	// Extensions lists the lower-case file extensions, with dot, this
	// format is tried for.
	Extensions() []string

	// Detect reports whether data looks like this format.
	Detect(data []byte) bool

	// Parse converts data to utterances in transcript order.
	Parse(data []byte) ([]domain.Utterance, error)

	// Priority orders detection; higher is tried first.
	Priority() int
}

// Loader reads transcripts from disk.
type Loader struct {
	formats []Format
}

// NewLoader creates a loader for the given formats.
func NewLoader(formats ...Format) *Loader {
	sorted := append([]Format(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Loader{formats: sorted}
}

// DefaultFormats returns every built-in format.
func DefaultFormats() []Format {
	return []Format{
		deepgram.New(),
		utterances.New(),
		srt.New(),
	}
}

// NewDefaultLoader creates a loader for every built-in format.
func NewDefaultLoader() *Loader {
	return NewLoader(DefaultFormats()...)
}

// Load reads and validates the transcript at path. An empty videoID is
// derived from the file name.
func (l *Loader) Load(ctx context.Context, path, videoID string) (*domain.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	format, err := l.detect(path, data)
	if err != nil {
		return nil, err
	}

	utts, err := format.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s transcript %s: %w", format.Name(), path, err)
	}

	if videoID == "" {
		videoID = VideoIDFromPath(path)
	}
	t := &domain.Transcript{VideoID: videoID, Utterances: utts}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Supports reports whether path has an extension some format handles.
func (l *Loader) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range l.formats {
		for _, e := range f.Extensions() {
			if e == ext {
				return true
			}
		}
	}
	return false
}

func (l *Loader) detect(path string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range l.formats {
		if !hasExtension(f, ext) {
			continue
		}
		if f.Detect(data) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognised transcript format: %s", domain.ErrInvalidInput, path)
}

func hasExtension(f Format, ext string) bool {
	for _, e := range f.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// VideoIDFromPath derives a video ID from a transcript file name, dropping
// the extension and a trailing ".deepgram" or ".transcript" qualifier.
func VideoIDFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	for _, suffix := range []string{".deepgram", ".transcript", ".utterances"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}
