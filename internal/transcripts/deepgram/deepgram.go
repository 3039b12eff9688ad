// Package deepgram parses Deepgram prerecorded transcription responses
// requested with utterances enabled.
package deepgram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// Format parses Deepgram JSON.
type Format struct{}

// New creates a Deepgram format parser.
func New() *Format {
	return &Format{}
}

type response struct {
	Results *struct {
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// Name identifies the format.
func (f *Format) Name() string { return "deepgram" }

// Extensions returns the extensions this format is tried for.
func (f *Format) Extensions() []string { return []string{".json"} }

// Priority returns the detection priority.
func (f *Format) Priority() int { return 20 }

// Detect reports whether data carries results.utterances.
func (f *Format) Detect(data []byte) bool {
	var shape struct {
		Results map[string]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return false
	}
	_, ok := shape.Results["utterances"]
	return ok
}

// Parse converts Deepgram utterances to domain utterances. Indices follow
// the response order; utterances with no text are skipped without
// renumbering the rest.
func (f *Format) Parse(data []byte) ([]domain.Utterance, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode deepgram response: %v", domain.ErrInvalidInput, err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: deepgram response has no results", domain.ErrInvalidInput)
	}

	utts := make([]domain.Utterance, 0, len(resp.Results.Utterances))
	for i, u := range resp.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		utts = append(utts, domain.Utterance{
			Index: i,
			Start: u.Start,
			End:   u.End,
			Text:  text,
		})
	}
	return utts, nil
}
