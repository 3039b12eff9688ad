// Package utterances parses plain utterance JSON: either an array of
// utterances or an object with an "utterances" array.
package utterances

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// Format parses plain utterance JSON.
type Format struct{}

// New creates a plain utterance format parser.
func New() *Format {
	return &Format{}
}

// item accepts both "index" and the short "u" key for the ordinal.
type item struct {
	Index *int    `json:"index"`
	U     *int    `json:"u"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type document struct {
	Utterances []item `json:"utterances"`
}

// Name identifies the format.
func (f *Format) Name() string { return "utterances" }

// Extensions returns the extensions this format is tried for.
func (f *Format) Extensions() []string { return []string{".json"} }

// Priority returns the detection priority.
func (f *Format) Priority() int { return 10 }

// Detect reports whether data is a JSON array or an object with utterances.
func (f *Format) Detect(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] == '[' {
		return json.Valid(trimmed)
	}
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &shape); err != nil {
		return false
	}
	_, ok := shape["utterances"]
	return ok
}

// Parse converts items to utterances. Items without an explicit ordinal
// take their position.
func (f *Format) Parse(data []byte) ([]domain.Utterance, error) {
	items, err := decode(data)
	if err != nil {
		return nil, err
	}

	utts := make([]domain.Utterance, 0, len(items))
	for i, it := range items {
		index := i
		switch {
		case it.Index != nil:
			index = *it.Index
		case it.U != nil:
			index = *it.U
		}
		utts = append(utts, domain.Utterance{
			Index: index,
			Start: it.Start,
			End:   it.End,
			Text:  strings.TrimSpace(it.Text),
		})
	}
	return utts, nil
}

func decode(data []byte) ([]item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: decode utterances: %v", domain.ErrInvalidInput, err)
		}
		return items, nil
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode utterances: %v", domain.ErrInvalidInput, err)
	}
	return doc.Utterances, nil
}
