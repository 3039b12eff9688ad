package domain

import (
	"strings"
	"time"
)

// Polarity is the overall direction of an opinion.
type Polarity string

// Available polarities.
const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
	PolarityMixed    Polarity = "mixed"
)

// ParsePolarity maps engine output to a Polarity. Anything unrecognised,
// including "unclear", becomes neutral.
func ParsePolarity(s string) Polarity {
	switch Polarity(strings.ToLower(strings.TrimSpace(s))) {
	case PolarityPositive:
		return PolarityPositive
	case PolarityNegative:
		return PolarityNegative
	case PolarityMixed:
		return PolarityMixed
	default:
		return PolarityNeutral
	}
}

// String returns the string representation.
func (p Polarity) String() string {
	return string(p)
}

// MentionResult is the person-mention filter output for one block.
type MentionResult struct {
	BlockID    string   `json:"block_id,omitempty"`
	Persons    []string `json:"persons"`
	HasPersons bool     `json:"has_persons"`
}

// NewMentionResult deduplicates persons preserving first occurrence and
// derives HasPersons.
func NewMentionResult(blockID string, persons []string) MentionResult {
	seen := make(map[string]struct{}, len(persons))
	unique := make([]string, 0, len(persons))
	for _, p := range persons {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return MentionResult{BlockID: blockID, Persons: unique, HasPersons: len(unique) > 0}
}

// OpinionRecord is the terminal artifact of the pipeline: whether a block
// expresses an opinion about the persons it mentions.
type OpinionRecord struct {
	ChunkID      string    `json:"chunk_id"`
	VideoID      string    `json:"video_id"`
	BlockID      string    `json:"block_id"`
	Start        float64   `json:"start"`
	End          float64   `json:"end"`
	Persons      []string  `json:"persons"`
	HasOpinion   bool      `json:"has_opinion"`
	Targets      []string  `json:"targets"`
	OpinionSpans []string  `json:"opinion_spans"`
	Polarity     Polarity  `json:"polarity"`
	Confidence   float64   `json:"confidence"`
	Model        string    `json:"model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NoOpinion builds the record stored when there is nothing to evaluate.
func NoOpinion(videoID string, block QABlock, persons []string) OpinionRecord {
	return OpinionRecord{
		ChunkID:      ChunkID(videoID, block.BlockID),
		VideoID:      videoID,
		BlockID:      block.BlockID,
		Start:        block.Start,
		End:          block.End,
		Persons:      persons,
		Targets:      []string{},
		OpinionSpans: []string{},
		Polarity:     PolarityNeutral,
		Confidence:   1,
	}
}
