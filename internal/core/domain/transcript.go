package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Utterance is a single timestamped unit of transcribed speech.
// Index is the stable ordinal used by every downstream stage.
type Utterance struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the ordered utterance sequence for one video.
// It is produced once by transcription and never mutated afterwards.
type Transcript struct {
	VideoID    string      `json:"video_id"`
	Utterances []Utterance `json:"utterances"`
}

// Validate checks the transcript invariants: a video ID, at least one
// utterance, strictly increasing indices and End >= Start.
func (t *Transcript) Validate() error {
	if strings.TrimSpace(t.VideoID) == "" {
		return fmt.Errorf("%w: video id is required", ErrInvalidInput)
	}
	if len(t.Utterances) == 0 {
		return fmt.Errorf("%w: transcript %s has no utterances", ErrInvalidInput, t.VideoID)
	}
	for i, u := range t.Utterances {
		if u.Index < 0 {
			return fmt.Errorf("%w: utterance %d has negative index", ErrInvalidInput, u.Index)
		}
		if i > 0 && u.Index <= t.Utterances[i-1].Index {
			return fmt.Errorf("%w: utterance index %d does not increase after %d",
				ErrInvalidInput, u.Index, t.Utterances[i-1].Index)
		}
		if u.End < u.Start {
			return fmt.Errorf("%w: utterance %d ends (%.2f) before it starts (%.2f)",
				ErrInvalidInput, u.Index, u.End, u.Start)
		}
	}
	return nil
}

// FirstIndex returns the ordinal of the first utterance.
func (t *Transcript) FirstIndex() int {
	if len(t.Utterances) == 0 {
		return 0
	}
	return t.Utterances[0].Index
}

// LastIndex returns the ordinal of the last utterance.
func (t *Transcript) LastIndex() int {
	if len(t.Utterances) == 0 {
		return 0
	}
	return t.Utterances[len(t.Utterances)-1].Index
}

// Lookup finds the utterance with the given ordinal.
func (t *Transcript) Lookup(index int) (Utterance, bool) {
	i := sort.Search(len(t.Utterances), func(i int) bool {
		return t.Utterances[i].Index >= index
	})
	if i < len(t.Utterances) && t.Utterances[i].Index == index {
		return t.Utterances[i], true
	}
	return Utterance{}, false
}

// Slice returns the utterances whose ordinals fall in [start, end].
// The returned slice shares the transcript's backing array.
func (t *Transcript) Slice(start, end int) []Utterance {
	if end < start {
		return nil
	}
	lo := sort.Search(len(t.Utterances), func(i int) bool {
		return t.Utterances[i].Index >= start
	})
	hi := sort.Search(len(t.Utterances), func(i int) bool {
		return t.Utterances[i].Index > end
	})
	return t.Utterances[lo:hi]
}

// CloseGaps stretches segments over ordinal gaps that hold no utterance, so
// a segmentation of sparse indices still partitions [first, last]. A segment
// start moves back to its predecessor's end+1, the first start back to first
// and the last end forward to last, each only when no utterance lies in
// between. Segments are returned sorted by start.
func (t *Transcript) CloseGaps(segments []BoundarySegment, first, last int) []BoundarySegment {
	out := make([]BoundarySegment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartIndex < out[j].StartIndex })

	for i := range out {
		from := first
		if i > 0 {
			from = out[i-1].EndIndex + 1
		}
		if out[i].StartIndex > from && len(t.Slice(from, out[i].StartIndex-1)) == 0 {
			out[i].StartIndex = from
		}
	}
	if n := len(out); n > 0 && out[n-1].EndIndex < last && len(t.Slice(out[n-1].EndIndex+1, last)) == 0 {
		out[n-1].EndIndex = last
	}
	return out
}

// Text joins the text of the utterances in [start, end] with single spaces.
func (t *Transcript) Text(start, end int) string {
	return JoinText(t.Slice(start, end))
}

// Span returns the start and end seconds covered by [start, end].
func (t *Transcript) Span(start, end int) (float64, float64) {
	utts := t.Slice(start, end)
	if len(utts) == 0 {
		return 0, 0
	}
	return utts[0].Start, utts[len(utts)-1].End
}

// Fingerprint is a stable digest of the utterance sequence. Two runs over the
// same fingerprint may reuse every cached decision.
func (t *Transcript) Fingerprint() string {
	h := sha256.New()
	for _, u := range t.Utterances {
		h.Write([]byte(strconv.Itoa(u.Index)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(u.Start, 'f', 3, 64)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(u.End, 'f', 3, 64)))
		h.Write([]byte{0})
		h.Write([]byte(u.Text))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Duration returns the seconds between the first start and the last end.
func (t *Transcript) Duration() float64 {
	if len(t.Utterances) == 0 {
		return 0
	}
	return t.Utterances[len(t.Utterances)-1].End - t.Utterances[0].Start
}

// JoinText concatenates utterance texts with single spaces.
func JoinText(utts []Utterance) string {
	parts := make([]string, 0, len(utts))
	for _, u := range utts {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, " ")
}
