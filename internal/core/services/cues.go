package services

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// cueWindow is how many leading runes of an utterance are searched for a
// viewer marker.
const cueWindow = 80

// CueDetector recognises language-specific Q&A cues in utterances.
type CueDetector struct {
	vocab domain.Vocabulary
}

// NewCueDetector creates a detector over the given vocabulary.
func NewCueDetector(vocab domain.Vocabulary) *CueDetector {
	return &CueDetector{vocab: vocab}
}

// HasTransition reports an explicit handoff into Q&A ("перейдём к вопросам").
func (c *CueDetector) HasTransition(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range c.vocab.Transitions {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// IsViewerCue reports whether an utterance opens with a new viewer's
// question: a viewer marker near its start ("Пётр пишет:", "вопрос от"),
// or one to three name-like tokens closed by punctuation ("Иванов,").
func (c *CueDetector) IsViewerCue(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if c.IsContinuation(text) {
		return false
	}

	head := strings.ToLower(truncateRunes(text, cueWindow))
	for _, m := range c.vocab.ViewerMarkers {
		if m != "" && strings.Contains(head, strings.ToLower(m)) {
			return true
		}
	}

	words := strings.Fields(text)
	for i := 0; i < len(words) && i < 3; i++ {
		if !c.vocab.IsNameLike(words[i]) {
			return false
		}
		last, _ := lastRune(words[i])
		if strings.ContainsRune(",.:!?", last) {
			return true
		}
	}
	return false
}

// IsContinuation reports whether an utterance opens with a discourse
// connective. Continuations never start a new block.
func (c *CueDetector) IsContinuation(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, cont := range c.vocab.Continuations {
		cont = strings.ToLower(cont)
		if cont == "" || !strings.HasPrefix(lower, cont) {
			continue
		}
		rest := lower[len(cont):]
		if rest == "" {
			return true
		}
		r := []rune(rest)[0]
		if !unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// RangeHasCue reports whether any utterance carries a transition or viewer
// cue.
func (c *CueDetector) RangeHasCue(utts []domain.Utterance) bool {
	for _, u := range utts {
		if c.HasTransition(u.Text) || c.IsViewerCue(u.Text) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastRune(s string) (rune, bool) {
	r := []rune(s)
	if len(r) == 0 {
		return 0, false
	}
	return r[len(r)-1], true
}
