// Package heuristic provides a local person-mention detector that needs no
// external service. It recognises capitalised name-like tokens using the
// cue vocabulary's stopword list.
package heuristic

import (
	"context"
	"strings"
	"unicode"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.MentionDetector = (*Detector)(nil)

// Detector finds person names by capitalisation.
type Detector struct {
	vocab domain.Vocabulary
}

// NewDetector creates a heuristic detector.
func NewDetector(vocab domain.Vocabulary) *Detector {
	return &Detector{vocab: vocab}
}

// Name identifies the detector.
func (d *Detector) Name() string {
	return "heuristic"
}

// DetectPersons returns one result per text.
func (d *Detector) DetectPersons(ctx context.Context, texts []string) ([]domain.MentionResult, error) {
	results := make([]domain.MentionResult, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = domain.NewMentionResult("", d.Persons(text))
	}
	return results, nil
}

// token is one whitespace-separated word with its surrounding punctuation
// split off.
type token struct {
	word string
	// closed is set when trailing punctuation ends the name run.
	closed bool
	// comma is set when the trailing punctuation is a comma.
	comma bool
	// sentenceEnd is set when the word ends a sentence.
	sentenceEnd bool
}

// Persons returns the name runs found in text, in order of appearance.
// Consecutive name-like words join into one name. A single name-like word
// at the start of a sentence counts only when a comma follows it, since
// sentence openers are capitalised anyway.
func (d *Detector) Persons(text string) []string {
	tokens := tokenize(text)

	var persons []string
	sentenceStart := true
	for i := 0; i < len(tokens); {
		tok := tokens[i]
		if !d.vocab.IsNameLike(tok.word) {
			sentenceStart = tok.sentenceEnd
			i++
			continue
		}

		run := []string{tok.word}
		j := i + 1
		for last := tok; !last.closed && j < len(tokens) && d.vocab.IsNameLike(tokens[j].word); j++ {
			last = tokens[j]
			run = append(run, last.word)
		}

		if !sentenceStart || len(run) > 1 || tok.comma {
			persons = append(persons, strings.Join(run, " "))
		}
		sentenceStart = tokens[j-1].sentenceEnd
		i = j
	}
	return persons
}

func tokenize(text string) []token {
	fields := strings.Fields(text)
	tokens := make([]token, 0, len(fields))
	for _, f := range fields {
		word := strings.TrimLeftFunc(f, isEdgePunct)
		trimmed := strings.TrimRightFunc(word, isEdgePunct)
		tail := word[len(trimmed):]
		tok := token{word: trimmed}
		if tail != "" {
			tok.closed = true
			tok.comma = strings.HasPrefix(tail, ",")
			tok.sentenceEnd = strings.ContainsAny(tail, ".!?…")
		}
		if tok.word == "" {
			// A bare punctuation token such as a dash.
			tok.closed = true
			tok.sentenceEnd = strings.ContainsAny(f, ".!?…")
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isEdgePunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
}
