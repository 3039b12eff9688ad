package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/logger"
)

// previewRunes is how much of each utterance a segmentation prompt shows.
const previewRunes = 100

// Default system prompts, used when no PromptStore override exists.
var defaultSystemPrompts = map[string]string{
	driven.PromptBoundarySystem: "You are a transcript segmentation engine. " +
		"You split Russian political commentary transcripts into narrative (monologue: news, analysis) " +
		"and qa (the host answering viewer questions, reading comments, addressing viewers by name) regions. " +
		"Segments must cover the given index range without gaps or overlaps, ordered by start_u. " +
		"When the evidence is ambiguous prefer narrative. " +
		`Return ONLY valid JSON: {"segments":[{"type":"narrative|qa","start_u":int,"end_u":int,"confidence":0..1,"notes":"short"}]}. ` +
		"Never invent or copy text content.",
	driven.PromptBlockSystem: "You are a transcript segmentation engine. " +
		"You split the Q&A part of a Russian commentary video into answer blocks. " +
		"One block is ONE viewer's question plus the host's COMPLETE answer, which may span many utterances. " +
		"A new block starts ONLY when a new viewer name appears at the start of an utterance " +
		`("Виктор.", "Ольга,", "Андрей пишет:", "вопрос от ..."). ` +
		"Topic changes, connectives (но, и, также, потому что) and mid-answer addresses never start a block. " +
		"questions must contain ONLY literal quotes from the transcript; if the question is not read aloud use []. " +
		`Return ONLY valid JSON: {"qa_blocks":[{"start_u":int,"end_u":int,"questions":[string],"answer_summary":"1-2 sentences","confidence":0..1}]}.`,
	driven.PromptOpinionSystem: "You are a strict information extraction engine. " +
		"Decide whether the author expresses an opinion about any listed PERSON: an evaluative judgment, " +
		"praise or blame, accusation, sarcasm or irony, attributed motives, or predictions about the person. " +
		"Pure factual mentions are NOT opinions. targets must be chosen only from the persons list. " +
		"opinion_spans must be exact substrings copied from the text. If has_opinion is false, targets and opinion_spans are empty. " +
		`Return ONLY valid JSON: {"has_opinion":bool,"targets":[string],"opinion_spans":[string],"polarity":"positive|negative|neutral|mixed","confidence":0..1}. ` +
		`For several items return {"results":[...]} with one object per item, in input order, each carrying the item id.`,
}

// promptSet resolves system prompts, preferring the store's overrides.
type promptSet struct {
	store driven.PromptStore
}

func (p promptSet) system(name string) string {
	if p.store != nil {
		if s, err := p.store.Load(name); err == nil && strings.TrimSpace(s) != "" {
			return s
		} else if err != nil {
			logger.Debug("prompt %s: using built-in default (%v)", name, err)
		}
	}
	return defaultSystemPrompts[name]
}

// DefaultSystemPrompt returns the built-in system prompt for name.
func DefaultSystemPrompt(name string) string {
	return defaultSystemPrompts[name]
}

// DefaultSystemPrompts returns a copy of every built-in system prompt, keyed
// by prompt name.
func DefaultSystemPrompts() map[string]string {
	out := make(map[string]string, len(defaultSystemPrompts))
	for k, v := range defaultSystemPrompts {
		out[k] = v
	}
	return out
}

// utteranceLine formats one utterance for a segmentation prompt:
// [u=12 45.0-48.2] "text preview"
func utteranceLine(u domain.Utterance) string {
	text := u.Text
	if r := []rune(text); len(r) > previewRunes {
		text = string(r[:previewRunes]) + "..."
	}
	return fmt.Sprintf("[u=%d %.1f-%.1f] %q", u.Index, u.Start, u.End, text)
}

func utteranceLines(utts []domain.Utterance) string {
	lines := make([]string, len(utts))
	for i, u := range utts {
		lines[i] = utteranceLine(u)
	}
	return strings.Join(lines, "\n")
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Payloads are plain structs of strings and numbers.
		panic(fmt.Sprintf("marshal prompt payload: %v", err))
	}
	return string(b)
}

// boundaryHint carries the trailing segment of the previous window.
type boundaryHint struct {
	Type       domain.SegmentType `json:"type"`
	StartIndex int                `json:"start_u"`
}

func buildBoundaryPrompt(utts []domain.Utterance, hint *boundaryHint, vocab domain.Vocabulary) string {
	payload := map[string]any{
		"task":     "Segment this transcript window into narrative and qa regions.",
		"language": "ru",
		"input": map[string]any{
			"first_index":      utts[0].Index,
			"last_index":       utts[len(utts)-1].Index,
			"total_utterances": len(utts),
			"utterances":       utteranceLines(utts),
		},
		"transition_markers": vocab.Transitions,
		"qa_indicators":      vocab.ViewerMarkers,
		"rules": []string{
			"start_u and end_u must be utterance indices from the input.",
			"The first segment starts at first_index and the last ends at last_index.",
			"If the window is entirely one type, return one segment.",
			"A qa section starts at or before the utterance carrying a transition marker.",
		},
	}
	if hint != nil {
		payload["previous_window_ends_with"] = hint
	}
	return mustJSON(payload)
}

// estimatedBlocks guesses how many blocks a Q&A span holds, at roughly one
// per two and a half minutes.
func estimatedBlocks(utts []domain.Utterance) int {
	if len(utts) == 0 {
		return 0
	}
	n := int((utts[len(utts)-1].End - utts[0].Start) / 150)
	return max(5, min(40, n))
}

func buildBlockPrompt(utts []domain.Utterance, region domain.Range, vocab domain.Vocabulary) string {
	est := estimatedBlocks(utts)
	return mustJSON(map[string]any{
		"task":     "Segment this Q&A transcript into answer blocks.",
		"language": "ru",
		"input": map[string]any{
			"qa_range":         map[string]int{"start_u": region.Start, "end_u": region.End},
			"window":           map[string]int{"start_u": utts[0].Index, "end_u": utts[len(utts)-1].Index},
			"total_utterances": len(utts),
			"estimated_blocks": est,
			"utterances":       utteranceLines(utts),
		},
		"viewer_markers":      vocab.ViewerMarkers,
		"continuation_starts": vocab.Continuations,
		"rules": []string{
			"start_u and end_u must lie within the window.",
			"Blocks are ordered by start_u and never overlap.",
			"NEW BLOCK = NEW VIEWER NAME at the start of an utterance. Nothing else.",
			"questions: ONLY literal quotes from the transcript, or [].",
			fmt.Sprintf("Expect about %d blocks for the whole region; more than 50 means over-segmentation.", est),
		},
	})
}

// opinionItem is one block submitted for opinion detection.
type opinionItem struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Persons []string `json:"persons"`
}

// truncateText cuts text to maxRunes, marking the cut with "...".
func truncateText(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= maxRunes {
		return text
	}
	return string(r[:maxRunes]) + "..."
}

func buildOpinionPrompt(item opinionItem) string {
	return mustJSON(map[string]any{
		"task":     "Detect whether the author expresses an opinion about any PERSON in the text.",
		"language": "ru",
		"input":    map[string]any{"text": item.Text, "persons": item.Persons},
	})
}

func buildOpinionBatchPrompt(items []opinionItem) string {
	return mustJSON(map[string]any{
		"task":     "For every item, detect whether the author expresses an opinion about any PERSON in its text.",
		"language": "ru",
		"items":    items,
		"rules": []string{
			fmt.Sprintf("Return exactly %d results, in item order.", len(items)),
			"Each result carries its item id.",
		},
	})
}
