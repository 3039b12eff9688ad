package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// --- Test doubles ---

// scriptedClassifier answers each call with respond and records the
// requests it saw.
type scriptedClassifier struct {
	mu       sync.Mutex
	respond  func(call int, req driven.ClassifyRequest) (string, error)
	requests []driven.ClassifyRequest
}

func (c *scriptedClassifier) Classify(_ context.Context, req driven.ClassifyRequest) (driven.ClassifyResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	call := len(c.requests)
	c.mu.Unlock()

	content, err := c.respond(call, req)
	if err != nil {
		return driven.ClassifyResponse{}, err
	}
	return driven.ClassifyResponse{Content: content, Model: "test-model"}, nil
}

func (c *scriptedClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// fixedClassifier always returns content.
func fixedClassifier(content string) *scriptedClassifier {
	return &scriptedClassifier{respond: func(int, driven.ClassifyRequest) (string, error) { return content, nil }}
}

// failingClassifier always returns err.
func failingClassifier(err error) *scriptedClassifier {
	return &scriptedClassifier{respond: func(int, driven.ClassifyRequest) (string, error) { return "", err }}
}

// fakeDetector reports the listed names found verbatim in each text.
type fakeDetector struct {
	mu    sync.Mutex
	names []string
	calls int
	err   error
	// short drops the last result of every batch larger than one.
	short bool
}

func (d *fakeDetector) Name() string { return "fake" }

func (d *fakeDetector) DetectPersons(_ context.Context, texts []string) ([]domain.MentionResult, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]domain.MentionResult, 0, len(texts))
	for _, text := range texts {
		var persons []string
		for _, n := range d.names {
			if strings.Contains(text, n) {
				persons = append(persons, n)
			}
		}
		out = append(out, domain.NewMentionResult("", persons))
	}
	if d.short && len(out) > 1 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// fakePrompts serves fixed prompts.
type fakePrompts map[string]string

func (p fakePrompts) Load(name string) (string, error) {
	if s, ok := p[name]; ok {
		return s, nil
	}
	return "", fmt.Errorf("no prompt %q", name)
}

func (p fakePrompts) Reload() {}

// fakeSink records published snapshots.
type fakeSink struct {
	written []string
	removed []string
	err     error
}

func (s *fakeSink) Write(_ context.Context, snap *domain.ExportSnapshot) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.written = append(s.written, snap.VideoID)
	return "/exports/" + snap.VideoID + ".json", nil
}

func (s *fakeSink) Remove(_ context.Context, videoID string) error {
	s.removed = append(s.removed, videoID)
	return s.err
}

// fakeEmbedder embeds text as a two-dimensional vector: whether it
// mentions "цены" and whether it mentions "выборы".
type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) vector(text string) []float32 {
	v := []float32{0.01, 0.01}
	if strings.Contains(text, "цены") {
		v[0] = 1
	}
	if strings.Contains(text, "выборы") {
		v[1] = 1
	}
	return v
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 2 }

func (e *fakeEmbedder) ModelName() string { return "fake-embed" }

func (e *fakeEmbedder) Ping(context.Context) error { return nil }

func (e *fakeEmbedder) Close() error { return nil }

// --- Fixtures ---

// testPolicy retries up to three times without sleeping.
func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

// transcriptOf builds a transcript with one utterance per text, two
// seconds apart.
func transcriptOf(videoID string, texts ...string) *domain.Transcript {
	t := &domain.Transcript{VideoID: videoID}
	for i, text := range texts {
		t.Utterances = append(t.Utterances, domain.Utterance{
			Index: i,
			Start: float64(2 * i),
			End:   float64(2*i + 1),
			Text:  text,
		})
	}
	return t
}

// qaTranscript is a short stream: two narrative utterances, a transition,
// then two viewer questions with answers.
func qaTranscript() *domain.Transcript {
	return transcriptOf("vid1",
		"Добрый вечер, сегодня говорим о ценах на бензин.",
		"Цены выросли за месяц на десять процентов.",
		"Теперь перейдём к вопросам.",
		"Иванов, вопрос от Петра: как дела?",
		"Дела нормально, спасибо, Петров опять всех обманул.",
		"Ольга пишет: что будет с выборами?",
		"Выборы пройдут по плану, тут ничего не изменится.",
	)
}

const qaBoundaryJSON = `{"segments":[
	{"type":"narrative","start_u":0,"end_u":1,"confidence":0.9,"notes":"news"},
	{"type":"qa","start_u":2,"end_u":6,"confidence":0.85,"notes":"questions"}
]}`

const qaBlockJSON = `{"qa_blocks":[
	{"start_u":3,"end_u":4,"questions":["как дела?"],"answer_summary":"Всё нормально.","confidence":0.9},
	{"start_u":5,"end_u":6,"questions":["что будет с выборами?"],"answer_summary":"По плану.","confidence":0.8}
]}`
