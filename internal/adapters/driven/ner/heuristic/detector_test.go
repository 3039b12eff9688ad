package heuristic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

func TestDetector_Persons(t *testing.T) {
	d := NewDetector(domain.DefaultVocabulary())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"addressed by comma at sentence start", "Иванов, вопрос от Петра: как дела?", []string{"Иванов", "Петра"}},
		{"mid-sentence name", "Всё отлично, Пётр, спасибо", []string{"Пётр"}},
		{"greeting only", "Здравствуйте", nil},
		{"lowercase text", "мы обсуждали это довольно долго", nil},
		{"full name joins", "Владимир Путин сказал об этом вчера", []string{"Владимир Путин"}},
		{"sentence opener without comma is skipped", "Что-то случилось. Навальный был прав.", nil},
		{"stopword opener then name", "Сегодня говорим про Навального.", []string{"Навального"}},
		{"acronym is not a name", "НАТО расширяется на восток", nil},
		{"comma breaks a run", "спросили про Иванова, Петрова и Сидорова", []string{"Иванова", "Петрова", "Сидорова"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Persons(tt.text))
		})
	}
}

func TestDetector_DetectPersons(t *testing.T) {
	d := NewDetector(domain.DefaultVocabulary())

	results, err := d.DetectPersons(context.Background(), []string{
		"Петров и снова Петров",
		"никого нет",
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"Петров"}, results[0].Persons)
	assert.True(t, results[0].HasPersons)
	assert.False(t, results[1].HasPersons)
	assert.Empty(t, results[1].Persons)
	assert.Equal(t, "heuristic", d.Name())
}

func TestDetector_CustomStopwords(t *testing.T) {
	vocab := domain.DefaultVocabulary().Merge(domain.Vocabulary{Stopwords: []string{"Кремль"}})
	d := NewDetector(vocab)

	assert.Equal(t, []string{"Шойгу"}, d.Persons("говорят, что Кремль уволил Шойгу"))
}

func TestDetector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDetector(domain.DefaultVocabulary()).DetectPersons(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
