package domain

import (
	"strings"
	"unicode"
)

// Vocabulary holds the language-specific cue phrases used to recognise
// Q&A transitions and viewer questions. The defaults are tuned for Russian
// political commentary streams; other content overrides them from a file.
type Vocabulary struct {
	// Transitions are explicit handoffs into a Q&A section,
	// e.g. "перейдём к вопросам".
	Transitions []string `yaml:"transitions" json:"transitions"`

	// ViewerMarkers introduce a viewer's message, e.g. "пишет", "спрашивает".
	ViewerMarkers []string `yaml:"viewer_markers" json:"viewer_markers"`

	// Continuations are discourse connectives that never open a new block.
	Continuations []string `yaml:"continuations" json:"continuations"`

	// Stopwords are capitalised words that are never person names
	// (sentence openers, pronouns, greetings).
	Stopwords []string `yaml:"stopwords" json:"stopwords"`
}

// DefaultVocabulary returns the built-in Russian cue vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Transitions: []string{
			"перейдём к вопросам",
			"перейдем к вопросам",
			"переходим к вопросам",
			"ваши вопросы",
			"вопросы зрителей",
			"отвечаю на вопросы",
			"почитаем вопросы",
			"по донатам",
			"суперчат",
		},
		ViewerMarkers: []string{
			"пишет",
			"спрашивает",
			"вопрос от",
			"задаёт вопрос",
			"задает вопрос",
			"интересуется",
			"следующий вопрос",
		},
		Continuations: []string{
			"и вот",
			"кроме того",
			"также",
			"далее",
			"при этом",
			"но",
			"и",
			"а",
			"так вот",
			"возвращаясь",
		},
		Stopwords: []string{
			"Здравствуйте", "Привет", "Спасибо", "Добрый", "Итак", "Так", "Вот", "Это",
			"Да", "Нет", "Ну", "Но", "И", "А", "Я", "Мы", "Вы", "Он", "Она", "Они",
			"Если", "Когда", "Потому", "Что", "Как", "Где", "Почему", "Кто", "Всё", "Все",
			"Вопрос", "Россия", "России", "Украина", "Украины", "Москва", "Москве",
			"США", "Европа", "Европы", "Сегодня", "Вчера", "Завтра",
			// Discourse openers that are often followed by a comma.
			"Хорошо", "Ладно", "Окей", "Конечно", "Кстати", "Короче", "Значит", "Слушайте",
			"Смотрите", "Понимаете", "Знаете", "Впрочем", "Однако", "Во-первых", "Во-вторых",
			"Например", "Действительно", "Собственно", "Естественно", "Разумеется", "Безусловно",
			"Наверное", "Кажется", "Просто", "Друзья", "Коллеги", "Уважаемые", "Отлично", "Понятно",
		},
	}
}

// Merge returns v with every non-empty list in override replacing its
// counterpart.
func (v Vocabulary) Merge(override Vocabulary) Vocabulary {
	if len(override.Transitions) > 0 {
		v.Transitions = override.Transitions
	}
	if len(override.ViewerMarkers) > 0 {
		v.ViewerMarkers = override.ViewerMarkers
	}
	if len(override.Continuations) > 0 {
		v.Continuations = override.Continuations
	}
	if len(override.Stopwords) > 0 {
		v.Stopwords = override.Stopwords
	}
	return v
}

// IsNameLike reports whether word looks like a person name: capitalised,
// at least two letters and not a known non-name.
func (v Vocabulary) IsNameLike(word string) bool {
	word = strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	runes := []rune(word)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	// All-caps tokens are acronyms (США, НАТО), not names.
	allUpper := true
	for _, r := range runes[1:] {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			allUpper = false
			break
		}
	}
	if allUpper {
		return false
	}
	for _, s := range v.Stopwords {
		if strings.EqualFold(s, word) {
			return false
		}
	}
	return true
}
