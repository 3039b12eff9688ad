package file

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// LoadVocabulary reads a YAML cue vocabulary and merges it over the
// built-in one. Lists missing from the file keep their defaults. An empty
// path returns the defaults.
func LoadVocabulary(path string) (domain.Vocabulary, error) {
	vocab := domain.DefaultVocabulary()
	if path == "" {
		return vocab, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("read vocabulary: %w", err)
	}

	var override domain.Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return vocab, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return vocab.Merge(override), nil
}
