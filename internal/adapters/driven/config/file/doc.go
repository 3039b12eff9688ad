// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: editable system prompts, one text file per prompt
//   - LoadVocabulary: YAML cue vocabulary overrides
package file
