package driven

// PromptStore provides access to LLM system prompts.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. These are system prompts with no placeholders;
// the per-call payload is sent as the user message.
const (
	// PromptBoundarySystem classifies utterance windows as narrative or qa.
	PromptBoundarySystem = "boundary_system"

	// PromptBlockSystem splits a qa region into question/answer blocks.
	PromptBlockSystem = "block_system"

	// PromptOpinionSystem decides whether a block expresses an opinion
	// about the persons it mentions.
	PromptOpinionSystem = "opinion_system"
)
