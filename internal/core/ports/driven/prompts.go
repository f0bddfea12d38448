package driven

// PromptStore provides access to prompt templates.
// File-backed stores let users override the embedded defaults.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswerSystem is the system prompt for answering questions.
	// It has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerContext introduces the retrieved documentation.
	// It expects a single %s placeholder for the context text.
	PromptAnswerContext = "answer_context"

	// PromptAnswerHistory introduces the prior conversation.
	// It expects a single %s placeholder for the rendered turns.
	PromptAnswerHistory = "answer_history"

	// PromptCondenseQuestion asks the model to rewrite a follow-up question
	// as a standalone one. Its single %s receives the history and the
	// follow-up question.
	PromptCondenseQuestion = "condense_question"
)
