package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

const templatePlaceholder = "%s"

// PromptBuilder assembles the chat messages for one question: the system
// prompt, the retrieved context with the conversation so far, and the
// question itself.
type PromptBuilder struct {
	prompts         driven.PromptStore
	maxContextChars int
	memory          domain.MemorySettings
}

// NewPromptBuilder creates a prompt builder. maxContextChars bounds the
// retrieved text in runes; zero is unbounded.
func NewPromptBuilder(prompts driven.PromptStore, maxContextChars int, memory domain.MemorySettings) *PromptBuilder {
	return &PromptBuilder{
		prompts:         prompts,
		maxContextChars: maxContextChars,
		memory:          memory,
	}
}

// Build returns the messages for question given the retrieved results
// (in rank order) and the session history (oldest first).
func (b *PromptBuilder) Build(
	question string, results []domain.SearchResult, history []domain.Turn,
) ([]driven.ChatMessage, error) {
	system, err := b.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return nil, fmt.Errorf("load system prompt: %w", err)
	}
	contextTmpl, err := b.prompts.Load(driven.PromptAnswerContext)
	if err != nil {
		return nil, fmt.Errorf("load context prompt: %w", err)
	}

	var body strings.Builder
	body.WriteString(fillTemplate(contextTmpl, b.renderContext(results)))

	if turns := b.boundHistory(history); len(turns) > 0 {
		historyTmpl, err := b.prompts.Load(driven.PromptAnswerHistory)
		if err != nil {
			return nil, fmt.Errorf("load history prompt: %w", err)
		}
		body.WriteString("\n\n")
		body.WriteString(fillTemplate(historyTmpl, renderHistory(turns)))
	}

	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: body.String()},
		{Role: driven.RoleUser, Content: question},
	}, nil
}

// fillTemplate inserts value at the first %s of tmpl. Every other
// character, including a lone %, is literal. A template without a
// placeholder gets value appended.
func fillTemplate(tmpl, value string) string {
	if !strings.Contains(tmpl, templatePlaceholder) {
		return tmpl + "\n\n" + value
	}
	return strings.Replace(tmpl, templatePlaceholder, value, 1)
}

// CondensePrompt returns the prompt asking the model to rewrite question
// as a standalone question given the most recent turns. The include toggle
// does not apply here; only the turn limit does.
func (b *PromptBuilder) CondensePrompt(question string, history []domain.Turn) (string, error) {
	tmpl, err := b.prompts.Load(driven.PromptCondenseQuestion)
	if err != nil {
		return "", fmt.Errorf("load condense prompt: %w", err)
	}
	value := "Chat History:\n" + renderHistory(b.recentTurns(history)) + "\nFollow Up Input: " + question
	return fillTemplate(tmpl, value), nil
}

// boundHistory applies the include toggle and the turn limit.
func (b *PromptBuilder) boundHistory(history []domain.Turn) []domain.Turn {
	if !b.memory.IncludeHistory {
		return nil
	}
	return b.recentTurns(history)
}

func (b *PromptBuilder) recentTurns(history []domain.Turn) []domain.Turn {
	if b.memory.MaxTurns > 0 && len(history) > b.memory.MaxTurns {
		return history[len(history)-b.memory.MaxTurns:]
	}
	return history
}

// renderContext concatenates results in rank order until the character
// budget runs out. The chunk that crosses the budget is truncated.
func (b *PromptBuilder) renderContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "(no matching documentation was found)"
	}

	var sb strings.Builder
	remaining := b.maxContextChars
	for i, r := range results {
		content := r.Chunk.Content
		if b.maxContextChars > 0 {
			if remaining <= 0 {
				break
			}
			n := len([]rune(content))
			if n > remaining {
				content = truncateRunes(content, remaining)
				n = remaining
			}
			remaining -= n
		}

		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] Source: %s\n%s", i+1, r.Chunk.SourceURL, content)
	}
	return sb.String()
}

// renderHistory writes each turn verbatim as a Human/Assistant pair.
func renderHistory(turns []domain.Turn) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Human: %s\nAssistant: %s", t.Question, t.Answer)
	}
	return sb.String()
}
