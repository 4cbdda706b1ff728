package assistant

import (
	"context"
	"strings"
)

// Guard phrases the completion backend requires verbatim in every system
// message before forwarding a request upstream. The check is literal
// string containment, so the exact wording matters.
const (
	// GuardScope pins the assistant to its documentation domain.
	GuardScope = "Answer only questions related to the documentation listed above."
	// GuardDecline fixes the refusal behavior for off-topic questions.
	GuardDecline = "If a question is outside that documentation, politely decline and say you can only help with these docs."
)

// GuardPhrases returns the literals the backend checks for.
func GuardPhrases() []string {
	return []string{GuardScope, GuardDecline}
}

// ContainsGuardPhrases reports whether text carries every guard phrase.
func ContainsGuardPhrases(text string) bool {
	for _, phrase := range GuardPhrases() {
		if !strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// Assistant is one documentation Q&A profile: a system prompt, a set of
// reference documentation URLs, a default model, and a tool registry.
type Assistant struct {
	// ID is the app identifier chats are keyed by.
	ID string
	// Name is the human-readable assistant name.
	Name string
	// Model is the default completion model.
	Model string
	// Prompt is the assistant-specific instruction text.
	Prompt string
	// DocURLs lists the documentation pages the assistant answers from.
	DocURLs []string
	// Tools is the capability registry for this assistant.
	Tools *Registry
}

// BuildSystemPrompt assembles the full system message: instructions,
// documentation list, detailed tool descriptions, and the guard phrases
// the backend enforces. Tool description fetches that fail degrade to
// inline error strings rather than aborting conversation setup.
func (a *Assistant) BuildSystemPrompt(ctx context.Context) string {
	var builder strings.Builder
	builder.WriteString(a.Prompt)
	builder.WriteString("\n")

	if len(a.DocURLs) > 0 {
		builder.WriteString("\nDocumentation:\n")
		for _, url := range a.DocURLs {
			builder.WriteString("- ")
			builder.WriteString(url)
			builder.WriteString("\n")
		}
	}

	if descriptions := a.Tools.DetailedDescriptions(ctx); descriptions != "" {
		builder.WriteString("\n# Tools\n")
		builder.WriteString(descriptions)
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(GuardScope)
	builder.WriteString("\n")
	builder.WriteString(GuardDecline)
	return builder.String()
}
