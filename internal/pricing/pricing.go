// Package pricing estimates completion costs from a static per-model
// price table and accumulates usage across conversation rounds.
package pricing

// ModelPrice defines per-model pricing in dollars per million tokens.
type ModelPrice struct {
	// PromptPer1M is the cost per 1M prompt tokens.
	PromptPer1M float64 `json:"prompt_per_1m"`
	// CompletionPer1M is the cost per 1M completion tokens.
	CompletionPer1M float64 `json:"completion_per_1m"`
}

// Table maps model identifiers to prices. It is read-only after
// construction; construct one per process (or per test) and pass it by
// reference rather than sharing module state.
type Table map[string]ModelPrice

// Usage tracks token consumption and estimated cost for one or more rounds.
type Usage struct {
	// PromptTokens counts input tokens.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens counts output tokens.
	CompletionTokens int `json:"completion_tokens"`
	// EstimatedCost is the summed dollar estimate.
	EstimatedCost float64 `json:"estimated_cost"`
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.EstimatedCost += other.EstimatedCost
}

// EstimateCost computes the dollar cost for one round. Models absent from
// the table are billed as free rather than failing the round.
func (t Table) EstimateCost(model string, promptTokens int, completionTokens int) float64 {
	price, ok := t[model]
	if !ok {
		return 0
	}
	prompt := float64(promptTokens) / 1_000_000 * price.PromptPer1M
	completion := float64(completionTokens) / 1_000_000 * price.CompletionPer1M
	return prompt + completion
}

// DefaultTable returns pricing for the models the assistants ship with.
// Values mirror OpenRouter list prices at the time of writing.
func DefaultTable() Table {
	return Table{
		"openai/gpt-4o":                     {PromptPer1M: 2.5, CompletionPer1M: 10},
		"openai/gpt-4o-mini":                {PromptPer1M: 0.15, CompletionPer1M: 0.6},
		"anthropic/claude-3.5-sonnet":       {PromptPer1M: 3, CompletionPer1M: 15},
		"anthropic/claude-3.5-haiku":        {PromptPer1M: 0.8, CompletionPer1M: 4},
		"google/gemini-flash-1.5":           {PromptPer1M: 0.075, CompletionPer1M: 0.3},
		"meta-llama/llama-3.1-70b-instruct": {PromptPer1M: 0.3, CompletionPer1M: 0.4},
	}
}
