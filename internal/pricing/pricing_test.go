package pricing

import (
	"math"
	"testing"

	"github.com/docpal/docpal/internal/testutil"
)

// requireCloseTo checks float results within a dollar-fraction tolerance.
func requireCloseTo(t *testing.T, got float64, want float64, message string) {
	t.Helper()
	testutil.RequireTrue(t, math.Abs(got-want) < 1e-9, message)
}

func TestEstimateCostKnownModel(t *testing.T) {
	table := Table{
		"openai/gpt-4o-mini": {PromptPer1M: 0.15, CompletionPer1M: 0.6},
	}

	requireCloseTo(t, table.EstimateCost("openai/gpt-4o-mini", 1_000_000, 1_000_000), 0.75, "one million tokens each way")
	requireCloseTo(t, table.EstimateCost("openai/gpt-4o-mini", 2_000_000, 500_000), 0.6, "mixed token counts")
}

func TestEstimateCostUnknownModelIsFree(t *testing.T) {
	table := DefaultTable()
	testutil.RequireEqual(t, table.EstimateCost("example/unlisted-model", 100_000, 50_000), 0.0, "unlisted models cost nothing")
}

func TestEstimateCostZeroTokens(t *testing.T) {
	table := DefaultTable()
	testutil.RequireEqual(t, table.EstimateCost("openai/gpt-4o", 0, 0), 0.0, "zero tokens cost nothing")
}

func TestUsageAdd(t *testing.T) {
	total := Usage{PromptTokens: 10, CompletionTokens: 5, EstimatedCost: 0.25}
	total.Add(Usage{PromptTokens: 7, CompletionTokens: 3, EstimatedCost: 0.5})

	testutil.RequireEqual(t, total.PromptTokens, 17, "prompt tokens")
	testutil.RequireEqual(t, total.CompletionTokens, 8, "completion tokens")
	requireCloseTo(t, total.EstimatedCost, 0.75, "estimated cost")
}
