// Package cost estimates API spend for LLM-backed enrichment calls.
package cost

import "strings"

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64
	Output float64
}

// Calculator computes estimated costs for API usage.
type Calculator struct {
	rates map[string]ModelRate
}

// NewCalculator creates a Calculator with the given per-model rates.
func NewCalculator(rates map[string]ModelRate) *Calculator {
	return &Calculator{rates: rates}
}

// DefaultRates returns published Anthropic pricing keyed by model family
// prefix. Lookup matches the longest prefix of the full model name.
func DefaultRates() map[string]ModelRate {
	return map[string]ModelRate{
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
		"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
		"claude-3-7-sonnet": {Input: 3.00, Output: 15.00},
		"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
		"claude-opus-4":     {Input: 15.00, Output: 75.00},
	}
}

var defaultCalculator = NewCalculator(DefaultRates())

// Default returns a shared calculator loaded with DefaultRates.
func Default() *Calculator {
	return defaultCalculator
}

// Claude returns the estimated USD cost of a call, or 0 when the model is
// not in the rate table.
func (c *Calculator) Claude(model string, inputTokens, outputTokens int64) float64 {
	rate, ok := c.lookup(model)
	if !ok {
		return 0
	}
	const mtok = 1_000_000
	return float64(inputTokens)/mtok*rate.Input + float64(outputTokens)/mtok*rate.Output
}

func (c *Calculator) lookup(model string) (ModelRate, bool) {
	if rate, ok := c.rates[model]; ok {
		return rate, true
	}
	var (
		best    ModelRate
		bestLen int
	)
	for prefix, rate := range c.rates {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = rate, len(prefix)
		}
	}
	return best, bestLen > 0
}
