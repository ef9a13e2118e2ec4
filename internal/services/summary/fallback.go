package summary

import (
	"fmt"

	"SignalForge/internal/domain/models"
)

// Fallback renders the deterministic summary used whenever LLM text is
// unavailable or rejected. Its output always passes ValidateSummary.
func Fallback(category models.Category, bias models.CategoryBias, overall models.Overall) string {
	if overall == "" {
		overall = models.Mixed
	}
	b := bias.Bias
	if b == "" {
		b = models.Neutral
	}
	return fmt.Sprintf("%s bias is %s with %d of %d assets bullish and %d bearish. Macro backdrop is %s.",
		category.Title(), b, bias.BullishCount, len(bias.Assets), bias.BearishCount, overall)
}
