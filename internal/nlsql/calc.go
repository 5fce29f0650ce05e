package nlsql

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finsight/internal/llm"
)

// calculationKeywords triggers the auxiliary numeric step. Pure keyword
// heuristic; false positives only cost one extra model call.
var calculationKeywords = []string{
	"percentage", "percent", "%", "average", "avg", "mean",
	"ratio", "difference", "more than", "less than", "calculate",
	"compare", "comparison", "increase", "decrease", "change",
	"growth", "trend", "per", "rate",
}

// Calculator performs arithmetic over query results for comparison and
// percentage questions.
type Calculator struct {
	client llm.Client
	logger *zap.Logger
}

// NewCalculator creates a calculator.
func NewCalculator(client llm.Client, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{client: client, logger: logger}
}

// Needed reports whether the question asks for a derived numeric value.
func (c *Calculator) Needed(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range calculationKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Calculate extracts the relevant numbers from the results and computes
// the requested value.
func (c *Calculator) Calculate(ctx context.Context, question, resultsJSON string) (string, error) {
	prompt := fmt.Sprintf(`Question: %s

Data from query results: %s

Based on the above data and question, perform the requested mathematical calculation.
Extract the relevant numbers from the data and calculate the answer.
Return only the numeric result with appropriate units (e.g. $123.45, 25%%), no explanations.`,
		question, truncate(resultsJSON, 500))

	result, err := c.client.CompleteWithSystem(ctx,
		"You are a calculator. Perform mathematical calculations accurately.",
		prompt)
	if err != nil {
		return "", fmt.Errorf("calculation call failed: %w", err)
	}

	c.logger.Debug("calculation performed", zap.String("result", result))
	return StripFences(result), nil
}
