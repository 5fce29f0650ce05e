package nlsql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finsight/internal/agent"
	"finsight/internal/llm"
)

const refinerSystemPrompt = "You are a SQL expert. Fix SQL errors by refining queries."

// Refiner produces a corrected candidate from a failed query and the
// store's diagnostic text. The refined text may differ arbitrarily from
// the original; the mandatory filter invariant is re-applied regardless.
type Refiner struct {
	client llm.Client
	logger *zap.Logger
}

// NewRefiner creates a query refiner.
func NewRefiner(client llm.Client, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{client: client, logger: logger}
}

// Refine asks the model to repair a failed query.
func (r *Refiner) Refine(ctx context.Context, failedQuery, errorText, question, schemaDesc string, fc agent.FilterContext) (string, error) {
	prompt := fmt.Sprintf(`A SQL query failed with an error. Please fix it.

Original Question: %s

Original Query:
%s

Error Message:
%s

Database Schema:
%s

Mandatory constraints:
- The corrected query must filter by bank_id IN (%s) AND account_id IN (%s)
- It must remain a single read-only SELECT statement

Please provide a corrected SQL query. Return ONLY the SQL query, no explanations, no markdown.

Corrected Query:`, question, failedQuery, errorText, schemaDesc, fc.BankIDList(), fc.AccountIDList())

	raw, err := r.client.CompleteWithSystem(ctx, refinerSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("refinement call failed: %w", err)
	}

	query := EnsureFilters(StripFences(raw), fc)
	r.logger.Debug("query refined",
		zap.String("error", errorText),
		zap.String("query", query))
	return query, nil
}
