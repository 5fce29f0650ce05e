package nlsql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finsight/internal/answer"
	"finsight/internal/llm"
)

// Classifier decides whether the user wants enumerated records or an
// aggregate summary. Classifier faults default to Summary: free text
// degrades gracefully, a misclassified record dump does not.
type Classifier struct {
	client llm.Client
	logger *zap.Logger
}

// NewClassifier creates a result classifier.
func NewClassifier(client llm.Client, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, logger: logger}
}

// Classify asks the model for a RECORDS/SUMMARY token.
func (c *Classifier) Classify(ctx context.Context, question string) answer.Classification {
	prompt := fmt.Sprintf(`Classify the following question:

Question: %s

Determine if this question is asking to:
- SHOW/LIST/DISPLAY transaction records (e.g. "show me transactions", "list all purchases")
- OR asking for a SUMMARY/TOTAL/CALCULATION (e.g. "how much", "total spending")

Respond with ONLY one word: either "RECORDS" or "SUMMARY".`, question)

	raw, err := c.client.CompleteWithSystem(ctx,
		"You classify questions as asking for transaction records or for a summary.",
		prompt)
	if err != nil {
		c.logger.Warn("classifier unavailable, defaulting to summary", zap.Error(err))
		return answer.Summary
	}
	return answer.ParseClassification(StripFences(raw))
}
