package nlsql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finsight/internal/conversation"
	"finsight/internal/llm"
	"finsight/internal/store"
)

// summaryRowLimit bounds how many rows the summary prompt carries.
const summaryRowLimit = 20

// Summarizer turns a result set into a short natural-language answer.
type Summarizer struct {
	client llm.Client
	logger *zap.Logger
}

// NewSummarizer creates a summary renderer.
func NewSummarizer(client llm.Client, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{client: client, logger: logger}
}

// Summarize answers the question from the rows, optionally weaving in a
// pre-computed calculation value.
func (s *Summarizer) Summarize(ctx context.Context, question string, rs *store.ResultSet, calcResult string, history []conversation.Turn) (string, error) {
	if rs.Count() == 0 {
		return "I couldn't find any transactions matching your criteria. " +
			"Please try adjusting your search filters or date range.", nil
	}

	rows := rs.Rows
	if len(rows) > summaryRowLimit {
		rows = rows[:summaryRowLimit]
	}
	sample, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze these query results and answer the user's question.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nResults (JSON):\n%s\n\nTotal rows: %d\n", question, sample, rs.Count())
	if calcResult != "" {
		fmt.Fprintf(&b, "\nAdditional Information: the calculation result is %s. Use this value naturally in your answer.\n",
			strings.Join(strings.Fields(calcResult), " "))
	}
	b.WriteString(`
Instructions:
- Answer only what was asked, nothing more
- Be brief and direct
- Format currency amounts with a dollar sign, two decimals, and thousands commas (e.g. $1,234.56)
- Remove the negative sign from amounts; say "spent" or "received" instead
- Do not explain the data or add interpretations

Examples:
Question: How much did I spend last week?
Response: You spent $1,234.56 last week.

Question: Compare my last month spending with this month?
Response: You spent $234.56 more this month than last month.
`)

	if len(history) > 0 {
		b.WriteString("\nPrevious conversation (oldest first):\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Question, truncate(turn.Answer, 200))
		}
	}

	b.WriteString("\nNow generate the appropriate response:")

	text, err := s.client.CompleteWithSystem(ctx,
		"You are a data analyst. Answer questions from query results with short, factual sentences.",
		b.String())
	if err != nil {
		return "", fmt.Errorf("summary call failed: %w", err)
	}

	s.logger.Debug("summary rendered", zap.String("question", question))
	return StripFences(text), nil
}
