package nlsql

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finsight/internal/agent"
	"finsight/internal/llm"
)

// GuidanceMessage is the fixed-shape reply for out-of-scope questions.
const GuidanceMessage = `I can only answer questions about your bank transactions and financial data.

I can help you with questions about:
- Spending amounts and totals (e.g. "How much did I spend last week?")
- Transaction history (e.g. "Show me all Amazon transactions")
- Category or merchant-based queries (e.g. "What did I spend on groceries?")
- Date-based queries (e.g. "Transactions from last month")
- Payment and financial activity analysis

Please ask a question related to your bank transactions.`

// Gate classifies whether a question is about transaction data. Gate
// faults fail open: the cost of a false positive is one wasted downstream
// step, not a safety risk, so irrelevance never blocks on an outage.
type Gate struct {
	client llm.Client
	logger *zap.Logger
}

// NewGate creates a relevance gate.
func NewGate(client llm.Client, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{client: client, logger: logger}
}

// Check asks the model for a YES/NO relevance call.
func (g *Gate) Check(ctx context.Context, question string) agent.GateVerdict {
	prompt := fmt.Sprintf(`Determine if the following question is related to bank transactions, financial data, spending, or payment history.

Question: %s

This system can ONLY answer questions about:
- Bank transaction history
- Spending amounts and patterns
- Payment records
- Financial transactions (deposits, withdrawals, purchases)
- Merchant or category based queries
- Account balances and activity
- Date-based transaction queries

It CANNOT answer general-knowledge or non-financial questions.

Respond with ONLY "YES" if the question is transaction-related, or "NO" if it is not. No explanation.`, question)

	raw, err := g.client.CompleteWithSystem(ctx,
		"You determine whether questions are about bank transactions and financial data.",
		prompt)
	if err != nil {
		g.logger.Warn("relevance gate unavailable, failing open", zap.Error(err))
		return agent.GateVerdict{Valid: true}
	}

	token := strings.ToUpper(strings.TrimSpace(StripFences(raw)))
	if strings.HasPrefix(token, "NO") {
		return agent.GateVerdict{Valid: false, Guidance: GuidanceMessage}
	}
	// Malformed replies fail open too.
	return agent.GateVerdict{Valid: true}
}
