package nlsql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"finsight/internal/agent"
	"finsight/internal/conversation"
	"finsight/internal/llm"
)

const generatorSystemPrompt = "You are a SQL expert. Generate only SQL queries " +
	"without any explanation or markdown formatting."

// Generator produces candidate queries from natural-language questions.
type Generator struct {
	client llm.Client
	logger *zap.Logger
}

// NewGenerator creates a query generator.
func NewGenerator(client llm.Client, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, logger: logger}
}

// Generate builds the generation prompt and post-processes the model's
// answer. The filter predicates are injected deterministically if the
// model omitted them, so every candidate leaving this function references
// both mandatory filters.
func (g *Generator) Generate(ctx context.Context, question, schemaDesc string, fc agent.FilterContext, history []conversation.Turn) (string, error) {
	prompt := buildGeneratePrompt(question, schemaDesc, fc, history)

	raw, err := g.client.CompleteWithSystem(ctx, generatorSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generation call failed: %w", err)
	}

	query := EnsureFilters(StripFences(raw), fc)
	g.logger.Debug("query generated",
		zap.String("question", question),
		zap.String("query", query))
	return query, nil
}

// buildGeneratePrompt carries the schema, the reference-date anchoring
// rules, the amount-sign rules, a few worked examples, and the bounded
// history most-recent-last.
func buildGeneratePrompt(question, schemaDesc string, fc agent.FilterContext, history []conversation.Turn) string {
	refDate := fc.ReferenceDate.Format("2006-01-02")
	dateRef := fmt.Sprintf("'%s'", refDate)

	var b strings.Builder
	b.WriteString("Given a database schema and a natural language question, generate a SQL query to answer it.\n\n")
	b.WriteString("Database Schema:\n")
	b.WriteString(schemaDesc)
	b.WriteString("\n\nImportant Notes:\n")
	fmt.Fprintf(&b, "- Use ONLY SQLite date/time functions: DATE(), datetime(), strftime()\n")
	fmt.Fprintf(&b, "- Current date reference: %s. Anchor EVERY relative date phrase (\"last week\", \"last month\") to this date, never to the real clock.\n", refDate)
	fmt.Fprintf(&b, "- For \"today\": DATE(%s)\n", dateRef)
	fmt.Fprintf(&b, "- For \"yesterday\": DATE(%s, '-1 day')\n", dateRef)
	fmt.Fprintf(&b, "- For \"last 7 days\": datetime(%s, '-7 days') to datetime(%s)\n", dateRef, dateRef)
	fmt.Fprintf(&b, "- For \"last N months\": DATE(%s, '-N months')\n", dateRef)
	b.WriteString("- transaction_date is stored as DATETIME ('YYYY-MM-DD HH:MM:SS'); use DATE(transaction_date) when comparing dates only\n")
	b.WriteString("- Use LOWER() with LIKE for case-insensitive merchant/description/category matching\n")
	fmt.Fprintf(&b, "- MANDATORY filter by bank_id: bank_id IN (%s)\n", fc.BankIDList())
	fmt.Fprintf(&b, "- MANDATORY filter by account_id: account_id IN (%s)\n", fc.AccountIDList())
	b.WriteString("- Return ONLY the SQL query, no markdown, no explanations\n")
	b.WriteString("\nAmount Rules:\n")
	b.WriteString("- Money spent / debited is NEGATIVE: use SUM(amount) with amount < 0\n")
	b.WriteString("- Money received / credited is POSITIVE: use SUM(amount) with amount > 0\n")

	b.WriteString("\nExamples:\n")
	fmt.Fprintf(&b, `
Question: What is the total amount I spent in the last 7 days?
SQL: SELECT SUM(amount) FROM transactions
    WHERE amount < 0
    AND transaction_date BETWEEN datetime(%[1]s, '-7 days') AND datetime(%[1]s)
    AND bank_id IN (%[2]s) AND account_id IN (%[3]s);

Question: Show all Amazon transactions from last month.
SQL: SELECT * FROM transactions
    WHERE LOWER(merchant) LIKE '%%amazon%%'
    AND transaction_date >= DATE(%[1]s, '-1 month')
    AND DATE(transaction_date) < DATE(%[1]s)
    AND bank_id IN (%[2]s) AND account_id IN (%[3]s)
    ORDER BY transaction_date;

Question: How much money did I receive from amazon last month?
SQL: SELECT SUM(amount) FROM transactions
    WHERE amount > 0
    AND LOWER(merchant) LIKE '%%amazon%%'
    AND transaction_date >= DATE(%[1]s, '-1 month')
    AND DATE(transaction_date) < DATE(%[1]s)
    AND bank_id IN (%[2]s) AND account_id IN (%[3]s);

Question: Which merchant am I spending the most money on?
SQL: SELECT merchant, SUM(amount) AS total_spent FROM transactions
    WHERE amount < 0
    AND bank_id IN (%[2]s) AND account_id IN (%[3]s)
    GROUP BY merchant
    ORDER BY total_spent
    LIMIT 1;
`, dateRef, fc.BankIDList(), fc.AccountIDList())

	if len(history) > 0 {
		b.WriteString("\nPrevious conversation (oldest first), for follow-up questions:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Question, truncate(turn.Answer, 200))
		}
	}

	b.WriteString("\nNow generate ONLY the SQL query for the following question, nothing else:\n\n")
	b.WriteString("Question: " + question)
	return b.String()
}

var whereClause = regexp.MustCompile(`(?i)\bWHERE\b`)

// EnsureFilters appends the mandatory inclusion predicates when the model
// left them out. The security validator still verifies the final text; this
// keeps well-formed candidates from failing on a forgotten filter.
func EnsureFilters(query string, fc agent.FilterContext) string {
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))

	if !strings.Contains(strings.ToLower(query), "bank_id") {
		query = appendPredicate(query, fmt.Sprintf("bank_id IN (%s)", fc.BankIDList()))
	}
	if !strings.Contains(strings.ToLower(query), "account_id") {
		query = appendPredicate(query, fmt.Sprintf("account_id IN (%s)", fc.AccountIDList()))
	}
	return query
}

func appendPredicate(query, predicate string) string {
	// Trailing clauses (GROUP BY / ORDER BY / LIMIT) must stay after the
	// predicate.
	tailStart := len(query)
	for _, kw := range []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bGROUP\s+BY\b`),
		regexp.MustCompile(`(?i)\bORDER\s+BY\b`),
		regexp.MustCompile(`(?i)\bLIMIT\b`),
	} {
		if loc := kw.FindStringIndex(query); loc != nil && loc[0] < tailStart {
			tailStart = loc[0]
		}
	}

	head := strings.TrimSpace(query[:tailStart])
	tail := query[tailStart:]

	joiner := " WHERE "
	if whereClause.MatchString(head) {
		joiner = " AND "
	}
	if tail == "" {
		return head + joiner + predicate
	}
	return head + joiner + predicate + " " + tail
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
