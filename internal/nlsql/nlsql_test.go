package nlsql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/agent"
	"finsight/internal/answer"
	"finsight/internal/conversation"
	"finsight/internal/store"
)

// fakeClient returns canned completions, or an error on every call.
type fakeClient struct {
	reply string
	err   error
	calls int

	lastSystem string
	lastPrompt string
}

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	c.lastSystem = systemPrompt
	c.lastPrompt = userPrompt
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func testScope() agent.FilterContext {
	return agent.FilterContext{
		BankIDs:       []int64{1, 2},
		AccountIDs:    []int64{101, 102},
		ReferenceDate: time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \nSELECT 1\n  ", "SELECT 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFences(tc.in))
		})
	}
}

func TestEnsureFilters(t *testing.T) {
	fc := testScope()

	t.Run("both filters present is untouched", func(t *testing.T) {
		q := "SELECT * FROM transactions WHERE bank_id IN (1) AND account_id IN (101)"
		assert.Equal(t, q, EnsureFilters(q, fc))
	})

	t.Run("missing both gets a WHERE clause", func(t *testing.T) {
		got := EnsureFilters("SELECT * FROM transactions", fc)
		assert.Equal(t, "SELECT * FROM transactions WHERE bank_id IN (1,2) AND account_id IN (101,102)", got)
	})

	t.Run("existing WHERE gets AND", func(t *testing.T) {
		got := EnsureFilters("SELECT * FROM transactions WHERE amount < 0", fc)
		assert.Contains(t, got, "WHERE amount < 0 AND bank_id IN (1,2)")
		assert.Contains(t, got, "AND account_id IN (101,102)")
	})

	t.Run("predicates land before trailing clauses", func(t *testing.T) {
		got := EnsureFilters("SELECT merchant, SUM(amount) FROM transactions GROUP BY merchant ORDER BY 2 LIMIT 5", fc)
		assert.Equal(t,
			"SELECT merchant, SUM(amount) FROM transactions WHERE bank_id IN (1,2) AND account_id IN (101,102) GROUP BY merchant ORDER BY 2 LIMIT 5",
			got)
	})

	t.Run("order by only", func(t *testing.T) {
		got := EnsureFilters("SELECT * FROM transactions ORDER BY transaction_date", fc)
		assert.Equal(t,
			"SELECT * FROM transactions WHERE bank_id IN (1,2) AND account_id IN (101,102) ORDER BY transaction_date",
			got)
	})

	t.Run("trailing semicolon is dropped", func(t *testing.T) {
		got := EnsureFilters("SELECT * FROM transactions;", fc)
		assert.NotContains(t, got, ";")
	})

	t.Run("only bank filter missing", func(t *testing.T) {
		got := EnsureFilters("SELECT * FROM transactions WHERE account_id IN (101)", fc)
		assert.Contains(t, got, "account_id IN (101)")
		assert.Contains(t, got, "bank_id IN (1,2)")
	})
}

func TestGenerator(t *testing.T) {
	t.Run("strips fences and injects filters", func(t *testing.T) {
		client := &fakeClient{reply: "```sql\nSELECT SUM(amount) FROM transactions WHERE amount < 0\n```"}
		g := NewGenerator(client, nil)

		got, err := g.Generate(context.Background(), "how much did I spend?", "Table: transactions", testScope(), nil)
		require.NoError(t, err)
		assert.Contains(t, got, "bank_id IN (1,2)")
		assert.Contains(t, got, "account_id IN (101,102)")
		assert.NotContains(t, got, "```")
	})

	t.Run("prompt carries the reference date", func(t *testing.T) {
		client := &fakeClient{reply: "SELECT 1"}
		g := NewGenerator(client, nil)

		_, err := g.Generate(context.Background(), "spending today?", "Table: transactions", testScope(), nil)
		require.NoError(t, err)
		assert.Contains(t, client.lastPrompt, "2025-08-15")
		assert.Contains(t, client.lastPrompt, "bank_id IN (1,2)")
	})

	t.Run("prompt carries the history oldest first", func(t *testing.T) {
		client := &fakeClient{reply: "SELECT 1"}
		g := NewGenerator(client, nil)

		history := []conversation.Turn{
			{Question: "what did I spend on uber?", Answer: "You spent $55.20."},
			{Question: "and last month?", Answer: "You spent $80.10."},
		}
		_, err := g.Generate(context.Background(), "what about amazon?", "Table: transactions", testScope(), history)
		require.NoError(t, err)
		assert.Less(t,
			strings.Index(client.lastPrompt, "what did I spend on uber?"),
			strings.Index(client.lastPrompt, "and last month?"))
	})

	t.Run("model error propagates", func(t *testing.T) {
		client := &fakeClient{err: errors.New("rate limited")}
		g := NewGenerator(client, nil)

		_, err := g.Generate(context.Background(), "anything", "schema", testScope(), nil)
		assert.Error(t, err)
	})
}

func TestRefiner(t *testing.T) {
	client := &fakeClient{reply: "```sql\nSELECT merchant FROM transactions WHERE amount < 0\n```"}
	r := NewRefiner(client, nil)

	got, err := r.Refine(context.Background(),
		"SELECT merchnt FROM transactions", "no such column: merchnt",
		"rides by merchant", "Table: transactions", testScope())
	require.NoError(t, err)

	// Refined candidates get the filter treatment too.
	assert.Contains(t, got, "bank_id IN (1,2)")
	assert.Contains(t, client.lastPrompt, "no such column: merchnt")
	assert.Contains(t, client.lastPrompt, "SELECT merchnt FROM transactions")
}

func TestGate(t *testing.T) {
	t.Run("yes is valid", func(t *testing.T) {
		g := NewGate(&fakeClient{reply: "YES"}, nil)
		v := g.Check(context.Background(), "how much did I spend?")
		assert.True(t, v.Valid)
		assert.Empty(t, v.Guidance)
	})

	t.Run("no is rejected with guidance", func(t *testing.T) {
		g := NewGate(&fakeClient{reply: "NO"}, nil)
		v := g.Check(context.Background(), "what's the capital of France?")
		assert.False(t, v.Valid)
		assert.Equal(t, GuidanceMessage, v.Guidance)
	})

	t.Run("case and whitespace are tolerated", func(t *testing.T) {
		g := NewGate(&fakeClient{reply: "  no\n"}, nil)
		v := g.Check(context.Background(), "tell me a joke")
		assert.False(t, v.Valid)
	})

	t.Run("gate fault fails open", func(t *testing.T) {
		g := NewGate(&fakeClient{err: errors.New("connection refused")}, nil)
		v := g.Check(context.Background(), "how much did I spend?")
		assert.True(t, v.Valid)
	})

	t.Run("malformed reply fails open", func(t *testing.T) {
		g := NewGate(&fakeClient{reply: "I think this might be related"}, nil)
		v := g.Check(context.Background(), "how much did I spend?")
		assert.True(t, v.Valid)
	})
}

func TestClassifier(t *testing.T) {
	t.Run("records token", func(t *testing.T) {
		c := NewClassifier(&fakeClient{reply: "RECORDS"}, nil)
		assert.Equal(t, answer.Records, c.Classify(context.Background(), "show me my transactions"))
	})

	t.Run("summary token", func(t *testing.T) {
		c := NewClassifier(&fakeClient{reply: "SUMMARY"}, nil)
		assert.Equal(t, answer.Summary, c.Classify(context.Background(), "how much did I spend?"))
	})

	t.Run("fault defaults to summary", func(t *testing.T) {
		c := NewClassifier(&fakeClient{err: errors.New("timeout")}, nil)
		assert.Equal(t, answer.Summary, c.Classify(context.Background(), "show me my transactions"))
	})
}

func TestCalculator(t *testing.T) {
	c := NewCalculator(&fakeClient{reply: "$42.00"}, nil)

	t.Run("needed keywords", func(t *testing.T) {
		assert.True(t, c.Needed("what percentage went to groceries?"))
		assert.True(t, c.Needed("compare this month to last month"))
		assert.True(t, c.Needed("What is my AVERAGE uber fare?"))
		assert.False(t, c.Needed("show me my transactions"))
		assert.False(t, c.Needed("how much did I spend yesterday?"))
	})

	t.Run("calculate strips fences", func(t *testing.T) {
		c := NewCalculator(&fakeClient{reply: "```\n$42.00\n```"}, nil)
		got, err := c.Calculate(context.Background(), "average fare?", `{"count": 3}`)
		require.NoError(t, err)
		assert.Equal(t, "$42.00", got)
	})
}

func TestSummarizer(t *testing.T) {
	t.Run("empty result set skips the model", func(t *testing.T) {
		client := &fakeClient{reply: "should not be used"}
		s := NewSummarizer(client, nil)

		text, err := s.Summarize(context.Background(), "spending on yachts?", &store.ResultSet{}, "", nil)
		require.NoError(t, err)
		assert.Contains(t, text, "couldn't find any transactions")
		assert.Equal(t, 0, client.calls)
	})

	t.Run("calculation result is woven into the prompt", func(t *testing.T) {
		client := &fakeClient{reply: "You spent 12% more."}
		s := NewSummarizer(client, nil)

		rs := &store.ResultSet{
			Columns: []string{"total"},
			Rows:    []store.Row{{"total": -512.33}},
		}
		text, err := s.Summarize(context.Background(), "percentage change?", rs, "12%", nil)
		require.NoError(t, err)
		assert.Equal(t, "You spent 12% more.", text)
		assert.Contains(t, client.lastPrompt, "12%")
		assert.Contains(t, client.lastPrompt, "Total rows: 1")
	})

	t.Run("model fault propagates", func(t *testing.T) {
		s := NewSummarizer(&fakeClient{err: errors.New("unavailable")}, nil)
		rs := &store.ResultSet{Columns: []string{"x"}, Rows: []store.Row{{"x": 1}}}
		_, err := s.Summarize(context.Background(), "q", rs, "", nil)
		assert.Error(t, err)
	})
}
