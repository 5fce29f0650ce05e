package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/agent"
)

func sampleLog() []agent.LogEntry {
	at := time.Date(2025, 8, 15, 9, 30, 0, 0, time.UTC)
	return []agent.LogEntry{
		{Step: "relevance_gate", Input: "how much on uber?", Outcome: "valid", Timestamp: at},
		{Step: "generating", Input: "how much on uber?", Outcome: "SELECT ...", Timestamp: at},
		{Step: "executing", Input: "SELECT ...", Outcome: "cached: 3 rows", Timestamp: at.Add(time.Second)},
	}
}

func TestRenderExecutionLog(t *testing.T) {
	out := renderExecutionLog(sampleLog())

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Execution log:", lines[1])
	assert.Contains(t, lines[2], "09:30:00")
	assert.Contains(t, lines[2], "relevance_gate")
	assert.Contains(t, lines[2], "valid")
	assert.Contains(t, lines[4], "cached: 3 rows")
}

func TestPrintResponse_ShowLog(t *testing.T) {
	resp := &agent.Response{
		Kind:    agent.ResponseSummary,
		Message: "You spent $55.20 on rides.",
		Log:     sampleLog(),
	}
	cmd := &cobra.Command{}

	run := func(enabled bool) string {
		prev := showLog
		showLog = enabled
		defer func() { showLog = prev }()

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		require.NoError(t, printResponse(cmd, resp))
		return buf.String()
	}

	t.Run("off by default", func(t *testing.T) {
		out := run(false)
		assert.Contains(t, out, "You spent $55.20 on rides.")
		assert.NotContains(t, out, "Execution log:")
	})

	t.Run("prints each step when enabled", func(t *testing.T) {
		out := run(true)
		assert.Contains(t, out, "You spent $55.20 on rides.")
		assert.Contains(t, out, "Execution log:")
		assert.Contains(t, out, "executing")
	})
}
