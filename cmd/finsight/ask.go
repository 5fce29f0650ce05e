package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finsight/internal/agent"
)

var (
	exportDir string
	showLog   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Long: `Ask answers one natural-language question about the transactions in
scope and exits. The scope comes from --banks and --accounts; relative
dates ("last month", "this week") resolve against --date.

Examples:
  finsight ask --banks 1 --accounts 101,102 "how much did I spend on groceries last month?"
  finsight ask --banks 1,2 --accounts 101,201 --date 2025-08-15 "show my uber rides"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question is empty")
		}

		fc, err := filterContextFromFlags()
		if err != nil {
			return err
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		resp, err := eng.orchestrator.Process(cmd.Context(), question, fc)
		if err != nil {
			return renderProcessError(err)
		}

		return printResponse(cmd, resp)
	},
}

func init() {
	askCmd.Flags().StringVar(&exportDir, "export-dir", ".", "directory for full CSV exports")
	askCmd.Flags().BoolVar(&showLog, "show-log", false, "print the per-step execution log after the answer")
}

// printResponse renders a terminal response for the one-shot command.
// Record sets print a preview and write the full export next to it.
func printResponse(cmd *cobra.Command, resp *agent.Response) error {
	switch resp.Kind {
	case agent.ResponseRecords:
		fmt.Fprintln(cmd.OutOrStdout(), resp.Records.Intro)
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), resp.Records.PreviewCSV)
		path, err := writeExport(resp)
		if err != nil {
			logger.Warn("failed to write export file", zap.Error(err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nFull export (%d rows): %s\n", resp.Records.RowCount, path)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), resp.Answer())
	}
	if showLog {
		fmt.Fprint(cmd.OutOrStdout(), renderExecutionLog(resp.Log))
	}
	return nil
}

// renderExecutionLog flattens the per-step diagnostics for --show-log.
func renderExecutionLog(entries []agent.LogEntry) string {
	var b strings.Builder
	b.WriteString("\nExecution log:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s  %-15s %s\n", e.Timestamp.Format("15:04:05"), e.Step, e.Outcome)
	}
	return b.String()
}

func writeExport(resp *agent.Response) (string, error) {
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/transactions-%s.csv", strings.TrimRight(exportDir, "/"), resp.Records.ExportID)
	if err := os.WriteFile(path, []byte(resp.Records.FullCSV), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// renderProcessError keeps internal failures out of the user's face while
// still signalling a non-zero exit.
func renderProcessError(err error) error {
	switch {
	case errors.Is(err, agent.ErrTimeout):
		return fmt.Errorf("the request took too long; try a narrower question")
	case errors.Is(err, agent.ErrUpstreamUnavailable):
		return fmt.Errorf("the assistant is temporarily unavailable; try again in a moment")
	default:
		return err
	}
}
