// Package answer renders final results for the caller: a two-tier CSV
// export for record listings.
package answer

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"finsight/internal/store"
)

// Classification decides the output shape for a request.
type Classification int

const (
	// Summary renders an aggregate as natural-language text.
	Summary Classification = iota
	// Records renders enumerated rows as a tabular export.
	Records
)

// String returns the classification token.
func (c Classification) String() string {
	if c == Records {
		return "RECORDS"
	}
	return "SUMMARY"
}

// ParseClassification maps a classifier token onto a Classification.
// Anything that does not clearly ask for records defaults to Summary.
func ParseClassification(token string) Classification {
	if strings.Contains(strings.ToUpper(strings.TrimSpace(token)), "RECORD") {
		return Records
	}
	return Summary
}

// RecordsExport is the two-tier tabular rendering of a result set.
type RecordsExport struct {
	// Intro is the caller-facing lead-in text including the total count.
	Intro string
	// PreviewCSV holds at most the first previewLimit rows, input order.
	PreviewCSV string
	// FullCSV holds every row.
	FullCSV string
	// RowCount is the total number of rows in the result set.
	RowCount int
	// PreviewCount is the number of rows included in the preview.
	PreviewCount int
	// ExportID identifies the full export for download handling.
	ExportID string
}

// FormatRecords builds the preview plus full export for a result set.
// Truncation is deterministic: the first previewLimit rows in store order.
// The count beyond the preview is always reported, never silently dropped.
func FormatRecords(rs *store.ResultSet, previewLimit int) (*RecordsExport, error) {
	if previewLimit <= 0 {
		previewLimit = 100
	}

	previewRows := rs.Rows
	if len(previewRows) > previewLimit {
		previewRows = previewRows[:previewLimit]
	}

	previewCSV, err := renderCSV(rs.Columns, previewRows)
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}
	fullCSV, err := renderCSV(rs.Columns, rs.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	intro := fmt.Sprintf("Found %d transaction(s).", rs.Count())
	if rs.Count() > len(previewRows) {
		intro = fmt.Sprintf("Found %d transaction(s). Showing the first %d; the download contains all rows.",
			rs.Count(), len(previewRows))
	}

	return &RecordsExport{
		Intro:        intro,
		PreviewCSV:   previewCSV,
		FullCSV:      fullCSV,
		RowCount:     rs.Count(),
		PreviewCount: len(previewRows),
		ExportID:     uuid.NewString(),
	}, nil
}

func renderCSV(columns []string, rows []store.Row) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(columns); err != nil {
		return "", err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatCell(row[col])
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return b.String(), w.Error()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.2f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
