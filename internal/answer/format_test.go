package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/store"
)

func makeResultSet(rows int) *store.ResultSet {
	rs := &store.ResultSet{Columns: []string{"transaction_date", "merchant", "amount"}}
	for i := 0; i < rows; i++ {
		rs.Rows = append(rs.Rows, store.Row{
			"transaction_date": "2025-08-01 09:30:00",
			"merchant":         "Uber",
			"amount":           -18.4,
		})
	}
	return rs
}

func TestFormatRecords_Preview(t *testing.T) {
	t.Run("large result is truncated to the limit", func(t *testing.T) {
		export, err := FormatRecords(makeResultSet(250), 100)
		require.NoError(t, err)

		assert.Equal(t, 250, export.RowCount)
		assert.Equal(t, 100, export.PreviewCount)
		// Header plus 100 data rows.
		assert.Equal(t, 101, strings.Count(export.PreviewCSV, "\n"))
		assert.Equal(t, 251, strings.Count(export.FullCSV, "\n"))
		assert.Contains(t, export.Intro, "250")
		assert.Contains(t, export.Intro, "first 100")
		assert.NotEmpty(t, export.ExportID)
	})

	t.Run("small result is never padded", func(t *testing.T) {
		export, err := FormatRecords(makeResultSet(7), 100)
		require.NoError(t, err)

		assert.Equal(t, 7, export.RowCount)
		assert.Equal(t, 7, export.PreviewCount)
		assert.Equal(t, export.FullCSV, export.PreviewCSV)
		assert.NotContains(t, export.Intro, "first")
	})

	t.Run("empty result still renders a header", func(t *testing.T) {
		export, err := FormatRecords(makeResultSet(0), 100)
		require.NoError(t, err)

		assert.Equal(t, 0, export.RowCount)
		assert.Equal(t, "transaction_date,merchant,amount\n", export.PreviewCSV)
	})

	t.Run("zero limit falls back to the default", func(t *testing.T) {
		export, err := FormatRecords(makeResultSet(150), 0)
		require.NoError(t, err)
		assert.Equal(t, 100, export.PreviewCount)
	})

	t.Run("amounts render with two decimals", func(t *testing.T) {
		export, err := FormatRecords(makeResultSet(1), 100)
		require.NoError(t, err)
		assert.Contains(t, export.PreviewCSV, "-18.40")
	})
}

func TestParseClassification(t *testing.T) {
	assert.Equal(t, Records, ParseClassification("RECORDS"))
	assert.Equal(t, Records, ParseClassification("  records\n"))
	assert.Equal(t, Records, ParseClassification("The answer is RECORDS."))
	assert.Equal(t, Summary, ParseClassification("SUMMARY"))
	assert.Equal(t, Summary, ParseClassification(""))
	// Anything unclear defaults to the aggregate shape.
	assert.Equal(t, Summary, ParseClassification("not sure"))
}
