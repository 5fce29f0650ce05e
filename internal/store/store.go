// Package store provides SQLite-backed access to the transactions table.
// The store executes exactly the text it is given; safety checks happen
// upstream in the guard package.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// ResultSet holds query results in store order. The engine never re-sorts.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Count returns the number of rows.
func (rs *ResultSet) Count() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Store wraps the SQLite transactions database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// Open opens (creating directories as needed) the SQLite database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database: %w", err)
	}

	return &Store{db: db, dbPath: path, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Query executes one read-only statement and returns all rows in store
// order. Any store-level failure is returned verbatim so that the refiner
// can see the diagnostic text.
func (s *Store) Query(ctx context.Context, queryText string) (*ResultSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, queryText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("query executed",
		zap.String("query", queryText),
		zap.Int("rows", rs.Count()))
	return rs, nil
}

// SchemaDescription renders the transactions table schema plus a few sample
// rows as text for the generation prompt.
func (s *Store) SchemaDescription(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(transactions)")
	if err != nil {
		return "", fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	b.WriteString("Table: transactions\nColumns:\n")

	count := 0
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return "", fmt.Errorf("failed to scan table info: %w", err)
		}
		fmt.Fprintf(&b, "  - %s (%s)\n", name, colType)
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if count == 0 {
		return "", fmt.Errorf("transactions table not found; run the seed command first")
	}

	sample, err := s.Query(ctx, "SELECT * FROM transactions LIMIT 3")
	if err != nil {
		return "", fmt.Errorf("failed to read sample rows: %w", err)
	}

	b.WriteString("\nSample data:\n")
	for _, row := range sample.Rows {
		parts := make([]string, 0, len(sample.Columns))
		for _, col := range sample.Columns {
			parts = append(parts, fmt.Sprintf("%s=%v", col, row[col]))
		}
		b.WriteString("  " + strings.Join(parts, ", ") + "\n")
	}

	return b.String(), nil
}

// BankIDs lists distinct bank IDs present in the store.
func (s *Store) BankIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "SELECT DISTINCT bank_id FROM transactions ORDER BY bank_id")
}

// AccountIDs lists distinct account IDs belonging to the given banks.
func (s *Store) AccountIDs(ctx context.Context, bankIDs []int64) ([]int64, error) {
	if len(bankIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(bankIDs)), ",")
	query := fmt.Sprintf(
		"SELECT DISTINCT account_id FROM transactions WHERE bank_id IN (%s) ORDER BY account_id",
		placeholders)

	args := make([]any, len(bankIDs))
	for i, id := range bankIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *Store) queryIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// normalizeValue flattens driver-specific types into plain Go values.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}
