package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Seed creates the transactions table and fills it with deterministic
// sample data so the engine has something to query out of the box.
// An existing transactions table is replaced. Returns the number of
// rows loaded.
func (s *Store) Seed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS transactions`); err != nil {
		return 0, fmt.Errorf("failed to drop transactions table: %w", err)
	}

	schema := `
	CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		bank_id INTEGER NOT NULL,
		account_id INTEGER NOT NULL,
		transaction_id INTEGER NOT NULL,
		transaction_date DATETIME NOT NULL,
		transaction_type TEXT NOT NULL,
		description TEXT,
		amount REAL NOT NULL,
		category TEXT,
		merchant TEXT
	);
	CREATE INDEX idx_txn_bank ON transactions(bank_id);
	CREATE INDEX idx_txn_account ON transactions(account_id);
	CREATE INDEX idx_txn_date ON transactions(transaction_date);
	`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("failed to create transactions table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
			(client_id, bank_id, account_id, transaction_id, transaction_date,
			 transaction_type, description, amount, category, merchant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, row := range sampleTransactions() {
		txnType := "Debit"
		if row.amount > 0 {
			txnType = "Credit"
		}
		if _, err := stmt.ExecContext(ctx,
			row.clientID, row.bankID, row.accountID, row.txnID,
			row.date.Format("2006-01-02 15:04:05"),
			txnType, row.description, row.amount, row.category, row.merchant,
		); err != nil {
			return 0, fmt.Errorf("failed to insert sample transaction: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	s.logger.Info("transaction store seeded",
		zap.String("path", s.dbPath),
		zap.Int("rows", count))
	return count, nil
}

type sampleTxn struct {
	clientID    int64
	bankID      int64
	accountID   int64
	txnID       int64
	date        time.Time
	description string
	amount      float64
	category    string
	merchant    string
}

// sampleTransactions returns a fixed ledger spread over two banks and four
// accounts, covering the merchant and category shapes the prompt examples
// talk about.
func sampleTransactions() []sampleTxn {
	base := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	day := 24 * time.Hour

	merchants := []struct {
		name     string
		category string
		amount   float64
	}{
		{"Uber", "Transport", -18.40},
		{"Amazon", "Shopping", -64.99},
		{"Walmart", "Groceries", -112.35},
		{"Starbucks", "Food", -7.25},
		{"Netflix", "Entertainment", -15.99},
		{"Shell", "Fuel", -52.10},
		{"Amazon", "Refund", 23.50},
		{"Acme Corp", "Salary", 3200.00},
	}

	accounts := []struct {
		clientID  int64
		bankID    int64
		accountID int64
	}{
		{1, 1, 101},
		{1, 1, 102},
		{2, 2, 201},
		{2, 2, 202},
	}

	var out []sampleTxn
	txnID := int64(5000)
	for week := 0; week < 8; week++ {
		for ai, acct := range accounts {
			for mi, m := range merchants {
				// Salary lands once a month, everything else weekly.
				if m.category == "Salary" && week%4 != 0 {
					continue
				}
				txnID++
				out = append(out, sampleTxn{
					clientID:    acct.clientID,
					bankID:      acct.bankID,
					accountID:   acct.accountID,
					txnID:       txnID,
					date:        base.Add(time.Duration(week*7+mi%5) * day).Add(time.Duration(ai) * time.Hour),
					description: m.name + " " + m.category,
					amount:      m.amount,
					category:    m.category,
					merchant:    m.name,
				})
			}
		}
	}
	return out
}
