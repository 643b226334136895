package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/filex"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/store/migrations"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore keeps the snapshot in two tables, receipts and receipt_items.
// Row order is kept in position columns.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases coherent and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// RunMigrations applies the embedded schema with goose.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save replaces every row inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records []models.Record) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_items`); err != nil {
			return fmt.Errorf("failed to clear items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM receipts`); err != nil {
			return fmt.Errorf("failed to clear receipts: %w", err)
		}

		headers := make([][]any, 0, len(records))
		var items [][]any
		for i, r := range records {
			headers = append(headers, []any{
				r.ID, i, r.MerchantName, r.TransactionDate, r.Currency,
				r.TotalAmount.String(), r.Category, r.ConfidenceScore, r.Synced,
			})
			for j, it := range r.Items {
				items = append(items, []any{r.ID, j, it.Description, it.Qty.String(), it.Price.String()})
			}
		}

		err := dbx.ExecEach(ctx, tx, `INSERT INTO receipts
			(id, position, merchant_name, transaction_date, currency, total_amount, category, confidence_score, synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, headers)
		if err != nil {
			return fmt.Errorf("failed to insert receipts: %w", err)
		}

		err = dbx.ExecEach(ctx, tx, `INSERT INTO receipt_items
			(receipt_id, position, description, qty, price) VALUES (?, ?, ?, ?, ?)`, items)
		if err != nil {
			return fmt.Errorf("failed to insert items: %w", err)
		}
		return nil
	})
}

// Load reads the snapshot in saved order.
func (s *SQLiteStore) Load(ctx context.Context) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, merchant_name, transaction_date, currency,
		total_amount, category, confidence_score, synced FROM receipts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to select receipts: %w", err)
	}
	defer rows.Close()

	result := []models.Record{}
	index := map[string]int{}
	for rows.Next() {
		var (
			r     models.Record
			total string
		)
		if err := rows.Scan(&r.ID, &r.MerchantName, &r.TransactionDate, &r.Currency,
			&total, &r.Category, &r.ConfidenceScore, &r.Synced); err != nil {
			return nil, err
		}
		if r.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("receipt %s: bad total %q: %w", r.ID, total, err)
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadItems(ctx, result, index); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, result []models.Record, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT receipt_id, description, qty, price
		FROM receipt_items ORDER BY receipt_id, position`)
	if err != nil {
		return fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, qty, price string
			it             models.LineItem
		)
		if err := rows.Scan(&id, &it.Description, &qty, &price); err != nil {
			return err
		}
		if it.Qty, err = decimal.NewFromString(qty); err != nil {
			return fmt.Errorf("receipt %s: bad qty %q: %w", id, qty, err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("receipt %s: bad price %q: %w", id, price, err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		result[i].Items = append(result[i].Items, it)
	}
	return rows.Err()
}
