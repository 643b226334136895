package remote

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/reconcile"
	"github.com/dmitrijs2005/receiptkeeper/internal/remote/migrations"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PostgresAdapter implements Adapter over the receipts and receipt_items tables.
type PostgresAdapter struct {
	db      *sql.DB
	timeout time.Duration

	// newItemID generates receipt_items ids. Time-ordered v7 ids keep ORDER BY id
	// equal to insertion order.
	newItemID func() (uuid.UUID, error)
}

// OpenPostgres opens a pgx-backed pool for dsn. No connection is made until
// the first call.
func OpenPostgres(dsn string, timeout time.Duration) (*PostgresAdapter, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return NewPostgresAdapter(db, timeout), nil
}

// NewPostgresAdapter wraps an existing pool. A zero timeout disables the
// per-call deadline.
func NewPostgresAdapter(db *sql.DB, timeout time.Duration) *PostgresAdapter {
	return &PostgresAdapter{db: db, timeout: timeout, newItemID: uuid.NewV7}
}

// RunMigrations applies the embedded remote schema.
func (a *PostgresAdapter) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	return wrap(ctx, "migrate", goose.UpContext(ctx, a.db, "."))
}

func (a *PostgresAdapter) Close() error {
	return a.db.Close()
}

func (a *PostgresAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// FetchAll reads every header joined with its items.
func (a *PostgresAdapter) FetchAll(ctx context.Context) ([]models.Record, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT r.id, r.merchant_name, r.transaction_date, r.total_amount, r.currency,
			r.category, r.confidence_score, i.id, i.description, i.qty, i.price
		FROM receipts r
		LEFT JOIN receipt_items i ON i.receipt_id = r.id
		ORDER BY r.transaction_date DESC NULLS LAST, r.created_at, r.id, i.id
	`
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap(ctx, "fetch receipts", err)
	}
	defer rows.Close()

	result := []models.Record{}
	index := map[string]int{}
	for rows.Next() {
		var (
			id                           string
			merchant, currency, category sql.NullString
			date                         sql.NullTime
			total, confidence            decimal.NullDecimal
			itemID, description          sql.NullString
			qty, price                   decimal.NullDecimal
		)
		if err := rows.Scan(&id, &merchant, &date, &total, &currency, &category, &confidence,
			&itemID, &description, &qty, &price); err != nil {
			return nil, wrap(ctx, "scan receipt", err)
		}

		i, ok := index[id]
		if !ok {
			r := models.Record{
				ID:              id,
				MerchantName:    merchant.String,
				Currency:        currency.String,
				TotalAmount:     total.Decimal,
				Category:        category.String,
				ConfidenceScore: int(confidence.Decimal.Round(0).IntPart()),
				Synced:          true,
			}
			if date.Valid {
				r.TransactionDate = date.Time.Format(dateLayout)
			}
			i = len(result)
			index[id] = i
			result = append(result, r)
		}

		if itemID.Valid {
			it := models.LineItem{
				Description: description.String,
				Qty:         decimal.NewFromInt(1),
				Price:       price.Decimal,
			}
			if qty.Valid {
				it.Qty = qty.Decimal
			}
			result[i].Items = append(result[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "fetch receipts", err)
	}

	return result, nil
}

// Exists reports whether the header row for id is present.
func (a *PostgresAdapter) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := a.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM receipts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, wrap(ctx, "check receipt", err)
	}
	return exists, nil
}

// Insert writes the header and its items in one transaction, so a failed item
// leaves no header behind.
func (a *PostgresAdapter) Insert(ctx context.Context, r models.Record) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	items := make([][]any, 0, len(r.Items))
	for _, it := range r.Items {
		itemID, err := a.newItemID()
		if err != nil {
			return fmt.Errorf("generate item id: %w", err)
		}
		items = append(items, []any{itemID.String(), r.ID, it.Description, it.Qty, it.Price})
	}

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO receipts (id, merchant_name, transaction_date, total_amount, currency, category, confidence_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.ID, r.MerchantName, dateArg(r.TransactionDate), r.TotalAmount, r.Currency, r.Category, r.ConfidenceScore)
		if err != nil {
			return fmt.Errorf("insert header: %w", err)
		}

		err = dbx.ExecEach(ctx, tx, `
			INSERT INTO receipt_items (id, receipt_id, description, qty, price)
			VALUES ($1, $2, $3, $4, $5)
		`, items)
		if err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
		return nil
	})
	return wrap(ctx, "insert receipt "+r.ID, err)
}

// dateArg normalizes a transaction date for a date column. Empty and
// unparseable dates are stored as NULL.
func dateArg(s string) any {
	t, ok := reconcile.ParseDate(s)
	if !ok {
		return nil
	}
	return t.Format(dateLayout)
}
