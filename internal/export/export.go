// Package export renders the canonical record set as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/filex"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

var header = []string{"ID", "Date", "Merchant", "Total", "Currency", "Category", "Status", "Items Count"}

// WriteCSV writes one row per record, in the given order, after a header row.
func WriteCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.TransactionDate,
			r.MerchantName,
			r.TotalAmount.String(),
			r.Currency,
			r.Category,
			r.Status(),
			strconv.Itoa(len(r.Items)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultFileName is receipts_export_YYYY-MM-DD.csv for the day of t.
func DefaultFileName(t time.Time) string {
	return "receipts_export_" + t.Format("2006-01-02") + ".csv"
}

// WriteFile exports records into dir under DefaultFileName and returns the
// full path.
func WriteFile(dir string, records []models.Record, now time.Time) (string, error) {
	path := filepath.Join(dir, DefaultFileName(now))
	if err := filex.EnsureParentDir(path); err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteCSV(f, records); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
