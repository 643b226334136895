package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/remote"
)

// Scan parses each image file and reports one line per receipt. A failed file
// does not stop the others.
func (a *App) Scan(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: scan <image> [image...]")
		return nil
	}

	var errs []error
	for _, path := range args {
		image, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(a.out, "Scan failed for %s: %v\n", path, err)
			errs = append(errs, err)
			continue
		}

		res, err := a.service.Scan(ctx, image, filepath.Base(path))
		if err != nil {
			fmt.Fprintf(a.out, "Scan failed for %s: %s\n", path, describeScanError(err))
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		r := res.Record
		fmt.Fprintf(a.out, "Saved %s  %s  %s %s  [%s]\n", r.ID, r.MerchantName, r.TotalAmount.StringFixed(2), r.Currency, r.Status())
		if res.Notice != "" {
			fmt.Fprintln(a.out, "  "+res.Notice)
		}
	}
	return errors.Join(errs...)
}

func describeScanError(err error) string {
	switch {
	case errors.Is(err, common.ErrOCR):
		return "text extraction failed: " + err.Error()
	case errors.Is(err, common.ErrParse):
		return "could not structure receipt: " + err.Error()
	default:
		return err.Error()
	}
}

// List prints every receipt in canonical order.
func (a *App) List(_ context.Context, _ []string) error {
	records := a.service.Records()
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No receipts yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tMERCHANT\tTOTAL\tCURRENCY\tCATEGORY\tSTATUS")
	pending := 0
	for _, r := range records {
		if !r.Synced {
			pending++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.TransactionDate, r.MerchantName, r.TotalAmount.StringFixed(2), r.Currency, r.Category, r.Status())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d receipts, %d pending sync\n", len(records), pending)
	return nil
}

// Show prints one receipt with its line items.
func (a *App) Show(_ context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: show <id>")
		return nil
	}

	r, err := a.service.Get(args[0])
	if err != nil {
		fmt.Fprintf(a.out, "Receipt %s not found\n", args[0])
		return err
	}
	printRecord(a, r)
	return nil
}

func printRecord(a *App, r models.Record) {
	fmt.Fprintf(a.out, "ID:         %s\n", r.ID)
	fmt.Fprintf(a.out, "Merchant:   %s\n", r.MerchantName)
	fmt.Fprintf(a.out, "Date:       %s\n", r.TransactionDate)
	fmt.Fprintf(a.out, "Total:      %s %s\n", r.TotalAmount.StringFixed(2), r.Currency)
	fmt.Fprintf(a.out, "Category:   %s\n", r.Category)
	fmt.Fprintf(a.out, "Confidence: %d\n", r.ConfidenceScore)
	fmt.Fprintf(a.out, "Status:     %s\n", r.Status())

	if len(r.Items) == 0 {
		return
	}
	fmt.Fprintln(a.out, "Items:")
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, it := range r.Items {
		fmt.Fprintf(tw, "  %s\t%s\tx %s\n", it.Description, it.Price.StringFixed(2), it.Qty.String())
	}
	_ = tw.Flush()
}

// Sync pushes local-only receipts and prints "N of M synced".
func (a *App) Sync(ctx context.Context, _ []string) error {
	if a.service.Status().Mode != remote.ModeConfigured {
		fmt.Fprintln(a.out, "Remote store is not configured; running in local mode.")
		return nil
	}

	sum, err := a.service.Sync(ctx)
	fmt.Fprintln(a.out, sum.String())
	if sum.Failed > 0 {
		fmt.Fprintf(a.out, "%d receipts failed and stay local; run sync again to retry.\n", sum.Failed)
	}
	if sum.Interrupted {
		fmt.Fprintln(a.out, "Sync interrupted.")
	}
	return err
}

// Export writes the CSV export to args[0] ("-" for stdout) or the configured
// export directory.
func (a *App) Export(_ context.Context, args []string) error {
	dest := a.config.ExportDir
	if len(args) > 0 {
		dest = args[0]
	}

	if dest == "-" {
		if err := a.service.Export(a.out); err != nil {
			fmt.Fprintf(a.out, "Export failed: %v\n", err)
			return err
		}
		return nil
	}

	if len(a.service.Records()) == 0 {
		fmt.Fprintln(a.out, "Nothing to export.")
		return nil
	}
	path, err := a.service.ExportFile(dest)
	if err != nil {
		fmt.Fprintf(a.out, "Export failed: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s\n", path)
	return nil
}

// Status prints the storage mode and the pending count.
func (a *App) Status(_ context.Context, _ []string) error {
	st := a.service.Status()

	mode := "Local mode"
	if st.Mode == remote.ModeConfigured {
		mode = "PostgreSQL (unreachable at startup)"
		if st.RemoteReachable {
			mode = "PostgreSQL"
		}
	}
	fmt.Fprintf(a.out, "Storage:  %s\n", mode)
	fmt.Fprintf(a.out, "Receipts: %d\n", st.Total)
	fmt.Fprintf(a.out, "Pending:  %d\n", st.Pending)

	for _, sp := range st.Spent {
		fmt.Fprintf(a.out, "Spent:    %s %s\n", sp.Amount.StringFixed(2), sp.Currency)
	}
	if len(st.ByCategory) > 0 {
		fmt.Fprintln(a.out, "By category:")
		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		for _, sp := range st.ByCategory {
			fmt.Fprintf(tw, "  %s\t%s %s\n", sp.Category, sp.Amount.StringFixed(2), sp.Currency)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) status() string {
	st := a.service.Status()
	if st.Pending == 0 {
		return st.Mode.String()
	}
	return fmt.Sprintf("%s, %d pending", st.Mode, st.Pending)
}
