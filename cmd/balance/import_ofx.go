package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/ofx"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import bank or card statement lines from OFX or QFX (Quicken) files.

Each line becomes a one-sided transaction on --account: money leaving the
account is a credit, money arriving a debit. Lines already imported (same
FITID on the same account) are skipped. Rules marked auto-apply then run on
the new transactions.

Examples:
  # Import a single file
  balance import-ofx --account checking ~/Downloads/chase_jan_2024.qfx

  # Import every QFX file in a directory
  balance import-ofx --account card ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().StringP("account", "a", "", "account the statement belongs to (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	cmd.Flags().Bool("no-auto-apply", false, "do not run auto-apply rules on imported transactions")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	accountID, _ := cmd.Flags().GetString("account")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noAutoApply, _ := cmd.Flags().GetBool("no-auto-apply")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	slog.Info("Importing OFX files", "file_count", len(files), "account", accountID, "dry_run", dryRun)

	parser := ofx.NewParser()
	var parsed []model.Transaction
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}
		stmt, err := parser.Parse(ctx, f, accountID)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}
		line := fmt.Sprintf("%s: %s", filepath.Base(path), cli.FormatCount(len(stmt.Transactions), "transaction"))
		if len(stmt.AccountNumbers) > 0 {
			line += fmt.Sprintf(" (account %s)", strings.Join(stmt.AccountNumbers, ", "))
		}
		fmt.Fprintln(out, cli.FormatInfo(line))
		parsed = append(parsed, stmt.Transactions...)
	}

	if len(parsed) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions found in any file"))
		return nil
	}

	return withEngine(ctx, func(store service.Storage, eng *engine.Engine) error {
		summary, err := importStatement(ctx, store, eng, accountID, parsed, importOptions{
			DryRun:    dryRun,
			AutoApply: !noAutoApply,
			Reporter:  cli.NewBarReporter(cmd.ErrOrStderr(), "Applying auto rules"),
		})
		if err != nil {
			return err
		}

		content := fmt.Sprintf("  • Parsed: %d\n  • Duplicates skipped: %d\n  • Imported: %d",
			summary.Parsed, summary.Duplicates, summary.Imported)
		if summary.Rules != nil {
			content += fmt.Sprintf("\n  • Balanced by rules: %d", summary.Rules.Successful)
		}
		title := "Import complete"
		if dryRun {
			title = "Dry run - nothing saved"
		}
		fmt.Fprintln(out, cli.RenderBox(title, content))
		return nil
	})
}

func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

type importOptions struct {
	Reporter  service.ProgressReporter
	DryRun    bool
	AutoApply bool
}

type importSummary struct {
	Rules      *engine.BulkResult
	Parsed     int
	Duplicates int
	Imported   int
}

// importStatement saves parsed statement lines that are not already stored
// and runs auto-apply rules over the ones it saved.
func importStatement(ctx context.Context, store service.Storage, eng *engine.Engine, accountID string,
	txns []model.Transaction, opts importOptions) (*importSummary, error) {
	if _, err := store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	seen, err := existingReferences(ctx, store, accountID, txns)
	if err != nil {
		return nil, err
	}

	summary := &importSummary{Parsed: len(txns)}
	var ids []string
	for i := range txns {
		txn := &txns[i]
		if txn.Reference != "" {
			if seen[txn.Reference] {
				summary.Duplicates++
				continue
			}
			seen[txn.Reference] = true
		}
		if opts.DryRun {
			summary.Imported++
			continue
		}
		if err := store.SaveTransaction(ctx, txn); err != nil {
			return summary, fmt.Errorf("failed to save %q dated %s: %w", txn.Description, txn.Date.Format("2006-01-02"), err)
		}
		ids = append(ids, txn.ID)
		summary.Imported++
	}

	if opts.DryRun || !opts.AutoApply || len(ids) == 0 {
		return summary, nil
	}

	result, err := eng.ApplyAutoRules(ctx, ids, opts.Reporter)
	summary.Rules = result
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// existingReferences collects the references already stored on accountID
// within the date span of txns.
func existingReferences(ctx context.Context, store service.Storage, accountID string, txns []model.Transaction) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(txns) == 0 {
		return seen, nil
	}

	start, end := txns[0].Date, txns[0].Date
	for _, txn := range txns[1:] {
		if txn.Date.Before(start) {
			start = txn.Date
		}
		if txn.Date.After(end) {
			end = txn.Date
		}
	}

	stored, err := store.FindTransactions(ctx, service.TransactionFilter{
		StartDate:  &start,
		EndDate:    &end,
		AccountIDs: []string{accountID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}
	for _, txn := range stored {
		if txn.Reference != "" {
			seen[txn.Reference] = true
		}
	}
	return seen, nil
}
