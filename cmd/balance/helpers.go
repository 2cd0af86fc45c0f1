package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newEngine builds an engine honoring the matching and merge settings.
func newEngine(store service.Storage) *engine.Engine {
	return engine.NewWithConfig(store, engine.Config{
		NotesSeparator:  appConfig.NotesSeparator,
		MatchWindowDays: appConfig.MatchWindowDays,
		MaxMatchResults: appConfig.MaxMatchResults,
	})
}

// withEngine opens storage, runs fn and closes storage again.
func withEngine(ctx context.Context, fn func(service.Storage, *engine.Engine) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(store, newEngine(store))
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// dateFlag parses an optional YYYY-MM-DD flag; unset yields nil.
func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

// parseEntry reads "account:type:amount", e.g. "checking:debit:42.50".
func parseEntry(spec string) (model.Entry, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return model.Entry{}, fmt.Errorf("invalid entry %q, expected account:debit|credit:amount", spec)
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return model.Entry{}, fmt.Errorf("invalid amount in entry %q: %w", spec, err)
	}
	return model.Entry{
		AccountID: parts[0],
		Type:      model.EntryType(strings.ToLower(parts[1])),
		Amount:    amount,
	}, nil
}

// parseDestination reads "account=ratio" or "account=@amount".
func parseDestination(spec string) (model.Destination, error) {
	account, value, ok := strings.Cut(spec, "=")
	if !ok || account == "" || value == "" {
		return model.Destination{}, fmt.Errorf("invalid destination %q, expected account=ratio or account=@amount", spec)
	}

	absolute := strings.HasPrefix(value, "@")
	amount, err := decimal.NewFromString(strings.TrimPrefix(value, "@"))
	if err != nil {
		return model.Destination{}, fmt.Errorf("invalid destination value in %q: %w", spec, err)
	}

	d := model.Destination{AccountID: account}
	if absolute {
		d.AbsoluteAmount = &amount
	} else {
		d.Ratio = &amount
	}
	return d, nil
}

// withOffset appends the entry that balances entries, posted to accountID in
// the unit of the first entry. Balanced input is returned unchanged.
func withOffset(entries []model.Entry, accountID string) []model.Entry {
	var unit string
	if len(entries) > 0 {
		unit = entries[0].Unit
	}
	complement, ok := ledger.Evaluate(entries).Complement(accountID, unit)
	if !ok {
		return entries
	}
	return append(entries, complement)
}

func parseDestinations(specs []string) ([]model.Destination, error) {
	destinations := make([]model.Destination, 0, len(specs))
	for _, spec := range specs {
		d, err := parseDestination(spec)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, d)
	}
	return destinations, nil
}

func printTransaction(w io.Writer, txn *model.Transaction) {
	balance := ledger.Evaluate(txn.Entries)
	header := fmt.Sprintf("%s  %s  %s", txn.Date.Format(time.DateOnly), txn.Description, cli.FormatBalanced(txn.IsBalanced))

	rows := make([][]string, 0, len(txn.Entries))
	for _, e := range txn.Entries {
		marker := ""
		if e.Generated != nil {
			marker = string(e.Generated.Kind)
		}
		rows = append(rows, []string{e.ID, e.AccountID, string(e.Type), e.Amount.StringFixed(2), e.Unit, marker})
	}
	body := cli.RenderTable([]string{"Entry", "Account", "Type", "Amount", "Unit", "Generated"}, rows)
	body += "\n\n" + cli.SubtleStyle.Render(fmt.Sprintf("debits %s  credits %s  net %s",
		balance.TotalDebits.StringFixed(2), balance.TotalCredits.StringFixed(2), balance.NetBalance.StringFixed(2)))
	if txn.Reference != "" || txn.Notes != "" {
		body += "\n" + cli.SubtleStyle.Render(fmt.Sprintf("reference %q  notes %q", txn.Reference, txn.Notes))
	}

	fmt.Fprintln(w, cli.RenderBox(header+"\n"+cli.SubtleStyle.Render(txn.ID), body))
}

func printTransactionList(w io.Writer, txns []model.Transaction) {
	if len(txns) == 0 {
		fmt.Fprintln(w, cli.FormatInfo("No transactions found"))
		return
	}
	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		net := ledger.Evaluate(txn.Entries).NetBalance
		rows = append(rows, []string{
			txn.ID, txn.Date.Format(time.DateOnly), txn.Description,
			fmt.Sprint(len(txn.Entries)), net.StringFixed(2),
		})
	}
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Date", "Description", "Entries", "Net"}, rows))
	fmt.Fprintln(w, cli.SubtleStyle.Render(cli.FormatCount(len(txns), "transaction")))
}

// printApplyResult reports a single-transaction rule application and whether
// a rule changed anything. Already balanced transactions succeed without a
// rule.
func printApplyResult(w io.Writer, result *engine.ApplyResult) bool {
	switch {
	case result.AppliedRule != nil:
		fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("Applied rule %s, created %s",
			result.AppliedRule.Name, cli.FormatCount(len(result.CreatedEntries), "entry"))))
		return true
	case result.Success:
		fmt.Fprintln(w, cli.FormatSuccess(result.Message))
	default:
		fmt.Fprintln(w, cli.FormatInfo(result.Message))
	}
	return false
}

func printBulkResult(w io.Writer, title string, result *engine.BulkResult) {
	summary := fmt.Sprintf("  • Processed: %d\n  • Successful: %d\n  • Not changed or failed: %d",
		result.Total, result.Successful, result.Failed)
	fmt.Fprintln(w, cli.RenderBox(title, summary))

	for _, d := range result.Details {
		switch {
		case d.Success:
			fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("%s %s (%s)", d.TransactionID, d.Description, d.RuleName)))
		case d.Error != "":
			fmt.Fprintln(w, cli.FormatError(fmt.Sprintf("%s %s: %s", d.TransactionID, d.Description, d.Error)))
		}
	}
}
