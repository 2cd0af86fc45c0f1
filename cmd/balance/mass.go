package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func massCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mass",
		Short: "Preview or apply one action across a date range",
		Long: `Select transactions by date range (at most 366 days), description
pattern and source accounts, then apply one action to those it would change:

  complementary_add  balance fully one-sided transactions across --dest accounts
  edit_fields        set --description, --reference, --notes or --set-date
  merge_into         drop generated entries and merge into --target`,
		Example: `  balance mass preview --from 2024-01-01 --to 2024-12-31 --pattern coffee \
    --action complementary_add --dest dining=1
  balance mass apply --from 2024-01-01 --to 2024-03-31 --pattern "AMZN" \
    --action edit_fields --description Amazon`,
	}

	flags := cmd.PersistentFlags()
	flags.String("from", "", "start date (YYYY-MM-DD, required)")
	flags.String("to", "", "end date (YYYY-MM-DD, required)")
	flags.String("pattern", "", "description pattern")
	flags.StringArray("source", nil, "source account filter (repeatable)")
	flags.String("action", "", "complementary_add, edit_fields or merge_into")
	flags.StringArray("dest", nil, "destination as account=ratio or account=@amount (repeatable)")
	flags.String("description", "", "new description (edit_fields)")
	flags.String("reference", "", "new reference (edit_fields)")
	flags.String("notes", "", "new notes (edit_fields)")
	flags.String("set-date", "", "new date (edit_fields)")
	flags.String("target", "", "transaction to merge into (merge_into)")

	cmd.AddCommand(massPreviewCmd())
	cmd.AddCommand(massApplyCmd())

	return cmd
}

func massFromFlags(cmd *cobra.Command) (model.MassQuery, model.MassAction, error) {
	var query model.MassQuery
	var action model.MassAction

	start, err := dateFlag(cmd, "from")
	if err != nil {
		return query, action, err
	}
	end, err := dateFlag(cmd, "to")
	if err != nil {
		return query, action, err
	}
	if start != nil {
		query.StartDate = *start
	}
	if end != nil {
		query.EndDate = *end
	}
	query.Pattern, _ = cmd.Flags().GetString("pattern")
	query.SourceAccounts, _ = cmd.Flags().GetStringArray("source")

	actionType, _ := cmd.Flags().GetString("action")
	action.Type = model.MassActionType(actionType)
	action.TargetTransactionID, _ = cmd.Flags().GetString("target")

	dests, _ := cmd.Flags().GetStringArray("dest")
	if action.Destinations, err = parseDestinations(dests); err != nil {
		return query, action, err
	}

	fields := &model.FieldEdits{
		Description: changedString(cmd, "description"),
		Reference:   changedString(cmd, "reference"),
		Notes:       changedString(cmd, "notes"),
	}
	if fields.Date, err = dateFlag(cmd, "set-date"); err != nil {
		return query, action, err
	}
	if !fields.IsEmpty() {
		action.Fields = fields
	}

	return query, action, nil
}

// changedString returns the flag value only when the user set it, so an
// explicit empty string still clears the field.
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetString(name)
	return &value
}

func massPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Count the transactions an action would change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, action, err := massFromFlags(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				preview, err := eng.PreviewMass(cmd.Context(), query, action)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Mass preview", fmt.Sprintf(
					"  • Matching transactions: %d\n  • Would change: %d\n  • Range: %s to %s",
					preview.TotalCandidates, preview.EligibleCount,
					query.StartDate.Format(time.DateOnly), query.EndDate.Format(time.DateOnly))))
				return nil
			})
		},
	}
}

func massApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply an action to every matching transaction it would change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, action, err := massFromFlags(cmd)
			if err != nil {
				return err
			}
			yes, _ := cmd.Flags().GetBool("yes")

			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				if !yes {
					preview, err := eng.PreviewMass(cmd.Context(), query, action)
					if err != nil {
						return err
					}
					if preview.EligibleCount == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing to change"))
						return nil
					}
					ok, err := cli.Confirm(cmd.Context(), os.Stdin, cmd.OutOrStdout(), fmt.Sprintf(
						"Apply %s to %s?", action.Type, cli.FormatCount(preview.EligibleCount, "transaction")))
					if err != nil || !ok {
						return err
					}
				}

				reporter := cli.NewBarReporter(cmd.ErrOrStderr(), "Applying "+string(action.Type))
				result, err := eng.ApplyMass(cmd.Context(), query, action, reporter)
				if result != nil {
					fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Mass action complete", fmt.Sprintf(
						"  • Processed: %d\n  • Eligible: %d\n  • Modified: %d\n  • Failed: %d",
						result.Processed, result.Eligible, result.Modified, result.Failed)))
					for _, d := range result.Details {
						if d.Error != "" {
							fmt.Fprintln(cmd.OutOrStdout(), cli.FormatError(fmt.Sprintf("%s %s: %s", d.TransactionID, d.Description, d.Error)))
						}
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip the preview and confirmation")
	return cmd
}
