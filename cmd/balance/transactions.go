package main

import (
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn"},
		Short:   "Record and inspect transactions",
	}

	cmd.AddCommand(transactionsAddCmd())
	cmd.AddCommand(transactionsShowCmd())
	cmd.AddCommand(transactionsUnbalancedCmd())

	return cmd
}

func transactionsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <date> <description>",
		Short: "Record a transaction",
		Example: `  # One-sided bank line, to be balanced by rules later
  balance transactions add 2024-05-02 "Corner grocery" -e checking:debit:42.50

  # Fully specified
  balance transactions add 2024-05-02 "Rent" -e rent:debit:900 -e checking:credit:900

  # Let the offsetting side be computed
  balance transactions add 2024-05-02 "Rent" -e rent:debit:900 --offset checking`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}
			specs, _ := cmd.Flags().GetStringArray("entry")
			reference, _ := cmd.Flags().GetString("reference")
			notes, _ := cmd.Flags().GetString("notes")
			applyRules, _ := cmd.Flags().GetBool("apply-rules")

			txn := &model.Transaction{Date: date, Description: args[1], Reference: reference, Notes: notes}
			for _, spec := range specs {
				entry, err := parseEntry(spec)
				if err != nil {
					return err
				}
				txn.Entries = append(txn.Entries, entry)
			}
			if offset, _ := cmd.Flags().GetString("offset"); offset != "" {
				txn.Entries = withOffset(txn.Entries, offset)
			}

			return withEngine(cmd.Context(), func(store service.Storage, eng *engine.Engine) error {
				if err := store.SaveTransaction(cmd.Context(), txn); err != nil {
					return err
				}
				if applyRules && !txn.IsBalanced {
					result, err := eng.ApplyRules(cmd.Context(), txn.ID)
					if err != nil {
						return err
					}
					printApplyResult(cmd.OutOrStdout(), result)
					if txn, err = store.GetTransaction(cmd.Context(), txn.ID); err != nil {
						return err
					}
				}
				printTransaction(cmd.OutOrStdout(), txn)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayP("entry", "e", nil, "entry as account:debit|credit:amount (repeatable)")
	cmd.Flags().String("reference", "", "external reference")
	cmd.Flags().String("notes", "", "free-form notes")
	cmd.Flags().Bool("apply-rules", false, "apply rules right after recording")
	cmd.Flags().String("offset", "", "post whatever is left unbalanced to this account")

	return cmd
}

func transactionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a transaction with its entries and balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				txn, err := store.GetTransaction(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printTransaction(cmd.OutOrStdout(), txn)
				return nil
			})
		},
	}
}

func transactionsUnbalancedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unbalanced",
		Short: "List transactions that do not balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			filter := service.TransactionFilter{Limit: limit}
			unbalanced := false
			filter.IsBalanced = &unbalanced

			var err error
			if filter.StartDate, err = dateFlag(cmd, "from"); err != nil {
				return err
			}
			if filter.EndDate, err = dateFlag(cmd, "to"); err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				txns, err := store.FindTransactions(cmd.Context(), filter)
				if err != nil {
					return err
				}
				printTransactionList(cmd.OutOrStdout(), txns)
				return nil
			})
		},
	}

	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "maximum number of transactions")

	return cmd
}
