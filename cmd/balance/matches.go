package main

import (
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func matchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Find complementary candidates for unbalanced entries and transactions",
	}

	cmd.PersistentFlags().Int("window", 0, "days either side of the target date (default from config)")
	cmd.PersistentFlags().Int("max", 0, "maximum number of candidates (default from config)")

	cmd.AddCommand(matchesEntryCmd())
	cmd.AddCommand(matchesTransactionCmd())

	return cmd
}

func matchOptionsFromFlags(cmd *cobra.Command) engine.MatchOptions {
	window, _ := cmd.Flags().GetInt("window")
	limit, _ := cmd.Flags().GetInt("max")
	return engine.MatchOptions{WindowDays: window, MaxResults: limit}
}

func matchesEntryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entry <entry-id>",
		Short: "Entries with the opposite type and the same amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				matches, err := eng.FindMatches(cmd.Context(), args[0], matchOptionsFromFlags(cmd))
				if err != nil {
					return err
				}
				if len(matches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No complementary entries found"))
					return nil
				}

				rows := make([][]string, 0, len(matches))
				for _, m := range matches {
					rows = append(rows, []string{m.ID, m.TransactionID, m.AccountID, string(m.Type), m.Amount.StringFixed(2)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Entry", "Transaction", "Account", "Type", "Amount"}, rows))
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Move one over with: balance move-entry <entry-id> <transaction-id>"))
				return nil
			})
		},
	}
}

func matchesTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transaction <transaction-id>",
		Short: "Unbalanced transactions whose imbalance cancels this one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				matches, err := eng.FindTransactionMatches(cmd.Context(), args[0], matchOptionsFromFlags(cmd))
				if err != nil {
					return err
				}
				printTransactionList(cmd.OutOrStdout(), matches)
				if len(matches) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render(
						"Merge with: balance merge "+args[0]+" <transaction-id>"))
				}
				return nil
			})
		},
	}
}
