package main

import (
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <source-id> <target-id>",
		Short: "Merge two complementary unbalanced transactions",
		Long: `Move every entry of the target transaction into the source and delete
the target. Both must be unbalanced in opposite directions.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				merged, err := eng.Merge(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Merged %s into %s", args[1], args[0])))
				printTransaction(cmd.OutOrStdout(), merged)
				return nil
			})
		},
	}
}

func moveEntryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move-entry <entry-id> <transaction-id>",
		Short: "Move one entry into another transaction",
		Long: `Reassign a single entry to another transaction. Both transactions are
re-evaluated; a transaction left without entries is deleted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				result, err := eng.MoveEntry(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, cli.FormatSuccess("Moved entry "+args[0]))
				printTransaction(out, result.Destination)
				if result.SourceDeleted {
					fmt.Fprintln(out, cli.FormatInfo("Source transaction had no entries left and was deleted"))
				} else {
					printTransaction(out, result.Source)
				}
				return nil
			})
		},
	}
}
