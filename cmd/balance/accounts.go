package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}

	cmd.AddCommand(accountsAddCmd())
	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsDeleteCmd())

	return cmd
}

func accountsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id> <name>",
		Short: "Add an account",
		Example: `  balance accounts add checking "Checking" --type asset
  balance accounts add travel-eur "Travel" --type expense --unit EUR`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountType, _ := cmd.Flags().GetString("type")
			unit, _ := cmd.Flags().GetString("unit")
			parent, _ := cmd.Flags().GetString("parent")

			account := &model.Account{
				ID:   args[0],
				Name: args[1],
				Type: model.AccountType(accountType),
				Unit: unit,
			}
			if parent != "" {
				account.ParentID = &parent
			}

			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				if err := store.CreateAccount(cmd.Context(), account); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added account %s (%s, %s)",
					account.ID, account.Type, account.UnitOrDefault())))
				return nil
			})
		},
	}

	cmd.Flags().String("type", string(model.AccountTypeExpense), "account type (asset, liability, income, expense, equity)")
	cmd.Flags().String("unit", "", "currency or unit (default USD)")
	cmd.Flags().String("parent", "", "parent account id")

	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				accounts, err := store.ListAccounts(cmd.Context())
				if err != nil {
					return err
				}
				if len(accounts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No accounts yet. Add one with: balance accounts add"))
					return nil
				}

				rows := make([][]string, 0, len(accounts))
				for _, a := range accounts {
					parent := ""
					if a.ParentID != nil {
						parent = *a.ParentID
					}
					rows = append(rows, []string{a.ID, a.Name, string(a.Type), a.UnitOrDefault(), parent})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Accounts"))
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Type", "Unit", "Parent"}, rows))
				return nil
			})
		},
	}
}

func accountsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Long: `Delete an account. Rules that reference it are kept but marked invalid
and are skipped until they are edited to point at existing accounts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				ok, err := cli.Confirm(cmd.Context(), os.Stdin, cmd.OutOrStdout(),
					fmt.Sprintf("Delete account %s?", args[0]))
				if err != nil || !ok {
					return err
				}
			}

			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				if err := store.DeleteAccount(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted account "+args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip confirmation")
	return cmd
}
