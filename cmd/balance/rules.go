package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/rulefile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage and apply balancing rules",
		Long: `Rules are tried in priority order (highest first, then oldest first).
The first rule that applies to an unbalanced transaction wins:

  edit           rename matching transactions
  complementary  generate offsetting entries split across destination accounts
  merge          pair complementary transactions (run with: balance rules merge)`,
	}

	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesToggleCmd("enable", true))
	cmd.AddCommand(rulesToggleCmd("disable", false))
	cmd.AddCommand(rulesApplyCmd())
	cmd.AddCommand(rulesApplyAllCmd())
	cmd.AddCommand(rulesMergeCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesExportCmd())

	return cmd
}

func rulesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a rule",
		Example: `  balance rules create "split groceries" --type complementary --pattern "grocery|market" \
    --entry-type debit --source checking --dest groceries=0.6 --dest dining=0.4 --auto-apply

  balance rules create "tidy amazon" --type edit --pattern AMZN --new-description Amazon

  balance rules create "card payments" --type merge --pattern "^payment" --max-days 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := ruleFromFlags(cmd, args[0])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				if err := store.CreateRule(cmd.Context(), rule); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s rule %d: %s", rule.Kind, rule.ID, rule.Name)))
				return nil
			})
		},
	}

	cmd.Flags().String("type", string(model.RuleKindComplementary), "rule type (edit, complementary, merge)")
	cmd.Flags().String("pattern", "", "case-insensitive regular expression matched against descriptions")
	cmd.Flags().String("entry-type", string(model.EntryFilterBoth), "entries considered (debit, credit, both)")
	cmd.Flags().StringArray("source", nil, "source account filter (repeatable)")
	cmd.Flags().StringArray("dest", nil, "destination as account=ratio or account=@amount (repeatable)")
	cmd.Flags().String("new-description", "", "replacement description for edit rules")
	cmd.Flags().Int("max-days", 0, "maximum date difference in days for merge rules")
	cmd.Flags().Int("priority", 0, "higher priorities are tried first")
	cmd.Flags().Bool("auto-apply", false, "apply automatically to imported transactions")
	cmd.Flags().Bool("disabled", false, "create the rule disabled")

	return cmd
}

func ruleFromFlags(cmd *cobra.Command, name string) (*model.Rule, error) {
	kind, _ := cmd.Flags().GetString("type")
	patternText, _ := cmd.Flags().GetString("pattern")
	entryType, _ := cmd.Flags().GetString("entry-type")
	sources, _ := cmd.Flags().GetStringArray("source")
	dests, _ := cmd.Flags().GetStringArray("dest")
	newDescription, _ := cmd.Flags().GetString("new-description")
	maxDays, _ := cmd.Flags().GetInt("max-days")
	priority, _ := cmd.Flags().GetInt("priority")
	autoApply, _ := cmd.Flags().GetBool("auto-apply")
	disabled, _ := cmd.Flags().GetBool("disabled")

	rule := &model.Rule{
		Name: name,
		Kind: model.RuleKind(kind),
		Criteria: model.Criteria{
			Pattern:        patternText,
			EntryType:      model.EntryFilter(entryType),
			SourceAccounts: sources,
		},
		Priority:  priority,
		AutoApply: autoApply,
		IsEnabled: !disabled,
	}

	switch rule.Kind {
	case model.RuleKindEdit:
		rule.Edit = &model.EditPayload{NewDescription: newDescription}
	case model.RuleKindMerge:
		rule.Merge = &model.MergePayload{MaxDateDifference: maxDays}
	case model.RuleKindComplementary:
		destinations, err := parseDestinations(dests)
		if err != nil {
			return nil, err
		}
		rule.Complementary = &model.ComplementaryPayload{Destinations: destinations}
	}
	return rule, nil
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in the order they are tried",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				rules, err := store.ListRules(cmd.Context())
				if err != nil {
					return err
				}
				if len(rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No rules yet. Create one with: balance rules create"))
					return nil
				}

				rows := make([][]string, 0, len(rules))
				for _, r := range rules {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10), r.Name, string(r.Kind), r.Pattern,
						strconv.Itoa(r.Priority), ruleState(&r),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Rules"))
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Type", "Pattern", "Priority", "State"}, rows))
				return nil
			})
		},
	}
}

func ruleState(r *model.Rule) string {
	var flags []string
	switch {
	case r.IsInvalid:
		flags = append(flags, cli.ErrorStyle.Render("invalid"))
	case r.IsEnabled:
		flags = append(flags, cli.SuccessStyle.Render("enabled"))
	default:
		flags = append(flags, cli.SubtleStyle.Render("disabled"))
	}
	if r.AutoApply {
		flags = append(flags, "auto")
	}
	return strings.Join(flags, ",")
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				rule, err := store.GetRule(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printRule(cmd.OutOrStdout(), rule)
			})
		},
	}
}

func printRule(w io.Writer, rule *model.Rule) error {
	var b strings.Builder
	if err := rulefile.Encode(&b, []model.Rule{*rule}); err != nil {
		return err
	}
	content := b.String()
	content += fmt.Sprintf("state: %s", ruleState(rule))
	if rule.IsInvalid {
		content += "\n" + cli.FormatWarning(rule.InvalidReason)
	}
	fmt.Fprintln(w, cli.RenderBox(fmt.Sprintf("Rule %d", rule.ID), content))
	return nil
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				if err := store.DeleteRule(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
				return nil
			})
		},
	}
}

func rulesToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				rule, err := store.GetRule(cmd.Context(), id)
				if err != nil {
					return err
				}
				rule.IsEnabled = enabled
				if err := store.UpdateRule(cmd.Context(), rule); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d %sd", id, use)))
				return nil
			})
		},
	}
}

func rulesApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <transaction-id>",
		Short: "Apply the first applicable rule to one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(store service.Storage, eng *engine.Engine) error {
				result, err := eng.ApplyRules(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !printApplyResult(out, result) {
					return nil
				}

				txn, err := store.GetTransaction(cmd.Context(), result.TransactionID)
				if err != nil {
					return err
				}
				printTransaction(out, txn)
				return nil
			})
		},
	}
}

func rulesApplyAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-all",
		Short: "Apply rules to every unbalanced transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				reporter := cli.NewBarReporter(cmd.ErrOrStderr(), "Applying rules")
				result, err := eng.ApplyToAll(cmd.Context(), reporter)
				if result != nil {
					printBulkResult(cmd.OutOrStdout(), "Rules applied", result)
				}
				return err
			})
		},
	}
}

func rulesMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <rule-id>",
		Short: "Run a merge rule, pairing complementary transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(_ service.Storage, eng *engine.Engine) error {
				reporter := cli.NewBarReporter(cmd.ErrOrStderr(), "Merging")
				result, err := eng.ApplyMergeRule(cmd.Context(), id, reporter)
				if result != nil {
					printBulkResult(cmd.OutOrStdout(), "Merge rule applied", result)
				}
				return err
			})
		},
	}
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create rules from a YAML rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open rule file: %w", err)
			}
			defer func() { _ = f.Close() }()

			rules, err := rulefile.Decode(f)
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				n, err := rulefile.Import(cmd.Context(), store, rules)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Imported "+cli.FormatCount(n, "rule")))
				return nil
			})
		},
	}
}

func rulesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.yaml]",
		Short: "Write every rule as YAML (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(store service.Storage, _ *engine.Engine) error {
				rules, err := store.ListRules(cmd.Context())
				if err != nil {
					return err
				}

				if len(args) == 0 {
					return rulefile.Encode(cmd.OutOrStdout(), rules)
				}

				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create rule file: %w", err)
				}
				if err := rulefile.Encode(f, rules); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to close rule file: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %s to %s",
					cli.FormatCount(len(rules), "rule"), args[0])))
				return nil
			})
		},
	}
}

func parseRuleID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q", value)
	}
	return id, nil
}
