package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/cli"
	"mercator-hq/ruler/pkg/store"
)

var rulesFlags struct {
	limit  int
	offset int
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored rules",
	Long: `List, show and delete rules persisted by the API server. The store is
the one configured in the storage section of the config file.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules, newest first",
	Args:  exactArgs(0),
	RunE:  listStoredRules,
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a stored rule",
	Args:  exactArgs(1),
	RunE:  getStoredRule,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored rule",
	Args:  exactArgs(1),
	RunE:  deleteStoredRule,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesGetCmd, rulesDeleteCmd)

	rulesCmd.PersistentFlags().StringVarP(&rulesFlags.format, "format", "o", "text", "output format: text, json, yaml")
	rulesListCmd.Flags().IntVar(&rulesFlags.limit, "limit", 20, "maximum number of rules (0 for all)")
	rulesListCmd.Flags().IntVar(&rulesFlags.offset, "offset", 0, "number of rules to skip")
}

// ruleList is the output of rules list.
type ruleList struct {
	Total int64               `json:"total" yaml:"total"`
	Rules []*store.StoredRule `json:"rules" yaml:"rules"`
}

func (l ruleList) Text() string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tRULE")
	for _, r := range l.Rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, dash(r.Name), humanize.Time(r.CreatedAt), truncate(r.RuleString, 60))
	}
	_ = tw.Flush()
	fmt.Fprintf(&sb, "\n%d of %s rule(s)\n", len(l.Rules), humanize.Comma(l.Total))
	return sb.String()
}

// storedRule is the output of rules get.
type storedRule struct {
	store.StoredRule `yaml:",inline"`
}

func (r storedRule) Text() string {
	return fmt.Sprintf("ID:       %s\nName:     %s\nRule:     %s\nCreated:  %s (%s)\nUpdated:  %s\n",
		r.ID, dash(r.Name), r.RuleString,
		r.CreatedAt.Format(time.RFC3339), humanize.Time(r.CreatedAt),
		r.UpdatedAt.Format(time.RFC3339),
	)
}

// openStore opens the configured store for a one-shot command.
func openStore() (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(&cfg.Storage, commandLogger(), nil)
}

func listStoredRules(cmd *cobra.Command, args []string) error {
	if rulesFlags.limit < 0 || rulesFlags.offset < 0 {
		return cli.NewUsageError("--limit and --offset must not be negative")
	}
	_, formatter, err := newFormatter(rulesFlags.format)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	list, err := st.List(ctx, store.ListOptions{Limit: rulesFlags.limit, Offset: rulesFlags.offset})
	if err != nil {
		return err
	}
	total, err := st.Count(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*store.StoredRule{}
	}
	return formatter.FormatTo(cmd.OutOrStdout(), ruleList{Total: total, Rules: list})
}

func getStoredRule(cmd *cobra.Command, args []string) error {
	_, formatter, err := newFormatter(rulesFlags.format)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rule, err := st.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), storedRule{*rule})
}

func deleteStoredRule(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
