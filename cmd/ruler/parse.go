package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/cli"
	"mercator-hq/ruler/pkg/rules/ast"
)

var parseFlags struct {
	format string
}

var parseCmd = &cobra.Command{
	Use:   "parse <rule>",
	Short: "Print the canonical tree of a rule",
	Long: `Parse a rule string and print its canonical tree record.

Examples:
  # Canonical JSON
  ruler parse "age > 30 AND department = 'Sales'"

  # YAML
  ruler parse --format yaml "salary >= 50000"

  # Fully parenthesized rule string
  ruler parse --format text "a = 1 OR b = 2 AND c = 3"`,
	Args: exactArgs(1),
	RunE: parseRule,
}

var combineFlags struct {
	format string
}

var combineCmd = &cobra.Command{
	Use:   "combine [rule...]",
	Short: "Combine rules with AND and print the tree",
	Long: `Parse every rule and fold them left to right with AND:
combine(r1, r2, r3) = ((r1 AND r2) AND r3). With no rules the result is null.

Examples:
  ruler combine "age > 30" "department = 'Sales'"`,
	RunE: combineRules,
}

func init() {
	rootCmd.AddCommand(parseCmd, combineCmd)

	parseCmd.Flags().StringVarP(&parseFlags.format, "format", "o", "json", "output format: json, yaml, text")
	combineCmd.Flags().StringVarP(&combineFlags.format, "format", "o", "json", "output format: json, yaml, text")
}

func parseRule(cmd *cobra.Command, args []string) error {
	format, _, err := newFormatter(parseFlags.format)
	if err != nil {
		return err
	}
	engine, err := engineFromFlags()
	if err != nil {
		return err
	}

	node, err := engine.CreateRule(args[0])
	if err != nil {
		return err
	}
	return printTree(cmd, format, node)
}

func combineRules(cmd *cobra.Command, args []string) error {
	format, _, err := newFormatter(combineFlags.format)
	if err != nil {
		return err
	}
	engine, err := engineFromFlags()
	if err != nil {
		return err
	}

	node, err := engine.CombineRules(args)
	if err != nil {
		return err
	}
	return printTree(cmd, format, node)
}

// printTree writes node as its canonical record, or as a rule string in
// text format. A nil tree prints as null.
func printTree(cmd *cobra.Command, format cli.OutputFormat, node ast.Node) error {
	out := cmd.OutOrStdout()
	var data []byte
	var err error
	switch format {
	case cli.FormatText:
		if node == nil {
			_, err := fmt.Fprintln(out, "null")
			return err
		}
		_, err := fmt.Fprintln(out, node.String())
		return err
	case cli.FormatYAML:
		data, err = ast.EncodeYAML(node)
	default:
		data, err = ast.EncodeJSON(node)
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return cli.NewUsageError(fmt.Sprintf("%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args)))
		}
		return nil
	}
}
