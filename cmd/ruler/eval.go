package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/cli"
	"mercator-hq/ruler/pkg/rules"
	"mercator-hq/ruler/pkg/rules/ast"
)

var evalFlags struct {
	rule   string
	ast    string
	data   string
	format string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a rule against a record",
	Long: `Evaluate a rule string or a canonical tree file against a JSON record
and print true or false. Evaluation errors (a missing attribute or a type
mismatch) exit with status 1.

--data takes a JSON object, @file to read one from a file, or @- for stdin.

Examples:
  ruler eval --rule "age > 30 AND department = 'Sales'" --data '{"age": 35, "department": "Sales"}'
  ruler eval --ast tree.json --data @record.json
  ruler parse "salary >= 50000" > tree.json && ruler eval --ast tree.json --data '{"salary": 60000}'`,
	RunE: evalRule,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFlags.rule, "rule", "r", "", "rule string to evaluate")
	evalCmd.Flags().StringVarP(&evalFlags.ast, "ast", "a", "", "canonical tree file (.json, .yaml or .yml)")
	evalCmd.Flags().StringVarP(&evalFlags.data, "data", "d", "", "record as JSON, @file or @-")
	evalCmd.Flags().StringVarP(&evalFlags.format, "format", "o", "text", "output format: text, json, yaml")
}

// evalResult is the output of eval.
type evalResult struct {
	Result bool `json:"result" yaml:"result"`
}

func (r evalResult) Text() string {
	return fmt.Sprintf("%t", r.Result)
}

func evalRule(cmd *cobra.Command, args []string) error {
	if (evalFlags.rule == "") == (evalFlags.ast == "") {
		return cli.NewUsageError("exactly one of --rule or --ast must be specified")
	}
	if evalFlags.data == "" {
		return cli.NewUsageError("--data must be specified")
	}
	_, formatter, err := newFormatter(evalFlags.format)
	if err != nil {
		return err
	}

	engine, err := engineFromFlags()
	if err != nil {
		return err
	}
	node, err := loadTree(engine, evalFlags.rule, evalFlags.ast)
	if err != nil {
		return err
	}
	data, err := readData(evalFlags.data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	matched, err := engine.Evaluate(node, data)
	if err != nil {
		return err
	}
	return formatter.FormatTo(cmd.OutOrStdout(), evalResult{Result: matched})
}

// loadTree parses rule, or reads a canonical tree from path.
func loadTree(engine *rules.Engine, rule, path string) (ast.Node, error) {
	if rule != "" {
		return engine.CreateRule(rule)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	parseRecord := ast.ParseRecordJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parseRecord = ast.ParseRecordYAML
	}
	rec, err := parseRecord(raw)
	if err != nil {
		return nil, err
	}
	return engine.DeserializeAST(rec)
}

// readData decodes the --data value into a record.
func readData(value string, stdin io.Reader) (map[string]interface{}, error) {
	var raw []byte
	switch {
	case value == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read record from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(value, "@"):
		b, err := os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read record file: %w", err)
		}
		raw = b
	default:
		raw = []byte(value)
	}

	var data map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil || data == nil {
		return nil, cli.NewUsageError("--data must be a JSON object")
	}
	return data, nil
}
