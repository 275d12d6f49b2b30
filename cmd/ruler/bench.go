package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/cli"
	"mercator-hq/ruler/pkg/rules/ast"
)

var benchFlags struct {
	rule     string
	data     string
	n        int64
	progress bool
	format   string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure rule evaluation throughput",
	Long: `Parse a rule once and evaluate it n times against one record.

Examples:
  ruler bench --rule "age > 30 AND department = 'Sales'" --data '{"age": 35, "department": "Sales"}'
  ruler bench --rule "salary >= 50000" --data @record.json --n 1000000 --progress`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchFlags.rule, "rule", "r", "", "rule string to evaluate")
	benchCmd.Flags().StringVarP(&benchFlags.data, "data", "d", "", "record as JSON, @file or @-")
	benchCmd.Flags().Int64VarP(&benchFlags.n, "n", "n", 100000, "number of evaluations")
	benchCmd.Flags().BoolVar(&benchFlags.progress, "progress", false, "show a progress bar on stderr")
	benchCmd.Flags().StringVarP(&benchFlags.format, "format", "o", "text", "output format: text, json, yaml")
}

// BenchResult summarizes a benchmark run.
type BenchResult struct {
	Rule        string        `json:"rule" yaml:"rule"`
	Nodes       int           `json:"nodes" yaml:"nodes"`
	Evaluations int64         `json:"evaluations" yaml:"evaluations"`
	Matched     bool          `json:"matched" yaml:"matched"`
	ParseTime   time.Duration `json:"parse_ns" yaml:"parse_ns"`
	Elapsed     time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	PerEval     time.Duration `json:"per_eval_ns" yaml:"per_eval_ns"`
	EvalsPerSec float64       `json:"evals_per_sec" yaml:"evals_per_sec"`
}

// Text renders the result for terminals.
func (r BenchResult) Text() string {
	return fmt.Sprintf(
		"rule:        %s\nnodes:       %d\nmatched:     %t\nparse:       %s\nevaluations: %s in %s\nper eval:    %s\nthroughput:  %s\n",
		r.Rule, r.Nodes, r.Matched, r.ParseTime,
		humanize.Comma(r.Evaluations), r.Elapsed.Round(time.Microsecond),
		r.PerEval,
		cli.FormatRate(r.Evaluations, r.Elapsed, "evals"),
	)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.rule == "" || benchFlags.data == "" {
		return cli.NewUsageError("--rule and --data must be specified")
	}
	if benchFlags.n <= 0 {
		return cli.NewUsageError("--n must be positive")
	}
	_, formatter, err := newFormatter(benchFlags.format)
	if err != nil {
		return err
	}

	engine, err := engineFromFlags()
	if err != nil {
		return err
	}
	data, err := readData(benchFlags.data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	parseStart := time.Now()
	node, err := engine.CreateRule(benchFlags.rule)
	if err != nil {
		return err
	}
	parseTime := time.Since(parseStart)

	// Fail fast on a record that does not fit the rule.
	matched, err := engine.Evaluate(node, data)
	if err != nil {
		return err
	}

	var progress cli.ProgressReporter
	if benchFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "evals")
		progress.Start(benchFlags.n)
	}

	start := time.Now()
	for i := int64(1); i <= benchFlags.n; i++ {
		if _, err := engine.Evaluate(node, data); err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return err
		}
		if progress != nil && i%1024 == 0 {
			progress.Update(i)
		}
	}
	elapsed := time.Since(start)
	if progress != nil {
		progress.Finish()
	}

	result := BenchResult{
		Rule:        benchFlags.rule,
		Nodes:       ast.Count(node),
		Evaluations: benchFlags.n,
		Matched:     matched,
		ParseTime:   parseTime,
		Elapsed:     elapsed,
		PerEval:     elapsed / time.Duration(benchFlags.n),
	}
	if elapsed > 0 {
		result.EvalsPerSec = float64(benchFlags.n) / elapsed.Seconds()
	}
	return formatter.FormatTo(cmd.OutOrStdout(), result)
}
