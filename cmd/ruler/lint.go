package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/catalog"
	"mercator-hq/ruler/pkg/cli"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate catalog files",
	Long: `Validate rule catalog files.

Every entry must have a unique name and an expression that parses. Disabled
entries are checked too. Rule names must be unique across a directory.

Examples:
  # Lint single file
  ruler lint --file rules.yaml

  # Lint directory (recursively)
  ruler lint --dir rules/

  # JSON output for CI/CD
  ruler lint --dir rules/ --format json`,
	RunE: lintCatalog,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "catalog file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of catalog files")
	lintCmd.Flags().StringVarP(&lintFlags.format, "format", "o", "text", "output format: text, json, yaml")
}

// LintResult is the validation result for one catalog file.
type LintResult struct {
	File     string      `json:"file" yaml:"file"`
	Valid    bool        `json:"valid" yaml:"valid"`
	Rules    int         `json:"rules" yaml:"rules"`
	Disabled int         `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Issues   []LintIssue `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// LintIssue is one problem found in a catalog file.
type LintIssue struct {
	Rule    string `json:"rule,omitempty" yaml:"rule,omitempty"`
	Index   *int   `json:"index,omitempty" yaml:"index,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// LintReport is the output of lint.
type LintReport struct {
	Valid   bool         `json:"valid" yaml:"valid"`
	Results []LintResult `json:"results" yaml:"results"`
}

// Text renders the report for terminals.
func (r LintReport) Text() string {
	var out []byte
	invalid := 0
	for _, res := range r.Results {
		if res.Valid {
			out = fmt.Appendf(out, "✓ %s (%d rules", res.File, res.Rules)
			if res.Disabled > 0 {
				out = fmt.Appendf(out, ", %d disabled", res.Disabled)
			}
			out = append(out, ")\n"...)
			continue
		}
		invalid++
		out = fmt.Appendf(out, "✗ %s\n", res.File)
		for _, issue := range res.Issues {
			where := issue.Rule
			if where == "" && issue.Index != nil {
				where = fmt.Sprintf("#%d", *issue.Index)
			}
			if where != "" {
				out = fmt.Appendf(out, "    %s: %s\n", where, issue.Message)
			} else {
				out = fmt.Appendf(out, "    %s\n", issue.Message)
			}
		}
	}
	out = fmt.Appendf(out, "\n%d file(s) checked, %d invalid\n", len(r.Results), invalid)
	return string(out)
}

func lintCatalog(cmd *cobra.Command, args []string) error {
	if (lintFlags.file == "") == (lintFlags.dir == "") {
		return cli.NewUsageError("exactly one of --file or --dir must be specified")
	}
	_, formatter, err := newFormatter(lintFlags.format)
	if err != nil {
		return err
	}
	engine, err := engineFromFlags()
	if err != nil {
		return err
	}

	report, err := lintPath(catalog.NewLoader(engine), lintFlags.file+lintFlags.dir)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid {
		return errReported
	}
	return nil
}

// lintPath validates each catalog file under path on its own, then the
// whole set together to find names duplicated across files.
func lintPath(loader *catalog.Loader, path string) (LintReport, error) {
	files, err := loader.Files(path)
	if err != nil {
		return LintReport{}, err
	}

	report := LintReport{Valid: true, Results: make([]LintResult, 0, len(files))}
	index := make(map[string]int, len(files))
	for _, file := range files {
		res := LintResult{File: file, Valid: true}
		snap, err := loader.Load(file)
		if err != nil {
			res.Valid = false
			res.Issues = lintIssues(err)
		} else {
			res.Rules = snap.Len()
			res.Disabled = snap.Disabled()
		}
		index[file] = len(report.Results)
		report.Results = append(report.Results, res)
	}

	if len(files) > 1 {
		if _, err := loader.Load(path); err != nil {
			for _, e := range flatten(err) {
				var dup *catalog.DuplicateError
				if !errors.As(e, &dup) || dup.FirstFile == dup.SecondFile {
					continue
				}
				i, ok := index[dup.SecondFile]
				if !ok {
					continue
				}
				report.Results[i].Valid = false
				report.Results[i].Issues = append(report.Results[i].Issues, LintIssue{
					Rule:    dup.Name,
					Type:    "duplicate",
					Message: fmt.Sprintf("duplicate rule name (first defined in %s)", dup.FirstFile),
				})
			}
		}
	}

	for _, res := range report.Results {
		if !res.Valid {
			report.Valid = false
		}
	}
	return report, nil
}

func lintIssues(err error) []LintIssue {
	var issues []LintIssue
	for _, e := range flatten(err) {
		var ruleErr *catalog.RuleError
		var dup *catalog.DuplicateError
		var loadErr *catalog.LoadError
		switch {
		case errors.As(e, &ruleErr):
			issue := LintIssue{Rule: ruleErr.Name, Index: &ruleErr.Index, Message: ruleErr.Message}
			if ruleErr.Cause != nil {
				issue.Message = ruleErr.Cause.Error()
				if kind, ok := ruleErrors.KindOf(ruleErr.Cause); ok {
					issue.Type = string(kind)
				}
			}
			issues = append(issues, issue)
		case errors.As(e, &dup):
			issues = append(issues, LintIssue{Rule: dup.Name, Type: "duplicate", Message: "duplicate rule name"})
		case errors.As(e, &loadErr):
			msg := loadErr.Message
			if loadErr.Cause != nil {
				msg = fmt.Sprintf("%s: %v", msg, loadErr.Cause)
			}
			issues = append(issues, LintIssue{Type: "load", Message: msg})
		default:
			issues = append(issues, LintIssue{Message: e.Error()})
		}
	}
	return issues
}

// flatten returns the errors collected in an ErrorList, or err itself.
func flatten(err error) []error {
	var list *catalog.ErrorList
	if errors.As(err, &list) {
		return list.Errors
	}
	return []error{err}
}
