/*
Package cli provides output and process helpers for the ruler command.

Output Formatting:

Commands print results as text, JSON or YAML depending on --format:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Results that implement Texter control their own text rendering.

Progress Reporting:

Long benchmarks report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "evals")
	progress.Start(n)
	for i := int64(1); i <= n; i++ {
		// evaluate
		progress.Update(i)
	}
	progress.Finish()

Exit Codes:

ExitCode maps a command error to the process status: 2 for usage errors
and 1 for any other failure.
*/
package cli
