package cli

import (
	"errors"
	"testing"
)

func TestCommandError(t *testing.T) {
	inner := errors.New("boom")
	err := NewCommandError("eval", inner)

	if err.Error() != "command eval failed: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("CommandError does not unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "usage", err: NewUsageError("missing --rule"), want: ExitUsage},
		{name: "wrapped usage", err: NewCommandError("eval", NewUsageError("bad --data")), want: ExitUsage},
		{name: "failure", err: errors.New("evaluation failed"), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
