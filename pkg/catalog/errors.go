package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRuleNotFound is returned when the catalog has no rule with a name.
var ErrRuleNotFound = errors.New("catalog rule not found")

// LoadError is a failure to read or decode a catalog file.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load catalog file %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load catalog file %q: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// RuleError is an invalid rule entry in a catalog file. Cause is a rule
// error (lex or parse) when the expression itself is invalid.
type RuleError struct {
	FilePath string
	Index    int    // Position of the entry in the file's rule list
	Name     string // Empty when the entry has no name
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("%s: rule %s: %s", e.FilePath, name, msg)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Cause
}

// DuplicateError reports a rule name defined more than once.
type DuplicateError struct {
	Name       string
	FirstFile  string
	SecondFile string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate rule name %q in %s (first defined in %s)", e.Name, e.SecondFile, e.FirstFile)
}

// ErrorList collects every problem found while loading a catalog.
type ErrorList struct {
	Errors []error
}

// Error implements the error interface.
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors occurred:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %v\n", i+1, err)
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *ErrorList) Unwrap() []error {
	return e.Errors
}

// Add appends err when it is non-nil.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was added.
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns nil, the single error, or the list itself.
func (e *ErrorList) ToError() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	default:
		return e
	}
}
