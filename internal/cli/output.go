package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/can1357/retro/internal/compiler"
	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every document generated or skipped
	ExitFailure      = 1 // At least one document failed
	ExitCommandError = 2 // Command error (invalid paths, bad configuration, unreadable cache, etc.)
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string      `json:"status"`           // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`   // command result
	Error  *CLIError   `json:"error,omitempty"`  // first failure
	RunID  string      `json:"run_id,omitempty"` // batch the response reports on
}

// CLIError describes one failure.
type CLIError struct {
	Code    string      `json:"code"` // "E001", "RULE_PARSE", "E201", ...
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorDetails locates a document error.
type ErrorDetails struct {
	// Subject is the declaration name or raw rule text.
	Subject string `json:"subject,omitempty"`

	// Position is file:line:column of a decode error.
	Position string `json:"position,omitempty"`

	// Problems lists every structural problem of a document that failed
	// validation.
	Problems []compiler.ValidationError `json:"problems,omitempty"`
}

func (d ErrorDetails) empty() bool {
	return d.Subject == "" && d.Position == "" && len(d.Problems) == 0
}

// errorCode classifies an error for reporting: its diag code, the code of
// its first validation problem, or its command-level code.
func errorCode(err error) string {
	var de *diag.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// newCLIError converts err for output. The code is not repeated in the
// message.
func newCLIError(err error) *CLIError {
	e := &CLIError{Code: errorCode(err)}

	var le *LoadError
	if errors.As(err, &le) {
		e.Message = le.Message
		if le.Err != nil {
			e.Message = fmt.Sprintf("%s: %v", le.Message, le.Err)
		}
	} else {
		e.Message = strings.TrimPrefix(err.Error(), e.Code+": ")
	}

	var d ErrorDetails
	var de *diag.Error
	if errors.As(err, &de) {
		d.Subject = de.Subject
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) && ce.Pos.IsValid() {
		d.Position = fmt.Sprintf("%s:%d:%d", ce.Pos.Filename(), ce.Pos.Line(), ce.Pos.Column())
	}
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		d.Problems = verrs
	}
	if !d.empty() {
		e.Details = d
	}
	return e
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; defaults to Writer
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // keeps verbose lines out of JSON
		Verbose:   opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format. Details are printed
// in text mode only when verbose.
func (f *OutputFormatter) Error(e *CLIError) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "error", Error: e})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if f.Verbose {
		f.writeDetails(e.Details)
	}
	return nil
}

func (f *OutputFormatter) writeDetails(details interface{}) {
	switch d := details.(type) {
	case nil:
	case ErrorDetails:
		if d.Subject != "" {
			fmt.Fprintf(f.Writer, "  in: %s\n", d.Subject)
		}
		if d.Position != "" {
			fmt.Fprintf(f.Writer, "  at: %s\n", d.Position)
		}
		for _, p := range d.Problems {
			fmt.Fprintf(f.Writer, "  %s\n", p.Error())
		}
	default:
		fmt.Fprintf(f.Writer, "Details: %v\n", d)
	}
}

// CommandError reports a failure that stopped the command before or
// outside document processing. It returns an ExitError with exit code 2.
func (f *OutputFormatter) CommandError(err error) error {
	e := newCLIError(err)
	_ = f.Error(e)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", e.Code, e.Message))
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Summary writes a batch result. Any failed document makes the command
// fail with exit code 1.
func (f *OutputFormatter) Summary(res GenerationResult) error {
	failed := res.firstFailure()

	if f.isJSON() {
		resp := CLIResponse{Status: "ok", Data: res, RunID: res.RunID}
		if failed != nil {
			resp.Status = "error"
			resp.Error = failed.Error
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		for _, doc := range res.Documents {
			f.writeDocument(doc)
		}
		fmt.Fprintf(f.Writer, "\n%d generated, %d skipped, %d failed\n", res.Generated, res.Skipped, res.Failed)
	}

	if failed != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("%d document(s) failed", res.Failed))
	}
	return nil
}

func (f *OutputFormatter) writeDocument(doc DocumentReport) {
	switch engine.Status(doc.Status) {
	case engine.StatusFailed:
		fmt.Fprintf(f.Writer, "✗ %s\n", doc.Path)
		fmt.Fprintf(f.Writer, "  %s: %s\n", doc.Error.Code, doc.Error.Message)
		if f.Verbose {
			f.writeDetails(doc.Error.Details)
		}
	case engine.StatusSkipped:
		f.VerboseLog("- %s (unchanged)", doc.Path)
	default:
		label := doc.Namespace
		if doc.Kind == string(engine.KindRules) {
			label = fmt.Sprintf("%d functions", doc.Functions)
		}
		fmt.Fprintf(f.Writer, "✓ %s (%s)\n", doc.Path, label)
	}
}

// Validation writes the outcome of validate. Invalid documents make the
// command fail with exit code 1.
func (f *OutputFormatter) Validation(res ValidationResult) error {
	if res.Valid {
		if f.isJSON() {
			return f.Success(res)
		}
		fmt.Fprintf(f.Writer, "✓ All documents valid (%d checked)\n", res.Documents)
		return nil
	}

	if f.isJSON() {
		if err := f.encode(CLIResponse{Status: "error", Data: res, Error: res.Errors[0].Error}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, "✗ Validation failed")
		fmt.Fprintln(f.Writer)
		for _, doc := range res.Errors {
			fmt.Fprintln(f.Writer, doc.Path)
			fmt.Fprintf(f.Writer, "  %s: %s\n", doc.Error.Code, doc.Error.Message)
			if f.Verbose {
				f.writeDetails(doc.Error.Details)
			}
			fmt.Fprintln(f.Writer)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(res.Errors)))
}

// Expansion writes one permutation per line, or the whole result as JSON.
func (f *OutputFormatter) Expansion(res ExpansionResult) error {
	if f.isJSON() {
		return f.Success(res)
	}
	for _, p := range res.Permutations {
		fmt.Fprintln(f.Writer, p)
	}
	f.VerboseLog("%d permutation(s)", len(res.Permutations))
	return nil
}
