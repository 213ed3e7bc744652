package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // operation failure (seed rejected, lookup missed, etc.)
	ExitCommandError = 2 // command error (bad flags, missing files, unreadable database)
)

// Error codes carried in JSON error envelopes, stable across commands
// so scripts can branch on them.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeNotFound    = "E002" // path or record not found
	ErrCodeOpenFailed  = "E003" // database open failed
	ErrCodeSeedInvalid = "E004" // seed file failed schema validation
	ErrCodeSeedImport  = "E005" // seed import failed mid-way
)

// ExitError carries the process exit code alongside the error chain.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an existing error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error chain to a process exit code. Anything that
// is not an ExitError counts as an operation failure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope every command emits in json mode.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error half of the envelope.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter renders command results in the selected format.
// Commands write results through it so json mode stays machine-clean:
// the envelope goes to Writer, diagnostics to ErrWriter.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; defaults to Writer
	Verbose   bool
}

// emit writes the envelope in json mode, or runs the plain-text
// rendering otherwise.
func (f *OutputFormatter) emit(resp CLIResponse, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(resp)
	}
	text(f.Writer)
	return nil
}

// Success renders a successful result.
func (f *OutputFormatter) Success(data any) error {
	return f.emit(CLIResponse{Status: "ok", Data: data}, func(w io.Writer) {
		fmt.Fprintln(w, data)
	})
}

// Error renders a coded error.
func (f *OutputFormatter) Error(code, message string, details any) error {
	resp := CLIResponse{
		Status: "error",
		Error:  &CLIError{Code: code, Message: message, Details: details},
	}
	return f.emit(resp, func(w io.Writer) {
		fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
		if f.Verbose && details != nil {
			fmt.Fprintf(w, "Details: %v\n", details)
		}
	})
}

// VerboseLog prints a diagnostic line when verbose mode is on. It goes
// to ErrWriter when set so json output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
