// Package result defines the success/message pair returned by every
// operation that touches system state.
package result

import "fmt"

// Result reports whether an operation succeeded together with a
// human-readable message for the caller to display.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OK returns a successful Result.
func OK(msg string) Result {
	return Result{Success: true, Message: msg}
}

// Fail returns a failed Result.
func Fail(msg string) Result {
	return Result{Success: false, Message: msg}
}

// Failf returns a failed Result with a formatted message.
func Failf(format string, args ...any) Result {
	return Fail(fmt.Sprintf(format, args...))
}

// FromError maps a nil error to OK(okMsg) and anything else to a failure
// carrying the error text.
func FromError(err error, okMsg string) Result {
	if err != nil {
		return Fail(err.Error())
	}
	return OK(okMsg)
}

func (r Result) String() string {
	if r.Success {
		return "ok: " + r.Message
	}
	return "failed: " + r.Message
}
