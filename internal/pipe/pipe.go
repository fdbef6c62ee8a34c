// Package pipe holds the errors pipes use to report that they were skipped.
package pipe

import (
	"errors"
	"fmt"
	"strings"
)

// IsSkip returns true if the error is an ErrSkip.
func IsSkip(err error) bool {
	return errors.As(err, &ErrSkip{})
}

// ErrSkip occurs when a pipe is skipped for some reason.
type ErrSkip struct {
	reason string
}

// Error implements the error interface. returns the reason the pipe was skipped.
func (e ErrSkip) Error() string {
	return e.reason
}

// Skip skips this pipe with the given reason.
func Skip(reason string) ErrSkip {
	return ErrSkip{reason: reason}
}

// Skipf skips this pipe with a formatted reason.
func Skipf(format string, a ...any) ErrSkip {
	return Skip(fmt.Sprintf(format, a...))
}

// SkipMemento remembers failures that should not stop the run so they can
// be reported together as a skip.
type SkipMemento struct {
	skips []string
}

// Remember a failure. Duplicate messages are kept once.
func (e *SkipMemento) Remember(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	for _, skip := range e.skips {
		if skip == msg {
			return
		}
	}
	e.skips = append(e.skips, msg)
}

// Len returns how many failures were remembered.
func (e *SkipMemento) Len() int { return len(e.skips) }

// Evaluate return a skip error with all previous skips, or nil if none happened.
func (e *SkipMemento) Evaluate() error {
	if len(e.skips) == 0 {
		return nil
	}
	return Skip(strings.Join(e.skips, ", "))
}
