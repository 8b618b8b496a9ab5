package maven

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError is the kind every non-fatal resolution fault is surfaced as:
// malformed repository URLs, unresolved property placeholders, missing
// artifacts, managed entries without a version, parent cycles.
type ParseError struct {
	msg   string
	cause error
}

func (e *ParseError) Error() string {
	if e.msg != "" && e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	if e.msg != "" {
		return e.msg
	}
	return e.cause.Error()
}

func (e *ParseError) Unwrap() error { return e.cause }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// wrapParseError returns err itself when it already is a ParseError, and a
// ParseError wrapping it otherwise.
func wrapParseError(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{cause: err}
}

// CycleError reports a POM that is its own ancestor through parent
// declarations. Chain holds the parents seen on the way, in sighting order.
type CycleError struct {
	GAV   GAV
	Chain []GAV
}

func (e *CycleError) Error() string {
	chain := make([]string, len(e.Chain))
	for i, gav := range e.Chain {
		chain[i] = gav.String()
	}
	return fmt.Sprintf("cycle in parent poms detected: %s is its own parent by way of these poms:\n%s",
		e.GAV, strings.Join(chain, "\n"))
}
