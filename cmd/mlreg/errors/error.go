// Package errors provides errors shown to users of the command line.
package errors

import (
	"fmt"
	"strings"
)

type Verbose interface {
	Verbose() string
}

// CUIError is an error with a short summary for users,
// and a verbose form with details and the cause for troubleshooting.
type CUIError interface {
	error
	Verbose
	Unwrap() error
}

type cuiError struct {
	summary string
	detail  string
	hint    string
	cause   error
}

func (ce *cuiError) Unwrap() error {
	return ce.cause
}

func (ce *cuiError) Error() string {
	lines := []string{ce.summary}
	if ce.detail != "" {
		lines = append(lines, ce.detail)
	}
	if ce.hint != "" {
		lines = append(lines, "hint: "+ce.hint)
	}
	return strings.Join(lines, "\n")
}

func (ce *cuiError) Verbose() string {
	switch c := ce.cause.(type) {
	case nil:
		return ce.Error()
	case Verbose:
		return fmt.Sprintf("%s\ncaused by: %s", ce.Error(), c.Verbose())
	default:
		return fmt.Sprintf("%s\ncaused by: %s", ce.Error(), c.Error())
	}
}

type Option func(*cuiError)

func NewCuiError(summary string, options ...Option) CUIError {
	ce := &cuiError{summary: summary}
	for _, o := range options {
		o(ce)
	}
	return ce
}

func WithCause(err error) Option {
	return func(ce *cuiError) {
		ce.cause = err
	}
}

// WithDetail adds a message which is printed following the summary.
func WithDetail(detail string) Option {
	return func(ce *cuiError) {
		ce.detail = detail
	}
}

// WithHint adds an advice for users to fix the error.
func WithHint(hint string) Option {
	return func(ce *cuiError) {
		ce.hint = hint
	}
}
