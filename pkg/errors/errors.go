// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err).
//
// Errors declared with New are meant to be used as sentinel kinds:
// wrapping a cause or adding a detail returns a fresh error which still
// matches its sentinel with Is.
package errors

import (
	stderr "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg  string
	err  error
	kind *Error
}

// Error message
func (e *Error) Error() string {
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Kind returns the sentinel this error derives from
func (e *Error) Kind() *Error {
	if e.kind != nil {
		return e.kind
	}
	return e
}

// Wrap a nested error
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, kind: e.Kind()}
}

// Describe appends some detail to the error message
func (e *Error) Describe(format string, args ...interface{}) *Error {
	return &Error{msg: e.msg + ": " + fmt.Sprintf(format, args...), err: e.err, kind: e.Kind()}
}

// WrapWithLog wraps a nested error and logs the result as an error
func (e *Error) WrapWithLog(l *zap.Logger, err error, fields ...zap.Field) *Error {
	w := e.Wrap(err)
	if l != nil {
		l.Error(w.Error(), append(fields, zap.String("chain", Chain(w)))...)
	}
	return w
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return e.err == target
	}
	return e == t || e.Kind() == t || e.err == target
}

// Chain renders an error with all its causes, one per level
func Chain(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	for level := 0; err != nil; level++ {
		if level > 0 {
			b.WriteString("\nFrom:\n")
		}
		b.WriteString(err.Error())
		err = stderr.Unwrap(err)
	}
	return b.String()
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.As)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
