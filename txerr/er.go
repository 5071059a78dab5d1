// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txerr provides the typed-error machinery used throughout this
// module, adapted from pktd's btcutil/er package: callers can branch on a
// *category* of failure (ErrorCode) without string-matching the message,
// and every error remembers the cause it wraps.
package txerr

import (
	"errors"
	"fmt"
)

// R is the error type returned throughout this module in place of the
// built-in error. It behaves like error (it has an Error() string method)
// but additionally remembers the ErrorCode it was constructed from, if any,
// and the underlying cause it wraps.
type R interface {
	error
	Code() *ErrorCode
	Unwrap() error
}

type typedErr struct {
	msg     string
	code    *ErrorCode
	wrapped error
}

func (e *typedErr) Error() string {
	if e.wrapped == nil {
		return e.msg
	}
	return e.msg + ": " + e.wrapped.Error()
}

func (e *typedErr) Code() *ErrorCode { return e.code }
func (e *typedErr) Unwrap() error    { return e.wrapped }

// ErrorType groups a family of related ErrorCodes, the way a package groups
// its sentinel errors.
type ErrorType struct {
	Name  string
	Codes []*ErrorCode
}

// ErrorCode identifies one specific kind of fault within an ErrorType.
type ErrorCode struct {
	Type *ErrorType
	Name string
}

// NewErrorType creates a new, empty error family identified by name, e.g.
// var Err = txerr.NewErrorType("txdb.Err").
func NewErrorType(name string) *ErrorType {
	return &ErrorType{Name: name}
}

// Code registers and returns a new ErrorCode under this type.
func (t *ErrorType) Code(name string) *ErrorCode {
	c := &ErrorCode{Type: t, Name: name}
	t.Codes = append(t.Codes, c)
	return c
}

// Is reports whether err was produced from this ErrorCode (directly, or by
// wrapping with New/Errorf).
func (c *ErrorCode) Is(err error) bool {
	if err == nil {
		return false
	}
	var te *typedErr
	if errors.As(err, &te) {
		return te.code == c
	}
	return false
}

// New constructs an R of this code, wrapping cause (which may be nil).
func (c *ErrorCode) New(msg string, cause error) R {
	return &typedErr{msg: msg, code: c, wrapped: cause}
}

// Errorf constructs an R of this code with a formatted message.
func (c *ErrorCode) Errorf(format string, a ...interface{}) R {
	return &typedErr{msg: fmt.Sprintf(format, a...), code: c}
}

// Is reports whether err belongs to this ErrorType (any of its codes).
func (t *ErrorType) Is(err error) bool {
	if err == nil {
		return false
	}
	var te *typedErr
	if errors.As(err, &te) {
		return te.code != nil && te.code.Type == t
	}
	return false
}

// New wraps a plain message with no associated code, for ad-hoc errors that
// do not need to be matched by category.
func New(msg string) R {
	return &typedErr{msg: msg}
}

// Errorf is fmt.Errorf returning R.
func Errorf(format string, a ...interface{}) R {
	return &typedErr{msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches msg as context to an existing error without changing its
// code.
func Wrap(msg string, cause error) R {
	if cause == nil {
		return nil
	}
	var te *typedErr
	if errors.As(cause, &te) {
		return &typedErr{msg: msg, code: te.code, wrapped: cause}
	}
	return &typedErr{msg: msg, wrapped: cause}
}
