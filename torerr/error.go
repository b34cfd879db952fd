/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package torerr

import (
	"errors"
	"fmt"
)

// Error is the error type returned across the control protocol engine and
// the runtime manager. Code carries the 3-digit control-port status for
// Refused/Internal kinds, and is zero otherwise.
type Error struct {
	kind  Kind
	code  int
	msg   string
	cause error
	frame frame
}

// New builds an Error of the given Kind with a human message and an
// optional cause. The call site is captured automatically.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{
		kind:  kind,
		msg:   msg,
		cause: cause,
		frame: capture(),
	}
}

// NewCode builds a Refused or Internal Error carrying the control-port
// status code (e.g. 510, 551).
func NewCode(kind Kind, code int, msg string) *Error {
	e := New(kind, msg, nil)
	e.code = code
	return e
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Code() int { return e.code }

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	loc := e.frame.String()
	base := fmt.Sprintf("%s: %s", e.kind, e.msg)
	if e.code != 0 {
		base = fmt.Sprintf("%s (%d): %s", e.kind, e.code, e.msg)
	}
	if loc != "" {
		base = base + " [" + loc + "]"
	}
	if e.cause != nil {
		base = base + ": " + e.cause.Error()
	}
	return base
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports equality on Kind, so callers can write errors.Is(err, torerr.Closed)
// style checks against a sentinel built from Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.kind == e.kind && (t.code == 0 || t.code == e.code)
	}
	return false
}

// Sentinel returns a bare Error of the given Kind, suitable as the target of
// errors.Is(err, torerr.Sentinel(torerr.Closed)).
func Sentinel(kind Kind) *Error {
	return &Error{kind: kind}
}

// Of extracts the *Error in err's chain, if any.
func Of(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf returns the Kind carried by err, or false if err does not wrap an
// Error produced by this package.
func KindOf(err error) (Kind, bool) {
	e, ok := Of(err)
	if !ok {
		return 0, false
	}
	return e.kind, true
}
