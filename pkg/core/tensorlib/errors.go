// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensorlib

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures of a tensor library, mirroring the exception classes error
// fixtures expect.
type ErrorKind int

const (
	// RuntimeError is the default kind.
	RuntimeError ErrorKind = iota
	ValueError
	TypeError
	IndexError
	NotImplementedError
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case RuntimeError:
		return "RuntimeError"
	case ValueError:
		return "ValueError"
	case TypeError:
		return "TypeError"
	case IndexError:
		return "IndexError"
	case NotImplementedError:
		return "NotImplementedError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is an error classified with an ErrorKind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

// Error implements the error interface: it returns only the message, so regular expressions can match it.
func (e *Error) Error() string { return e.Msg }

// Errorf creates an error of the given kind, with a stack trace attached.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// Classify wraps err (if not nil) with the given kind, keeping its message. If err is already classified it's
// returned unchanged.
func Classify(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return errors.WithStack(&Error{Kind: kind, Msg: err.Error()})
}

// KindOf returns the kind of err: the kind of the first *Error in its chain, or RuntimeError if
// there is none.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return RuntimeError
}
