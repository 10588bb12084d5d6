// Package failure classifies errors produced while building and running
// image sequence renders.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a failure.
type Kind uint8

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindIO covers filesystem and process launch failures.
	KindIO
	// KindDecode covers data that could not be decoded: captured output
	// that is not valid UTF-8, or unreadable image headers.
	KindDecode
	// KindParse covers values that could not be parsed, such as codec
	// names, frame rates or serialized configs.
	KindParse
	// KindInvalid covers domain validation failures.
	KindInvalid
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindParse:
		return "parse"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. It returns nil when err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IO wraps err as a KindIO failure.
func IO(op string, err error) error {
	return New(KindIO, op, err)
}

// Decode wraps err as a KindDecode failure.
func Decode(op string, err error) error {
	return New(KindDecode, op, err)
}

// Parse wraps err as a KindParse failure.
func Parse(op string, err error) error {
	return New(KindParse, op, err)
}

// Invalid wraps err as a KindInvalid failure.
func Invalid(op string, err error) error {
	return New(KindInvalid, op, err)
}

// KindOf returns the kind of the outermost classified error in err's
// chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
