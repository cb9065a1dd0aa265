// Package errors defines the error handling used across the stac-repository
// codebase. It follows the design in
// https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html:
// a single Error type carrying an operation, a kind, a path (href) and a
// wrapped cause, built up incrementally as an error is returned up the
// call stack.
package errors

import (
	"fmt"
	"strings"
)

// Error is the error implementation used throughout this module.
type Error struct {
	// Href is the href of the object or asset involved in the operation.
	Href string

	// Op is the operation being performed, e.g. "stac.Load", "transaction.Catalog".
	Op Op

	// Kind classifies the error.
	Kind Kind

	// Sub carries a backend-defined sub-case for Kind values that have one
	// (CatalogError, UncatalogError), e.g. "parent-not-found".
	Sub string

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}

	if e.Href != "" {
		pad(b, ": ")
		b.WriteString("href ")
		b.WriteString(e.Href)
	}

	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
		if e.Sub != "" {
			b.WriteString(":")
			b.WriteString(e.Sub)
		}
	}

	if e.Err != nil {
		if wrapped, ok := e.Err.(*Error); ok {
			if !wrapped.Zero() {
				pad(b, ":\n\t")
				b.WriteString(wrapped.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Unwrap allows errors.Is/errors.As from the standard library to see through
// the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

// Zero reports whether e carries no information at all.
func (e *Error) Zero() bool {
	return e.Op == "" && e.Href == "" && e.Kind == Other && e.Sub == "" && e.Err == nil
}

// Op describes the operation being performed when the error occurred.
type Op string

// Sub is a backend-defined sub-case string, used with CatalogError and
// UncatalogError.
type Sub string

// Kind classifies the error per spec §7.
type Kind int

const (
	Other Kind = iota // Unclassified; not printed.

	RepositoryAlreadyInitialised
	RepositoryNotFound
	CommitNotFound
	RefTypeError
	ConfigError
	ProcessorNotFound
	ProcessingError
	StacObjectError
	JSONObjectError
	HrefError
	FileNotFound
	CatalogError
	UncatalogError
	BackupInvalid
	NotSupported
	TransactionLockHeld
	ErrorGroupKind
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case RepositoryAlreadyInitialised:
		return "repository-already-initialised"
	case RepositoryNotFound:
		return "repository-not-found"
	case CommitNotFound:
		return "commit-not-found"
	case RefTypeError:
		return "ref-type-error"
	case ConfigError:
		return "config-error"
	case ProcessorNotFound:
		return "processor-not-found"
	case ProcessingError:
		return "processing-error"
	case StacObjectError:
		return "stac-object-error"
	case JSONObjectError:
		return "json-object-error"
	case HrefError:
		return "href-error"
	case FileNotFound:
		return "file-not-found"
	case CatalogError:
		return "catalog-error"
	case UncatalogError:
		return "uncatalog-error"
	case BackupInvalid:
		return "backup-invalid"
	case NotSupported:
		return "not-supported"
	case TransactionLockHeld:
		return "transaction-lock-held"
	case ErrorGroupKind:
		return "error-group"
	}
	return "unknown kind"
}

// E builds an *Error from its arguments, whose type selects which field they
// populate. At least one argument must be given. If Err is itself an *Error,
// fields that are redundant between the outer and inner error are cleared on
// the inner copy so printing doesn't repeat itself.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case string:
			// A plain string is always taken as a message and becomes the
			// wrapped cause; callers that want an href pass it as an Href.
			e.Err = fmt.Errorf("%s", a)
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case Sub:
			e.Sub = string(a)
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case Href:
			e.Href = string(a)
		default:
			panic(fmt.Sprintf("unknown type %T for value %v in call to errors.E", a, a))
		}
	}

	wrapped, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	if e.Href != "" && e.Href == wrapped.Href {
		wrapped.Href = ""
	}
	if e.Op != "" && e.Op == wrapped.Op {
		wrapped.Op = ""
	}
	if e.Kind != Other && e.Kind == wrapped.Kind {
		wrapped.Kind = Other
	}

	return e
}

// Href is a typed wrapper so callers can pass an href to E without it being
// mistaken for a plain error message.
type Href string

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		return false
	}
	return false
}

// kinder is implemented by error types that classify themselves outside the
// *Error chain, such as ErrorGroup.
type kinder interface {
	Kind() Kind
}

// KindOf extracts the Kind of err, or Other if err is not (or does not wrap)
// an *Error or a kinder.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind != Other {
				return e.Kind
			}
			err = e.Err
			continue
		}
		if k, ok := err.(kinder); ok {
			return k.Kind()
		}
		return Other
	}
	return Other
}
