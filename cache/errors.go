package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies failures of fetches and mutations.
type ErrorKind int

const (
	// KindNetwork covers transport failures, timeouts and unclassified errors.
	KindNetwork ErrorKind = iota + 1
	// KindServer is a non-2xx response from the API.
	KindServer
	// KindParse is a response body that does not match the expected shape.
	KindParse
	// KindConflict is a mutation rejected because another one on the same
	// target is still pending, or a 409 from the API.
	KindConflict
	// KindValidation is a request rejected before any network call.
	KindValidation
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNetwork    = errors.New("cache: network error")
	ErrServer     = errors.New("cache: server error")
	ErrParse      = errors.New("cache: parse error")
	ErrConflict   = errors.New("cache: conflict")
	ErrValidation = errors.New("cache: validation error")
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindServer:
		return ErrServer
	case KindParse:
		return ErrParse
	case KindConflict:
		return ErrConflict
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

// Stored reports whether errors of this kind are recorded on the cache
// entry. Conflict and validation errors are returned to the caller only.
func (k ErrorKind) Stored() bool {
	return k == KindNetwork || k == KindServer || k == KindParse
}

// Error is the single error type surfaced by fetches and mutations.
type Error struct {
	Kind    ErrorKind
	Op      string // endpoint or mutation kind
	Status  int    // HTTP status, server errors only
	Code    string // API error code, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("cache: ")
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ParseFailure reports whether the response body could not be decoded.
func (e *Error) ParseFailure() bool { return e.Kind == KindParse }

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork:
		return !errors.Is(e.Err, context.Canceled)
	case KindServer:
		return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// NetworkError wraps a transport failure.
func NetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// ServerError describes a non-2xx response.
func ServerError(op string, status int, code, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: KindServer, Op: op, Status: status, Code: code, Message: message}
}

// ParseError wraps a decoding failure.
func ParseError(op string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// ConflictError reports a pending mutation on target.
func ConflictError(op, target string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: "mutation already pending on " + target}
}

// ValidationError reports a request rejected before the network.
func ValidationError(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// classify returns err as an *Error, treating unclassified errors as
// network failures.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return NetworkError(op, err)
}
