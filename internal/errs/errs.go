// Package errs defines the failure taxonomy surfaced by the document engine.
//
// Every failure returned by the service layer is an *Error whose Kind is one of
// the sentinel kinds below, so callers can branch with errors.Is:
//
//	if errors.Is(err, errs.NotFound) { ... }
package errs

import (
	"errors"
	"strings"
)

// Failure kinds.
var (
	// InvalidRequest: missing caller identity, disallowed MIME type, oversize or
	// malicious file, malformed version number or expiry.
	InvalidRequest = errors.New("invalid request")
	// NotFound: unknown document id or version number.
	NotFound = errors.New("not found")
	// Forbidden: the read or write access check failed.
	Forbidden = errors.New("forbidden")
	// StorageFailure: signing misconfiguration, transport error or a non-success
	// response from the object store.
	StorageFailure = errors.New("storage failure")
)

// Error carries a failure kind plus the context needed to log or audit it.
type Error struct {
	Kind       error
	Op         string
	DocumentID string
	Field      string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.DocumentID != "" {
		b.WriteString("document ")
		b.WriteString(e.DocumentID)
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Invalid builds an InvalidRequest failure for field.
func Invalid(op, field, msg string) error {
	return &Error{Kind: InvalidRequest, Op: op, Field: field, Err: errors.New(msg)}
}

// InvalidDocument is Invalid scoped to a document.
func InvalidDocument(op, id, field string, err error) error {
	return &Error{Kind: InvalidRequest, Op: op, DocumentID: id, Field: field, Err: err}
}

// NotFoundDocument builds a NotFound failure for a document id.
func NotFoundDocument(op, id string, err error) error {
	return &Error{Kind: NotFound, Op: op, DocumentID: id, Err: err}
}

// ForbiddenDocument builds a Forbidden failure for a document id.
func ForbiddenDocument(op, id string) error {
	return &Error{Kind: Forbidden, Op: op, DocumentID: id}
}

// Storage builds a StorageFailure. key is the object key involved, if any.
func Storage(op, key string, err error) error {
	return &Error{Kind: StorageFailure, Op: op, Field: key, Err: err}
}

// KindOf returns the failure kind of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, k := range []error{InvalidRequest, NotFound, Forbidden, StorageFailure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// FieldOf returns the offending field recorded on err, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// Message returns the innermost human-readable cause of err without the
// operation prefix, suitable for InvalidRequest responses.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	if e != nil {
		return e.Kind.Error()
	}
	return err.Error()
}
