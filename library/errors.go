package library

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateISBN    = errors.New("a book with this ISBN already exists")
	ErrBookOnLoan       = errors.New("book has lending records and cannot be deleted")
	ErrMemberHasLoans   = errors.New("member has lending records and cannot be deleted")
	ErrBookNotAvailable = errors.New("book is not available")
	ErrInvalidDateRange = errors.New("due date must be after the lending date")
	ErrAlreadyReturned  = errors.New("lending already returned")
)

// Kind names a record kind held by the store.
type Kind string

const (
	KindBook    Kind = "book"
	KindMember  Kind = "member"
	KindLending Kind = "lending"
)

// NotFoundError reports an id that does not resolve to a record. Lookups
// that are not by id set Desc instead.
type NotFoundError struct {
	Kind Kind
	ID   int64
	Desc string
}

func (e *NotFoundError) Error() string {
	if e.Desc != "" {
		return fmt.Sprintf("%s not found: %s", e.Kind, e.Desc)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsNotFound reports whether err is a NotFoundError for the given kind.
func IsNotFound(err error, kind Kind) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Kind == kind
}

// Violation is a single failed rule on a request field.
type Violation struct {
	Field string
	Rule  string
}

// FieldError lists missing or invalid request fields.
type FieldError struct {
	Violations []Violation
}

func (e *FieldError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s (%s)", v.Field, v.Rule))
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// Has reports whether field failed any rule.
func (e *FieldError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

func fieldError(field, rule string) *FieldError {
	return &FieldError{Violations: []Violation{{Field: field, Rule: rule}}}
}

// StoreError wraps an unexpected failure of the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
