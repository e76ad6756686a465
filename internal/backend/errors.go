package backend

import (
	"errors"
	"fmt"
)

// Error codes surfaced by Client implementations. Database errors keep their
// SQLSTATE code.
const (
	CodeUnsupportedRelationship = "PGRST200"
	CodeNoRows                  = "PGRST116"
	CodeUndefinedFunction       = "PGRST202"
	CodeDecode                  = "PGRST102"
	CodeUniqueViolation         = "23505"
	CodeForeignKeyViolation     = "23503"
)

// Error is a backend failure. Two errors match under errors.Is when their
// codes are equal.
type Error struct {
	Message string
	Code    string
	Details string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	if e.Details != "" {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, e.Details)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// ErrNoRows is returned when exactly one row was required and none matched.
var ErrNoRows = &Error{Message: "no rows returned", Code: CodeNoRows}

// HasCode reports whether err is a backend error with one of codes.
func HasCode(err error, codes ...string) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	for _, code := range codes {
		if be.Code == code {
			return true
		}
	}
	return false
}
