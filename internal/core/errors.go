package core

import (
	"errors"
	"fmt"
)

// ErrEmptyColumn is returned when no column name was supplied.
var ErrEmptyColumn = errors.New("column name must be provided")

// ColumnNotFoundError reports a column missing from one source's headers.
type ColumnNotFoundError struct {
	Column string
	Source string // display name of the source that lacks the column
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("Column '%s' not found in %s.", e.Column, e.Source)
}

// UnexpectedError wraps any failure outside the load and validation
// taxonomy. Its message is safe to show; the cause goes to the log.
type UnexpectedError struct {
	Cause error
}

func (e *UnexpectedError) Error() string {
	return "An unexpected error occurred: " + e.Cause.Error()
}

func (e *UnexpectedError) Unwrap() error { return e.Cause }
