package errors

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrNoHeader          = errors.New("no recognizable header")
	ErrImportLocked      = errors.New("another import is running")
	ErrRunNotFound       = errors.New("import run not found")
	ErrStudentNotFound   = errors.New("student not found")
)

// StructuralError aborts an import before anything is written.
type StructuralError struct {
	Err     error
	Message string
}

func (e StructuralError) Error() string {
	return fmt.Sprintf("structural error: %s - %s", e.Message, e.Err.Error())
}

func (e StructuralError) Unwrap() error {
	return e.Err
}

func NewStructuralError(err error, message string) error {
	return StructuralError{
		Err:     err,
		Message: message,
	}
}

func IsStructural(err error) bool {
	var se StructuralError
	return errors.As(err, &se)
}

// CellError describes a single cell that was skipped during an import.
type CellError struct {
	Row    int
	Column int
	Value  interface{}
	Reason string
}

func (e CellError) Error() string {
	return fmt.Sprintf("cell R%dC%d with value '%v': %s", e.Row, e.Column, e.Value, e.Reason)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
