package models

import (
	"errors"
	"fmt"
)

// Error codes shared by the loader, preparer, runners and persistence layer.
const (
	EUnsupportedFormat = "unsupported format"
	EColumnNotFound    = "column not found"
	EInvalidData       = "invalid data"
	EProblemMismatch   = "problem type mismatch"
	EMalformedJSON     = "malformed json"
	EConflict          = "conflict"
	ENotFound          = "not found"
	EInvalid           = "invalid"
	EInternal          = "internal error"
)

// Error is the domain error carried from the service layer to the HTTP boundary.
// Msg is the client-visible text; Err is an optional wrapped cause.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface. Only the message is surfaced so that
// clients receive the same text regardless of where the failure happened.
func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the first *Error in err's chain, or EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EInternal
}

// UnsupportedFormatError reports a dataset extension the loader cannot read.
func UnsupportedFormatError(ext string) *Error {
	return &Error{
		Code: EUnsupportedFormat,
		Msg:  fmt.Sprintf("Unsupported file format: .%s. Please upload CSV, TXT, XLS or XLSX.", ext),
	}
}

// ColumnNotFoundError reports a target column absent from the dataset header.
func ColumnNotFoundError(name string) *Error {
	return &Error{
		Code: EColumnNotFound,
		Msg:  fmt.Sprintf("Target column '%s' not found in dataset.", name),
	}
}

// InvalidDataError reports a dataset that cannot be turned into a training set.
func InvalidDataError(msg string) *Error {
	return &Error{Code: EInvalidData, Msg: msg}
}

// ProblemMismatchError reports a target whose type does not fit the model family.
func ProblemMismatchError(msg string) *Error {
	return &Error{Code: EProblemMismatch, Msg: msg}
}

// MalformedJSONError reports an unparsable JSON field of a request.
func MalformedJSONError(field string, err error) *Error {
	return &Error{
		Code: EMalformedJSON,
		Msg:  fmt.Sprintf("Invalid JSON in %s: %v", field, err),
		Err:  err,
	}
}
