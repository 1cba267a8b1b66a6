package errors

import "fmt"

// StorageError indicates the metadata ledger could not be persisted. Losing
// an audit record is never silently tolerable, so these propagate.
type StorageError struct {
	Err  error
	Path string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to persist policy metadata at %s: %s", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type EntityNotFoundError struct {
	Company string
	Product string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("no metadata ledger for company %s product %s", e.Company, e.Product)
}

type ValidationError struct {
	Err error
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation Error. Msg: %s, Err: %s", e.Msg, e.Err)
}

type UnexpectedStatusCodeError struct {
	Err        error
	StatusCode int //500, 401, etc
}

func (e *UnexpectedStatusCodeError) Error() string {
	return fmt.Sprintf("Unexpected Status Code %d: %s", e.StatusCode, e.Err)
}
