package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input such as an out-of-range rating or missing text.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrSelfReference indicates two identities that must differ were equal.
	ErrSelfReference = errors.New("identities must differ")
	// ErrDuplicate indicates the attempted write would violate a uniqueness constraint.
	ErrDuplicate = errors.New("record conflict")
)

// StoreError reports a failure of the backing store itself (connectivity, driver errors).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsDomainError reports whether err carries one of the sentinel errors above or a StoreError.
func IsDomainError(err error) bool {
	var storeErr *StoreError
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSelfReference) ||
		errors.Is(err, ErrDuplicate) ||
		errors.As(err, &storeErr)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
