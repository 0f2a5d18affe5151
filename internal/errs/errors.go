// Package errs defines the error taxonomy shared across the CLI: validation
// failures, data that contradicts itself, and backup I/O failures.
package errs

import (
	"errors"
	"fmt"
)

// ErrStoreBusy is returned when the store's advisory lock cannot be acquired
// within the configured timeout.
var ErrStoreBusy = errors.New("store is locked by another operation")

// ValidationError marks input rejected before any computation or write.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidation wraps an error as a validation failure.
func NewValidation(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// Validationf builds a validation failure from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// IsValidation returns true if any error in the chain is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DataIntegrityError marks stored or archived data that fails its own
// consistency checks: dangling references, checksum mismatches, artifacts
// that do not decode.
type DataIntegrityError struct {
	Err error
}

func (e *DataIntegrityError) Error() string {
	return e.Err.Error()
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Err
}

// NewDataIntegrity wraps an error as a data integrity failure.
func NewDataIntegrity(err error) *DataIntegrityError {
	return &DataIntegrityError{Err: err}
}

// DataIntegrityf builds a data integrity failure from a format string.
func DataIntegrityf(format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Err: fmt.Errorf(format, args...)}
}

// IsDataIntegrity returns true if any error in the chain is a DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var de *DataIntegrityError
	return errors.As(err, &de)
}

// BackupError marks a snapshot, restore, or retention operation that failed
// on disk I/O or locking. Op names the failing operation.
type BackupError struct {
	Op  string
	Err error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup %s: %s", e.Op, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// NewBackup wraps an error as a backup failure for the named operation.
func NewBackup(op string, err error) *BackupError {
	return &BackupError{Op: op, Err: err}
}

// IsBackup returns true if any error in the chain is a BackupError.
func IsBackup(err error) bool {
	var be *BackupError
	return errors.As(err, &be)
}

// IsBusy returns true if the error chain contains ErrStoreBusy.
func IsBusy(err error) bool {
	return errors.Is(err, ErrStoreBusy)
}
