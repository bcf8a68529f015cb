package types

import (
	"errors"
	"fmt"
)

// Reading is one sensor observation. Time is Unix epoch seconds as sent by
// the sensor; Temp and RH are nil when the sensor did not report them.
type Reading struct {
	ID   int64    `json:"id"`
	Time float64  `json:"time"`
	Temp *float64 `json:"temp"`
	RH   *float64 `json:"rh"`
}

var (
	// ErrStorage marks failures of the persistence medium.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidReading marks ingest input that could not be parsed.
	ErrInvalidReading = errors.New("invalid reading")
	// ErrInvalidLimit marks a recent-window size that is missing, non-numeric or out of range.
	ErrInvalidLimit = errors.New("invalid query parameter")
)

// StorageError wraps a store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ParseError reports which ingest field was rejected.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrInvalidReading }

// QueryParamError reports a rejected query parameter.
type QueryParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *QueryParamError) Error() string {
	return fmt.Sprintf("invalid '%s' %q: %s", e.Param, e.Value, e.Reason)
}

func (e *QueryParamError) Is(target error) bool { return target == ErrInvalidLimit }
