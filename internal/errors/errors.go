// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// ErrDataUnavailable marks a symbol with no price or fundamental data
	// at all. The symbol is skipped for the current day or run; never fatal.
	ErrDataUnavailable = errors.New("no data available")

	// ErrInsufficientHistory marks an indicator window shorter than the
	// indicator's lookback. The indicator is undefined, not zero.
	ErrInsufficientHistory = errors.New("insufficient history")

	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrPositionNotFound  = errors.New("position not found")
	ErrDatabaseError     = errors.New("database error")
)

// DataError represents a data-related error for one symbol.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Unavailable creates a DataError that marks a symbol as having no data at
// all, as opposed to a transient fetch failure worth retrying.
func Unavailable(dataType, symbol string) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  "no data",
		Err:      ErrDataUnavailable,
	}
}

// IsUnavailable reports whether err means a symbol has no data at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

// ConfigError represents an invalid configuration detected before any
// simulation step runs.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// SimulationError wraps a fatal error raised mid-run. Snapshots and trades
// already written remain a valid checkpoint.
type SimulationError struct {
	Portfolio string
	Date      string
	Err       error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation error [%s] %s: %v", e.Portfolio, e.Date, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
