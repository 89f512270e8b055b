package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailableMatchesSentinel(t *testing.T) {
	err := Unavailable("prices", "AAPL")
	assert.True(t, IsUnavailable(err))
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.Contains(t, err.Error(), "AAPL")

	// Wrapping keeps the chain intact
	wrapped := Wrap(err, "scoring pass")
	assert.True(t, IsUnavailable(wrapped))

	var dataErr *DataError
	assert.True(t, As(wrapped, &dataErr))
	assert.Equal(t, "prices", dataErr.DataType)
}

func TestTransientDataErrorIsNotUnavailable(t *testing.T) {
	err := NewDataError("prices", "AAPL", "upstream fetch failed", fmt.Errorf("timeout"))
	assert.False(t, IsUnavailable(err))
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
}

func TestWrapfPreservesSentinel(t *testing.T) {
	err := Wrapf(ErrInsufficientHistory, "backtest %s: need %d bars", "AAPL", 200)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
	assert.Contains(t, err.Error(), "AAPL")
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("initial_capital", "must be positive")
	assert.Contains(t, err.Error(), "initial_capital")

	var cfgErr *ConfigError
	assert.True(t, As(fmt.Errorf("run: %w", err), &cfgErr))
}
