package period

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means no schedule has been saved yet. Callers should
// prompt for setup rather than treat it as a failure.
var ErrNotConfigured = errors.New("period: schedule not configured")

// ConfigError reports a schedule that exists but cannot be used.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("period: invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
