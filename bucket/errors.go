package bucket

import (
	"errors"
	"fmt"
)

// Internal load failures. Each one wraps errKeyInvalid so callers inside the
// package can collapse the whole class to a KeyError while still telling the
// specific causes apart (prune cares about expiry vs. corruption).
var (
	errKeyInvalid      = errors.New("key cannot be loaded")
	errKeyFileNotFound = fmt.Errorf("key file not found: %w", errKeyInvalid)
	errKeyExpired      = fmt.Errorf("key expired: %w", errKeyInvalid)
)

// KeyError reports that a key has no valid cached value: never stored,
// deleted, expired, or stored in a form the active codec cannot read. It is
// the only error Get and Delete callers should normally branch on; test for
// it with errors.As.
type KeyError struct {
	// Key is an abbreviated representation of the requested key.
	Key string
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("bucket: no valid entry for key %s", e.Key)
}

// ConfigError reports an invalid construction argument.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "bucket config error in field " + e.Field + ": " + e.Message
}

// abbreviate renders a key for error messages, truncated so that large
// structured keys do not flood logs.
func abbreviate(v any) string {
	s := fmt.Sprintf("%+v", v)
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
