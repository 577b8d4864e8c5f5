package model

import "fmt"

// DataSourceError reports a failed weather retrieval. Runs abort on it; no retry.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("weather source %s: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// DataError reports weather data that lacks the columns needed to derive irradiance.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return "weather data: " + e.Reason
}

// ConfigurationError reports a configuration record that cannot be simulated:
// unknown catalog entries, unknown load profile, invalid bounds.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}

// NewConfigError is shorthand for a ConfigurationError with a formatted reason.
func NewConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
