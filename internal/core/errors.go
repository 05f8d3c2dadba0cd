package core

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel wrapped by every ConfigurationError.
var ErrConfiguration = errors.New("invalid configuration")

// ConfigurationError reports an option that failed validation. It is fatal at
// initialization time; nothing is constructed when it is returned.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ValidateGrid checks the grid dimensions and seed probability shared by every
// entry point that creates a simulation.
func ValidateGrid(size Size, seedProbability float64) error {
	if size.W <= 0 {
		return &ConfigurationError{Field: "width", Value: size.W, Reason: "must be positive"}
	}
	if size.H <= 0 {
		return &ConfigurationError{Field: "height", Value: size.H, Reason: "must be positive"}
	}
	// NaN fails both comparisons, so test for the valid range instead.
	if !(seedProbability >= 0 && seedProbability <= 1) {
		return &ConfigurationError{Field: "seed_probability", Value: seedProbability, Reason: "must be within [0,1]"}
	}
	return nil
}
