package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidImage is matched by every InvalidImageError
	ErrInvalidImage = errors.New("invalid image")

	// ErrUnknownFoodCategory is matched by every UnknownFoodCategoryError
	ErrUnknownFoodCategory = errors.New("unknown food category")

	// ErrPortionEstimation is matched by every PortionEstimationError
	ErrPortionEstimation = errors.New("portion estimation failed")

	// ErrInvalidConfig is matched by every ConfigError
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvalidImageError reports malformed, empty or undecodable input.
type InvalidImageError struct {
	Reason string
	Err    error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

func (e *InvalidImageError) Is(target error) bool { return target == ErrInvalidImage }

func (e *InvalidImageError) Unwrap() error { return e.Err }

// UnknownFoodCategoryError reports a label missing from the reference table.
type UnknownFoodCategoryError struct {
	Label string
}

func (e *UnknownFoodCategoryError) Error() string {
	return fmt.Sprintf("unknown food category %q", e.Label)
}

func (e *UnknownFoodCategoryError) Is(target error) bool { return target == ErrUnknownFoodCategory }

// PortionEstimationError reports degenerate region geometry.
type PortionEstimationError struct {
	Label  string
	Reason string
}

func (e *PortionEstimationError) Error() string {
	return fmt.Sprintf("portion estimation for %q failed: %s", e.Label, e.Reason)
}

func (e *PortionEstimationError) Is(target error) bool { return target == ErrPortionEstimation }

// ConfigError reports a configuration value rejected before processing.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }
