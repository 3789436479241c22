package config

import (
	"fmt"
	"slices"
	"strings"
)

// Upper bounds that catch typos rather than hardware limits.
const (
	maxFramesInFlight = 16
	maxDimension      = 16384
	maxRate           = 1000
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "render.frames_in_flight")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidBackends returns the accepted render.backend values
func ValidBackends() []string {
	return []string{"auto", "vulkan", "noop"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateShader()...)
	errors = append(errors, c.validateRender()...)
	errors = append(errors, c.validateUpdate()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validateShader() []ValidationError {
	var errors []ValidationError
	if strings.TrimSpace(c.Shader.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "shader.path",
			Value:   c.Shader.Path,
			Message: "must not be empty",
		})
	}
	return errors
}

func (c *Config) validateRender() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), strings.ToLower(c.Render.Backend)) {
		errors = append(errors, ValidationError{
			Field:   "render.backend",
			Value:   c.Render.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}
	if c.Render.FramesInFlight < 1 || c.Render.FramesInFlight > maxFramesInFlight {
		errors = append(errors, ValidationError{
			Field:   "render.frames_in_flight",
			Value:   c.Render.FramesInFlight,
			Message: fmt.Sprintf("must be between 1 and %d", maxFramesInFlight),
		})
	}
	if c.Render.FrameRate <= 0 || c.Render.FrameRate > maxRate {
		errors = append(errors, ValidationError{
			Field:   "render.frame_rate",
			Value:   c.Render.FrameRate,
			Message: fmt.Sprintf("must be greater than 0 and at most %d", maxRate),
		})
	}
	if c.Render.Width < 1 || c.Render.Width > maxDimension {
		errors = append(errors, ValidationError{
			Field:   "render.width",
			Value:   c.Render.Width,
			Message: fmt.Sprintf("must be between 1 and %d", maxDimension),
		})
	}
	if c.Render.Height < 1 || c.Render.Height > maxDimension {
		errors = append(errors, ValidationError{
			Field:   "render.height",
			Value:   c.Render.Height,
			Message: fmt.Sprintf("must be between 1 and %d", maxDimension),
		})
	}
	return errors
}

func (c *Config) validateUpdate() []ValidationError {
	var errors []ValidationError
	if c.Update.Rate <= 0 || c.Update.Rate > maxRate {
		errors = append(errors, ValidationError{
			Field:   "update.rate",
			Value:   c.Update.Rate,
			Message: fmt.Sprintf("must be greater than 0 and at most %d", maxRate),
		})
	}
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}
	return errors
}
