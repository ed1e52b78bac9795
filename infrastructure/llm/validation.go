package llm

import (
	"cmp"
	"fmt"
	"net/url"
	"time"
)

// Ranges accepted for request parameters.
const (
	MinTemperature = 0.0
	// MaxTemperature is the widest range any supported provider accepts.
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
)

// ExtractOptionalInt returns opts[key] when it is an int accepted by
// validator, and defaultVal otherwise.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	return extractOptional(opts, key, defaultVal, validator)
}

// ExtractOptionalString returns opts[key] when it is a string accepted by
// validator, and defaultVal otherwise.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	return extractOptional(opts, key, defaultVal, validator)
}

// ExtractOptionalFloat64 returns opts[key] when it is a float64 accepted by
// validator, and defaultVal otherwise.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	return extractOptional(opts, key, defaultVal, validator)
}

func extractOptional[T any](opts map[string]any, key string, defaultVal T, validator func(T) bool) T {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	typed, ok := val.(T)
	if !ok {
		return defaultVal
	}
	if validator != nil && !validator(typed) {
		return defaultVal
	}
	return typed
}

// IsValidTemperature checks the range [0.0, 2.0].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP checks the range [0.0, 1.0].
func IsValidTopP(val float64) bool {
	return val >= MinTopP && val <= MaxTopP
}

// IsPositiveInt reports val > 0.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString reports val != "".
func IsNonEmptyString(val string) bool { return val != "" }

// ValidateBaseURL checks that baseURL is an absolute http or https URL.
// An empty string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning the SDK default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return clamp(timeout, MinTimeout, MaxTimeout)
}

func clamp[T cmp.Ordered](val, lo, hi T) T {
	return min(max(val, lo), hi)
}
