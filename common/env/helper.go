package env

import (
	"fmt"
	"os"
	"strconv"
)

// Bool reads a boolean environment variable. Unset resolves to defaultValue;
// anything other than "true" (case-sensitive, after trimming) counts as false.
func Bool(env string, defaultValue bool) bool {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	return os.Getenv(env) == "true"
}

// Int reads an integer environment variable, falling back to defaultValue on
// absence or parse failure. Parse failures are reported on stderr so a typo in
// deployment config is visible instead of silently ignored.
func Int(env string, defaultValue int) int {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	num, err := strconv.Atoi(os.Getenv(env))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %s, using default value: %d\n", env, err.Error(), defaultValue)
		return defaultValue
	}
	return num
}

// Float64 reads a float environment variable with the same fallback behavior
// as Int.
func Float64(env string, defaultValue float64) float64 {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	num, err := strconv.ParseFloat(os.Getenv(env), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %s, using default value: %f\n", env, err.Error(), defaultValue)
		return defaultValue
	}
	return num
}

// String reads a string environment variable, falling back to defaultValue
// when unset or empty.
func String(env string, defaultValue string) string {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	return os.Getenv(env)
}
