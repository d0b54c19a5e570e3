// Package profile validates hourly series against the model horizon and
// loads them from CSV files.
package profile

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// HoursPerYear is the default model horizon, one non-leap year.
const HoursPerYear = 8760

// ValidationError reports malformed input detected before model construction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid returns a ValidationError for field.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that s has exactly horizon finite values.
func Validate(name string, s []float64, horizon int) error {
	if len(s) != horizon {
		return Invalid(name, "length %d, want %d", len(s), horizon)
	}
	for t, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Invalid(name, "non-finite value at hour %d", t)
		}
	}
	return nil
}

// ValidateNonNegative is Validate plus a nonnegativity check, used for demands.
func ValidateNonNegative(name string, s []float64, horizon int) error {
	if err := Validate(name, s, horizon); err != nil {
		return err
	}
	if len(s) > 0 && floats.Min(s) < 0 {
		return Invalid(name, "negative value at hour %d", floats.MinIdx(s))
	}
	return nil
}

// Peak returns the largest value of s, or zero for an empty series.
func Peak(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Max(s)
}

// Total returns the sum of s.
func Total(s []float64) float64 {
	return floats.Sum(s)
}

// Rotate returns s shifted left by k hours with wrap-around, used to align
// series recorded in another time zone.
func Rotate(s []float64, k int) []float64 {
	n := len(s)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	k = ((k % n) + n) % n
	copy(out, s[k:])
	copy(out[n-k:], s[:k])
	return out
}

// Constant returns a series of n copies of v.
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
