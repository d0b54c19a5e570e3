// Package solver submits an lp.Problem to a numerical backend and reports
// one of three outcomes: a Result, an infeasible model, or a backend failure.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ohowland/energyhub/internal/pkg/lp"
)

var (
	// ErrInfeasible matches every InfeasibleError.
	ErrInfeasible = errors.New("solver: model is infeasible")
	// ErrFailure matches every FailureError.
	ErrFailure = errors.New("solver: backend failure")
)

// Solver is the numerical backend. Implementations must be safe for
// concurrent use; each call owns its Problem overlay.
type Solver interface {
	Solve(context.Context, lp.Problem) (Result, error)
}

// Result is a successful solve.
type Result struct {
	Objective float64
	X         []float64
	Duration  time.Duration
}

// InfeasibleError reports that no assignment satisfies the constraints.
// Bounds names the extra (overlay) constraints present when it happened.
type InfeasibleError struct {
	Bounds []string
}

func (e *InfeasibleError) Error() string {
	if len(e.Bounds) == 0 {
		return ErrInfeasible.Error()
	}
	return fmt.Sprintf("%s under %s", ErrInfeasible.Error(), strings.Join(e.Bounds, ", "))
}

// Is matches ErrInfeasible.
func (e *InfeasibleError) Is(target error) bool {
	return target == ErrInfeasible
}

// FailureError reports a backend error unrelated to feasibility.
type FailureError struct {
	Err error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %v", ErrFailure.Error(), e.Err)
}

// Is matches ErrFailure.
func (e *FailureError) Is(target error) bool {
	return target == ErrFailure
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// NewInfeasibleError returns an InfeasibleError tagged with the overlay of p.
func NewInfeasibleError(p lp.Problem) error {
	bounds := make([]string, 0, len(p.Extra))
	for _, c := range p.Extra {
		bounds = append(bounds, c.String())
	}
	return &InfeasibleError{Bounds: bounds}
}

// Failure wraps err as a FailureError.
func Failure(err error) error {
	return &FailureError{Err: err}
}

// Status is the outcome class of a solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Failed
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	default:
		return "failed"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for _, v := range []Status{Optimal, Infeasible, Failed} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// StatusOf classifies a Solve error.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return Optimal
	case errors.Is(err, ErrInfeasible):
		return Infeasible
	default:
		return Failed
	}
}
