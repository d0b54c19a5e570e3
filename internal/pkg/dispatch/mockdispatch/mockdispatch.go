// Package mockdispatch provides a testify mock of dispatch.Optimizer.
package mockdispatch

import (
	"context"

	"github.com/ohowland/energyhub/internal/pkg/dispatch"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/stretchr/testify/mock"
)

// MockOptimizer records Optimize calls and replays the configured returns.
// Expectations match on the objective and the bounds slice; the context is
// not matched.
type MockOptimizer struct {
	mock.Mock
}

var _ dispatch.Optimizer = (*MockOptimizer)(nil)

// NewMockOptimizer returns an empty MockOptimizer.
func NewMockOptimizer() *MockOptimizer {
	return &MockOptimizer{}
}

// Optimize implements dispatch.Optimizer.
func (m *MockOptimizer) Optimize(_ context.Context, o hub.Objective, bounds ...hub.Bound) (hub.Record, error) {
	args := m.Called(o, bounds)
	var rec hub.Record
	if r, ok := args.Get(0).(hub.Record); ok {
		rec = r
	}
	return rec, args.Error(1)
}

// Bounded matches a bounds slice holding exactly one bound on o.
func Bounded(o hub.Objective) interface{} {
	return mock.MatchedBy(func(bounds []hub.Bound) bool {
		return len(bounds) == 1 && bounds[0].Objective == o
	})
}

// Unbounded matches an empty bounds slice.
func Unbounded() interface{} {
	return mock.MatchedBy(func(bounds []hub.Bound) bool {
		return len(bounds) == 0
	})
}
