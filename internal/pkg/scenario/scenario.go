// Package scenario re-solves the cost-minimal hub under a list of
// investment ceilings plus one unconstrained baseline.
package scenario

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/ohowland/energyhub/internal/pkg/dispatch"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/profile"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Baseline is the name of the unconstrained scenario appended by Analyze.
const Baseline = "unlimited"

// Ceiling is a named investment ceiling.
type Ceiling struct {
	Name  string  `json:"name" mapstructure:"name"`
	Limit float64 `json:"limit" mapstructure:"limit"`
}

// Config parameterizes Analyze.
type Config struct {
	Workers int // concurrent solves; zero selects GOMAXPROCS
	// Publisher receives every finished Row on msg.Scenario, if set.
	Publisher *msg.PubSub
	// OnRow is called once per finished Row, never concurrently.
	OnRow func(Row)
}

// Row is the outcome of one scenario. Cost, Emissions, Jobs and Investment
// are only meaningful when Status is solver.Optimal.
type Row struct {
	Index      int           `json:"index" bson:"index"`
	Name       string        `json:"name" bson:"name"`
	Ceiling    *float64      `json:"ceiling,omitempty" bson:"ceiling,omitempty"`
	Status     solver.Status `json:"status" bson:"status"`
	Cost       float64       `json:"cost" bson:"cost"`
	Emissions  float64       `json:"emissions" bson:"emissions"`
	Jobs       float64       `json:"jobs" bson:"jobs"`
	Investment float64       `json:"investment" bson:"investment"`
	Err        string        `json:"error,omitempty" bson:"error,omitempty"`
	Record     *hub.Record   `json:"-" bson:"-"`
}

// Analyze minimizes cost under Investment <= ceiling for every ceiling, in
// order, and then without a ceiling. A ceiling too tight to meet demand
// yields an infeasible Row; it does not stop the analysis. Negative or
// non-finite ceilings are rejected before any solve.
func Analyze(ctx context.Context, opt dispatch.Optimizer, ceilings []Ceiling, cfg Config) ([]Row, error) {
	for _, c := range ceilings {
		if c.Limit < 0 || math.IsNaN(c.Limit) || math.IsInf(c.Limit, 0) {
			return nil, profile.Invalid("ceiling "+c.Name, "limit %g", c.Limit)
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	logger := zerolog.Ctx(ctx).With().Str("component", "scenario").Logger()

	rows := make([]Row, len(ceilings)+1)
	var mux sync.Mutex
	finish := func(r Row) {
		mux.Lock()
		defer mux.Unlock()
		rows[r.Index] = r
		if cfg.OnRow != nil {
			cfg.OnRow(r)
		}
		if cfg.Publisher != nil {
			cfg.Publisher.Publish(msg.Scenario, r)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, c := range ceilings {
		limit := c.Limit
		g.Go(func() error {
			finish(solveRow(gctx, opt, Row{Index: i, Name: c.Name, Ceiling: &limit}))
			return nil
		})
	}
	g.Go(func() error {
		finish(solveRow(gctx, opt, Row{Index: len(ceilings), Name: Baseline}))
		return nil
	})
	if err := g.Wait(); err != nil {
		return rows, err
	}

	for _, r := range rows {
		level := zerolog.InfoLevel
		if r.Status != solver.Optimal {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).
			Str("scenario", r.Name).
			Stringer("status", r.Status).
			Float64("cost", r.Cost).
			Str("error", r.Err).
			Msg("scenario solved")
	}
	return rows, nil
}

func solveRow(ctx context.Context, opt dispatch.Optimizer, r Row) Row {
	var bounds []hub.Bound
	if r.Ceiling != nil {
		bounds = append(bounds, hub.Bound{Objective: hub.Investment, Limit: *r.Ceiling})
	}
	rec, err := opt.Optimize(ctx, hub.Cost, bounds...)
	r.Status = solver.StatusOf(err)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	r.Cost = rec.Cost
	r.Emissions = rec.Emissions
	r.Jobs = rec.Jobs
	r.Investment = rec.Investment
	r.Record = &rec
	return r
}
