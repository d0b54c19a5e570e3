// Package pareto traces the trade-off between two hub objectives with the
// epsilon-constraint method: optimize each objective alone, then optimize
// the first under a sweep of bounds on the second.
package pareto

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ohowland/energyhub/internal/pkg/dispatch"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultSteps is the number of interior points, eta = 0.1 .. 0.9.
const DefaultSteps = 9

// ErrExtremes is returned when an extreme point could not be solved, so no
// epsilon bounds can be derived.
var ErrExtremes = errors.New("pareto: extreme point not solved")

// Config parameterizes a scan. The zero value scans cost against emissions.
type Config struct {
	A, B    hub.Objective
	Steps   int         // interior points; zero selects DefaultSteps
	Workers int         // concurrent interior solves; zero selects GOMAXPROCS
	Bounds  []hub.Bound // applied to every solve, e.g. an investment ceiling
	// Publisher receives every finished Point on msg.Point, if set.
	Publisher *msg.PubSub
	// OnPoint is called once per finished Point, never concurrently.
	OnPoint func(Point)
}

func (c Config) withDefaults() Config {
	if c.A == c.B && c.A == hub.Cost {
		c.B = hub.Emissions
	}
	if c.Steps <= 0 {
		c.Steps = DefaultSteps
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Kind tells the extreme points from the epsilon-bounded ones.
type Kind int

const (
	// ExtremeB optimizes B alone (eta = 0).
	ExtremeB Kind = iota
	// Interior optimizes A under the epsilon bound on B.
	Interior
	// ExtremeA optimizes A alone (eta = 1).
	ExtremeA
)

func (k Kind) String() string {
	switch k {
	case ExtremeB:
		return "extreme_b"
	case ExtremeA:
		return "extreme_a"
	default:
		return "interior"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Point is one solve of the scan. A and B are only meaningful when Status
// is solver.Optimal.
type Point struct {
	Index   int           `json:"index" bson:"index"`
	Kind    Kind          `json:"kind" bson:"kind"`
	Eta     float64       `json:"eta" bson:"eta"`
	Epsilon *float64      `json:"epsilon,omitempty" bson:"epsilon,omitempty"`
	Status  solver.Status `json:"status" bson:"status"`
	A       float64       `json:"a" bson:"a"`
	B       float64       `json:"b" bson:"b"`
	Jobs    float64       `json:"jobs" bson:"jobs"`
	Err     string        `json:"error,omitempty" bson:"error,omitempty"`
	Record  *hub.Record   `json:"-" bson:"-"`
}

// Frontier is the ordered result of a scan, eta ascending: the B extreme,
// the interior points, then the A extreme.
type Frontier struct {
	A      hub.Objective `json:"a"`
	B      hub.Objective `json:"b"`
	Points []Point       `json:"points"`
}

// Feasible returns the points that solved.
func (f Frontier) Feasible() []Point {
	var out []Point
	for _, p := range f.Points {
		if p.Status == solver.Optimal {
			out = append(out, p)
		}
	}
	return out
}

// Monotonic reports whether the solved points, in eta order, never improve
// B and never worsen A beyond a relative tol.
func (f Frontier) Monotonic(tol float64) bool {
	pts := f.Feasible()
	for i := 1; i < len(pts); i++ {
		prev, cur := pts[i-1], pts[i]
		if f.A.Better(prev.A, cur.A) && !near(prev.A, cur.A, tol) {
			return false
		}
		if f.B.Better(cur.B, prev.B) && !near(prev.B, cur.B, tol) {
			return false
		}
	}
	return true
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(a))
}

// Epsilon is the bound on B at eta: bBest + eta * (bAtAMin - bBest).
func Epsilon(bBest, bAtAMin, eta float64) float64 {
	return bBest + eta*(bAtAMin-bBest)
}

// Scan runs the epsilon-constraint sweep. The two extreme solves run first
// and parameterize the bounds; the interior solves then run concurrently.
// Infeasible or failed solves are recorded in their Point and do not stop
// the scan.
func Scan(ctx context.Context, opt dispatch.Optimizer, cfg Config) (Frontier, error) {
	cfg = cfg.withDefaults()
	if cfg.A == cfg.B {
		return Frontier{}, fmt.Errorf("pareto: objectives must differ, got %s twice", cfg.A)
	}
	logger := zerolog.Ctx(ctx).With().
		Str("component", "pareto").
		Stringer("a", cfg.A).
		Stringer("b", cfg.B).
		Logger()

	n := cfg.Steps + 2
	f := Frontier{A: cfg.A, B: cfg.B, Points: make([]Point, n)}
	var mux sync.Mutex
	finish := func(p Point) {
		mux.Lock()
		defer mux.Unlock()
		f.Points[p.Index] = p
		if cfg.OnPoint != nil {
			cfg.OnPoint(p)
		}
		if cfg.Publisher != nil {
			cfg.Publisher.Publish(msg.Point, p)
		}
	}

	aMin := solvePoint(ctx, opt, cfg, Point{Index: n - 1, Kind: ExtremeA, Eta: 1}, cfg.A, nil)
	finish(aMin)
	bBest := solvePoint(ctx, opt, cfg, Point{Index: 0, Kind: ExtremeB, Eta: 0}, cfg.B, nil)
	finish(bBest)
	if aMin.Status != solver.Optimal || bBest.Status != solver.Optimal {
		logger.Error().Str("a_extreme", aMin.Err).Str("b_extreme", bBest.Err).Msg("extreme points not solved")
		for i := 1; i < n-1; i++ {
			f.Points[i] = Point{Index: i, Kind: Interior, Eta: eta(i, cfg.Steps), Status: solver.Failed, Err: ErrExtremes.Error()}
		}
		return f, ErrExtremes
	}
	logger.Info().
		Float64("a_min", aMin.A).
		Float64("b_at_a_min", aMin.B).
		Float64("b_best", bBest.B).
		Msg("extremes solved")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 1; i < n-1; i++ {
		g.Go(func() error {
			e := eta(i, cfg.Steps)
			eps := Epsilon(bBest.B, aMin.B, e)
			p := Point{Index: i, Kind: Interior, Eta: e, Epsilon: &eps}
			finish(solvePoint(gctx, opt, cfg, p, cfg.A, &hub.Bound{Objective: cfg.B, Limit: eps}))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return f, err
	}

	logger.Info().Int("feasible", len(f.Feasible())).Int("points", n).Msg("scan finished")
	return f, nil
}

func eta(i, steps int) float64 {
	return float64(i) / float64(steps+1)
}

// solvePoint optimizes o under the scan bounds plus the optional epsilon
// bound and fills p from the outcome.
func solvePoint(ctx context.Context, opt dispatch.Optimizer, cfg Config, p Point, o hub.Objective, eps *hub.Bound) Point {
	bounds := append([]hub.Bound(nil), cfg.Bounds...)
	if eps != nil {
		bounds = append(bounds, *eps)
	}
	rec, err := opt.Optimize(ctx, o, bounds...)
	p.Status = solver.StatusOf(err)
	if err != nil {
		p.Err = err.Error()
		return p
	}
	p.A = rec.Value(cfg.A)
	p.B = rec.Value(cfg.B)
	p.Jobs = rec.Jobs
	p.Record = &rec
	return p
}
