package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/config"
	"github.com/ohowland/energyhub/internal/pkg/datastreams/mongodb"
	"github.com/ohowland/energyhub/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/energyhub/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/energyhub/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/ohowland/energyhub/internal/pkg/webservice"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v1"
)

// sink consumes published results until stopped.
type sink interface {
	Process(ctx context.Context) error
	Stop()
}

// service adapts the results web service to a sink.
type service struct {
	*webservice.Service
	addr string
}

func (s service) Process(ctx context.Context) error {
	return s.ListenAndServe(ctx, s.addr)
}

// app is a built hub with its optimizer and result sinks.
type app struct {
	cfg   *config.Config
	model *hub.Model
	opt   *lpdispatch.LPDispatch
	pub   *msg.PubSub
	sinks []sink
	group *errgroup.Group
}

// newApp loads the configuration and builds the hub. The HTTP sink is only
// attached when serving, since it runs until the context is done.
func newApp(ctx context.Context, serving bool) (*app, error) {
	logger := zerolog.Ctx(ctx)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if serving && httpAddr != "" {
		cfg.Sinks.HTTP = httpAddr
	}
	inputs, err := cfg.Inputs(quiet)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	model, err := hub.New(cfg.Hub, inputs, cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("build hub: %w", err)
	}
	logger.Info().
		Stringer("hub", model.PID()).
		Int("horizon", model.Horizon()).
		Int("members", len(model.Members())).
		Int("variables", model.LP().NumVariables()).
		Int("constraints", model.LP().NumConstraints()).
		Msg("hub built")

	backend, err := solver.New(cfg.Solver.Options())
	if err != nil {
		return nil, err
	}
	pub := msg.NewPublisher(uuid.New())
	opt, err := lpdispatch.New(model, backend, pub)
	if err != nil {
		return nil, err
	}
	opt.SetAuditTolerance(cfg.Solver.AuditTolerance)

	a := &app{cfg: cfg, model: model, opt: opt, pub: pub}
	if err := a.attachSinks(serving); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) attachSinks(serving bool) error {
	s := a.cfg.Sinks
	if s.MongoDB != nil {
		h, err := mongodb.New(*s.MongoDB, a.pub)
		if err != nil {
			return err
		}
		a.sinks = append(a.sinks, h)
	}
	if s.MySQL != nil {
		h, err := sqldb.New(*s.MySQL, a.pub)
		if err != nil {
			return err
		}
		a.sinks = append(a.sinks, h)
	}
	if s.NATS != nil {
		h, err := natshandler.New(*s.NATS, a.pub)
		if err != nil {
			return err
		}
		a.sinks = append(a.sinks, h)
	}
	if serving && s.HTTP != "" {
		ws, err := webservice.New(a.pub)
		if err != nil {
			return err
		}
		a.sinks = append(a.sinks, service{ws, s.HTTP})
	}
	return nil
}

// start runs every sink in the background.
func (a *app) start(ctx context.Context) {
	a.group, ctx = errgroup.WithContext(ctx)
	for _, s := range a.sinks {
		a.group.Go(func() error {
			return s.Process(ctx)
		})
	}
}

// drain stops the sinks and waits until they have written every result.
func (a *app) drain() error {
	for _, s := range a.sinks {
		s.Stop()
	}
	if a.group == nil {
		return nil
	}
	if err := a.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func progress(n int) *pb.ProgressBar {
	bar := pb.New(n)
	bar.Output = os.Stderr
	bar.NotPrint = quiet
	bar.ShowTimeLeft = false
	return bar.Start()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
