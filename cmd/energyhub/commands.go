package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/pareto"
	"github.com/ohowland/energyhub/internal/pkg/scenario"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// parseBound reads "<objective>=<limit>". The bound direction follows the
// objective: a ceiling for minimized objectives, a floor for jobs.
func parseBound(s string) (hub.Bound, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return hub.Bound{}, fmt.Errorf("bound %q: want objective=limit", s)
	}
	o, err := hub.ParseObjective(strings.TrimSpace(name))
	if err != nil {
		return hub.Bound{}, fmt.Errorf("bound %q: %w", s, err)
	}
	limit, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return hub.Bound{}, fmt.Errorf("bound %q: %w", s, err)
	}
	return hub.Bound{Objective: o, Limit: limit}, nil
}

func solveCmd() *cobra.Command {
	var (
		objective string
		bounds    []string
		flows     bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Optimize one objective, optionally under bounds on the others",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := hub.ParseObjective(objective)
			if err != nil {
				return err
			}
			var bs []hub.Bound
			for _, s := range bounds {
				b, err := parseBound(s)
				if err != nil {
					return err
				}
				bs = append(bs, b)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			a.start(ctx)
			rec, solveErr := a.opt.Optimize(ctx, o, bs...)
			if err := a.drain(); err != nil {
				return err
			}
			if solveErr != nil {
				return solveErr
			}
			if !flows {
				rec.Flows = nil
			}
			return printJSON(rec)
		},
	}
	cmd.Flags().StringVarP(&objective, "objective", "o", hub.Cost.String(), "objective to optimize (cost, emissions, jobs, investment)")
	cmd.Flags().StringSliceVarP(&bounds, "bound", "b", nil, "bound as objective=limit, repeatable")
	cmd.Flags().BoolVar(&flows, "flows", false, "include hourly flows in the output")
	return cmd
}

func runPareto(ctx context.Context, a *app) (pareto.Frontier, error) {
	pc, err := a.cfg.ParetoConfig()
	if err != nil {
		return pareto.Frontier{}, err
	}
	if pc.Steps <= 0 {
		pc.Steps = pareto.DefaultSteps
	}
	bar := progress(pc.Steps + 2)
	defer bar.Finish()
	pc.Publisher = a.pub
	pc.OnPoint = func(pareto.Point) { bar.Increment() }
	return pareto.Scan(ctx, a.opt, pc)
}

func paretoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pareto",
		Short: "Trace the trade-off between two objectives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			a.start(ctx)
			f, scanErr := runPareto(ctx, a)
			if err := a.drain(); err != nil {
				return err
			}
			if err := printJSON(f); err != nil {
				return err
			}
			return scanErr
		},
	}
}

func runScenarios(ctx context.Context, a *app) ([]scenario.Row, error) {
	ceilings := a.cfg.Scenario.Ceilings
	if len(ceilings) == 0 {
		var err error
		if ceilings, err = scenario.Standard(a.model, a.cfg.Scenario.Community); err != nil {
			return nil, err
		}
	}
	bar := progress(len(ceilings) + 1)
	defer bar.Finish()
	return scenario.Analyze(ctx, a.opt, ceilings, scenario.Config{
		Workers:   a.cfg.Scenario.Workers,
		Publisher: a.pub,
		OnRow:     func(scenario.Row) { bar.Increment() },
	})
}

func scenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario",
		Short: "Minimize cost under each investment ceiling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			a.start(ctx)
			rows, runErr := runScenarios(ctx, a)
			if err := a.drain(); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			return printJSON(rows)
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the frontier scan and scenarios and serve the results over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			if a.cfg.Sinks.HTTP == "" {
				return errors.New("serve: no listen address, set sinks.http or --addr")
			}
			a.start(ctx)

			if _, err := runPareto(ctx, a); err != nil {
				logger.Error().Err(err).Msg("frontier scan incomplete")
			}
			if _, err := runScenarios(ctx, a); err != nil {
				logger.Error().Err(err).Msg("scenario analysis incomplete")
			}
			logger.Info().Str("addr", a.cfg.Sinks.HTTP).Msg("results ready, serving until interrupted")

			<-ctx.Done()
			return a.drain()
		},
	}
	cmd.Flags().StringVar(&httpAddr, "addr", "", "listen address, overrides sinks.http")
	return cmd
}
