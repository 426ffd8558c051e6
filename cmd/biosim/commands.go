package main

import (
	"context"
	"fmt"
	"strings"

	kafkaadapter "github.com/couchcryptid/biosim-client/internal/adapter/kafka"
	"github.com/couchcryptid/biosim-client/internal/domain"
	"github.com/spf13/cobra"
)

type climateFlags struct {
	input        string
	rcp          string
	climateModel string
	neighbors    int
}

func (f *climateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "CSV file of lat,lon[,elev] rows, - for stdin")
	cmd.Flags().StringVar(&f.rcp, "rcp", "4_5", "representative concentration pathway (4_5 or 8_5)")
	cmd.Flags().StringVar(&f.climateModel, "climate-model", "RCM4", "climate model (RCM4, Hadley or GCM4)")
	cmd.Flags().IntVar(&f.neighbors, "neighbors", 0, "weather stations used for interpolation, 0 for the server default")
}

func (f *climateFlags) parse() (domain.RCP, domain.ClimateModel, error) {
	rcp, err := domain.ParseRCP(f.rcp)
	if err != nil {
		return rcp, 0, err
	}
	cm, err := domain.ParseClimateModel(f.climateModel)
	return rcp, cm, err
}

func newNormalsCmd(env environment, root *rootFlags) *cobra.Command {
	var (
		common climateFlags
		period string
		months []string
		annual bool
	)
	cmd := &cobra.Command{
		Use:   "normals",
		Short: "Retrieve monthly climate normals, optionally aggregated over months",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rcp, cm, err := common.parse()
			if err != nil {
				return err
			}
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}
			req := domain.NormalsRequest{Period: p, RCP: rcp, ClimateModel: cm, NeighborCount: common.neighbors}
			switch {
			case annual && len(months) > 0:
				return fmt.Errorf("%w: --annual and --months are exclusive", domain.ErrValidation)
			case annual:
				req.Months = domain.AllMonths
			default:
				if req.Months, err = parseMonths(months); err != nil {
					return err
				}
			}

			locations, err := readInput(env, common.input)
			if err != nil {
				return err
			}
			return run(cmd, env, root, func(ctx context.Context, a *app) error {
				results, err := a.svc.Normals(ctx, req, locations)
				if err != nil {
					return err
				}
				return a.sink.Publish(ctx, kafkaadapter.Batch{Kind: "normals", Label: string(p), Results: results})
			})
		},
	}
	common.register(cmd)
	cmd.Flags().StringVar(&period, "period", string(domain.Period1981to2010), "normals period, e.g. 1991_2020")
	cmd.Flags().StringSliceVar(&months, "months", nil, "months to aggregate over, by name or number")
	cmd.Flags().BoolVar(&annual, "annual", false, "aggregate over the whole year")
	return cmd
}

func parseMonths(raw []string) ([]domain.Month, error) {
	var out []domain.Month
	for _, s := range raw {
		m, err := domain.ParseMonth(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func newModelCmd(env environment, root *rootFlags) *cobra.Command {
	var (
		common      climateFlags
		req         domain.ModelRequest
		params      []string
		fromNormals bool
	)
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Generate climate and apply a model to it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rcp, cm, err := common.parse()
			if err != nil {
				return err
			}
			req.RCP, req.ClimateModel, req.NeighborCount = rcp, cm, common.neighbors
			req.ForceGenerationFromNormals = fromNormals
			if req.Params, err = parseParams(params); err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}

			locations, err := readInput(env, common.input)
			if err != nil {
				return err
			}
			return run(cmd, env, root, func(ctx context.Context, a *app) error {
				results, err := a.svc.ModelOutput(ctx, req, locations)
				if err != nil {
					return err
				}
				return a.sink.Publish(ctx, kafkaadapter.Batch{Kind: "model", Label: req.Model, Results: results})
			})
		},
	}
	common.register(cmd)
	cmd.Flags().StringVar(&req.Model, "model", "", "model name, see the models command")
	cmd.Flags().IntVar(&req.FromYear, "from", 2000, "first year of the generated climate")
	cmd.Flags().IntVar(&req.ToYear, "to", 2000, "last year of the generated climate")
	cmd.Flags().IntVar(&req.Replicates, "reps", 1, "number of stochastic replicates")
	cmd.Flags().BoolVar(&fromNormals, "from-normals", false, "generate from normals even where observations exist")
	cmd.Flags().BoolVar(&req.Ephemeral, "ephemeral", false, "release generated climate as soon as the model has run")
	cmd.Flags().StringArrayVar(&params, "param", nil, "model parameter as name=value, repeatable")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func parseParams(raw []string) (domain.ParameterMap, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := domain.ParameterMap{}
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: parameter %q is not name=value", domain.ErrValidation, kv)
		}
		if err := params.Add(name, value); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func newModelsCmd(env environment, root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, env, root, func(ctx context.Context, a *app) error {
				models, err := a.svc.ModelList(ctx)
				if err != nil {
					return err
				}
				for _, m := range models {
					fmt.Fprintln(env.stdout, m)
				}
				return nil
			})
		},
	}
}

func newLoadCmd(env environment, root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Show the server load and the largest accepted location list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, env, root, func(ctx context.Context, a *app) error {
				load, err := a.svc.ServerLoad(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.stdout, "server load: %d\n", load)
				fmt.Fprintf(env.stdout, "max locations per request: %d\n", a.svc.MaxLocations(ctx))
				return nil
			})
		},
	}
}
