// Package cli implements placement-cli: an interactive menu plus scriptable
// predict, models and runs commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"placement-predictor/internal/app"
	"placement-predictor/internal/common/config"
	apihttp "placement-predictor/internal/common/http"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
)

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Server     string
	Timeout    time.Duration
	Accessible bool
	Verbose    bool
}

// Factory builds the Predictor a command runs against. The returned
// cleanup is always non-nil on success.
type Factory func(ctx context.Context, g GlobalOptions) (Predictor, func(), error)

// Options injects collaborators; zero values select the defaults.
type Options struct {
	Factory  Factory
	Prompter Prompter
}

// DefaultFactory talks to --server when set, otherwise loads the
// configuration and runs predictions in process.
func DefaultFactory(ctx context.Context, g GlobalOptions) (Predictor, func(), error) {
	if g.Server != "" {
		return NewRemotePredictor(apihttp.NewClient(g.Server, g.Timeout)), func() {}, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if g.ConfigPath != "" {
		cfg, err = config.LoadFromFile(g.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	level := "warn"
	if g.Verbose {
		level = "debug"
	}
	zapLog := logger.New(level, "console", "stderr")
	a, err := app.Build(ctx, cfg, logger.NewZapAdapter(zapLog), app.Options{ConnectRetries: 3, RetryDelay: time.Second})
	if err != nil {
		_ = zapLog.Sync()
		return nil, nil, err
	}
	return NewLocalPredictor(a.Service), func() {
		a.Close()
		_ = zapLog.Sync()
	}, nil
}

// NewRootCommand assembles the command tree. Running the root without a
// subcommand opens the interactive menu.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Factory == nil {
		opts.Factory = DefaultFactory
	}
	g := &GlobalOptions{}

	root := &cobra.Command{
		Use:           "placement-cli",
		Short:         "Predict student placement outcomes",
		Long:          "Score students with one of the registered placement models, one at a time or from a CSV file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd, opts, g)
		},
	}
	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "Path to config.yaml (default: search ./configs)")
	root.PersistentFlags().StringVar(&g.Server, "server", "", "Base URL of a running predictor server; predictions run in process when empty")
	root.PersistentFlags().DurationVar(&g.Timeout, "timeout", 30*time.Second, "Request timeout for --server")
	root.PersistentFlags().BoolVar(&g.Accessible, "accessible", false, "Use plain line prompts instead of the terminal UI")
	root.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "menu",
			Short: "Open the interactive menu",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMenu(cmd, opts, g)
			},
		},
		predictCmd(opts, g),
		modelsCmd(opts, g),
		runsCmd(opts, g),
	)
	return root
}

func withPredictor(cmd *cobra.Command, opts Options, g *GlobalOptions, fn func(Predictor) error) error {
	p, cleanup, err := opts.Factory(cmd.Context(), *g)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(p)
}

func runMenu(cmd *cobra.Command, opts Options, g *GlobalOptions) error {
	return withPredictor(cmd, opts, g, func(p Predictor) error {
		prompt := opts.Prompter
		if prompt == nil {
			prompt = &HuhPrompter{Accessible: g.Accessible || os.Getenv("ACCESSIBLE") != "", In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
		}
		return RunMenu(cmd.Context(), p, prompt, cmd.OutOrStdout())
	})
}

type requestFlags struct {
	model     string
	threshold float64
	asJSON    bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model name (default: the configured default model)")
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", pipeline.DefaultThreshold, "Decision threshold for probabilistic models")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the raw JSON response")
}

func (f *requestFlags) request(cmd *cobra.Command) prediction.Request {
	req := prediction.Request{Model: f.model}
	if cmd.Flags().Changed("threshold") {
		t := f.threshold
		req.Threshold = &t
	}
	return req
}

func predictCmd(opts Options, g *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run predictions without the interactive menu",
	}

	var one requestFlags
	var sets []string
	oneCmd := &cobra.Command{
		Use:     "one",
		Short:   "Predict for a single student",
		Example: "  placement-cli predict one --set CGPA=8.5 --set Internships=1 ... --model deep_learning",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := parseSets(sets)
			if err != nil {
				return err
			}
			return withPredictor(cmd, opts, g, func(p Predictor) error {
				resp, err := p.PredictRecord(cmd.Context(), record, one.request(cmd))
				if err != nil {
					return fmt.Errorf("%s", describe(err))
				}
				if one.asJSON {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				printSingle(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	one.register(oneCmd)
	oneCmd.Flags().StringArrayVar(&sets, "set", nil, "Feature value as name=value; repeat for each feature")

	var batch requestFlags
	var file string
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Predict for every row of a CSV file and save the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPredictor(cmd, opts, g, func(p Predictor) error {
				resp, err := p.PredictFile(cmd.Context(), file, batch.request(cmd))
				if err != nil {
					return fmt.Errorf("%s", describe(err))
				}
				if batch.asJSON {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				printBatch(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	batch.register(batchCmd)
	batchCmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to score")
	_ = batchCmd.MarkFlagRequired("file")

	cmd.AddCommand(oneCmd, batchCmd)
	return cmd
}

func modelsCmd(opts Options, g *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPredictor(cmd, opts, g, func(p Predictor) error {
				c, err := p.Catalog(cmd.Context())
				if err != nil {
					return err
				}
				printModels(cmd.OutOrStdout(), c)
				return nil
			})
		},
	}
}

func runsCmd(opts Options, g *GlobalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent batch runs from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPredictor(cmd, opts, g, func(p Predictor) error {
				runs, err := p.RecentRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

// parseSets turns repeated name=value flags into a record. Values stay
// strings; the feature encoder parses them.
func parseSets(sets []string) (pipeline.FeatureRecord, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("at least one --set name=value is required")
	}
	record := make(pipeline.FeatureRecord, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want name=value", s)
		}
		record[name] = value
	}
	return record, nil
}
