package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/mlefit/internal/mle"
	"github.com/cwbudde/mlefit/internal/model"
	"github.com/cwbudde/mlefit/internal/opt"
	"github.com/cwbudde/mlefit/internal/store"
)

// fitFlags are shared by the fit and scan commands.
type fitFlags struct {
	specPath  string
	optimizer string
	seed      int64
	maxIter   int
	jsonOut   bool
}

func (f *fitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.specPath, "spec", "", "Model spec file (.json, .yaml, .toml) (required)")
	cmd.Flags().StringVar(&f.optimizer, "optimizer", "gonum", optimizerUsage())
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed for stochastic optimizers (0 = optimizer default)")
	cmd.Flags().IntVar(&f.maxIter, "max-iter", 0, "Maximum optimizer iterations (0 = optimizer default)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the result as JSON")
	cmd.MarkFlagRequired("spec")
}

// optimizerUsage lists the optimizers and gonum methods understood by opt.New.
func optimizerUsage() string {
	var names []string
	for _, name := range opt.SupportedNames() {
		names = append(names, string(name))
	}
	var methods []string
	for _, m := range []opt.Method{opt.MethodNelderMead, opt.MethodLBFGS, opt.MethodBFGS, opt.MethodGradientDescent} {
		methods = append(methods, m.String())
	}
	return fmt.Sprintf("Optimizer: %s (gonum takes a method suffix: gonum:%s)",
		strings.Join(names, ", "), strings.Join(methods, "|"))
}

// fitSetup is everything a fit command needs after flag parsing.
type fitSetup struct {
	spec   *model.Spec
	model  *model.SimpleModel
	data   []float64
	fitter *mle.Fitter
	opts   []mle.FitOption
}

// setup loads the spec and builds the model, its data and the fitter.
func (f *fitFlags) setup() (*fitSetup, error) {
	spec, err := model.LoadSpec(f.specPath)
	if err != nil {
		return nil, err
	}
	m, err := spec.Build()
	if err != nil {
		return nil, err
	}
	data, err := spec.Data(m)
	if err != nil {
		return nil, err
	}

	optimizer, err := opt.New(f.optimizer)
	if err != nil {
		return nil, err
	}

	optimizerOpts := []opt.Option{opt.ReturnFittedVal(true)}
	if f.seed != 0 {
		optimizerOpts = append(optimizerOpts, opt.Seed(f.seed))
	}
	if f.maxIter > 0 {
		optimizerOpts = append(optimizerOpts, opt.MaxIterations(f.maxIter))
	}

	slog.Info("Loaded model",
		"spec", f.specPath,
		"model", spec.Model,
		"parameters", m.Config().NPars(),
		"bins", m.Config().NBins(),
		"optimizer", f.optimizer,
	)
	return &fitSetup{
		spec:   spec,
		model:  m,
		data:   data,
		fitter: mle.NewFitter(optimizer),
		opts:   []mle.FitOption{mle.WithOptimizerOptions(optimizerOpts...)},
	}, nil
}

func (f *fitFlags) config(fs *fitSetup, mode string) store.FitConfig {
	return store.FitConfig{
		Model:         string(fs.spec.Model),
		Mode:          mode,
		Optimizer:     opt.Label(fs.fitter.Optimizer()),
		Seed:          f.seed,
		MaxIterations: f.maxIter,
		Observations:  fs.spec.Observations,
	}
}

var (
	fitOpts fitFlags
	fitPOI  float64
	fitSave bool
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Run a maximum likelihood fit",
	Long: `Fits the model described by --spec to its observations.
With --poi the parameter of interest is held at the given value.`,
	RunE: runFit,
}

func init() {
	fitOpts.register(fitCmd)
	fitCmd.Flags().Float64Var(&fitPOI, "poi", 0, "Hold the parameter of interest at this value")
	fitCmd.Flags().BoolVar(&fitSave, "save", false, "Store the result under --data-dir")

	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	fs, err := fitOpts.setup()
	if err != nil {
		return err
	}
	m, data := fs.model, fs.data

	ctx := cmd.Context()
	start := time.Now()

	mode := store.ModeFit
	var res *opt.Result
	if cmd.Flags().Changed("poi") {
		mode = store.ModeFixedPOI
		res, err = fs.fitter.FixedPOIFit(ctx, fitPOI, data, m, fs.opts...)
	} else {
		res, err = fs.fitter.Fit(ctx, data, m, fs.opts...)
	}
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}

	twiceNLL, err := fittedValue(res, data, m)
	if err != nil {
		return err
	}

	slog.Info("Fit complete",
		"mode", mode,
		"elapsed", time.Since(start),
		"twice_nll", twiceNLL,
		"evaluations", res.Evaluations,
		"status", res.Status,
	)

	config := fitOpts.config(fs, mode)
	if mode == store.ModeFixedPOI {
		config.POI = &fitPOI
	}
	record := store.NewFitRecord(uuid.New().String(), m.Config().ParNames(), res.Pars, twiceNLL, config)
	record.Status = res.Status
	record.Evaluations = res.Evaluations

	if fitSave {
		if err := saveRecord(record); err != nil {
			return err
		}
	}

	if fitOpts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), record)
	}
	printRecord(cmd.OutOrStdout(), record)
	return nil
}

// fittedValue returns the objective at the optimum.
func fittedValue(res *opt.Result, data []float64, m model.Model) (float64, error) {
	if res.FittedVal != nil {
		return *res.FittedVal, nil
	}
	return mle.TwiceNLL(res.Pars, data, m)
}

func saveRecord(record *store.FitRecord) error {
	resultStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}
	if err := resultStore.SaveResult(record.ID, record); err != nil {
		return err
	}
	slog.Info("Saved fit result", "id", record.ID, "data_dir", dataDir)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecord(out io.Writer, record *store.FitRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tVALUE")
	for i, name := range record.ParNames {
		fmt.Fprintf(w, "%s\t%.6g\n", name, record.Pars[i])
	}
	w.Flush()

	fmt.Fprintf(out, "\n-2 log L = %.6f (%s, %d evaluations)\n", record.TwiceNLL, record.Status, record.Evaluations)
	if record.Config.POI != nil {
		fmt.Fprintf(out, "POI fixed at %g\n", *record.Config.POI)
	}
}
