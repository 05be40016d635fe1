package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/mlefit/internal/mle"
	"github.com/cwbudde/mlefit/internal/store"
)

var (
	scanOpts   fitFlags
	scanFrom   float64
	scanTo     float64
	scanPoints int
	scanSave   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the profile likelihood over the parameter of interest",
	Long: `Runs one free fit and one fixed-POI fit per grid point and reports the
test statistics t_mu = -2 ln lambda(mu) and the one-sided q_mu.`,
	RunE: runScan,
}

func init() {
	scanOpts.register(scanCmd)
	scanCmd.Flags().Float64Var(&scanFrom, "from", 0, "First POI value")
	scanCmd.Flags().Float64Var(&scanTo, "to", 3, "Last POI value")
	scanCmd.Flags().IntVar(&scanPoints, "points", 13, "Number of POI values")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Store the result under --data-dir")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanPoints < 1 {
		return fmt.Errorf("--points must be positive")
	}

	fs, err := scanOpts.setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	start := time.Now()

	free, err := fs.fitter.Fit(ctx, fs.data, fs.model, fs.opts...)
	if err != nil {
		return fmt.Errorf("free fit failed: %w", err)
	}
	twiceNLL, err := fittedValue(free, fs.data, fs.model)
	if err != nil {
		return err
	}

	pois := mle.Linspace(scanFrom, scanTo, scanPoints)
	points, err := fs.fitter.Scan(ctx, pois, fs.data, fs.model, fs.opts...)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	slog.Info("Scan complete", "points", len(points), "elapsed", time.Since(start))

	record := store.NewFitRecord(uuid.New().String(), fs.model.Config().ParNames(), free.Pars, twiceNLL,
		scanOpts.config(fs, store.ModeScan))
	record.Status = free.Status
	record.Evaluations = free.Evaluations
	for _, p := range points {
		record.Scan = append(record.Scan, store.ScanEntry{POI: p.POI, TMu: p.TMu, QMu: p.QMu})
	}

	if scanSave {
		if err := saveRecord(record); err != nil {
			return err
		}
	}

	if scanOpts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), record)
	}

	out := cmd.OutOrStdout()
	poiName := fs.model.Config().POIName()
	fmt.Fprintf(out, "Best fit %s = %.6g, -2 log L = %.6f\n\n", poiName, free.Pars[mustPOIIndex(fs)], twiceNLL)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tT_MU\tQ_MU\n", poiName)
	for _, p := range points {
		fmt.Fprintf(w, "%.6g\t%.6f\t%.6f\n", p.POI, p.TMu, p.QMu)
	}
	return w.Flush()
}

// mustPOIIndex is only called after a successful scan, which requires a POI.
func mustPOIIndex(fs *fitSetup) int {
	i, _ := fs.model.Config().POIIndex()
	return i
}
