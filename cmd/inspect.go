package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mlefit/internal/model"
)

var (
	inspectSpec string
	inspectJSON bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe the model built from a spec file",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectSpec, "spec", "", "Model spec file (.json, .yaml, .toml) (required)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the summary as JSON")
	inspectCmd.MarkFlagRequired("spec")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	spec, err := model.LoadSpec(inspectSpec)
	if err != nil {
		return err
	}
	m, err := spec.Build()
	if err != nil {
		return err
	}

	summary := model.Summarize(m)
	if inspectJSON {
		return writeJSON(cmd.OutOrStdout(), summary)
	}

	out := cmd.OutOrStdout()
	poi := summary.POI
	if poi == "" {
		poi = "(none)"
	}
	fmt.Fprintf(out, "Model:     %s\n", spec.Model)
	fmt.Fprintf(out, "Channel:   %s (%d bins)\n", summary.Channel, summary.NBins)
	fmt.Fprintf(out, "Samples:   %s\n", strings.Join(summary.Samples, ", "))
	fmt.Fprintf(out, "Modifiers: %s\n", strings.Join(summary.Modifiers, ", "))
	fmt.Fprintf(out, "POI:       %s\n\n", poi)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SET\tMODIFIER\tCONSTRAINT\tSIZE\tINIT\tBOUNDS\tFIXED")
	for _, p := range summary.Parameters {
		bounds := make([]string, len(p.Bounds))
		for i, b := range p.Bounds {
			bounds[i] = b.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\t%v\n",
			p.Set, p.Modifier, p.Constraint, p.Size, p.Inits, strings.Join(bounds, " "), p.Fixed)
	}
	return w.Flush()
}
