package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mlefit/internal/model"
)

var (
	digestSpec       string
	digestAlgorithms []string
	digestJSON       bool
	digestPlaintext  bool

	sortSpec   string
	sortOutput string

	renameSpec   string
	renameNames  []string
	renameOutput string
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the digest of a spec",
	Long: `Print a hash of the spec's canonical JSON encoding (compact, object keys
sorted). The digest does not depend on the file format or on key order.`,
	RunE: runDigest,
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Order the parameter overrides of a spec by name",
	RunE:  runSort,
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename parameter sets, samples or the channel of a spec",
	Example: `  mlefit rename --spec model.yaml --name mu=xsec --name uncorr_bkguncrt=gamma
  mlefit rename --spec model.json --name singlechannel=SR --output-file renamed.toml`,
	RunE: runRename,
}

func init() {
	digestCmd.Flags().StringVar(&digestSpec, "spec", "", "Model spec file (.json, .yaml, .toml) (required)")
	digestCmd.Flags().StringSliceVarP(&digestAlgorithms, "algorithm", "a", nil,
		"Hash algorithm, repeatable ("+strings.Join(model.DigestAlgorithms(), ", ")+") (default sha256)")
	digestCmd.Flags().BoolVar(&digestJSON, "json", false, "Print digests as a JSON object")
	digestCmd.Flags().BoolVarP(&digestPlaintext, "plaintext", "p", false, "Print only the digest values")
	digestCmd.MarkFlagRequired("spec")

	sortCmd.Flags().StringVar(&sortSpec, "spec", "", "Model spec file (.json, .yaml, .toml) (required)")
	sortCmd.Flags().StringVar(&sortOutput, "output-file", "", "Write the result here instead of stdout; format follows the extension")
	sortCmd.MarkFlagRequired("spec")

	renameCmd.Flags().StringVar(&renameSpec, "spec", "", "Model spec file (.json, .yaml, .toml) (required)")
	renameCmd.Flags().StringArrayVar(&renameNames, "name", nil, "Rename as old=new, repeatable")
	renameCmd.Flags().StringVar(&renameOutput, "output-file", "", "Write the result here instead of stdout; format follows the extension")
	renameCmd.MarkFlagRequired("spec")

	rootCmd.AddCommand(digestCmd, sortCmd, renameCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	spec, err := model.LoadSpec(digestSpec)
	if err != nil {
		return err
	}

	algorithms := digestAlgorithms
	if len(algorithms) == 0 {
		algorithms = []string{"sha256"}
	}
	digests := make(map[string]string, len(algorithms))
	lines := make([]string, 0, len(algorithms))
	for _, alg := range algorithms {
		alg = strings.ToLower(alg)
		d, err := spec.Digest(alg)
		if err != nil {
			return err
		}
		digests[alg] = d
		if digestPlaintext {
			lines = append(lines, d)
		} else {
			lines = append(lines, alg+":"+d)
		}
	}

	if digestJSON {
		return writeJSON(cmd.OutOrStdout(), digests)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
	return nil
}

func runSort(cmd *cobra.Command, args []string) error {
	spec, err := model.LoadSpec(sortSpec)
	if err != nil {
		return err
	}
	return writeSpecOutput(cmd, spec.Sorted(), sortSpec, sortOutput)
}

func runRename(cmd *cobra.Command, args []string) error {
	renames := make(map[string]string, len(renameNames))
	for _, arg := range renameNames {
		from, to, ok := strings.Cut(arg, "=")
		if !ok || from == "" || to == "" {
			return fmt.Errorf("invalid --name %q: expected old=new", arg)
		}
		if _, dup := renames[from]; dup {
			return fmt.Errorf("%q renamed more than once", from)
		}
		renames[from] = to
	}
	if len(renames) == 0 {
		return fmt.Errorf("at least one --name is required")
	}

	spec, err := model.LoadSpec(renameSpec)
	if err != nil {
		return err
	}
	renamed, err := spec.Renamed(renames)
	if err != nil {
		return err
	}
	slog.Info("Renamed spec", "spec", renameSpec, "names", len(renames))
	return writeSpecOutput(cmd, renamed, renameSpec, renameOutput)
}

// writeSpecOutput encodes spec in the format of output, or of input when
// writing to stdout.
func writeSpecOutput(cmd *cobra.Command, spec *model.Spec, input, output string) error {
	path := input
	if output != "" {
		path = output
	}
	format, err := model.FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := spec.Encode(format)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write spec: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Spec written to %s\n", output)
	return nil
}
