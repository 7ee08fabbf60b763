package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/imperative/internal/envconfig"
	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/logutil"
	"github.com/born-ml/imperative/internal/model"
	"github.com/born-ml/imperative/internal/nn"
)

const version = "v0.1.0-dev"

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// buildModels builds each model file concurrently and returns the programs
// in argument order.
func buildModels(ctx context.Context, paths []string) ([]*graph.Program, error) {
	opts := nn.DecodeOptions{DType: envconfig.DType, UseCUDNN: envconfig.UseCUDNN}
	progs := make([]*graph.Program, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := model.Load(path)
			if err != nil {
				return err
			}
			m, err := f.Build(opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			progs[i] = m.Program
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return progs, nil
}

func BuildHandler(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	switch format {
	case "table", "yaml", "cbor":
	default:
		return fmt.Errorf("unknown format %q (want table, yaml or cbor)", format)
	}

	progs, err := buildModels(cmd.Context(), args)
	if err != nil {
		return err
	}

	if outPath == "" {
		return writePrograms(cmd.OutOrStdout(), format, args, progs)
	}
	fh, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := writePrograms(fh, format, args, progs); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// writePrograms renders progs to out in the given format, one per path.
func writePrograms(out io.Writer, format string, paths []string, progs []*graph.Program) error {
	for i, prog := range progs {
		switch format {
		case "table":
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s\n", paths[i])
			printProgram(out, prog)
		case "yaml":
			// One document per model
			if i > 0 {
				fmt.Fprint(out, "---\n")
			}
			if err := prog.WriteYAML(out); err != nil {
				return err
			}
		case "cbor":
			// Concatenated items form a CBOR sequence
			data, err := prog.MarshalCBOR()
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
		}
	}
	return nil
}

func printProgram(w io.Writer, prog *graph.Program) {
	desc := prog.Desc()
	fmt.Fprintf(w, "Program %s\n\n", desc.ID)

	vars := newTable(w)
	vars.SetHeader([]string{"VARIABLE", "KIND", "DTYPE", "SHAPE", "FLAGS"})
	for _, v := range prog.Vars() {
		var flags []string
		if v.Persistable() {
			flags = append(flags, "persistable")
		}
		if v.IsParameter() {
			flags = append(flags, "param")
		}
		if v.Trainable() {
			flags = append(flags, "trainable")
		}
		if v.IsBias() {
			flags = append(flags, "bias")
		}
		shape := "-"
		if v.Shape() != nil {
			shape = v.Shape().String()
		}
		vars.Append([]string{v.Name(), v.Kind().String(), v.DType().String(), shape, strings.Join(flags, ",")})
	}
	vars.Render()

	fmt.Fprint(w, "\nStartup:\n")
	printOps(w, desc.Startup)
	fmt.Fprint(w, "\nMain:\n")
	printOps(w, desc.Main)
}

func printOps(w io.Writer, ops []graph.OpDescRecord) {
	table := newTable(w)
	table.SetHeader([]string{"#", "TYPE", "INPUTS", "OUTPUTS", "ATTRS"})
	var data [][]string
	for i, op := range ops {
		data = append(data, []string{
			fmt.Sprint(i), op.Type, formatSlots(op.Inputs), formatSlots(op.Outputs), formatAttrs(op.Attrs),
		})
	}
	table.AppendBulk(data)
	table.Render()
}

func formatSlots(slots map[string][]string) string {
	keys := maps.Keys(slots)
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(slots[k], ",")))
	}
	return strings.Join(parts, " ")
}

func formatAttrs(attrs map[string]any) string {
	keys := maps.Keys(attrs)
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return strings.Join(parts, " ")
}

func OpsHandler(cmd *cobra.Command, _ []string) error {
	reg := graph.NewRegistry()

	table := newTable(cmd.OutOrStdout())
	table.SetHeader([]string{"OPERATOR", "INPUTS", "OUTPUTS"})
	for _, name := range reg.SupportedOps() {
		def, _ := reg.Get(name)
		table.Append([]string{name, strings.Join(def.Inputs, ","), strings.Join(def.Outputs, ",")})
	}
	table.Render()
	return nil
}

func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()
	names := maps.Keys(vars)
	slices.Sort(names)

	table := newTable(cmd.OutOrStdout())
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	for _, name := range names {
		v := vars[name]
		table.Append([]string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}
	table.Render()
	return nil
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "born-graph",
		Short: "Build layer programs from model descriptions",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
	}

	cobra.EnableCommandSorting = false

	buildCmd := &cobra.Command{
		Use:   "build MODEL [MODEL...]",
		Short: "Build model descriptions and print their programs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  BuildHandler,
	}
	buildCmd.Flags().StringP("format", "f", "table", "Output format: table, yaml or cbor")
	buildCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	opsCmd := &cobra.Command{
		Use:   "ops",
		Short: "List supported operators",
		Args:  cobra.NoArgs,
		RunE:  OpsHandler,
	}

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "born-graph %s\n", version)
		},
	}

	rootCmd.AddCommand(
		buildCmd,
		opsCmd,
		envCmd,
		versionCmd,
	)

	return rootCmd
}
