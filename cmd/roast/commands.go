package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/internal/pipeline"
	"github.com/ajitpratap0/roast/pkg/compression"
	"github.com/ajitpratap0/roast/pkg/config"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/mapper"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tabulate"
	"github.com/ajitpratap0/roast/pkg/tree"
)

func (a *app) mapSingleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map-single MAPPERS OUTPUT INPUT",
		Short: "Apply mappers to one input file",
		Long: `Apply the ';' separated mapper operations to the objects of INPUT and write
the results and the settings in effect to OUTPUT.

Example:
  roast map-single 'copy(events, pt:eta >> skim, pt > 20); treemap(events)' out.roast run.roast`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.pipeline().MapSingle(cmd.Context(), args[2], args[0], args[1])
		},
	}
}

func (a *app) mapMultiCmd() *cobra.Command {
	var (
		noRecompile bool
		outputDir   string
	)
	cmd := &cobra.Command{
		Use:   "map-multi MAPPERS TAG INPUT...",
		Short: "Apply mappers to every input file separately",
		Long: `Apply the mapper operations to every file matching the INPUT patterns. The
output of "dir/run1.roast" is "run1TAG.roast" in the output directory. The
settings are reset before each file.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.pipeline(pipeline.WithOutputDir(outputDir))
			snapshot := a.settings.Snapshot()
			for _, input := range args[2:] {
				a.settings.Restore(snapshot)
				outputs, err := p.MapMulti(cmd.Context(), input, args[0], args[1], noRecompile)
				if err != nil {
					return err
				}
				a.log.Info("mapped files", zap.String("input", input), zap.Strings("outputs", outputs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noRecompile, "no-recompile", "n", false, "Do not recompile selectors after the first file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", ".", "Directory to write outputs to")
	return cmd
}

func (a *app) reduceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reduce MAPPERS OUTPUT INPUT...",
		Short: "Apply mappers to all inputs combined",
		Long: `Apply every mapper operation to one chain of its target over all INPUT
files and write a single OUTPUT. Selectors see the stored settings of the
file they are reading.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.pipeline().Reduce(cmd.Context(), args[2:], args[0], args[1])
		},
	}
}

func (a *app) tabulateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tabulate DATASET/OBJECT EXPR [SELECTION [COUNT [START]]]",
		Short: "Print expressions over the rows of a tree",
		Long: `Evaluate the ':' separated expressions of EXPR over the rows of a tree and
print one record per row and instance. The format is chosen with
">> tsv", ">> json" or ">> avro", optionally with labels, e.g.

  roast tabulate 'run*.roast/events' 'pt:eta >> json(pt:eta)' 'pt > 20' 100

DATASET may be a glob. Output goes to stdout unless -o is given; a
compressed file is written when its name ends in .gz, .zst, .lz4 or .sz.`,
		Args: cobra.RangeArgs(2, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			var selection string
			maxRows, startRow := int64(-1), int64(0)
			if len(args) > 2 {
				selection = args[2]
			}
			var err error
			if len(args) > 3 {
				if maxRows, err = parseCount(args[3], "COUNT"); err != nil {
					return err
				}
			}
			if len(args) > 4 {
				if startRow, err = parseCount(args[4], "START"); err != nil {
					return err
				}
			}
			return a.tabulate(cmd, args[0], args[1], selection, maxRows, startRow, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write records to FILE instead of stdout")
	return cmd
}

func parseCount(v, name string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrorTypeSpecSyntax, "%s must be an integer, got %q", name, v)
	}
	return n, nil
}

func (a *app) tabulate(cmd *cobra.Command, dataset, spec, selection string, maxRows, startRow int64, output string) (err error) {
	file, name := tree.SplitObjectPath(dataset)
	if name == "" {
		return errors.Newf(errors.ErrorTypeSpecSyntax, "dataset %q must be FILE/OBJECT", dataset)
	}
	paths, err := tree.ExpandInputs(file)
	if err != nil {
		return err
	}
	ts, err := tabulate.ParseSpec(spec)
	if err != nil {
		return err
	}

	files := mapper.NewFiles()
	defer files.Close()
	c, err := files.Chain(name, paths)
	if err != nil {
		return err
	}
	for _, path := range paths {
		f, err := files.Open(path)
		if err != nil {
			return err
		}
		stored, err := f.ReadSettings()
		if err != nil {
			return err
		}
		a.settings.MergeMissing(stored)
	}
	attacher := mapper.NewFriendAttacher(files, a.log)
	for _, src := range append(ts.Expressions, selection) {
		if _, err := attacher.Attach(c, src); err != nil {
			return err
		}
	}

	var out io.Writer = os.Stdout
	if output != "" {
		w, closeOutput, oerr := a.openOutput(output)
		if oerr != nil {
			return oerr
		}
		defer func() {
			if cerr := closeOutput(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = w
	}

	engine := tabulate.NewEngine(a.settings, tabulate.WithLogger(a.log), tabulate.WithMetrics(a.metrics))
	res, err := engine.Tabulate(cmd.Context(), c, out, spec, selection, maxRows, startRow)
	if err != nil {
		return err
	}
	a.log.Info("tabulation finished",
		zap.String("dataset", dataset),
		zap.Int64("entries", res.Entries),
		zap.Int64("records", res.Records))
	return nil
}

// openOutput creates path, compressed according to its extension. The
// returned function finishes the stream and closes the file.
func (a *app) openOutput(path string) (io.Writer, func() error, error) {
	level, err := compression.ParseLevel(a.config.Storage.OutputLevel)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to create %s", path)
	}
	w, err := compression.NewWriter(f, compression.FromPath(path), level)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return w, func() error {
		werr := w.Close()
		ferr := f.Close()
		if werr != nil {
			return errors.Wrapf(werr, errors.ErrorTypeIO, "failed to finish %s", path)
		}
		if ferr != nil {
			return errors.Wrapf(ferr, errors.ErrorTypeIO, "failed to close %s", path)
		}
		return nil
	}, nil
}

func (a *app) settingsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "settings [SETTINGS...]",
		Short: "Print the merged settings",
		Long: `Load every SETTINGS source (container, "file.roast/object", "-" for stdin or a
settings file) on top of the -c files and print the result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := config.LoadFile(a.settings, path, settings.LevelUser); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			switch format {
			case "rootrc", "text":
				return a.settings.WriteText(out, settings.LevelGlobal)
			case "json":
				return a.settings.WriteJSON(out, settings.LevelGlobal)
			case "yaml":
				return a.settings.WriteYAML(out, settings.LevelGlobal)
			default:
				return errors.Newf(errors.ErrorTypeConfig, "unknown settings format %q, expecting rootrc, json or yaml", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "rootrc", "Output format (rootrc, json, yaml)")
	return cmd
}

func (a *app) filterMultiCmd() *cobra.Command {
	var (
		selection string
		start     int64
		count     int64
		outputDir string
	)
	cmd := &cobra.Command{
		Use:   "filter-multi TAG INPUT/TREE...",
		Short: "Copy trees, optionally applying an entry selection",
		Long: `Copy the tree of every INPUT into "labelTAG.roast". A selection given with -e
is evaluated on the first input only; the selected entries are then copied
from every input.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.pipeline(pipeline.WithOutputDir(outputDir))
			outputs, err := p.FilterMulti(cmd.Context(), args[1:], args[0], selection, count, start)
			if err != nil {
				return err
			}
			a.log.Info("filtered files", zap.Strings("outputs", outputs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&selection, "expr", "e", "", "Filter expression")
	cmd.Flags().Int64VarP(&start, "first", "f", 0, "Copy from entry IDX")
	cmd.Flags().Int64VarP(&count, "count", "n", -1, "Copy at most N entries (-1: no limit)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", ".", "Directory to write outputs to")
	return cmd
}

func (a *app) entryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entrylist FILE...",
		Short: "Print entry lists",
		Long:  `Print entry lists stored in containers ("file.roast/name") or ASCII files.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, spec := range args {
				list, err := tree.LoadEntryList(spec)
				if err != nil {
					return err
				}
				if err := list.WriteASCII(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) selectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selectors",
		Short: "List available selectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Available selectors:")
			for _, name := range mapper.GetRegistry().List() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
			}
		},
	}
}
