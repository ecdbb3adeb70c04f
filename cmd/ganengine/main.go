// Command ganengine is a CLI front end over pkg/engine: it loads a CSV
// table into a column store, builds a VP-tree over its normalised rows,
// and answers density/search/completion queries from one invocation.
// Grounded on the teacher's cmd/sqvect/main.go cobra layout (root command +
// persistent flags + per-operation subcommands + a shared openStore-style
// constructor).
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/density"
	"github.com/cran/ganGenerativeData/pkg/engine"
	"github.com/cran/ganGenerativeData/pkg/model"
	"github.com/cran/ganGenerativeData/pkg/progress"
)

var (
	dataPath      string
	typesFlag     string
	namesFlag     string
	hasHeader     bool
	verbose       bool
	distKind      string
	maskFlag      string
	kFlag         int
	registryDB    string
	useTreeFlag   bool
	modelNameFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ganengine",
	Short: "In-memory columnar store, VP-tree nearest-neighbor index, and k-NN density engine",
	Long:  `A command-line front end for loading tabular data, indexing it under an Lp metric, and running density estimation, quantile, and record-completion queries.`,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load the CSV at --data, normalize it, and build the VP-tree index (checked against linear search with --test)",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := loadAndIndex(cmd.Context())
		if err != nil {
			return err
		}
		testN, _ := cmd.Flags().GetInt("test")
		if testN > 0 {
			if err := eng.TestIndex(0, testN, kFlag); err != nil {
				return fmt.Errorf("index self-test failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index self-test over %d rows passed\n", testN)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "build complete")
		return nil
	},
}

var densityCmd = &cobra.Command{
	Use:   "density",
	Short: "Compute density values for every row and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, gd, err := loadAndIndex(cmd.Context())
		if err != nil {
			return err
		}
		if err := eng.CalculateDensities(cmd.Context(), kFlag); err != nil {
			return err
		}
		median, err := eng.Quantile(50)
		if err != nil {
			return err
		}
		p90, _ := eng.Quantile(90)
		fmt.Fprintf(cmd.OutOrStdout(), "rows=%d median_density=%g p90_density=%g\n", gd.NormalizedSize(), median, p90)
		return nil
	},
}

var quantileCmd = &cobra.Command{
	Use:   "quantile <percent>",
	Short: "Report the density value at the given percentile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := strconv.ParseFloat(args[0], 32)
		if err != nil {
			return fmt.Errorf("invalid percent: %w", err)
		}
		eng, _, err := loadAndIndex(cmd.Context())
		if err != nil {
			return err
		}
		if err := eng.CalculateDensities(cmd.Context(), kFlag); err != nil {
			return err
		}
		value, err := eng.Quantile(float32(percent))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%g\n", value)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <csv-row>",
	Short: "Find the k nearest rows (under --k) to a raw comma-separated row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ds, err := loadAndIndexDataSource(cmd.Context())
		if err != nil {
			return err
		}
		values := strings.Split(args[0], ",")
		raw := make([]float32, 0, len(values))
		for _, v := range values {
			f, err := ds.GetFloatValue(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			raw = append(raw, f)
		}
		results, err := eng.Search(raw, kFlag)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "index=%d distance=%g\n", r.Index, r.Distance)
		}
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <name=value,...>",
	Short: "Impute missing/NA fields of a partial record from its single nearest neighbor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngineFromCSV(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := parseRecord(args[0])
		if err != nil {
			return err
		}
		out, err := eng.CompleteRecord(cmd.Context(), rec, useTreeFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(out, ","))
		return nil
	},
}

var knnCmd = &cobra.Command{
	Use:   "knn <name=value,...>",
	Short: "Find the k nearest rows (under --k) to a partial record under L2DistanceNanIndexed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngineFromCSV(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := parseRecord(args[0])
		if err != nil {
			return err
		}
		results, err := eng.KNearestNeighbors(cmd.Context(), rec, kFlag, useTreeFlag)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(r.Values, ","))
		}
		return nil
	},
}

// parseRecord parses a "name=value,name=value" field list into a density.Record.
func parseRecord(s string) (density.Record, error) {
	rec := density.Record{}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return density.Record{}, fmt.Errorf("malformed field %q, expected name=value", pair)
		}
		rec.Names = append(rec.Names, strings.TrimSpace(kv[0]))
		rec.Values = append(rec.Values, strings.TrimSpace(kv[1]))
	}
	return rec, nil
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print mean/stddev/min/max for each NUMERICAL column",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ds, err := newEngineFromCSV(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range ds.Columns() {
			nc, ok := c.(*column.NumberColumn)
			if !ok {
				continue
			}
			s := nc.Describe()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tmean=%g\tstddev=%g\tmin=%g\tmax=%g\tn=%d\n",
				c.Name(), s.Mean, s.StdDev, s.Min, s.Max, s.Count)
		}
		return nil
	},
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the trained-model catalog",
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := model.OpenRegistry(cmd.Context(), registryDB)
		if err != nil {
			return err
		}
		defer reg.Close()
		entries, err := reg.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\titerations=%d\thidden=%d\n", e.Name, e.CreatedAt.Format("2006-01-02 15:04:05"), e.TrainingIterations, e.HiddenLayerUnits)
		}
		return nil
	},
}

var modelDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := model.OpenRegistry(cmd.Context(), registryDB)
		if err != nil {
			return err
		}
		defer reg.Close()
		return reg.Delete(cmd.Context(), args[0])
	},
}

var modelSaveCmd = &cobra.Command{
	Use:   "save <path>",
	Short: "Snapshot the current data source, hyperparameters and --model-name's trained blobs to path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngineFromCSV(cmd.Context())
		if err != nil {
			return err
		}
		var tm model.TrainedModel
		if err := tm.ReadBlobs(modelNameFlag); err != nil {
			return fmt.Errorf("read trained blobs for %q: %w", modelNameFlag, err)
		}
		ds, err := eng.DataSource()
		if err != nil {
			return err
		}
		eng.LoadModel(&model.GenerativeModel{Source: ds, Trained: tm})
		if err := eng.SaveModel(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "model snapshot written to %s\n", args[0])
		return nil
	},
}

var modelLoadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Restore a data source from a model snapshot, writing its trained blobs back out for --model-name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := engine.Open(engine.Config{NearestNeighbors: kFlag})
		if err := eng.LoadModelFile(args[0], modelNameFlag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "model restored, blobs written to %s.data-00000-of-00001 and %s.index\n", modelNameFlag, modelNameFlag)
		return nil
	},
}

var dsCmd = &cobra.Command{
	Use:   "ds",
	Short: "Persist or restore the current data source (ds_write/ds_read)",
}

var dsSaveCmd = &cobra.Command{
	Use:   "save <path>",
	Short: "Write the current data source to path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngineFromCSV(cmd.Context())
		if err != nil {
			return err
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return eng.WriteDataSource(f)
	},
}

var dsLoadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Replace the current data source with one read from path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := engine.Open(engine.Config{NearestNeighbors: kFlag})
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := eng.ReadDataSource(f); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "data source restored")
		return nil
	},
}

var gdCmd = &cobra.Command{
	Use:   "gd",
	Short: "Persist or restore the current generative data (gd_write/gd_read)",
}

var gdSaveCmd = &cobra.Command{
	Use:   "save <path>",
	Short: "Write the current generative data to path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := loadAndIndex(cmd.Context())
		if err != nil {
			return err
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return eng.WriteGenerativeData(f)
	},
}

var gdLoadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Replace the current generative data with one read from path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := engine.Open(engine.Config{NearestNeighbors: kFlag})
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := eng.ReadGenerativeData(f); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "generative data restored")
		return nil
	},
}

// loadAndIndex loads --data, normalizes, materializes and builds the index,
// returning both the engine and its generative data view.
func loadAndIndex(ctx context.Context) (*engine.Engine, *datasource.GenerativeData, error) {
	eng, _, err := newEngineFromCSV(ctx)
	if err != nil {
		return nil, nil, err
	}
	gd, err := eng.GenerativeData()
	if err != nil {
		return nil, nil, err
	}
	mask := parseMask(maskFlag)
	if err := eng.BuildIndex(ctx, distKind, mask); err != nil {
		return nil, nil, err
	}
	return eng, gd, nil
}

func loadAndIndexDataSource(ctx context.Context) (*engine.Engine, *datasource.DataSource, error) {
	eng, ds, err := newEngineFromCSV(ctx)
	if err != nil {
		return nil, nil, err
	}
	mask := parseMask(maskFlag)
	if err := eng.BuildIndex(ctx, distKind, mask); err != nil {
		return nil, nil, err
	}
	return eng, ds, nil
}

func newEngineFromCSV(ctx context.Context) (*engine.Engine, *datasource.DataSource, error) {
	level := engine.LevelInfo
	if verbose {
		level = engine.LevelDebug
	}
	sink := progress.Sink(progress.Nop{})
	if isatty.IsTerminal(os.Stdout.Fd()) {
		sink = progress.NewConsole(os.Stdout, 500)
	}
	eng := engine.Open(engine.Config{
		Logger:           engine.NewStdLogger(level),
		Progress:         sink,
		NearestNeighbors: kFlag,
	})

	types, names, err := parseSchema(typesFlag, namesFlag)
	if err != nil {
		return nil, nil, err
	}
	if err := eng.NewDataSource(types, names); err != nil {
		return nil, nil, err
	}

	if err := loadCSVRows(eng, dataPath, hasHeader); err != nil {
		return nil, nil, err
	}
	if err := eng.Normalize(true); err != nil {
		return nil, nil, err
	}
	if err := eng.Materialize(); err != nil {
		return nil, nil, err
	}
	ds, err := eng.DataSource()
	if err != nil {
		return nil, nil, err
	}
	return eng, ds, nil
}

func loadCSVRows(eng *engine.Engine, path string, hasHeader bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read csv row: %w", err)
		}
		if first && hasHeader {
			first = false
			continue
		}
		first = false
		if err := eng.AddRow(row); err != nil {
			return fmt.Errorf("add row: %w", err)
		}
	}
	return nil
}

func parseSchema(types, names string) ([]column.Type, []string, error) {
	typeParts := strings.Split(types, ",")
	nameParts := strings.Split(names, ",")
	if len(typeParts) != len(nameParts) {
		return nil, nil, fmt.Errorf("--types and --names must have the same number of entries")
	}
	cols := make([]column.Type, len(typeParts))
	for i, t := range typeParts {
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "STRING":
			cols[i] = column.String
		case "NUMERICAL":
			cols[i] = column.Numerical
		case "NUMERICAL_ARRAY":
			cols[i] = column.NumericalArray
		default:
			return nil, nil, fmt.Errorf("unknown column type %q", t)
		}
	}
	for i := range nameParts {
		nameParts[i] = strings.TrimSpace(nameParts[i])
	}
	return cols, nameParts, nil
}

func parseMask(s string) []float32 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	mask := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			mask[i] = 0
			continue
		}
		mask[i] = float32(v)
	}
	return mask
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "f", "", "path to a CSV data file")
	rootCmd.PersistentFlags().StringVar(&typesFlag, "types", "", "comma-separated column types (STRING,NUMERICAL,NUMERICAL_ARRAY)")
	rootCmd.PersistentFlags().StringVar(&namesFlag, "names", "", "comma-separated column names")
	rootCmd.PersistentFlags().BoolVar(&hasHeader, "header", false, "CSV has a header row to skip")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&distKind, "distance", "l2nan", "distance kind: l1, l2, l2nan, l2nan_indexed")
	rootCmd.PersistentFlags().StringVar(&maskFlag, "mask", "", "comma-separated NaN mask for l2nan_indexed")
	rootCmd.PersistentFlags().IntVarP(&kFlag, "k", "k", 10, "number of nearest neighbors")
	rootCmd.PersistentFlags().StringVar(&registryDB, "registry", "models.db", "model catalog SQLite path")
	rootCmd.PersistentFlags().BoolVar(&useTreeFlag, "use-tree", true, "search the VP-tree instead of brute-force linear search")
	rootCmd.PersistentFlags().StringVar(&modelNameFlag, "model-name", "model", "model name whose sidecar blob files (<name>.data-00000-of-00001, <name>.index) to read/write")

	buildCmd.Flags().Int("test", 0, "validate the first N rows against brute-force search")

	rootCmd.AddCommand(
		buildCmd,
		densityCmd,
		quantileCmd,
		searchCmd,
		completeCmd,
		knnCmd,
		describeCmd,
		modelCmd,
		dsCmd,
		gdCmd,
	)
	modelCmd.AddCommand(modelListCmd, modelDeleteCmd, modelSaveCmd, modelLoadCmd)
	dsCmd.AddCommand(dsSaveCmd, dsLoadCmd)
	gdCmd.AddCommand(gdSaveCmd, gdLoadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
