package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/fmusim/internal/config"
	"github.com/san-kum/fmusim/internal/experiment"
	"github.com/san-kum/fmusim/internal/kernel"
	"github.com/san-kum/fmusim/internal/storage"
	"github.com/san-kum/fmusim/internal/telemetry"
	"github.com/san-kum/fmusim/internal/viz"
)

var (
	dataDir     string
	verbose     bool
	metricsFile string

	configFile  string
	preset      string
	runName     string
	startTime   float64
	stopTime    float64
	stepSize    float64
	loggingOn   bool
	categories  []string
	outputs     []string
	params      map[string]string
	parallelism int

	plotVar    string
	plotHeight int
	plotWidth  int
)

// main registers the fmusim commands and executes the root command. It
// exits with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "fmusim",
		Short:         "fixed-step model-exchange simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory (overrides data_dir of the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file when done")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a simulation to completion and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addExperimentFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "step a simulation interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addExperimentFlags(liveCmd)

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run every experiment of a batch file concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&parallelism, "parallel", 0, "concurrent runs (0 = batch file or number of CPUs)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the outputs of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotVar, "var", "", "plot only this variable")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id] [file]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(2),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id] [file]",
		Short: "export the trajectory of a stored run as CSV",
		Args:  cobra.ExactArgs(2),
		RunE:  exportCSV,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list built-in models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list presets of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, liveCmd, batchCmd, listCmd, plotCmd, exportJSONCmd, exportCSVCmd, modelsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&runName, "name", "", "run name")
	cmd.Flags().Float64Var(&startTime, "start", 0, "start time")
	cmd.Flags().Float64Var(&stopTime, "stop", config.DefaultStop, "stop time")
	cmd.Flags().Float64Var(&stepSize, "step", config.DefaultStepSize, "fixed step size")
	cmd.Flags().BoolVar(&loggingOn, "logging", false, "enable model debug logging")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "model log categories")
	cmd.Flags().StringSliceVar(&outputs, "outputs", nil, "variables to record (default: model outputs)")
	cmd.Flags().StringToStringVar(&params, "param", nil, "model parameter, name=value")
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// buildConfig resolves the run configuration: preset, then config file,
// then any flag the user set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := config.DefaultModel
	if len(args) > 0 {
		model = args[0]
	}

	cfg := config.GetPreset(model, "default")
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Model = model
	}
	if preset != "" {
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q for %s (have %v)", preset, model, config.ListPresets(model))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Model = model
		}
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = runName
	}
	if flags.Changed("start") {
		cfg.StartTime = startTime
	}
	if flags.Changed("stop") {
		cfg.StopTime = stopTime
	}
	if flags.Changed("step") {
		cfg.StepSize = stepSize
	}
	if flags.Changed("logging") {
		cfg.LoggingOn = loggingOn
	}
	if flags.Changed("categories") {
		cfg.LogCategories = categories
	}
	if flags.Changed("outputs") {
		cfg.Outputs = outputs
	}
	if len(params) > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(params))
		}
		for k, v := range params {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", k, err)
			}
			cfg.Params[k] = f
		}
	}
	return cfg, cfg.Validate()
}

// openStore opens the run store for cfg. An explicit --data wins over the
// config's data_dir.
func openStore(cmd *cobra.Command, cfg *config.Config) (*storage.Store, error) {
	override := ""
	if cmd.Flags().Changed("data") {
		override = dataDir
	}
	st := storage.New(cfg.StorageDir(override))
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func newMetrics() (*prometheus.Registry, *telemetry.Metrics, error) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.New(reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, m, nil
}

func writeMetrics(reg *prometheus.Registry) error {
	if metricsFile == "" {
		return nil
	}
	return telemetry.WriteFile(metricsFile, reg)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}

	reg, metrics, err := newMetrics()
	if err != nil {
		return err
	}

	exp, err := experiment.New(*cfg, experiment.NewRegistry(), log, kernel.WithObserver(metrics))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s [%g, %g] h=%g...\n", cfg.Label(), cfg.StartTime, cfg.StopTime, cfg.StepSize)
	res, runErr := exp.Run(ctx)
	if res == nil {
		return runErr
	}

	runID, err := st.Save(cfg.Name, exp.Model().GetParams(), res)
	if err != nil {
		return errors.Join(runErr, err)
	}

	fmt.Println(viz.Summary(res))
	fmt.Printf("run id: %s\n", runID)

	if err := writeMetrics(reg); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Anything logged while the program owns the terminal would corrupt it.
	log := zap.NewNop()

	exp, err := experiment.New(*cfg, experiment.NewRegistry(), log)
	if err != nil {
		return err
	}

	m, err := viz.NewModel(cfg.Label(), exp.Start)
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}

	if res := final.(viz.Model).Result(); res != nil {
		fmt.Println(viz.Summary(res))
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	b, err := config.LoadBatch(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		b.Parallelism = parallelism
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	reg, metrics, err := newMetrics()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes, batchErr := experiment.RunBatch(ctx, b, experiment.NewRegistry(), log, kernel.WithObserver(metrics))
	if outcomes == nil {
		return batchErr
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMODEL\tEND\tSTEPS\tEVENTS\tOUTCOME\tID")
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
		if o.Result == nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%s\t-\n", o.Config.Label(), o.Config.Model, o.Err)
			continue
		}
		st, err := openStore(cmd, &o.Config)
		if err != nil {
			return err
		}
		id, err := st.Save(o.Config.Name, o.Config.Params, o.Result)
		if err != nil {
			return err
		}
		outcome := telemetry.Outcome(o.Result)
		if o.Err != nil && o.Result.Err == nil {
			outcome = o.Err.Error()
		}
		c := o.Result.Counters
		fmt.Fprintf(w, "%s\t%s\t%g\t%d\t%d/%d/%d\t%s\t%s\n",
			o.Config.Label(), o.Result.Model, o.Result.EndTime, c.Steps,
			c.TimeEvents, c.StateEvents, c.StepEvents, outcome, id)
	}
	w.Flush()

	if err := writeMetrics(reg); err != nil {
		return err
	}
	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tTIME\tEND\tSTEPS\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%d\t%s\n",
			r.ID, r.Name, r.Model, r.Timestamp.Format("2006-01-02 15:04:05"),
			r.EndTime, r.Counters.Steps, r.Status)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if tr.Len() == 0 {
		return fmt.Errorf("run %s has no samples", args[0])
	}

	fmt.Printf("run %s: %s, %d steps\n\n", meta.ID, meta.Model, meta.Counters.Steps)

	if plotVar != "" {
		values, err := tr.Column(plotVar)
		if err != nil {
			return err
		}
		caption := fmt.Sprintf("%s vs time [%g, %g]", plotVar, tr.Times[0], tr.Times[tr.Len()-1])
		fmt.Println(viz.Plot(values, plotWidth, plotHeight, caption))
		return nil
	}
	for _, chart := range viz.PlotTrajectory(tr, plotWidth, plotHeight, 0) {
		fmt.Println(chart)
		fmt.Println()
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(args[1], *meta, tr); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", args[1])
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if err := storage.ExportCSV(args[1], tr); err != nil {
		return err
	}
	fmt.Printf("exported %d samples to %s\n", tr.Len(), args[1])
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tOUTPUTS\tPARAMS")
	for _, name := range reg.ListModels() {
		m, err := reg.GetModel(name, nil)
		if err != nil {
			return err
		}
		var outs []string
		for _, v := range m.Description().Outputs() {
			outs = append(outs, v.Name)
		}
		var ps []string
		for k, v := range m.GetParams() {
			ps = append(ps, fmt.Sprintf("%s=%g", k, v))
		}
		sort.Strings(ps)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(outs, ","), strings.Join(ps, " "))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := config.ListPresets(args[0])
	if len(names) == 0 {
		return fmt.Errorf("no presets for %s", args[0])
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSTOP\tSTEP\tPARAMS")
	for _, name := range names {
		p := config.GetPreset(args[0], name)
		var ps []string
		for k, v := range p.Params {
			ps = append(ps, fmt.Sprintf("%s=%g", k, v))
		}
		sort.Strings(ps)
		fmt.Fprintf(w, "%s\t%g\t%g\t%s\n", name, p.StopTime, p.StepSize, strings.Join(ps, " "))
	}
	return w.Flush()
}
