package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/linkage-sim/linkage/internal/driver"
	"github.com/linkage-sim/linkage/internal/report"
	"github.com/linkage-sim/linkage/internal/scenario"
)

var (
	log = logrus.New()

	dataDir    string
	verbose    bool
	configFile string
	dt         float64
	duration   float64
	integrator string
	adaptive   bool
	tolerance  float64
	showPlot   bool
	plotIndex  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "linkage",
		Short: "rigid multibody simulation lab",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".linkage", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scenario and store the trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "chart a coordinate after the run")
	runCmd.Flags().IntVar(&plotIndex, "coord", 0, "coordinate index to chart")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scenario and replay it in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLiveScenario,
	}
	addScenarioFlags(liveCmd)

	reactionsCmd := &cobra.Command{
		Use:   "reactions [preset]",
		Short: "print mobilizer reaction forces, after a run when --time is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printReactions,
	}
	addScenarioFlags(reactionsCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "chart a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotIndex, "coord", 0, "coordinate index to chart")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios and integrators",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("scenarios:  " + strings.Join(scenario.Presets(), ", "))
			fmt.Println("integrators: " + strings.Join(scenario.Integrators(), ", "))
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, reactionsCmd, listCmd, plotCmd, presetsCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	cmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	cmd.Flags().Float64Var(&duration, "time", 0, "duration override")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator override")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "adaptive stepping")
	cmd.Flags().Float64Var(&tolerance, "tol", 0, "adaptive tolerance override")
}

// loadScenario resolves the preset argument or --config file and applies the
// command line overrides.
func loadScenario(args []string) (*scenario.Scenario, error) {
	var cfg *scenario.Config
	var err error
	switch {
	case configFile != "":
		cfg, err = scenario.Load(configFile)
	case len(args) == 1:
		cfg, err = scenario.Preset(args[0])
	default:
		cfg, err = scenario.Preset("pendulum")
	}
	if err != nil {
		return nil, err
	}
	if dt > 0 {
		cfg.Run.Dt = dt
	}
	if duration > 0 {
		cfg.Run.Duration = duration
	}
	if integrator != "" {
		cfg.Integrator = integrator
	}
	if adaptive {
		cfg.Run.Adaptive = true
	}
	if tolerance > 0 {
		cfg.Run.Tolerance = tolerance
	}
	return scenario.Build(cfg)
}

func simulate(sc *scenario.Scenario) (*driver.Result, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := driver.New(sc.System, sc.Integrator)
	d.AddMetric(driver.NewEnergyDrift(sc.System))
	if sc.System.Constraints().NumEquations() > 0 {
		d.AddMetric(driver.NewConstraintDrift(sc.System))
	}
	log.WithFields(logrus.Fields{
		"scenario":   sc.Config.Name,
		"integrator": sc.Integrator.Name(),
		"dt":         sc.Run.Dt,
		"duration":   sc.Run.Duration,
	}).Info("starting run")
	return d.Run(ctx, sc.State, sc.Run)
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args)
	if err != nil {
		return err
	}
	result, err := simulate(sc)
	if err != nil {
		return err
	}

	store := report.NewStore(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	runID, err := store.Save(sc.Config.Name, sc.Integrator.Name(), sc.Run.Dt, sc.Run.Duration, result)
	if err != nil {
		return err
	}
	meta, err := store.LoadMetadata(runID)
	if err != nil {
		return err
	}
	fmt.Print(report.Summary(meta))
	if w := report.Warnings(result); w != "" {
		fmt.Print(w)
	}
	if showPlot {
		chart, err := report.PlotCoordinate(result, plotIndex, 70, 12)
		if err != nil {
			return err
		}
		fmt.Println(chart)
	}
	return nil
}

func runLiveScenario(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args)
	if err != nil {
		return err
	}
	result, err := simulate(sc)
	if err != nil {
		return err
	}
	return report.RunLive(sc.Config.Name, result)
}

func printReactions(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args)
	if err != nil {
		return err
	}
	if duration > 0 {
		// Report the reactions at the end of a run rather than at t=0.
		if _, err := simulate(sc); err != nil {
			return err
		}
	} else if err := sc.System.Assemble(sc.State); err != nil {
		return err
	}
	reactions, err := sc.System.CalcMobilizerReactionForces(sc.State)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "body\ttorque (N·m)\tforce (N)")
	for i := 1; i < len(reactions); i++ {
		r := reactions[i]
		fmt.Fprintf(w, "%d\t[%.4g %.4g %.4g]\t[%.4g %.4g %.4g]\n",
			i, r.Ang.X, r.Ang.Y, r.Ang.Z, r.Lin.X, r.Lin.Y, r.Lin.Z)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := report.NewStore(dataDir)
	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no runs stored")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "run\tscenario\tintegrator\tsteps\tenergy drift")
	for _, id := range ids {
		meta, err := store.LoadMetadata(id)
		if err != nil {
			log.WithField("run", id).Warn("unreadable metadata")
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3e\n",
			meta.ID, meta.Scenario, meta.Integrator, meta.StepsTaken, meta.EnergyDrift)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := report.NewStore(dataDir)
	meta, err := store.LoadMetadata(args[0])
	if err != nil {
		return err
	}
	frames, err := store.LoadFrames(args[0])
	if err != nil {
		return err
	}
	fmt.Print(report.Summary(meta))
	chart, err := report.PlotCoordinate(&driver.Result{Frames: frames}, plotIndex, 70, 12)
	if err != nil {
		return err
	}
	fmt.Println(chart)
	return nil
}
