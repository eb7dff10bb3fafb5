package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/simstate/internal/config"
	"github.com/san-kum/simstate/internal/integrators"
	"github.com/san-kum/simstate/internal/multibody"
	"github.com/san-kum/simstate/internal/sim"
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/storage"
	"github.com/san-kum/simstate/internal/system"
	"github.com/san-kum/simstate/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	dt         float64
	duration   float64
	runs       int
	integrator string
	component  int
	asJSON     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simstate",
		Short: "staged multibody state simulation lab",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".simstate", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario and store the result",
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario config file (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use a preset scenario")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	runCmd.Flags().Float64Var(&duration, "time", 0, "duration override")
	runCmd.Flags().IntVar(&runs, "runs", 0, "parallel run count override")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "integrator override")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot one component of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&component, "component", 1, "y component to plot")

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run's metadata and events",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "dump the full run as JSON")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a scenario with a live view",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scenario config file (yaml)")
	liveCmd.Flags().StringVar(&preset, "preset", "", "use a preset scenario")
	liveCmd.Flags().IntVar(&component, "component", 1, "y component to track")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, showCmd, liveCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves preset, config file and flag overrides, in that
// order of increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("runs") {
		cfg.Runs = runs
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	return cfg, cfg.Validate()
}

// buildSystem assembles the multibody rig a config describes.
func buildSystem(cfg *config.Config) (*system.System, *multibody.PointMatter) {
	masses := make([]float64, len(cfg.Points))
	for i, p := range cfg.Points {
		masses[i] = p.Mass
	}
	matter := multibody.NewPointMatter(masses)
	for i, p := range cfg.Points {
		matter.SetInitialPosition(i, p.X, p.Y)
		matter.SetInitialVelocity(i, p.VX, p.VY)
	}

	forces := multibody.NewForceField(matter)
	forces.SetDefaultGravity(cfg.Gravity.X, cfg.Gravity.Y)
	forces.SetDefaultWind(cfg.Wind.X, cfg.Wind.Y)

	sys := system.New()
	matter.Install(sys)
	forces.Install(sys)
	for _, rod := range cfg.Rods {
		multibody.NewRodConstraint(matter, rod.A, rod.B, rod.Length).Install(sys)
	}
	for _, w := range cfg.Witnesses {
		multibody.NewCrossingWitness(matter, w.Point, w.Height).Install(sys)
	}
	return sys, matter
}

func newIntegrator(name string) (integrators.Integrator, error) {
	switch name {
	case "euler":
		return integrators.NewEuler(), nil
	case "rk4", "":
		return integrators.NewRK4(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sys, matter := buildSystem(cfg)

	s, err := sys.CreateState()
	if err != nil {
		return err
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	simCfg := sim.Config{Dt: cfg.Dt, Duration: cfg.Duration, CaptureEvery: cfg.CaptureEvery}

	fmt.Printf("running %s...\n", cfg.Scenario)
	start := time.Now()

	var results []*sim.Result
	if cfg.Runs > 1 {
		ens := sim.NewEnsemble(sys, func() integrators.Integrator {
			ig, _ := newIntegrator(cfg.Integrator)
			return ig
		}, cfg.Runs)
		// Spread the ensemble by nudging the first point's height.
		results, err = ens.Run(context.Background(), s, simCfg,
			func(run int, rs *state.State) error {
				q, err := rs.UpdSubsystemQ(matter.SubsystemIndex())
				if err != nil {
					return err
				}
				q[1] += 0.01 * float64(run)
				return nil
			})
		if err != nil {
			return err
		}
	} else {
		ig, err := newIntegrator(cfg.Integrator)
		if err != nil {
			return err
		}
		stepper := sim.New(sys, ig)
		result, err := stepper.Run(context.Background(), s, simCfg)
		if err != nil {
			return err
		}
		results = []*sim.Result{result}
	}
	elapsed := time.Since(start)

	for _, result := range results {
		runID, err := store.Save(cfg.Scenario, cfg.Integrator, cfg.Dt, cfg.Duration, result)
		if err != nil {
			return err
		}
		fmt.Printf("saved %s  (%d steps, %d events)\n", runID, result.StepsTaken, len(result.Events))
	}
	fmt.Printf("done in %s\n", elapsed.Round(time.Millisecond))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.List()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tWHEN\tDT\tDURATION\tINTEGRATOR\tSTEPS\tEVENTS")
	for _, meta := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%s\t%d\t%d\n",
			meta.ID, meta.Scenario, meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.Dt, meta.Duration, meta.Integrator, meta.Steps, meta.Events)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	frames, err := store.LoadFrames(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.PlotComponent(frames, component, 70, 18))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if asJSON {
		return store.Export(args[0], os.Stdout)
	}

	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("run        %s\n", meta.ID)
	fmt.Printf("scenario   %s\n", meta.Scenario)
	fmt.Printf("when       %s\n", meta.Timestamp.Local().Format(time.RFC1123))
	fmt.Printf("dt         %g\n", meta.Dt)
	fmt.Printf("duration   %g\n", meta.Duration)
	fmt.Printf("integrator %s\n", meta.Integrator)
	fmt.Printf("steps      %d\n", meta.Steps)

	events, err := store.LoadEvents(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("events     none")
		return nil
	}
	fmt.Println("events:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  STEP\tTIME\tTRIGGER\tSTAGE\tBEFORE\tAFTER")
	for _, ev := range events {
		fmt.Fprintf(w, "  %d\t%.4f\t%d\t%s\t%+.4f\t%+.4f\n",
			ev.Step, ev.Time, ev.Trigger, ev.Stage, ev.Before, ev.After)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sys, _ := buildSystem(cfg)
	s, err := sys.CreateState()
	if err != nil {
		return err
	}
	if err := sys.Realize(s, state.StageReport); err != nil {
		return err
	}
	ig, err := newIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}
	model := viz.NewLive(sys, ig, s, cfg.Dt, component)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
