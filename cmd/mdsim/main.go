package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mdsim/internal/backend"
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/logging"
	"github.com/san-kum/mdsim/internal/observers"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/storage"
	"github.com/san-kum/mdsim/internal/system"
	"github.com/san-kum/mdsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string

	backendName        string
	steps              int
	dt                 float64
	particles          int
	density            float64
	temperature        float64
	seed               int64
	outputPath         string
	restart            bool
	checkpointInterval int
	trajInterval       int
	thermoInterval     int
	targetRMSD         float64
	wallTimeLimit      string
	speedometer        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mdsim",
		Short: "molecular dynamics run driver",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mdsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with a live terminal view",
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show one run record",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [thermo_file]",
		Short: "plot a thermodynamic output file",
		Args:  cobra.ExactArgs(1),
		RunE:  plotThermo,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, showCmd, plotCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&backendName, "backend", config.DefaultBackend, "backend (lj, dryrun)")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "target steps")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&particles, "particles", config.DefaultParticles, "number of particles")
	cmd.Flags().Float64Var(&density, "density", config.DefaultDensity, "number density")
	cmd.Flags().Float64Var(&temperature, "temperature", config.DefaultTemperature, "initial temperature")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&outputPath, "output", "", "output path (defaults under the data directory)")
	cmd.Flags().BoolVar(&restart, "restart", false, "resume from the last checkpoint")
	cmd.Flags().IntVar(&checkpointInterval, "checkpoint", 0, "checkpoint interval in steps (0 disables)")
	cmd.Flags().IntVar(&trajInterval, "traj-interval", 0, "trajectory write interval (0 disables)")
	cmd.Flags().IntVar(&thermoInterval, "thermo-interval", 0, "thermo write interval (0 disables)")
	cmd.Flags().Float64Var(&targetRMSD, "target-rmsd", 0, "end the run at this rmsd (0 disables)")
	cmd.Flags().StringVar(&wallTimeLimit, "wall-time", "", "wall time limit, e.g. 30m (empty disables)")
	cmd.Flags().BoolVar(&speedometer, "speedometer", false, "log progress periodically")
}

// loadConfig merges the config file with flags; explicitly set flags
// win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("backend") || cfg.Backend == "" {
		cfg.Backend = backendName
	}
	// Load starts from defaults, so an absent steps key never reads as
	// zero; an explicit steps: 0 is a valid zero-step run and must not
	// be clobbered by the flag default.
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("dt") || cfg.System.Dt == 0 {
		cfg.System.Dt = dt
	}
	if cmd.Flags().Changed("particles") || cfg.System.Particles == 0 {
		cfg.System.Particles = particles
	}
	if cmd.Flags().Changed("density") || cfg.System.Density == 0 {
		cfg.System.Density = density
	}
	if cmd.Flags().Changed("temperature") || cfg.System.Temperature == 0 {
		cfg.System.Temperature = temperature
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputPath = outputPath
	}
	if cmd.Flags().Changed("restart") {
		cfg.Restart = restart
	}
	if cmd.Flags().Changed("checkpoint") {
		cfg.CheckpointInterval = checkpointInterval
	}
	if cmd.Flags().Changed("traj-interval") {
		cfg.TrajectoryInterval = trajInterval
	}
	if cmd.Flags().Changed("thermo-interval") {
		cfg.ThermoInterval = thermoInterval
	}
	if cmd.Flags().Changed("target-rmsd") {
		cfg.TargetRMSD = targetRMSD
	}
	if cmd.Flags().Changed("wall-time") {
		cfg.WallTimeLimit = wallTimeLimit
	}
	if cmd.Flags().Changed("speedometer") {
		cfg.Speedometer = speedometer
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(dataDir, "runs", time.Now().Format("20060102-150405"), "trajectory.xyz")
	}
	return cfg, nil
}

func buildBackend(cfg *config.Config) (sim.Backend, error) {
	switch cfg.Backend {
	case "dryrun":
		return backend.NewDryRun(), nil
	case "lj":
		rng := rand.New(rand.NewSource(cfg.Seed))
		sys := system.NewLattice(cfg.System.Particles, cfg.System.Density, cfg.System.Temperature, rng)
		return backend.NewVerlet(sys, cfg.System.Dt), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

func buildSimulation(cfg *config.Config) (*sim.Simulation, error) {
	log := logging.New(logLevel, os.Stderr)
	bk, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}
	s := sim.New(bk,
		sim.WithOutputPath(cfg.OutputPath),
		sim.WithCheckpointInterval(cfg.CheckpointInterval),
		sim.WithRestart(cfg.Restart),
		sim.WithLogger(log),
	)
	if cfg.TrajectoryInterval > 0 {
		s.AddEvery("write-trajectory", cfg.TrajectoryInterval, &observers.TrajectoryWriter{})
	}
	if cfg.ThermoInterval > 0 {
		s.AddEvery("write-thermo", cfg.ThermoInterval, &observers.ThermoWriter{})
		s.AddEvery("user-stop", cfg.ThermoInterval, observers.UserStop())
	}
	if cfg.Speedometer {
		interval := cfg.Steps / 10
		if interval < 1 {
			interval = 1
		}
		s.AddEvery("speedometer", interval, observers.NewSpeedometer())
	}
	if cfg.TargetRMSD > 0 {
		interval := cfg.ThermoInterval
		if interval < 1 {
			interval = 1000
		}
		s.Add("target-rmsd", sim.Targeter, sim.Every(interval), observers.TargetRMSD(cfg.TargetRMSD))
	}
	limit, err := cfg.WallTime()
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		interval := cfg.Steps / 100
		if interval < 1 {
			interval = 1
		}
		s.Add("target-walltime", sim.Targeter, sim.Every(interval), observers.TargetWallTime(limit))
	}
	return s, nil
}

func openStore() (*storage.Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.Open(filepath.Join(dataDir, "runs.db"))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := buildSimulation(cfg)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec := storage.NewRun(cfg.Backend, cfg.OutputPath)
	runErr := s.Run(ctx, cfg.Steps)

	rec.Steps = s.Steps()
	rec.RMSD = s.RMSD()
	rec.WallTime = s.ElapsedWallTime().Seconds()
	rec.FinishedAt = time.Now()
	if err := st.Save(context.Background(), rec); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	fmt.Printf("run id: %s\n", rec.ID)
	fmt.Printf("steps: %d\n", rec.Steps)
	fmt.Printf("output: %s\n", cfg.OutputPath)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := buildSimulation(cfg)
	if err != nil {
		return err
	}

	probe := viz.NewProbe()
	interval := cfg.Steps / 200
	if interval < 1 {
		interval = 1
	}
	s.AddEvery("live-probe", interval, probe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, cfg.Steps)
		probe.Close()
	}()

	p := tea.NewProgram(viz.NewModel(probe, "mdsim "+cfg.Backend))
	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	return <-done
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBACKEND\tSTARTED\tSTEPS\tRMSD\tWALL")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%.1fs\n",
			r.ID, r.Backend, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Steps, r.RMSD, r.WallTime)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func plotThermo(cmd *cobra.Command, args []string) error {
	labels, rows, err := readThermo(args[0])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}
	// First column is the step counter, plot the rest against it.
	for col := 1; col < len(rows[0]); col++ {
		data := make([]float64, len(rows))
		for i, row := range rows {
			data[i] = row[col]
		}
		caption := fmt.Sprintf("column %d", col)
		if col < len(labels) {
			caption = labels[col]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// readThermo parses a whitespace-separated table with an optional
// "# columns: a, b, c" header.
func readThermo(path string) ([]string, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var labels []string
	var rows [][]float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if rest, ok := strings.CutPrefix(line, "# columns:"); ok {
				for _, l := range strings.Split(rest, ",") {
					labels = append(labels, strings.TrimSpace(l))
				}
			}
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parse %s: %w", path, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return labels, rows, scanner.Err()
}
