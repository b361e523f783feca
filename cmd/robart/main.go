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
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/robart/internal/auton"
	"github.com/san-kum/robart/internal/config"
	"github.com/san-kum/robart/internal/cortex"
	"github.com/san-kum/robart/internal/experiment"
	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/logging"
	"github.com/san-kum/robart/internal/menu"
	"github.com/san-kum/robart/internal/metrics"
	"github.com/san-kum/robart/internal/optim"
	"github.com/san-kum/robart/internal/pid"
	"github.com/san-kum/robart/internal/plant"
	"github.com/san-kum/robart/internal/robot"
	"github.com/san-kum/robart/internal/sched"
	"github.com/san-kum/robart/internal/teleop"
)

var (
	configFile string
	preset     string
	verbosity  int

	duration    time.Duration
	simTime     time.Duration
	holds       teleop.Holds
	kp          float64
	ki          float64
	kd          float64
	target      float64
	start       float64
	maxIntegral float64
	liftTarget  float64
	mglTarget   float64
	kpRange     string
	kiRange     string
	kdRange     string
	metricName  string
	simMenu     bool
	watch       bool

	header = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "robart",
		Short:        "lift and mobile-goal-lift control stack for team 1516B",
		SilenceUsage: true,
		RunE:         runMenu,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a preset configuration")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")

	simCmd := &cobra.Command{
		Use:   "sim [routine]",
		Short: "run the robot against the simulated board",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSim,
	}
	simCmd.Flags().DurationVar(&simTime, "time", 15*time.Second, "wall-clock run time")
	simCmd.Flags().Float64Var(&liftTarget, "lift", -1, "lift target when no routine is given")
	simCmd.Flags().Float64Var(&mglTarget, "mgl", -1, "mgl target when no routine is given")
	simCmd.Flags().Var(&holds, "hold", "joystick input for the operator, e.g. 6U:500ms or a3=100:2s (repeatable)")

	stepCmd := &cobra.Command{
		Use:   "step [axis]",
		Short: "step response of one axis on the simulated board",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStep,
	}
	stepCmd.Flags().Float64Var(&kp, "kp", 0, "proportional gain (default from config)")
	stepCmd.Flags().Float64Var(&ki, "ki", 0, "integral gain (default from config)")
	stepCmd.Flags().Float64Var(&kd, "kd", 0, "derivative gain (default from config)")
	stepCmd.Flags().Float64Var(&target, "target", 64, "target position")
	stepCmd.Flags().Float64Var(&start, "start", 0, "start position")
	stepCmd.Flags().DurationVar(&duration, "time", 4*time.Second, "simulated time")
	stepCmd.Flags().Float64Var(&maxIntegral, "max-integral", 0, "anti-windup error bound (default from config)")

	tuneCmd := &cobra.Command{
		Use:   "tune [axis]",
		Short: "grid search controller gains",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	tuneCmd.Flags().StringVar(&kpRange, "kp", "1,2,4,6,8", "kp values")
	tuneCmd.Flags().StringVar(&kiRange, "ki", "0,0.005,0.01", "ki values")
	tuneCmd.Flags().StringVar(&kdRange, "kd", "0,2,4,8", "kd values")
	tuneCmd.Flags().StringVar(&metricName, "metric", "iae", "metric to minimize")
	tuneCmd.Flags().Float64Var(&target, "target", 64, "target position")
	tuneCmd.Flags().Float64Var(&start, "start", 0, "start position")
	tuneCmd.Flags().DurationVar(&duration, "time", 4*time.Second, "simulated time per trial")

	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "LCD menu for routine selection",
		RunE:  runMenu,
	}
	menuCmd.Flags().BoolVar(&simMenu, "sim", false, "attach a simulated robot for the live screens")

	routinesCmd := &cobra.Command{
		Use:   "routines",
		Short: "list autonomous routines",
		RunE:  listRoutines,
	}
	routinesShowCmd := &cobra.Command{
		Use:   "show [name]",
		Short: "print a routine as yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  showRoutine,
	}
	routinesCmd.AddCommand(routinesShowCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage configuration",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "print the effective configuration",
		RunE:  showConfig,
	}
	configPresetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}
	configCmd.AddCommand(configInitCmd, configShowCmd, configPresetsCmd)

	boardCmd := &cobra.Command{
		Use:   "board [port]",
		Short: "check the serial link to the motor board",
		Args:  cobra.MaximumNArgs(1),
		RunE:  checkBoard,
	}
	boardCmd.Flags().BoolVar(&watch, "watch", false, "keep reading until interrupted")

	rootCmd.AddCommand(simCmd, stepCmd, tuneCmd, menuCmd, routinesCmd, configCmd, boardCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

func logger() logr.Logger {
	return logging.New(os.Stderr, verbosity).WithName("robart")
}

func axisArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "lift"
}

func axisConfig(cfg *config.Config, axis string) (config.AxisConfig, error) {
	switch axis {
	case "lift":
		return cfg.Lift, nil
	case "mgl":
		return cfg.MGL, nil
	}
	return config.AxisConfig{}, fmt.Errorf("%w: %q", experiment.ErrUnknownAxis, axis)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger()

	board := plant.NewBoard(cfg.Plant)
	r, err := robot.New(cfg, board, sched.System, log)
	if err != nil {
		return err
	}

	tasks := []robot.Task{
		func(ctx context.Context) error {
			return board.Run(ctx, sched.System, cfg.PollPeriod.Std()/4, log.WithName("plant"))
		},
		r.ControlTask,
	}
	if len(args) > 0 {
		if len(holds) > 0 {
			return errors.New("--hold drives the operator task, which does not run with a routine")
		}
		if err := r.Selector.Select(args[0]); err != nil {
			return err
		}
		tasks = append(tasks, r.AutonTask())
	} else {
		if liftTarget >= 0 {
			r.SetLiftTarget(liftTarget)
		}
		if mglTarget >= 0 {
			r.SetMGLTarget(mglTarget)
		}
		js := teleop.NewScripted()
		tasks = append(tasks, r.OperatorTask(js), func(ctx context.Context) error {
			return js.Play(ctx, sched.System, holds)
		})
	}

	var liftTrace, mglTrace []float64
	tasks = append(tasks, func(ctx context.Context) error {
		return sched.Every(ctx, sched.System, 50*time.Millisecond, log, func(context.Context) {
			s := r.Snapshot()
			liftTrace = append(liftTrace, s.Lift.Position)
			mglTrace = append(mglTrace, s.MGL.Position)
		})
	})

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelRun := context.WithTimeout(ctx, simTime)
	defer cancelRun()

	name := "operator " + holds.String()
	if len(args) > 0 {
		name = args[0]
	}
	fmt.Println(header.Render(fmt.Sprintf("sim %s", name)) + dim.Render(fmt.Sprintf("  %v at %v", simTime, cfg.PollPeriod.Std())))
	began := time.Now()
	if err := r.Run(ctx, tasks...); err != nil {
		return err
	}
	s := r.Snapshot()
	r.Disable()

	fmt.Printf("completed in %v, simulated %.2fs\n\n", time.Since(began).Round(time.Millisecond), board.Time())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AXIS\tTARGET\tPOSITION\tDRIVE\tINTEGRAL")
	fmt.Fprintf(w, "lift\t%.1f\t%.1f\t%d\t%.1f\n", s.Lift.Target, s.Lift.Position, s.Lift.Drive, s.Lift.Integral)
	fmt.Fprintf(w, "mgl\t%.1f\t%.1f\t%d\t%.1f\n", s.MGL.Target, s.MGL.Position, s.MGL.Drive, s.MGL.Integral)
	w.Flush()

	if len(liftTrace) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.PlotMany([][]float64{liftTrace, mglTrace},
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Green, asciigraph.Blue),
			asciigraph.Caption("lift (green) and mgl (blue) position")))
	}
	return nil
}

func trialConfig(cmd *cobra.Command, cfg *config.Config, axis string) (experiment.Config, error) {
	ac, err := axisConfig(cfg, axis)
	if err != nil {
		return experiment.Config{}, err
	}
	tc := experiment.DefaultConfig()
	tc.Axis = axis
	tc.Gains = ac.Gains()
	tc.MaxIntegralError = ac.MaxIntegralError
	tc.Saturation = ac.Saturation
	tc.Start = start
	tc.Target = target
	tc.Duration = duration
	tc.Period = cfg.PollPeriod.Std()
	tc.Plant = cfg.Plant

	if cmd.Flags().Changed("kp") {
		tc.Gains.Kp = kp
	}
	if cmd.Flags().Changed("ki") {
		tc.Gains.Ki = ki
	}
	if cmd.Flags().Changed("kd") {
		tc.Gains.Kd = kd
	}
	if cmd.Flags().Changed("max-integral") {
		tc.MaxIntegralError = maxIntegral
	}
	return tc, nil
}

func runStep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	axis := axisArg(args)
	tc, err := trialConfig(cmd, cfg, axis)
	if err != nil {
		return err
	}

	exp, err := experiment.New(tc, experiment.NewRegistry(), logger())
	if err != nil {
		return err
	}
	for _, m := range metrics.Default() {
		exp.AddMetric(m)
	}

	ctx, cancel := signalContext()
	defer cancel()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(header.Render(fmt.Sprintf("%s %.0f → %.0f", axis, tc.Start, tc.Target)) +
		dim.Render(fmt.Sprintf("  kp=%g ki=%g kd=%g", tc.Gains.Kp, tc.Gains.Ki, tc.Gains.Kd)))
	fmt.Printf("steps: %d  final: %.2f\n\nmetrics:\n", len(result.Times), result.Final())
	printMetrics(result.Metrics)

	fmt.Println()
	fmt.Println(asciigraph.PlotMany([][]float64{result.Positions, result.Targets},
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.DarkGray),
		asciigraph.Caption(fmt.Sprintf("%s position over %v", axis, tc.Duration))))
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%.4f\n", name, m[name])
	}
	w.Flush()
}

func parseRange(s string) ([]float64, error) {
	var vals []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad range value %q: %w", f, err)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("empty range %q", s)
	}
	return vals, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	axis := axisArg(args)
	base, err := trialConfig(cmd, cfg, axis)
	if err != nil {
		return err
	}

	var ranges [][]float64
	for _, s := range []string{kpRange, kiRange, kdRange} {
		r, err := parseRange(s)
		if err != nil {
			return err
		}
		ranges = append(ranges, r)
	}

	registry := experiment.NewRegistry()
	log := logger()
	build := func(p map[string]float64) (*experiment.Experiment, error) {
		tc := base
		tc.Gains = pid.Gains{Kp: p["kp"], Ki: p["ki"], Kd: p["kd"]}
		exp, err := experiment.New(tc, registry, log)
		if err != nil {
			return nil, err
		}
		for _, m := range metrics.Default() {
			exp.AddMetric(m)
		}
		return exp, nil
	}

	search := optim.NewGridSearch([]string{"kp", "ki", "kd"}, ranges)
	fmt.Printf("tuning %s over %d candidates (minimizing %s)...\n", axis, search.Size(), metricName)

	ctx, cancel := signalContext()
	defer cancel()
	began := time.Now()
	best, all, err := search.Search(ctx, build, metricName)
	if err != nil {
		return err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Value < all[j].Value })
	fmt.Printf("completed in %v\n\n", time.Since(began).Round(time.Millisecond))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KP\tKI\tKD\t%s\n", strings.ToUpper(metricName))
	for i, c := range all {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "%g\t%g\t%g\t%.4f\n", c.Params["kp"], c.Params["ki"], c.Params["kd"], c.Value)
	}
	w.Flush()
	fmt.Printf("\nbest: %s\n", header.Render(fmt.Sprintf("kp=%g ki=%g kd=%g", best.Params["kp"], best.Params["ki"], best.Params["kd"])))
	return nil
}

func runMenu(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !simMenu {
		lib := auton.NewLibrary()
		if err := lib.LoadScripts(cfg.Auton.Scripts); err != nil {
			return err
		}
		sel, err := auton.NewSelector(lib.Names(), cfg.Auton.Routine)
		if err != nil {
			return err
		}
		if err := menu.Run(menu.New(sel, lib, nil, cfg.Teleop.LiftRate)); err != nil {
			return err
		}
		fmt.Printf("selected: %s\n", sel.Selected())
		return nil
	}

	// the live screens log nothing: the TUI owns the terminal
	board := plant.NewBoard(cfg.Plant)
	r, err := robot.New(cfg, board, sched.System, logr.Discard())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx,
			func(ctx context.Context) error {
				return board.Run(ctx, sched.System, cfg.PollPeriod.Std()/4, logr.Discard())
			},
			r.ControlTask)
	}()

	err = menu.Run(menu.New(r.Selector, r.Routines, r, 5*cfg.Teleop.LiftRate))
	cancel()
	if runErr := <-done; err == nil {
		err = runErr
	}
	r.Disable()
	if err == nil {
		fmt.Printf("selected: %s\n", r.Selector.Selected())
	}
	return err
}

func listRoutines(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib := auton.NewLibrary()
	if err := lib.LoadScripts(cfg.Auton.Scripts); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTITLE\tSTEPS\tDESCRIPTION")
	for _, name := range lib.Names() {
		r, _ := lib.Get(name)
		sel := " "
		if name == cfg.Auton.Routine {
			sel = "*"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\n", sel, r.Name, r.Title, len(r.Steps), r.Description)
	}
	return w.Flush()
}

func showRoutine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib := auton.NewLibrary()
	if err := lib.LoadScripts(cfg.Auton.Scripts); err != nil {
		return err
	}
	r, err := lib.Get(args[0])
	if err != nil {
		return err
	}
	data, err := auton.Marshal(r)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	var total time.Duration
	for _, s := range r.Steps {
		switch s.Kind {
		case auton.Straight:
			total += auton.StraightTime(s.Distance, s.Power)
		case auton.TurnCW, auton.TurnCCW:
			total += auton.TurnTime(s.Angle, s.Radius, s.Power)
		case auton.Claw:
			total += auton.ClawTime
		case auton.Lift, auton.MGL, auton.Wait:
			total += time.Duration(s.Ms) * time.Millisecond
		}
	}
	fmt.Println(dim.Render(fmt.Sprintf("# runs for %v", total)))
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := "robart.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func checkBoard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port := cfg.Serial.Port
	if len(args) > 0 {
		port = args[0]
	}
	if port == "" {
		return errors.New("no serial port: pass one or set serial.port")
	}
	log := logger()

	board, err := cortex.Open(port, cfg.Serial.Baud, cfg.Serial.CRC)
	if err != nil {
		return err
	}
	defer board.Close()

	if err := hw.Init(board, log); err != nil {
		fmt.Printf("warning: %v\n", err)
	}

	lift := hw.NewEncoder(board, hw.IMELift, cfg.Lift.MaxRevs, log)
	mgl := hw.NewEncoder(board, hw.IMEMGL, cfg.MGL.MaxRevs, log)
	limit := hw.NewLift(board, log)

	report := func(context.Context) {
		counts := make([]string, 0, hw.IMECount)
		for id := 0; id < hw.IMECount; id++ {
			c, err := board.IMEGet(id)
			if err != nil {
				counts = append(counts, "err")
				continue
			}
			counts = append(counts, strconv.Itoa(int(c)))
		}
		status := "ok"
		if bits, err := board.GetErrors(); err != nil {
			status = err.Error()
		} else if bits != 0 {
			status = cortex.GetError(bits).Error()
		}
		fmt.Printf("imes [%s]  lift %.1f  mgl %.1f  down %v  %s\n",
			strings.Join(counts, " "), lift.Position(), mgl.Position(), limit.IsDown(), status)
	}

	if !watch {
		report(context.Background())
		return nil
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := sched.Every(ctx, sched.System, 250*time.Millisecond, log, report); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
