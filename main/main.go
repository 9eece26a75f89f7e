package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/galaxy"
	"github.com/phil-mansfield/galaxy/io"
	"github.com/phil-mansfield/galaxy/metrics"
	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/pool"
	"github.com/phil-mansfield/galaxy/solver"
)

const curvePoints = 200

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	if err := newRootCommand().Execute(); err != nil {
		klog.Fatal(err.Error())
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "galaxy",
		Short: "Barnes-Hut simulations of interacting galaxies",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(newRunCommand(), newExampleConfigCommand(), newPotentialCommand())
	return cmd
}

type runOptions struct {
	steps, threads int
	solver, metricsAddress string
	paused bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use: "run [config]",
		Short: "Run a simulation",
		Long: "Runs the simulation described by the given configuration " +
			"file, or a single default galaxy if no file is given. Run " +
			"'galaxy example-config' for a description of the file format.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wrap, err := readConfig(args)
			if err != nil { return err }
			opts.apply(cmd, &wrap.Simulation)
			if err := wrap.CheckInit(); err != nil { return err }
			return runMain(wrap, opts.paused)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.steps, "steps", 0,
		"Number of steps to run. 0 runs until interrupted.")
	flags.IntVar(&opts.threads, "threads", 0,
		"Number of worker goroutines. 0 uses one per core.")
	flags.StringVar(&opts.solver, "solver", "",
		"Force solver: BarnesHut or Bruteforce.")
	flags.StringVar(&opts.metricsAddress, "metrics-address", "",
		"Address at which Prometheus metrics are served.")
	flags.BoolVar(&opts.paused, "paused", false,
		"Initialize the simulation but wait for a SIGUSR1 before running.")
	return cmd
}

// apply overrides the configuration file with every flag that was set.
func (opts *runOptions) apply(cmd *cobra.Command, con *io.SimulationConfig) {
	flags := cmd.Flags()
	if flags.Changed("steps") { con.Steps = opts.steps }
	if flags.Changed("threads") { con.Threads = opts.threads }
	if flags.Changed("solver") { con.Solver = opts.solver }
	if flags.Changed("metrics-address") {
		con.MetricsAddress = opts.metricsAddress
	}
}

func readConfig(args []string) (*io.ConfigWrapper, error) {
	if len(args) == 0 {
		klog.Infof("No configuration file given; using a default galaxy.")
		return io.DefaultConfigWrapper(), nil
	}
	return io.ReadConfig(args[0])
}

func runMain(wrap *io.ConfigWrapper, paused bool) error {
	con := &wrap.Simulation

	u, err := io.BuildUniverse(wrap)
	if err != nil { return err }

	p := pool.New(con.Threads)
	defer p.Close()
	klog.Infof("Started %d workers.", p.Workers())

	rec := metrics.New()
	opts := []galaxy.Option{
		galaxy.WithRecorder(rec), galaxy.WithUnits(wrap.Units.System()),
	}
	if !paused { opts = append(opts, galaxy.StartRunning()) }

	sim, err := galaxy.New(u, con, p, opts...)
	if err != nil { return err }
	if err := sim.Init(); err != nil { return err }

	sigCtx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := sim.Run(gctx)
		if errors.Is(err, context.Canceled) { return nil }
		return err
	})
	if con.MetricsAddress != "" {
		g.Go(func() error { return metrics.Listen(gctx, con.MetricsAddress, rec) })
	}
	if paused {
		g.Go(func() error { return startOnSignal(gctx, sim) })
	}

	err = g.Wait()

	d := sim.Diagnostics()
	klog.Infof(
		"Ran %d steps covering %.4g Myr with the %v solver.",
		d.Steps, d.TimeYears/1e6, d.Kind,
	)
	return err
}

// startOnSignal starts sim the first time the process receives SIGUSR1.
func startOnSignal(ctx context.Context, sim *galaxy.Simulation) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGUSR1)
	defer signal.Stop(c)

	klog.Infof("Paused. Send SIGUSR1 to pid %d to start.", os.Getpid())
	select {
	case <-ctx.Done():
	case <-c:
		sim.Start()
	}
	return nil
}

func newExampleConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use: "example-config",
		Short: "Print an example configuration file",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), io.ExampleConfigFile)
		},
	}
}

func newPotentialCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use: "potential [config]",
		Short: "Plot the halo potential and rotation curve of every galaxy",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wrap, err := readConfig(args)
			if err != nil { return err }
			return potentialMain(wrap, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "out", ".",
		"Directory which plots are written to.")
	return cmd
}

func potentialMain(wrap *io.ConfigWrapper, dir string) error {
	names := wrap.GalaxyNames()
	params := make([]model.Params, len(names))
	for i, name := range names { params[i] = wrap.Galaxy[name].Params() }
	if len(names) == 0 {
		names, params = []string{ "default" }, []model.Params{ model.DefaultParams() }
	}

	sys := wrap.Units.System()
	for i, name := range names {
		c := newCurves(params[i], curvePoints)
		kms := make([]float64, len(c.vs))
		for j := range kms { kms[j] = sys.Velocity(c.vs[j]) }

		plt.Figure()
		plt.Plot(c.rs, c.phis, "k", plt.LW(2))
		plt.Title(fmt.Sprintf("%s: halo potential", name))
		plt.XLabel(`$r$ [code units]`, plt.FontSize(16))
		plt.YLabel(`$\Phi$ [code units]`, plt.FontSize(16))
		plt.SaveFig(filepath.Join(dir, fileName(name, "potential")))

		plt.Figure()
		plt.Plot(c.rs, kms, "k", plt.LW(2))
		plt.Title(fmt.Sprintf("%s: rotation curve", name))
		plt.XLabel(`$r$ [code units]`, plt.FontSize(16))
		plt.YLabel(`$v_c$ [km/s]`, plt.FontSize(16))
		plt.SaveFig(filepath.Join(dir, fileName(name, "rotation")))

		klog.Infof(
			"Galaxy '%s': peak circular velocity %.4g km/s.",
			name, floats.Max(kms),
		)
	}

	plt.Execute()
	return nil
}

func fileName(galaxyName, kind string) string {
	return fmt.Sprintf("%s_%s.png", strings.ReplaceAll(galaxyName, " ", "_"), kind)
}

// curves holds a galaxy's analytic potential and rotation curve in code
// units.
type curves struct {
	rs, phis, vs []float64
}

// newCurves evaluates the halo potential and the circular velocity of the
// halo plus bulge at n radii out to twice the halo radius.
func newCurves(p model.Params, n int) curves {
	h := model.NewHalo(p.HaloMass, p.HaloRadius)
	b := model.Plummer{ Mass: p.BulgeMass, Radius: p.BulgeRadius }
	G := solver.DefaultConfig().G

	c := curves{
		rs: make([]float64, n), phis: make([]float64, n), vs: make([]float64, n),
	}
	floats.Span(c.rs, 2*p.HaloRadius/float64(n), 2*p.HaloRadius)
	for i, r := range c.rs {
		c.phis[i] = h.Potential(r, G)
		m := h.EnclosedMass(r) + b.EnclosedMass(r)
		c.vs[i] = math.Sqrt(G * m / r)
	}
	return c
}
