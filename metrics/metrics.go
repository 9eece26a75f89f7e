/*package metrics exports simulation diagnostics to Prometheus.*/
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/phil-mansfield/galaxy/solver"
)

const namespace = "galaxy"

// Recorder holds every simulation metric in its own registry.
type Recorder struct {
	reg *prometheus.Registry

	steps prometheus.Counter
	buildSeconds, solveSeconds *prometheus.HistogramVec
	timestep, simTime prometheus.Gauge
	particles, nodes, dropped, outside prometheus.Gauge
	kineticEnergy prometheus.Gauge
}

// New returns a Recorder. Go runtime and process metrics are registered
// alongside the simulation's.
func New() *Recorder {
	r := &Recorder{ reg: prometheus.NewRegistry() }

	r.steps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name: "steps_total",
		Help: "Number of completed simulation steps.",
	})
	r.buildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name: "tree_build_seconds",
		Help: "Time spent building the Barnes-Hut tree each step.",
		Buckets: prometheus.ExponentialBuckets(1e-4, 2, 16),
	}, []string{ "solver" })
	r.solveSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name: "force_solve_seconds",
		Help: "Time spent evaluating forces each step.",
		Buckets: prometheus.ExponentialBuckets(1e-4, 2, 16),
	}, []string{ "solver" })
	r.timestep = newGauge("timestep", "Current timestep in code units.")
	r.simTime = newGauge(
		"simulation_time", "Elapsed simulation time in code units.",
	)
	r.particles = newGauge("particles", "Number of active particles.")
	r.nodes = newGauge("tree_nodes", "Number of reachable tree nodes.")
	r.dropped = newGauge(
		"tree_dropped_particles",
		"Particles dropped for exceeding the maximum tree depth.",
	)
	r.outside = newGauge(
		"tree_outside_particles",
		"Particles ignored for lying outside of the tree's domain.",
	)
	r.kineticEnergy = newGauge(
		"kinetic_energy", "Total kinetic energy in code units.",
	)

	r.reg.MustRegister(
		r.steps, r.buildSeconds, r.solveSeconds, r.timestep, r.simTime,
		r.particles, r.nodes, r.dropped, r.outside, r.kineticEnergy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: name, Help: help,
	})
}

// Registry returns the registry holding r's metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveStep records a completed step.
func (r *Recorder) ObserveStep(d solver.Diagnostics, timestep, simTime float64) {
	kind := d.Kind.String()

	r.steps.Inc()
	if d.Kind == solver.BarnesHut {
		r.buildSeconds.WithLabelValues(kind).Observe(d.BuildTime.Seconds())
	}
	r.solveSeconds.WithLabelValues(kind).Observe(d.SolveTime.Seconds())
	r.timestep.Set(timestep)
	r.simTime.Set(simTime)
	r.particles.Set(float64(d.Particles))
	r.nodes.Set(float64(d.Nodes))
	r.dropped.Set(float64(d.Dropped))
	r.outside.Set(float64(d.Outside))
}

// ObserveKineticEnergy records the universe's kinetic energy.
func (r *Recorder) ObserveKineticEnergy(e float64) { r.kineticEnergy.Set(e) }

// Handler returns an http.Handler serving r's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Listen serves r's metrics at /metrics on addr until ctx is cancelled.
func Listen(ctx context.Context, addr string, r *Recorder) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr: addr,
		Handler: mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5 * time.Second,
		)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			klog.Warningf("Metrics server did not shut down cleanly: %v", err)
		}
	}()

	klog.Infof("Serving metrics at http://%s/metrics", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
