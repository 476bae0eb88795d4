package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eleven-am/triggerflow/internal/domain"
)

type Collector struct {
	registry *prometheus.Registry

	compileFailures   *prometheus.CounterVec
	runsStarted       prometheus.Counter
	runsFinished      *prometheus.CounterVec
	runsActive        prometheus.Gauge
	runDuration       *prometheus.HistogramVec
	stepsFinished     *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	streamSubscribers prometheus.Gauge
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		compileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_compile_failures_total",
			Help: "Workflow graphs rejected by the compiler, by reason",
		}, []string{"reason"}),

		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerflow_runs_started_total",
			Help: "Runs accepted by the run manager",
		}),

		runsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_runs_finished_total",
			Help: "Runs that reached a terminal status",
		}, []string{"status"}),

		runsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "triggerflow_runs_active",
			Help: "Runs currently executing",
		}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triggerflow_run_duration_seconds",
			Help:    "Wall time from run start to terminal status",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		stepsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_steps_finished_total",
			Help: "Executed steps by node type and outcome",
		}, []string{"node_type", "outcome"}),

		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triggerflow_step_duration_seconds",
			Help:    "Step execution time by node type",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"node_type"}),

		streamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "triggerflow_stream_subscribers",
			Help: "Observers attached to live run log streams",
		}),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CompileFailed(reason string) {
	c.compileFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) RunStarted() {
	c.runsStarted.Inc()
	c.runsActive.Inc()
}

func (c *Collector) RunFinished(status domain.RunStatus, seconds float64) {
	c.runsActive.Dec()
	c.runsFinished.WithLabelValues(string(status)).Inc()
	c.runDuration.WithLabelValues(string(status)).Observe(seconds)
}

func (c *Collector) StepFinished(nodeType string, outcome string, seconds float64) {
	c.stepsFinished.WithLabelValues(nodeType, outcome).Inc()
	c.stepDuration.WithLabelValues(nodeType).Observe(seconds)
}

func (c *Collector) SubscriberAttached() {
	c.streamSubscribers.Inc()
}

func (c *Collector) SubscriberDetached() {
	c.streamSubscribers.Dec()
}

type Noop struct{}

func (Noop) CompileFailed(string)                  {}
func (Noop) RunStarted()                           {}
func (Noop) RunFinished(domain.RunStatus, float64) {}
func (Noop) StepFinished(string, string, float64)  {}
func (Noop) SubscriberAttached()                   {}
func (Noop) SubscriberDetached()                   {}
