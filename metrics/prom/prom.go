package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/asynccache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus collectors.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evicts    *prometheus.CounterVec
	sizeEnt   prometheus.Gauge
	started   prometheus.Counter
	joined    prometheus.Counter
	settled   *prometheus.HistogramVec
	lisPanics prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:   counter("hits_total", "Read lookups that found an entry"),
		misses: counter("misses_total", "Read lookups that found nothing"),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Entries removed, by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		started: counter("loads_started_total", "Resolver flights started"),
		joined:  counter("loads_joined_total", "Loads that joined an in-flight resolver"),
		settled: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_duration_seconds",
				Help:        "Time from flight start to its terminal state, by status",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"status"},
		),
		lisPanics: counter("listener_panics_total", "Listener invocations that panicked"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.started, a.joined, a.settled, a.lisPanics)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) { a.sizeEnt.Set(float64(entries)) }

func (a *Adapter) LoadStarted() { a.started.Inc() }

func (a *Adapter) LoadJoined() { a.joined.Inc() }

// LoadSettled observes the flight duration under its terminal status.
func (a *Adapter) LoadSettled(s cache.Status, d time.Duration) {
	a.settled.WithLabelValues(s.String()).Observe(d.Seconds())
}

func (a *Adapter) ListenerPanic() { a.lisPanics.Inc() }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
