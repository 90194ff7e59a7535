package monitoring

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "marketd"

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "marketd".
	Namespace               string
	DisableGoCollector      bool
	DisableProcessCollector bool
}

// Module owns the worker's metrics registry, the job summary served on /status and the
// health probes.
type Module struct {
	registry *prometheus.Registry
	metrics  *workerCollectors
	stats    *statStore
	health   *HealthManager
}

// NewModule builds a module on a private registry so tests and repeated bootstraps never
// collide on the default one.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	var runtime []prometheus.Collector
	if !opts.DisableGoCollector {
		runtime = append(runtime, collectors.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		runtime = append(runtime, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}))
	}

	metrics := newCollectors(namespace)
	registry := prometheus.NewRegistry()
	for _, c := range append(runtime, metrics.all()...) {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("monitoring: register collector: %w", err)
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    newStatStore(),
		health:   NewHealthManager(),
	}, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the module's metrics in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Health returns the module's probe registry.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var current atomic.Pointer[Module]

// SetModule installs the module used by the Record* helpers. A nil module is ignored.
func SetModule(module *Module) {
	if module != nil {
		current.Store(module)
	}
}

// CurrentModule returns the installed module, or nil.
func CurrentModule() *Module {
	return current.Load()
}

func ensureModule() *Module {
	return current.Load()
}
