package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/ruler/pkg/catalog"
	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/rules"
	"mercator-hq/ruler/pkg/store"
	"mercator-hq/ruler/pkg/telemetry/health"
	"mercator-hq/ruler/pkg/telemetry/metrics"
	"mercator-hq/ruler/pkg/telemetry/tracing"
)

// API holds the dependencies of the HTTP handlers.
type API struct {
	engine  *rules.Engine
	store   store.Store
	catalog *catalog.Catalog
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
	logger  *slog.Logger

	maxCombine  int
	listDefault int
	listMax     int
	metricsPath string
}

// New creates an API backed by engine and st. A nil engine uses default
// limits and a nil store keeps rules in memory.
func New(engine *rules.Engine, st store.Store, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = rules.NewEngine(logger)
	}
	if st == nil {
		st = store.NewMemoryStore()
	}
	return &API{
		engine:      engine,
		store:       st,
		logger:      logger.With("component", "api"),
		maxCombine:  config.DefaultEngineMaxCombine,
		listDefault: config.DefaultStorageListDefaultLimit,
		listMax:     config.DefaultStorageListMaxLimit,
	}
}

// WithCatalog serves the named rules of c under /catalog.
func (a *API) WithCatalog(c *catalog.Catalog) *API {
	a.catalog = c
	return a
}

// WithMetrics records request and rule metrics on collector and exposes
// them at path. An empty path records without exposing.
func (a *API) WithMetrics(collector *metrics.Collector, path string) *API {
	a.metrics = collector
	a.metricsPath = path
	return a
}

// WithTracer wraps requests and rule operations in spans.
func (a *API) WithTracer(t *tracing.Tracer) *API {
	a.tracer = t
	return a
}

// WithHealth serves checker's report at /health.
func (a *API) WithHealth(checker *health.Checker) *API {
	a.health = checker
	return a
}

// WithLimits applies the combine and paging limits from configuration.
func (a *API) WithLimits(engine config.EngineConfig, storage config.StorageConfig) *API {
	if engine.MaxCombine > 0 {
		a.maxCombine = engine.MaxCombine
	}
	if storage.ListDefaultLimit > 0 {
		a.listDefault = storage.ListDefaultLimit
	}
	if storage.ListMaxLimit > 0 {
		a.listMax = storage.ListMaxLimit
	}
	return a
}

// Handler returns the routed handler. Middleware such as request IDs and
// logging is applied by the server around it.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	a.route(mux, "POST /create_rule", a.createRule)
	a.route(mux, "POST /combine_rules", a.combineRules)
	a.route(mux, "POST /evaluate_rule", a.evaluateRule)

	a.route(mux, "GET /rules", a.listRules)
	a.route(mux, "GET /rules/{id}", a.getRule)
	a.route(mux, "DELETE /rules/{id}", a.deleteRule)

	if a.catalog != nil {
		a.route(mux, "GET /catalog", a.listCatalog)
		a.route(mux, "POST /catalog/evaluate", a.evaluateCatalog)
		a.route(mux, "POST /catalog/{name}/evaluate", a.evaluateCatalogRule)
	}

	if a.health != nil {
		mux.Handle("GET /health", a.health.Handler())
	}
	if a.metrics != nil && a.metricsPath != "" {
		mux.Handle("GET "+a.metricsPath, a.metrics.Handler())
	}

	mux.HandleFunc("/", a.fallback(mux))

	return a.tracer.Middleware(mux)
}

// route registers h and records a request metric labelled with the route
// path for every call.
func (a *API) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	_, path, _ := strings.Cut(pattern, " ")
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		a.metrics.RecordRequest(path, r.Method, sw.status, time.Since(start))
	}))
}

// fallback answers unrouted requests. A path served under another method
// gets 405 with an Allow header; anything else gets 404.
func (a *API) fallback(mux *http.ServeMux) http.HandlerFunc {
	methods := []string{http.MethodGet, http.MethodPost, http.MethodDelete}

	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, m := range methods {
			if m == r.Method {
				continue
			}
			candidate := r.Clone(r.Context())
			candidate.Method = m
			if _, pattern := mux.Handler(candidate); pattern != "/" {
				allowed = append(allowed, m)
			}
		}

		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Status: statusError, Message: "Method not allowed"})
			return
		}
		writeJSON(w, http.StatusNotFound, ErrorResponse{Status: statusError, Message: msgNotFound})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
