// Package httpapi serves the samplers as a JSON API over gin.
package httpapi

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtding233/bob-variates/internal/config"
	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/metrics"
	"github.com/xtding233/bob-variates/internal/stream"
	"github.com/xtding233/bob-variates/internal/variate"
)

// Request limits. The query binding tags carry the same numbers.
const (
	MaxBatch   = 100000
	MaxPoints  = variate.MaxPoints
	MaxTrials  = ensemble.MaxTrials
	MaxWorkers = ensemble.MaxWorkers
)

type errResp struct {
	Err string `json:"err"`
}

type valuesResp struct {
	Stream string    `json:"stream"`
	Values []float64 `json:"values"`
}

// Server holds the stream registry and the presets offered by /v1/arm.
type Server struct {
	logger  log.Logger
	metrics *metrics.Collector
	gather  prometheus.Gatherer
	runner  *ensemble.Runner
	streams *stream.Registry

	mu      sync.RWMutex
	presets map[string]config.Preset
}

// Options wires a Server.
type Options struct {
	Streams  *stream.Registry
	Presets  map[string]config.Preset
	Logger   log.Logger
	Metrics  *metrics.Collector  // optional
	Gatherer prometheus.Gatherer // optional; enables /metrics
}

// New creates a Server.
func New(o Options) *Server {
	logger := o.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "module", "httpapi")

	reg := o.Streams
	if reg == nil {
		var obs variate.Observer
		if o.Metrics != nil {
			obs = o.Metrics
		}
		reg = stream.NewRegistry(stream.Config{}, logger, obs)
	}
	s := &Server{
		logger:  logger,
		metrics: o.Metrics,
		gather:  o.Gatherer,
		runner:  ensemble.NewRunner(logger, reg.Observer()),
		streams: reg,
	}
	s.SetPresets(o.Presets)
	return s
}

// SetPresets replaces the named arm distributions, e.g. after a config reload.
func (s *Server) SetPresets(p map[string]config.Preset) {
	cp := make(map[string]config.Preset, len(p))
	for k, v := range p {
		cp[k] = v
	}
	s.mu.Lock()
	s.presets = cp
	s.mu.Unlock()
}

func (s *Server) preset(name string) (config.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presets[name]
	return p, ok
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	v1 := r.Group("/v1")
	v1.GET("/uniform", s.handleUniform)
	v1.GET("/gaussian", s.handleGaussian)
	v1.GET("/poisson", s.handlePoisson)
	v1.GET("/arm", s.handleArm)
	v1.GET("/flory", s.handleFlory)
	v1.GET("/points", s.handlePoints)
	v1.GET("/ensemble", s.handleEnsemble)
	v1.GET("/presets", s.handlePresets)
	v1.POST("/streams/:name/reseed", s.handleReseed)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if s.gather != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})))
	}
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		level.Debug(s.logger).Log(
			"msg", "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// statusFor maps sampler errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, variate.ErrInvalidParam),
		errors.Is(err, variate.ErrUnknownKind),
		errors.Is(err, variate.ErrUnknownSource),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, variate.ErrRetryLimit):
		return http.StatusServiceUnavailable
	case errors.Is(err, variate.ErrNotReseedable):
		return http.StatusConflict
	case errors.Is(err, stream.ErrTooManyStreams):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		level.Error(s.logger).Log("msg", "request failed", "path", c.Request.URL.Path, "err", err)
	}
	c.AbortWithStatusJSON(code, errResp{Err: err.Error()})
}

func (s *Server) batch(endpoint string, n int) {
	if s.metrics != nil {
		s.metrics.Batch(endpoint, n)
	}
}
