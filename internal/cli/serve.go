package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xtding233/bob-variates/internal/config"
	"github.com/xtding233/bob-variates/internal/grpcapi"
	"github.com/xtding233/bob-variates/internal/httpapi"
	"github.com/xtding233/bob-variates/internal/logging"
	"github.com/xtding233/bob-variates/internal/metrics"
	"github.com/xtding233/bob-variates/internal/stream"
)

const (
	shutdownTimeout = 10 * time.Second
	watchInterval   = 2 * time.Second
)

func newServeCommand(e *env) *cobra.Command {
	var (
		httpAddr, grpcAddr string
		maxStreams         int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the samplers over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("http-addr") {
				e.params.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc-addr") {
				e.params.GRPCAddr = grpcAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return e.serve(ctx, maxStreams)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", config.DefaultGRPCAddr, "gRPC listen address")
	cmd.Flags().IntVar(&maxStreams, "max-streams", stream.DefaultMaxStreams, "named streams kept besides the default one")
	return cmd
}

func (e *env) serve(ctx context.Context, maxStreams int) error {
	logger := logging.GetLogger(e.logger, "serve")
	p := e.params

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	streams := stream.NewRegistry(stream.Config{
		Source:     p.Generator,
		Seed:       p.Seed,
		MaxRetries: p.MaxRetries,
		MaxStreams: maxStreams,
	}, e.logger, m)

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.New(httpapi.Options{
		Streams:  streams,
		Presets:  p.Presets,
		Logger:   e.logger,
		Metrics:  m,
		Gatherer: reg,
	})
	hs := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
	gs := grpcapi.NewServer(streams, e.logger)

	hl, err := net.Listen("tcp", p.HTTPAddr)
	if err != nil {
		return err
	}
	gl, err := net.Listen("tcp", p.GRPCAddr)
	if err != nil {
		hl.Close()
		return err
	}

	watcher := config.NewFileWatcher(e.loader.Paths(e.run), watchInterval, func(path string) {
		e.loader.Invalidate()
		np, err := e.loader.Load(e.run)
		if err != nil {
			level.Warn(logger).Log("msg", "config reload failed, keeping presets", "path", path, "err", err)
			return
		}
		api.SetPresets(np.Presets)
		level.Info(logger).Log("msg", "presets reloaded", "path", path, "presets", len(np.Presets))
	})

	level.Info(logger).Log(
		"msg", "serving",
		"http", hl.Addr(),
		"grpc", gl.Addr(),
		"generator", p.Generator,
		"seed", p.Seed,
		"config_version", p.Version,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(hl); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return gs.Serve(gl) })
	g.Go(func() error {
		watcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		level.Info(logger).Log("msg", "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		gs.Stop()
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}
