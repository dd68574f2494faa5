package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/stream"
	"github.com/xtding233/bob-variates/internal/variate"
)

// service implements Endpoint over a stream registry.
type service struct {
	streams *stream.Registry
	runner  *ensemble.Runner
}

func invalidN(n int) error {
	if n < 0 || n > MaxBatch {
		return fmt.Errorf("%w: n = %d, want 0..%d", variate.ErrInvalidParam, n, MaxBatch)
	}
	return nil
}

func (s *service) draw(name string, n int, fn func(*variate.Sampler) (float64, error)) (*Values, error) {
	if err := invalidN(n); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	err := s.streams.With(name, func(smp *variate.Sampler) error {
		for i := range out {
			v, err := fn(smp)
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Values{Stream: stream.Name(name), Values: out}, nil
}

func (s *service) ArmLength(_ context.Context, req *ArmRequest) (*Values, error) {
	return s.draw(req.Stream, req.N, func(smp *variate.Sampler) (float64, error) {
		return smp.ArmLength(req.Kind, req.Arm)
	})
}

func (s *service) Poisson(_ context.Context, req *PoissonRequest) (*Values, error) {
	return s.draw(req.Stream, req.N, func(smp *variate.Sampler) (float64, error) {
		return smp.Poisson(req.Mean)
	})
}

func (s *service) SortedPoints(_ context.Context, req *PointsRequest) (*Values, error) {
	if req.N < 0 || req.N > variate.MaxPoints {
		return nil, fmt.Errorf("%w: n = %d, want 0..%d", variate.ErrInvalidParam, req.N, variate.MaxPoints)
	}
	var pts []float64
	err := s.streams.With(req.Stream, func(smp *variate.Sampler) error {
		var err error
		pts, err = smp.SortedPoints(req.Length, req.N)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Values{Stream: stream.Name(req.Stream), Values: pts}, nil
}

func (s *service) Ensemble(ctx context.Context, req *EnsembleRequest) (*ensemble.Stats, error) {
	if req.Trials < 1 {
		return nil, fmt.Errorf("%w: trials = %d, want >= 1", variate.ErrInvalidParam, req.Trials)
	}
	cfg := s.streams.Config()
	seed := cfg.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	st, err := s.runner.Run(ctx, ensemble.Params{
		Kind:       req.Kind,
		Arm:        req.Arm,
		Source:     cfg.Source,
		Seed:       seed,
		Trials:     req.Trials,
		Workers:    req.Workers,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *service) Reseed(_ context.Context, req *ReseedRequest) (*ReseedResponse, error) {
	if err := s.streams.Reseed(req.Stream, req.Seed); err != nil {
		return nil, err
	}
	return &ReseedResponse{Stream: stream.Name(req.Stream), Seed: req.Seed}, nil
}

// toStatus maps sampler errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, variate.ErrInvalidParam),
		errors.Is(err, variate.ErrUnknownKind),
		errors.Is(err, variate.ErrUnknownSource):
		code = codes.InvalidArgument
	case errors.Is(err, variate.ErrRetryLimit),
		errors.Is(err, stream.ErrTooManyStreams):
		code = codes.ResourceExhausted
	case errors.Is(err, variate.ErrNotReseedable):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func errorInterceptor(logger log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		rsp, err := handler(ctx, req)
		if err != nil {
			err = toStatus(err)
			lvl := level.Debug
			if status.Code(err) == codes.Internal {
				lvl = level.Error
			}
			lvl(logger).Log("msg", "call failed", "method", info.FullMethod, "err", err)
			return nil, err
		}
		return rsp, nil
	}
}

// Server is a gRPC server carrying the Variates and health services.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger log.Logger
}

// NewServer creates a Server drawing from streams.
func NewServer(streams *stream.Registry, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "module", "grpcapi")

	opts = append(opts, grpc.ChainUnaryInterceptor(errorInterceptor(logger)))
	srv := grpc.NewServer(opts...)
	RegisterService(srv, &service{
		streams: streams,
		runner:  ensemble.NewRunner(logger, streams.Observer()),
	})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{grpc: srv, health: hs, logger: logger}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	level.Info(s.logger).Log("msg", "grpc listening", "addr", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop marks the services not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
