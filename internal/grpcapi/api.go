// Package grpcapi exposes the samplers as the bob.Variates gRPC service.
// Messages are plain Go structs carried as CBOR.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/variate"
)

// ServiceName is the gRPC service name.
const ServiceName = "bob.Variates"

// MaxBatch caps the values returned by one call.
const MaxBatch = 100000

// ArmRequest asks for N arm lengths from a stream.
type ArmRequest struct {
	Stream string            `cbor:"stream,omitempty"`
	Kind   variate.Kind      `cbor:"kind"`
	Arm    variate.ArmParams `cbor:"arm"`
	N      int               `cbor:"n"`
}

// PoissonRequest asks for N Poisson deviates.
type PoissonRequest struct {
	Stream string  `cbor:"stream,omitempty"`
	Mean   float64 `cbor:"mean"`
	N      int     `cbor:"n"`
}

// PointsRequest asks for N sorted uniform points on [0, Length).
type PointsRequest struct {
	Stream string  `cbor:"stream,omitempty"`
	Length float64 `cbor:"length"`
	N      int     `cbor:"n"`
}

// EnsembleRequest runs a seeded ensemble. A nil Seed uses the server seed.
type EnsembleRequest struct {
	Kind    variate.Kind      `cbor:"kind"`
	Arm     variate.ArmParams `cbor:"arm"`
	Trials  int               `cbor:"trials"`
	Workers int               `cbor:"workers,omitempty"`
	Seed    *int64            `cbor:"seed,omitempty"`
}

// ReseedRequest restarts a stream.
type ReseedRequest struct {
	Stream string `cbor:"stream,omitempty"`
	Seed   int64  `cbor:"seed"`
}

// Values is the reply of the drawing methods.
type Values struct {
	Stream string    `cbor:"stream"`
	Values []float64 `cbor:"values"`
}

// ReseedResponse echoes the applied seed.
type ReseedResponse struct {
	Stream string `cbor:"stream"`
	Seed   int64  `cbor:"seed"`
}

// Endpoint is the Variates service interface.
type Endpoint interface {
	ArmLength(ctx context.Context, req *ArmRequest) (*Values, error)
	Poisson(ctx context.Context, req *PoissonRequest) (*Values, error)
	SortedPoints(ctx context.Context, req *PointsRequest) (*Values, error)
	Ensemble(ctx context.Context, req *EnsembleRequest) (*ensemble.Stats, error)
	Reseed(ctx context.Context, req *ReseedRequest) (*ReseedResponse, error)
}

func fullName(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor for one Endpoint method.
func unary[Req, Resp any](method string, call func(Endpoint, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(
			srv interface{},
			ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor,
		) (interface{}, error) {
			var req Req
			if err := dec(&req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Endpoint), ctx, &req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullName(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(Endpoint), ctx, req.(*Req))
			}
			return interceptor(ctx, &req, info, handler)
		},
	}
}

// serviceDesc is the gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Endpoint)(nil),
	Methods: []grpc.MethodDesc{
		unary("ArmLength", Endpoint.ArmLength),
		unary("Poisson", Endpoint.Poisson),
		unary("SortedPoints", Endpoint.SortedPoints),
		unary("Ensemble", Endpoint.Ensemble),
		unary("Reseed", Endpoint.Reseed),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterService registers the Variates service with the given gRPC server.
func RegisterService(server *grpc.Server, service Endpoint) {
	server.RegisterService(&serviceDesc, service)
}

// Client is a gRPC Variates client.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a client over conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, rsp interface{}) error {
	return c.conn.Invoke(ctx, fullName(method), req, rsp, grpc.CallContentSubtype(CodecName))
}

func (c *Client) ArmLength(ctx context.Context, req *ArmRequest) (*Values, error) {
	var rsp Values
	if err := c.invoke(ctx, "ArmLength", req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) Poisson(ctx context.Context, req *PoissonRequest) (*Values, error) {
	var rsp Values
	if err := c.invoke(ctx, "Poisson", req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) SortedPoints(ctx context.Context, req *PointsRequest) (*Values, error) {
	var rsp Values
	if err := c.invoke(ctx, "SortedPoints", req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) Ensemble(ctx context.Context, req *EnsembleRequest) (*ensemble.Stats, error) {
	var rsp ensemble.Stats
	if err := c.invoke(ctx, "Ensemble", req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) Reseed(ctx context.Context, req *ReseedRequest) (*ReseedResponse, error) {
	var rsp ReseedResponse
	if err := c.invoke(ctx, "Reseed", req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

var _ Endpoint = (*Client)(nil)
