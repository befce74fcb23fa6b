package supervisor

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer is a fourth, ops-only surface alongside the CLI/WebSocket/
// Lambda transports: a standard gRPC health check
// (google.golang.org/grpc/health) an orchestrator can probe the same way it
// probes any other gRPC service, independent of whether a Beam connection
// is open.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// NewHealthServer builds a gRPC server exposing the standard health service,
// starting in SERVING state.
func NewHealthServer() *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, h)
	return &HealthServer{grpcServer: gs, health: h}
}

// Serve accepts connections on lis until the server is stopped.
func (hs *HealthServer) Serve(lis net.Listener) error {
	return hs.grpcServer.Serve(lis)
}

// SetDraining reports NOT_SERVING while a drain deadline is running, per
// the supervisor's shutdown sequence.
func (hs *HealthServer) SetDraining() {
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

// Stop gracefully stops the gRPC server.
func (hs *HealthServer) Stop() {
	hs.grpcServer.GracefulStop()
}

// Shutdown marks the health server draining, then runs fn (the Supervisor's
// own drain), and stops the gRPC server once fn returns.
func (hs *HealthServer) Shutdown(ctx context.Context, fn func(context.Context) error) error {
	hs.SetDraining()
	err := fn(ctx)
	hs.Stop()
	return err
}
