package health

import (
	"fmt"
	"net"

	"ai-companion-demo/companion/pkg/logger"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer serves the standard grpc.health.v1 service backed by a Checker
type GRPCServer struct {
	server *grpc.Server
	health *grpchealth.Server
	log    *logger.Logger
}

// NewGRPCServer registers the health service and keeps it in sync with checker.
// service is reported alongside the empty (whole server) service name.
func NewGRPCServer(checker *Checker, service string, log *logger.Logger) *GRPCServer {
	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCServer{server: srv, health: hs, log: log.WithComponent("grpc_health")}
	g.set(service, checker.IsSystemHealthy())
	checker.OnChange(func(healthy bool) {
		g.set(service, healthy)
	})
	return g
}

func (g *GRPCServer) set(service string, healthy bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	if service != "" {
		g.health.SetServingStatus(service, status)
	}
}

// Serve listens on addr and blocks until Stop
func (g *GRPCServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	g.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	return g.ServeListener(lis)
}

// ServeListener serves on an existing listener
func (g *GRPCServer) ServeListener(lis net.Listener) error {
	return g.server.Serve(lis)
}

// Stop shuts the server down, marking every service as not serving first
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
