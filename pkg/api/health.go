package api

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reporting scheduler readiness
const ServiceName = "burrow.Scheduler"

// GRPCServer exposes the standard gRPC health service. The overall and the
// scheduler service status follow the component readiness registry.
type GRPCServer struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	stopCh chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

// NewGRPCServer creates a gRPC server with logging interceptors and a rate
// limiting tap
func NewGRPCServer(limiter *Limiter) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(LoggingInterceptor()),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor()),
	}
	if limiter != nil {
		opts = append(opts, grpc.InTapHandle(NewTapLimiter(limiter).Handler))
	}

	s := &GRPCServer{
		grpc:   grpc.NewServer(opts...),
		health: grpchealth.NewServer(),
		stopCh: make(chan struct{}),
		logger: log.WithComponent("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the scheduler service status
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// SyncReadiness copies the readiness registry into the health service now
// and then every interval until Stop
func (s *GRPCServer) SyncReadiness(interval time.Duration) {
	update := func() {
		s.SetServing(metrics.IsReady())
	}
	update()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				update()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Serve accepts connections on lis until Stop is called
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health service listening")
	metrics.RegisterComponent("grpc", true, "serving on "+lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil {
		metrics.UpdateComponent("grpc", false, err.Error())
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// Start listens on addr and serves
func (s *GRPCServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Stop marks every service as not serving and gracefully stops the server
func (s *GRPCServer) Stop(ctx context.Context) {
	s.once.Do(func() {
		close(s.stopCh)
		s.health.Shutdown()
	})

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}
