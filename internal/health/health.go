package health

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// ServiceName is the service reported next to the overall "" entry.
	ServiceName = "storefront"

	DefaultInterval = 10 * time.Second
	pingTimeout     = 3 * time.Second
)

type PingFunc func(ctx context.Context) error

// Monitor keeps a grpc.health.v1 server in sync with the database: SERVING
// while pings succeed, NOT_SERVING otherwise.
type Monitor struct {
	server   *health.Server
	ping     PingFunc
	interval time.Duration
	logger   *zap.Logger
}

func NewMonitor(ping PingFunc, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		server:   health.NewServer(),
		ping:     ping,
		interval: interval,
		logger:   logger,
	}
}

func (m *Monitor) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, m.server)
}

// Check pings once and publishes the resulting status.
func (m *Monitor) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := m.ping(ctx); err != nil {
		m.logger.Warn("database ping failed", zap.Error(err))
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)
	return status
}

// Watch re-checks every interval until ctx is done, then marks the server as shutting down.
func (m *Monitor) Watch(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Serve runs a gRPC server carrying only the health service. It blocks until
// ctx is done or the listener fails.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	s := grpc.NewServer()
	m.Register(s)

	go m.Watch(ctx)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	m.logger.Info("grpc health server started", zap.String("addr", lis.Addr().String()))
	if err := s.Serve(lis); err != nil {
		return errors.Wrap(err, "serve grpc health")
	}
	return nil
}
