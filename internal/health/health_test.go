package health_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"storefront-system/internal/gateway/clients"
	"storefront-system/internal/health"
)

type flakyDB struct {
	down atomic.Bool
}

func (d *flakyDB) Ping(context.Context) error {
	if d.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startServer(t *testing.T, m *health.Monitor) *clients.HealthClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpc.NewServer()
	m.Register(s)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	client, err := clients.NewHealthClient(lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestMonitorFollowsDatabase(t *testing.T) {
	db := &flakyDB{}
	m := health.NewMonitor(db.Ping, time.Hour, zap.NewNop())
	client := startServer(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, m.Check(ctx))
	assert.True(t, client.IsServing(ctx))

	status, err := client.Status(ctx, health.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, status)

	db.down.Store(true)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, m.Check(ctx))
	assert.False(t, client.IsServing(ctx))

	_, err = client.Status(ctx, "unknown-service")
	assert.Error(t, err)
}

func TestWatchShutsDownOnCancel(t *testing.T) {
	db := &flakyDB{}
	m := health.NewMonitor(db.Ping, 10*time.Millisecond, zap.NewNop())
	client := startServer(t, m)

	watchCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Watch(watchCtx)
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Eventually(t, func() bool { return client.IsServing(ctx) }, 2*time.Second, 10*time.Millisecond)

	stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.False(t, client.IsServing(ctx))
}
