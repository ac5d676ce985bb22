package clients

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthClient queries a grpc.health.v1 endpoint.
type HealthClient struct {
	Health grpc_health_v1.HealthClient
	conn   *grpc.ClientConn
}

func NewHealthClient(addr string) (*HealthClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "health service connection to %s failed", addr)
	}
	return &HealthClient{
		Health: grpc_health_v1.NewHealthClient(conn),
		conn:   conn,
	}, nil
}

// Status returns the serving status reported for service ("" for the whole server).
func (c *HealthClient) Status(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.Health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, errors.Wrap(err, "health check")
	}
	return resp.Status, nil
}

func (c *HealthClient) IsServing(ctx context.Context) bool {
	status, err := c.Status(ctx, "")
	return err == nil && status == grpc_health_v1.HealthCheckResponse_SERVING
}

func (c *HealthClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
