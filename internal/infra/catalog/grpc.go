package catalog

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCConn holds a connection to a catalog deployment that speaks gRPC.
// Callers use generated clients against Conn(); the engine itself only uses
// the standard health service for liveness probes on the ops surface.
type GRPCConn struct {
	endpoint string
	conn     *grpc.ClientConn
}

// DialGRPC connects to a gRPC catalog endpoint. TLS is inferred from the
// scheme or a :443 suffix.
func DialGRPC(ctx context.Context, endpoint string) (*GRPCConn, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial grpc endpoint %s: %w", target, err)
	}

	return &GRPCConn{endpoint: endpoint, conn: conn}, nil
}

// Conn exposes the raw connection for generated clients.
func (g *GRPCConn) Conn() *grpc.ClientConn {
	return g.conn
}

// CheckHealth probes the standard gRPC health service.
func (g *GRPCConn) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(g.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("catalog grpc health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("catalog grpc not serving: %s", resp.GetStatus())
	}
	return nil
}

// Close tears down the connection.
func (g *GRPCConn) Close() error {
	return g.conn.Close()
}
