package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stoicmail/reflection-guard/internal/models"
)

// Client calls a remote ContentGuard service.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to target. Without options the connection is plaintext.
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Validate sends req and returns the report.
func (c *Client) Validate(ctx context.Context, req *ValidateRequest, opts ...grpc.CallOption) (*models.ValidationReport, error) {
	out := new(models.ValidationReport)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, ValidateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Conn exposes the underlying connection, e.g. for health checks.
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }
