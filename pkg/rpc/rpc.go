// Package rpc provides the generic gRPC transport the resource-manager
// client's production Transport runs over; the node-manager client does
// not use it. The retrieval pack this
// module was built from carries no generated protobuf client (no .proto
// or .pb.go files anywhere), so instead of fabricating generated stubs
// this package invokes arbitrary methods on a plain *grpc.ClientConn and
// exchanges google.golang.org/protobuf's structpb.Struct as a generic,
// codegen-free envelope — a real protobuf message, not a hand-rolled one.
package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Conn wraps a grpc.ClientConn bound to one upstream collaborator (the
// resource manager).
type Conn struct {
	target string
	cc     *grpc.ClientConn
}

// Dial opens a connection to target. Production deployments are expected
// to front this with mTLS via grpc.WithTransportCredentials; this
// constructor uses insecure transport credentials by default, leaving TLS
// configuration to the caller via DialOptions.
func Dial(target string, opts ...grpc.DialOption) (*Conn, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", target, err)
	}
	return &Conn{target: target, cc: cc}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.cc.Close()
}

// Invoke calls method with req as the request envelope and decodes the
// response into resp. Both envelopes are structpb.Struct, a real
// pre-generated protobuf message: callers build/read them with
// structpb.NewStruct / (*structpb.Struct).AsMap.
func (c *Conn) Invoke(ctx context.Context, method string, req *structpb.Struct, resp *structpb.Struct) error {
	if err := c.cc.Invoke(ctx, method, req, resp); err != nil {
		return fmt.Errorf("rpc: invoke %s: %w", method, err)
	}
	return nil
}

// NewRequest is a convenience wrapper around structpb.NewStruct for
// building request envelopes from a plain map.
func NewRequest(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("rpc: build request: %w", err)
	}
	return s, nil
}
