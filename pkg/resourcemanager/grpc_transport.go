package resourcemanager

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cuemby/fleetmaster/pkg/rpc"
	"github.com/cuemby/fleetmaster/pkg/types"
)

// Method names the production Transport invokes over pkg/rpc's generic
// structpb envelope. There is no generated protobuf service definition in
// the retrieval pack this module was built from, so these are plain gRPC
// method strings rather than a codegen'd client stub.
const (
	methodRegister   = "/fleetmaster.resourcemanager.v1.ResourceManager/Register"
	methodRequest    = "/fleetmaster.resourcemanager.v1.ResourceManager/Request"
	methodHeartbeat  = "/fleetmaster.resourcemanager.v1.ResourceManager/Heartbeat"
	methodUnregister = "/fleetmaster.resourcemanager.v1.ResourceManager/Unregister"
)

// GRPCTransport is the production Transport (C1): it drives the cluster
// resource manager over a pkg/rpc.Conn.
type GRPCTransport struct {
	conn *rpc.Conn
}

// NewGRPCTransport wraps an already-dialed connection.
func NewGRPCTransport(conn *rpc.Conn) *GRPCTransport {
	return &GRPCTransport{conn: conn}
}

// Register implements Transport.
func (t *GRPCTransport) Register(ctx context.Context, host string, port int, trackingURL string) (types.Capability, error) {
	req, err := rpc.NewRequest(map[string]any{
		"host":         host,
		"port":         float64(port),
		"tracking_url": trackingURL,
	})
	if err != nil {
		return types.Capability{}, err
	}

	resp := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, methodRegister, req, resp); err != nil {
		return types.Capability{}, err
	}

	return capabilityFromMap(resp.AsMap()), nil
}

// Request implements Transport.
func (t *GRPCTransport) Request(ctx context.Context, capability types.Capability, preferredNodes []string, priority int) error {
	nodes := make([]any, len(preferredNodes))
	for i, n := range preferredNodes {
		nodes[i] = n
	}

	req, err := rpc.NewRequest(map[string]any{
		"memory_mb":       float64(capability.MemoryMB),
		"vcores":          float64(capability.VCores),
		"preferred_nodes": nodes,
		"priority":        float64(priority),
	})
	if err != nil {
		return err
	}

	return t.conn.Invoke(ctx, methodRequest, req, &structpb.Struct{})
}

// Heartbeat implements Transport.
func (t *GRPCTransport) Heartbeat(ctx context.Context) (HeartbeatResponse, error) {
	req, err := rpc.NewRequest(nil)
	if err != nil {
		return HeartbeatResponse{}, err
	}

	resp := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, methodHeartbeat, req, resp); err != nil {
		return HeartbeatResponse{}, err
	}

	fields := resp.AsMap()
	out := HeartbeatResponse{}

	if raw, ok := fields["allocated"].([]any); ok {
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				out.Allocated = append(out.Allocated, descriptorFromMap(m))
			}
		}
	}
	if raw, ok := fields["completed"].([]any); ok {
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				out.Completed = append(out.Completed, completionFromMap(m))
			}
		}
	}
	if shutdown, ok := fields["shutdown_request"].(bool); ok {
		out.ShutdownRequest = shutdown
	}

	return out, nil
}

// Unregister implements Transport.
func (t *GRPCTransport) Unregister(ctx context.Context, finalStatus types.FinalStatus, diagnostics, trackingURL string) error {
	req, err := rpc.NewRequest(map[string]any{
		"final_status": string(finalStatus),
		"diagnostics":  diagnostics,
		"tracking_url": trackingURL,
	})
	if err != nil {
		return err
	}

	return t.conn.Invoke(ctx, methodUnregister, req, &structpb.Struct{})
}

func capabilityFromMap(fields map[string]any) types.Capability {
	c := types.Capability{}
	if v, ok := fields["memory_mb"].(float64); ok {
		c.MemoryMB = int(v)
	}
	if v, ok := fields["vcores"].(float64); ok {
		c.VCores = int(v)
	}
	return c
}

func descriptorFromMap(fields map[string]any) types.ContainerDescriptor {
	d := types.ContainerDescriptor{}
	if v, ok := fields["container_id"].(string); ok {
		d.ContainerID = v
	}
	if v, ok := fields["host"].(string); ok {
		d.Host = v
	}
	if v, ok := fields["port"].(float64); ok {
		d.Port = int(v)
	}
	if v, ok := fields["node_id"].(string); ok {
		d.NodeID = v
	}
	if v, ok := fields["priority"].(float64); ok {
		d.Priority = int(v)
	}
	if v, ok := fields["capability"].(map[string]any); ok {
		d.Capability = capabilityFromMap(v)
	}
	return d
}

func completionFromMap(fields map[string]any) types.ContainerCompletion {
	c := types.ContainerCompletion{}
	if v, ok := fields["container_id"].(string); ok {
		c.ContainerID = v
	}
	if v, ok := fields["exit_status"].(string); ok {
		c.ExitStatus = types.ExitStatus(v)
	}
	if v, ok := fields["exit_code"].(float64); ok {
		c.ExitCode = int(v)
	}
	if v, ok := fields["diagnostics"].(string); ok {
		c.Diagnostics = v
	}
	return c
}

var _ Transport = (*GRPCTransport)(nil)
