package endpoint

import (
	"context"
	"fmt"

	"github.com/ChuLiYu/superpy/internal/wire"
	"github.com/ChuLiYu/superpy/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// RemoteEndpoint is the one concrete Endpoint implementation: a gRPC
// client talking the wire.EndpointServer contract. It serves both
// remote fleet members and the local endpoint (dialed over loopback),
// since a local, in-process worker still exposes the exact same RPC
// surface — see internal/localworker.Server.
type RemoteEndpoint struct {
	key    types.EndpointKey
	conn   *grpc.ClientConn
	client *wire.Client
}

// Dial opens a gRPC connection to key.Host:key.Port. The connection
// uses insecure/loopback-grade transport credentials; authentication
// is left to callers running this on a trusted network.
func Dial(ctx context.Context, key types.EndpointKey) (*RemoteEndpoint, error) {
	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", key.Host, key.Port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", key, err)
	}
	return &RemoteEndpoint{key: key, conn: conn, client: wire.NewClient(conn)}, nil
}

// Close releases the underlying gRPC connection.
func (e *RemoteEndpoint) Close() error { return e.conn.Close() }

func (e *RemoteEndpoint) Key() types.EndpointKey { return e.key }

func (e *RemoteEndpoint) ListMethods(ctx context.Context) (map[string]struct{}, error) {
	resp, err := e.client.ListMethods(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(resp.Methods))
	for _, m := range resp.Methods {
		set[m] = struct{}{}
	}
	return set, nil
}

func (e *RemoteEndpoint) EstWaitTime(ctx context.Context, priority types.Priority) (float64, error) {
	resp, err := e.client.EstWaitTime(ctx, &wire.PriorityReq{Priority: float64(priority)})
	if err != nil {
		return 0, err
	}
	return resp.Load, nil
}

func (e *RemoteEndpoint) CPULoad(ctx context.Context) (float64, error) {
	resp, err := e.client.CPULoad(ctx)
	if err != nil {
		return 0, err
	}
	return resp.Load, nil
}

func (e *RemoteEndpoint) Submit(ctx context.Context, task types.Task, extra ...interface{}) (Handle, error) {
	if task.Name == "" {
		return nil, fmt.Errorf("task must have a name")
	}

	payloadEnv, err := wire.NewEncodedEnvelope(task.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	extraEnvs := make([]wire.Envelope, 0, len(extra))
	for _, a := range extra {
		env, err := wire.NewEncodedEnvelope(a)
		if err != nil {
			return nil, fmt.Errorf("encode extra argument: %w", err)
		}
		extraEnvs = append(extraEnvs, env)
	}

	resp, err := e.client.Submit(ctx, &wire.SubmitReq{
		Task: wire.TaskMsg{
			Name:     task.Name,
			Priority: float64(task.Priority),
			Payload:  payloadEnv,
		},
		Extra: extraEnvs,
	})
	if err != nil {
		return nil, err
	}

	return NewLiveHandle(e.key, e.client, resp.TaskID, types.StatusRecord{Mode: types.ModePending}), nil
}

func (e *RemoteEndpoint) ShowQueue(ctx context.Context) (string, error) {
	resp, err := e.client.ShowQueue(ctx)
	if err != nil {
		return "", err
	}
	return resp.Dump, nil
}

func (e *RemoteEndpoint) CleanOldTasks(ctx context.Context) error {
	_, err := e.client.CleanOldTasks(ctx)
	return err
}

func (e *RemoteEndpoint) Terminate(ctx context.Context) error {
	_, err := e.client.Terminate(ctx)
	return err
}
