package server

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/payroll-orchestrator/internal/adapters/grpc/handler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// stubPayrollServer は GetState と Calculate だけを実装します。それ以外の呼び出しはパニックします。
type stubPayrollServer struct {
	handler.PayrollRunServer
}

func (stubPayrollServer) GetState(_ context.Context, req *handler.VariantRequest) (*handler.RunStateResponse, error) {
	return &handler.RunStateResponse{Variant: req.Variant, StepName: "start"}, nil
}

func (stubPayrollServer) Calculate(context.Context, *handler.CalculateRequest) (*handler.RunStateResponse, error) {
	return nil, status.Error(codes.FailedPrecondition, "orchestrator: invalid transition")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	conn   *grpc.ClientConn
	logs   *syncBuffer
	cancel context.CancelFunc
	done   chan error
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	logs := &syncBuffer{}
	srv := New("bufnet", stubPayrollServer{}, zerolog.New(logs))

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	ts := &testServer{conn: conn, logs: logs, cancel: cancel, done: done}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
	})
	return ts
}

func TestServer_HealthCheck(t *testing.T) {
	t.Parallel()

	ts := startTestServer(t)
	client := healthpb.NewHealthClient(ts.conn)

	for _, service := range []string{"", handler.PayrollServiceName} {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown.Service"})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_PropagatesRequestID(t *testing.T) {
	t.Parallel()

	ts := startTestServer(t)
	client := handler.NewPayrollRunClient(ts.conn)

	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDKey, "req-123")
	var header metadata.MD
	resp, err := client.GetState(ctx, &handler.VariantRequest{Variant: "primary"}, grpc.Header(&header))
	require.NoError(t, err)
	require.Equal(t, "start", resp.StepName)
	require.Equal(t, []string{"req-123"}, header.Get(RequestIDKey))

	require.Eventually(t, func() bool {
		return strings.Contains(ts.logs.String(), `"request_id":"req-123"`)
	}, time.Second, 10*time.Millisecond)
}

func TestServer_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	ts := startTestServer(t)
	client := handler.NewPayrollRunClient(ts.conn)

	var header metadata.MD
	_, err := client.GetState(context.Background(), &handler.VariantRequest{}, grpc.Header(&header))
	require.NoError(t, err)

	ids := header.Get(RequestIDKey)
	require.Len(t, ids, 1)
	require.Len(t, ids[0], 36)

	_, err = client.Calculate(context.Background(), &handler.CalculateRequest{PayDate: "2025-07-31"})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	require.Eventually(t, func() bool {
		out := ts.logs.String()
		return strings.Contains(out, `"level":"warn"`) &&
			strings.Contains(out, `"code":"FailedPrecondition"`)
	}, time.Second, 10*time.Millisecond)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	ts := startTestServer(t)
	client := handler.NewPayrollRunClient(ts.conn)

	// 未実装のメソッドは埋め込みインターフェースが nil のためパニックする
	_, err := client.Finish(context.Background(), &handler.VariantRequest{})
	require.Equal(t, codes.Internal, status.Code(err))

	state, err := client.GetState(context.Background(), &handler.VariantRequest{})
	require.NoError(t, err)
	require.Equal(t, "start", state.StepName)

	require.Eventually(t, func() bool {
		return strings.Contains(ts.logs.String(), "panic recovered in gRPC handler")
	}, time.Second, 10*time.Millisecond)
}

func TestServer_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ts := startTestServer(t)
	client := healthpb.NewHealthClient(ts.conn)
	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	ts.cancel()

	select {
	case err := <-ts.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}
