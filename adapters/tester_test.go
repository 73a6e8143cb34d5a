package adapters_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jrsteele09/go-source-portal/adapters"
	"github.com/jrsteele09/go-source-portal/sessions/repofakes"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", status)

	go func() {
		_ = grpcServer.Serve(listener)
	}()
	t.Cleanup(grpcServer.Stop)

	return listener.Addr().String()
}

func TestTester_Test(t *testing.T) {
	ctx := context.Background()
	tester := adapters.NewTester(adapters.WithTimeout(2 * time.Second))

	t.Run("serving adapter passes", func(t *testing.T) {
		addr := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)

		result := tester.Test(ctx, "grpc://"+addr)
		require.True(t, result.Passed, result.Message)
		require.Equal(t, addr, result.Endpoint)
		require.Equal(t, "SERVING", result.Status)
		require.True(t, result.PassedFor(" "+addr+" "))
		require.False(t, result.PassedFor("other.example:1"))
	})

	t.Run("not serving fails at health stage", func(t *testing.T) {
		addr := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		result := tester.Test(ctx, addr)
		require.False(t, result.Passed)
		require.Equal(t, adapters.StageHealth, result.Stage)
		require.Contains(t, result.Message, "NOT_SERVING")
	})

	t.Run("nothing listening fails at connect stage", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := listener.Addr().String()
		require.NoError(t, listener.Close())

		result := tester.Test(ctx, addr)
		require.False(t, result.Passed)
		require.Equal(t, adapters.StageConnect, result.Stage)
	})

	t.Run("malformed endpoint", func(t *testing.T) {
		for _, endpoint := range []string{"", "no-port", ":50051"} {
			result := tester.Test(ctx, endpoint)
			require.False(t, result.Passed)
			require.Equal(t, adapters.StageEndpoint, result.Stage, endpoint)
		}
	})
}

func TestResultStore(t *testing.T) {
	ctx := context.Background()
	kv := repofakes.NewFakeKeyValue()
	store := adapters.NewResultStore(kv.Namespace("browser-1"), time.Hour)

	_, ok := store.Load(ctx)
	require.False(t, ok)
	require.False(t, store.PassedFor(ctx, "adapter.example:50051"))

	require.NoError(t, store.Save(ctx, adapters.Result{Endpoint: "adapter.example:50051", Passed: true, Message: "ok"}))
	require.True(t, store.PassedFor(ctx, "adapter.example:50051"))
	require.False(t, store.PassedFor(ctx, "changed.example:50051"))

	other := adapters.NewResultStore(kv.Namespace("browser-2"), time.Hour)
	require.False(t, other.PassedFor(ctx, "adapter.example:50051"))

	require.NoError(t, store.Clear(ctx))
	_, ok = store.Load(ctx)
	require.False(t, ok)
}

func TestResultStore_ExpiresWithSession(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	kv := repofakes.NewFakeKeyValue().WithNowTime(func() time.Time { return now })
	store := adapters.NewResultStore(kv.Namespace("browser-1"), 30*time.Minute)

	require.NoError(t, store.Save(ctx, adapters.Result{Endpoint: "adapter.example:50051", Passed: true}))

	now = now.Add(29 * time.Minute)
	require.True(t, store.PassedFor(ctx, "adapter.example:50051"))

	now = now.Add(2 * time.Minute)
	_, ok := store.Load(ctx)
	require.False(t, ok)
}
