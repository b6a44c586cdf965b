package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/remote/memory"
)

func newTestServer(secret string) (*GRPCServer, *memory.Backend) {
	b := memory.New()
	return NewGRPCServer("127.0.0.1:0", logging.Discard(), b, entity.DefaultRegistry(), secret), b
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer("secret")
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Discard(), memory.New(), entity.DefaultRegistry(), "")
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
