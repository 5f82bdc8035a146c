package cli

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (c *countingReloader) Reload() error {
	c.calls.Add(1)
	return c.err
}

func TestReloadOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal)
	policy := &countingReloader{err: errors.New("bad policy file")}
	done := make(chan struct{})
	go func() {
		reloadOnSignal(ctx, signals, policy, zap.NewNop())
		close(done)
	}()

	// The second send only completes once the first reload, which fails,
	// has returned.
	signals <- syscall.SIGHUP
	signals <- syscall.SIGHUP
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reloadOnSignal did not return after cancel")
	}
	if n := policy.calls.Load(); n != 2 {
		t.Fatalf("reloads = %d, want 2", n)
	}
}
