package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

func recordingHooks(h *Handler, n int) func() []int {
	var mu sync.Mutex
	order := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		h.OnShutdown("hook", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	return func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), order...)
	}
}

func waitAsync(h *Handler, ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()
	return errCh
}

func TestHandler_Done(t *testing.T) {
	h := NewHandler(5*time.Second, logger.NewNop())

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := NewHandler(5*time.Second, logger.NewNop())
	order := recordingHooks(h, 3)

	errCh := waitAsync(h, context.Background())
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGINT)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}

	got := order()
	if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Errorf("hooks called in order %v, want [3 2 1]", got)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Wait completes")
	}
}

func TestHandler_Wait_Trigger(t *testing.T) {
	h := NewHandler(time.Second, logger.NewNop())
	order := recordingHooks(h, 2)

	errCh := waitAsync(h, context.Background())
	h.Trigger("listener failed")
	h.Trigger("second reason is ignored")

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete after Trigger")
	}
	if got := order(); len(got) != 2 {
		t.Errorf("hooks called = %v, want 2 calls", got)
	}
}

func TestHandler_Wait_ContextDone(t *testing.T) {
	h := NewHandler(time.Second, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := waitAsync(h, ctx)
	cancel()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after context cancellation")
	}
}

func TestHandler_Wait_HookErrors(t *testing.T) {
	h := NewHandler(time.Second, logger.NewNop())
	errA := errors.New("close failed")
	errB := errors.New("flush failed")

	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	h.Trigger("test")
	err := h.Wait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
}

func TestHandler_Wait_HookTimeout(t *testing.T) {
	h := NewHandler(50*time.Millisecond, logger.NewNop())
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger("test")
	start := time.Now()
	err := h.Wait(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() took %v, want it bounded by the timeout", elapsed)
	}
}
