package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	if m.timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", m.timeout)
	}

	if d := NewShutdownManager(0).timeout; d != DefaultShutdownTimeout {
		t.Errorf("zero timeout should use default, got %v", d)
	}
}

func TestShutdownManager_RunsNewestFirst(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var order []string
	m.RegisterSimple("audit-store", func() { order = append(order, "audit-store") })
	m.RegisterSimple("metrics-server", func() { order = append(order, "metrics-server") })
	m.RegisterSimple("http-server", func() { order = append(order, "http-server") })

	if err := m.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"http-server", "metrics-server", "audit-store"}
	if len(order) != len(want) {
		t.Fatalf("expected %d handlers called, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestShutdownManager_Context(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	ctx := m.Context()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be cancelled before shutdown")
	default:
	}

	m.Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should be cancelled after shutdown")
	}
}

func TestShutdownManager_Done(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	select {
	case <-m.Done():
		t.Fatal("done channel should not be closed before shutdown")
	default:
	}

	m.Shutdown()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel should be closed after shutdown")
	}
}

func TestShutdownManager_Timeout(t *testing.T) {
	m := NewShutdownManager(100 * time.Millisecond)

	var laterRan atomic.Bool
	m.RegisterSimple("registered-first", func() { laterRan.Store(true) })
	m.Register("stuck", func(ctx context.Context) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	start := time.Now()
	err := m.Shutdown()
	if d := time.Since(start); d > time.Second {
		t.Errorf("shutdown took too long: %v", d)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if laterRan.Load() {
		t.Error("handlers after the timeout should be skipped")
	}
}

func TestShutdownManager_JoinsErrors(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	boom := errors.New("close failed")

	var after atomic.Bool
	m.RegisterSimple("after", func() { after.Store(true) })
	m.Register("failing", func(ctx context.Context) error { return boom })

	err := m.Shutdown()
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !after.Load() {
		t.Error("a failing handler must not stop the rest")
	}
}

func TestShutdownManager_RecoversPanics(t *testing.T) {
	m := NewShutdownManager(time.Second)
	m.Register("panics", func(ctx context.Context) error { panic("bad handler") })

	if err := m.Shutdown(); err == nil {
		t.Error("expected the panic to surface as an error")
	}
}

func TestShutdownManager_OnlyOnce(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var callCount int32
	m.Register("once-handler", func(ctx context.Context) error {
		atomic.AddInt32(&callCount, 1)
		return errors.New("x")
	})

	first := m.Shutdown()
	second := m.Shutdown()

	if n := atomic.LoadInt32(&callCount); n != 1 {
		t.Errorf("handler should only be called once, got %d", n)
	}
	if first == nil || first != second {
		t.Errorf("every call should return the same error, got %v and %v", first, second)
	}
}
