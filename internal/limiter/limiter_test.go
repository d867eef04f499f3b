package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrencyBound(t *testing.T) {
	const capacity = 3
	const callers = 20

	l := New(capacity)

	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func() error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do() error: %v", err)
			}
		}()
	}

	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > capacity {
		t.Errorf("peak concurrency = %d, want <= %d", got, capacity)
	}
}

func TestTryAcquire(t *testing.T) {
	l := New(1)

	if !l.TryAcquire() {
		t.Fatal("TryAcquire() on empty limiter failed")
	}
	if l.TryAcquire() {
		t.Error("TryAcquire() on full limiter succeeded")
	}

	l.Release()
	if !l.TryAcquire() {
		t.Error("TryAcquire() after Release failed")
	}
	l.Release()
}

func TestReleaseAdmitsWaiter(t *testing.T) {
	l := New(1)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	admitted := make(chan struct{})
	go func() {
		if err := l.Acquire(context.Background()); err != nil {
			t.Errorf("waiter Acquire() error: %v", err)
			return
		}
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("waiter admitted while slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	l.Release()

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("waiter not admitted after Release")
	}
	l.Release()
}

func TestAcquireHonorsContext(t *testing.T) {
	l := New(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	if err == nil {
		t.Fatal("Acquire() with expired context succeeded")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestDoReleasesOnError(t *testing.T) {
	l := New(1)

	wantErr := errors.New("op failed")
	if err := l.Do(context.Background(), func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}

	// The slot must be free again.
	if !l.TryAcquire() {
		t.Error("slot not released after failing op")
	}
	l.Release()
}

func TestNewCapacityFallback(t *testing.T) {
	if got := New(0).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(-5).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(8).Capacity(); got != 8 {
		t.Errorf("Capacity() = %d, want 8", got)
	}
}
