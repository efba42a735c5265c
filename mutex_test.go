package atomx

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestMutex_ZeroValue(t *testing.T) {
	var m Mutex

	if m.IsLocked() {
		t.Error("zero Mutex reports locked")
	}
	if m.IsLockedOrWaiting() {
		t.Error("zero Mutex reports waiters")
	}
	if !m.TryLock() {
		t.Fatal("TryLock failed on zero Mutex")
	}
	if !m.IsLocked() {
		t.Error("expected locked after TryLock")
	}
	if m.TryLock() {
		t.Error("TryLock succeeded while held")
	}
	m.Unlock()
	if m.IsLockedOrWaiting() {
		t.Error("expected fully idle after Unlock")
	}
}

func TestMutex_Counter(t *testing.T) {
	var m Mutex
	var count int

	const loops = 1000
	workers := runtime.GOMAXPROCS(0)

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for range loops {
				m.Lock()
				count++
				m.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if count != workers*loops {
		t.Errorf("expected count %d, got %d", workers*loops, count)
	}
	if m.IsLockedOrWaiting() {
		t.Error("lock word not zero after all workers finished")
	}
}

func TestMutex_SpinCounter(t *testing.T) {
	var m Mutex
	var count int

	const loops = 1000
	workers := runtime.GOMAXPROCS(0)

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for range loops {
				m.SpinLock()
				count++
				m.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if count != workers*loops {
		t.Errorf("expected count %d, got %d", workers*loops, count)
	}
}

func TestMutex_Contended(t *testing.T) {
	var m Mutex
	m.Lock()

	const N = 2
	acquired := make(chan int, N)
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(N)
	for i := range N {
		go func() {
			defer wg.Done()
			m.Lock()
			acquired <- i
			<-release
			m.Unlock()
		}()
	}

	// Both should be blocked while we hold the lock.
	select {
	case <-acquired:
		t.Fatal("Lock returned while mutex held")
	case <-time.After(20 * time.Millisecond):
	}
	if !m.IsLockedOrWaiting() {
		t.Error("waiters not visible in lock word")
	}

	m.Unlock()

	// Exactly one proceeds.
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("no waiter acquired after Unlock")
	}
	select {
	case <-acquired:
		t.Fatal("two waiters acquired simultaneously")
	case <-time.After(20 * time.Millisecond):
	}

	// Release the first; the second follows.
	release <- struct{}{}
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second waiter never acquired")
	}
	release <- struct{}{}
	wg.Wait()

	if m.IsLockedOrWaiting() {
		t.Error("lock word not zero at the end")
	}
}

func TestMutex_CrossGoroutine(t *testing.T) {
	var m Mutex
	m.Lock()

	done := make(chan struct{})
	go func() {
		m.Unlock()
		close(done)
	}()
	<-done

	if !m.TryLock() {
		t.Fatal("TryLock failed after cross-goroutine Unlock")
	}
	m.Unlock()
}

func TestMutex_UnlockOfUnlocked(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	var m Mutex
	m.Unlock()
}

func TestSpinMutex_Lock(t *testing.T) {
	var m SpinMutex
	var count int

	const loops = 500
	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			for range loops {
				m.Lock()
				count++
				m.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if count != 4*loops {
		t.Errorf("expected count %d, got %d", 4*loops, count)
	}
}

func TestMutex_Locker(t *testing.T) {
	var m Mutex
	var l sync.Locker = &m
	l.Lock()
	if !m.IsLocked() {
		t.Error("Locker view did not lock")
	}
	l.Unlock()
}
