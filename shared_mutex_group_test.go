package atomx

import (
	"sync"
	"testing"
	"time"
)

func TestSharedMutexGroup_Basic(t *testing.T) {
	var g SharedMutexGroup[string]
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)

	// Concurrent readers on one key.
	for range n {
		go func() {
			defer wg.Done()
			g.RLock("key")
			time.Sleep(time.Microsecond)
			g.RUnlock("key")
		}()
	}
	wg.Wait()

	// Writer exclusion.
	g.Lock("key")
	done := make(chan struct{})
	go func() {
		g.RLock("key") // Should block
		close(done)
		g.RUnlock("key")
	}()

	select {
	case <-done:
		t.Fatal("RLock acquired while Lock held")
	case <-time.After(10 * time.Millisecond):
	}
	g.Unlock("key")

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("RLock not acquired after Unlock")
	}
}

func TestSharedMutexGroup_UpdateMode(t *testing.T) {
	var g SharedMutexGroup[string]

	g.ULock("cfg")

	// Readers coexist with the update holder.
	done := make(chan struct{})
	go func() {
		g.RLock("cfg")
		g.RUnlock("cfg")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RLock blocked under an update holder")
	}

	// A second update holder does not.
	blocked := make(chan struct{})
	go func() {
		g.ULock("cfg")
		close(blocked)
		g.UUnlock("cfg")
	}()
	select {
	case <-blocked:
		t.Fatal("second ULock acquired concurrently")
	case <-time.After(10 * time.Millisecond):
	}

	g.UUnlock("cfg")
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("second ULock never admitted")
	}
}

func TestSharedMutexGroup_RefCounting(t *testing.T) {
	var g SharedMutexGroup[int]

	g.RLock(1)
	if _, ok := g.m.Load(1); !ok {
		t.Fatal("entry should exist after RLock")
	}

	g.RUnlock(1)
	if _, ok := g.m.Load(1); ok {
		t.Fatal("entry should be auto-deleted after RUnlock (ref=0)")
	}
}
