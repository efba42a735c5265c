package atomx

import (
	"github.com/llxisdsh/pb"
)

// MutexGroup allows exclusive locking on arbitrary keys (string, int,
// struct, etc.). It dynamically manages a set of Mutexes associated with
// keys.
//
// Features:
//   - Infinite Keys: No need to pre-allocate locks.
//   - Auto-Cleanup: A lock is removed from memory when unlocked and no one
//     else is holding or waiting for it.
//   - Futex-backed: contended keys park (in the kernel on Linux, in the
//     portable parking lot elsewhere) instead of spinning.
//
// Usage:
//
//	var group MutexGroup[string]
//	group.Lock("user-123")
//	// Critical section for user-123
//	group.Unlock("user-123")
//
// Implementation Note:
// It uses reference counting to safely delete entries.
type MutexGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *mutexGroupEntry]
}

type mutexGroupEntry struct {
	mu Mutex
	// ref is protected by the map's entry processing.
	ref int32
}

// Lock acquires the exclusive lock for key k.
func (g *MutexGroup[K]) Lock(k K) {
	e, _ := g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *mutexGroupEntry]) (*pb.EntryOf[K, *mutexGroupEntry], *mutexGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			v := &mutexGroupEntry{ref: 1}
			return &pb.EntryOf[K, *mutexGroupEntry]{Value: v}, v, false
		},
	)
	e.mu.Lock()
}

// TryLock attempts to acquire the exclusive lock for key k without
// blocking.
func (g *MutexGroup[K]) TryLock(k K) bool {
	locked := false
	g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *mutexGroupEntry]) (*pb.EntryOf[K, *mutexGroupEntry], *mutexGroupEntry, bool) {
			if l != nil {
				if l.Value.mu.TryLock() {
					l.Value.ref++
					locked = true
				}
				return l, l.Value, true
			}
			v := &mutexGroupEntry{ref: 1}
			locked = v.mu.TryLock()
			return &pb.EntryOf[K, *mutexGroupEntry]{Value: v}, v, false
		},
	)
	return locked
}

// Unlock releases the exclusive lock for key k and drops the entry when it
// was the last reference.
func (g *MutexGroup[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.Unlock()

	g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *mutexGroupEntry]) (*pb.EntryOf[K, *mutexGroupEntry], *mutexGroupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, l.Value, true
		},
	)
}
