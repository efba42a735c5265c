package atomx

import (
	"github.com/llxisdsh/pb"
)

// SharedMutexGroup allows shared/update/exclusive locking on arbitrary
// keys. Like MutexGroup it offers Lock and Unlock per key, and adds
// RLock/RUnlock and ULock/UUnlock for the full SharedMutex grant set; it has
// no TryLock.
//
// Usage:
//
//	var group SharedMutexGroup[string]
//
//	// Readers
//	group.RLock("config")
//	read(config)
//	group.RUnlock("config")
//
//	// Writer
//	group.Lock("config")
//	write(config)
//	group.Unlock("config")
type SharedMutexGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *sharedGroupEntry]
}

type sharedGroupEntry struct {
	mu SharedMutex
	// ref is protected by the map's entry processing.
	ref int32
}

func (g *SharedMutexGroup[K]) retain(k K) *sharedGroupEntry {
	e, _ := g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *sharedGroupEntry]) (*pb.EntryOf[K, *sharedGroupEntry], *sharedGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			v := &sharedGroupEntry{ref: 1}
			return &pb.EntryOf[K, *sharedGroupEntry]{Value: v}, v, false
		},
	)
	return e
}

func (g *SharedMutexGroup[K]) release(k K) {
	g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *sharedGroupEntry]) (*pb.EntryOf[K, *sharedGroupEntry], *sharedGroupEntry, bool) {
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

// Lock acquires the exclusive lock for key k.
func (g *SharedMutexGroup[K]) Lock(k K) {
	g.retain(k).mu.Lock()
}

// Unlock releases the exclusive lock for key k.
func (g *SharedMutexGroup[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.Unlock()
	g.release(k)
}

// RLock acquires the shared lock for key k.
func (g *SharedMutexGroup[K]) RLock(k K) {
	g.retain(k).mu.RLock()
}

// RUnlock releases the shared lock for key k.
func (g *SharedMutexGroup[K]) RUnlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.RUnlock()
	g.release(k)
}

// ULock acquires the update lock for key k.
func (g *SharedMutexGroup[K]) ULock(k K) {
	g.retain(k).mu.ULock()
}

// UUnlock releases the update lock for key k.
func (g *SharedMutexGroup[K]) UUnlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.UUnlock()
	g.release(k)
}
