package atomx

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/atomx/internal/opt"
)

// SharedMutex is a slim shared/update/exclusive lock without recursion.
//
// At most one goroutine may hold the exclusive (X) lock, excluding all
// others. At most one goroutine may hold the update (U) lock; it coexists
// with any number of shared (S) holders but not with another U or an X.
// As long as no goroutine holds X, any number may hold S.
//
// Once a goroutine starts waiting for X, further RLock requests block until
// that X lock has been granted and released, so readers cannot starve a
// writer.
//
// It is zero-value usable and must not be copied after first use. Lock and
// unlock calls of each grant may come from different goroutines.
//
// It is composed of a Mutex (serializing U and X acquisition) and a second
// futex word:
//
//	state == 0:            free
//	0 < state < 1<<31:     state shared holders (a U holder counts as one)
//	state == 1<<31:        exclusive held
//	state == 1<<31 | k:    exclusive requested, k shared holders draining
//
// Two wait queues cooperate: the one inside ex, and the one on state used
// to park an exclusive requester until the last shared holder leaves.
// Shared holders are counted so that RUnlock issues the necessary and
// sufficient wakes.
//
// Size: 8 bytes.
type SharedMutex struct {
	_     noCopy
	ex    Mutex
	state uint32
}

// sharedX flags an exclusive request; the X lock is held when state == sharedX.
const (
	sharedX      = mutexHolder
	sharedReader = mutexWaiter
)

// TryRLock attempts to acquire a shared lock without blocking.
func (sm *SharedMutex) TryRLock() bool {
	for {
		lk := atomic.LoadUint32(&sm.state)
		if lk&sharedX != 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&sm.state, lk, lk+sharedReader) {
			if opt.Race_ {
				opt.RaceAcquire(unsafe.Pointer(&sm.state))
			}
			return true
		}
	}
}

// RLock acquires a shared lock, blocking while an exclusive lock is held
// or requested.
func (sm *SharedMutex) RLock() {
	if !sm.TryRLock() {
		sm.rlockSlow()
	}
}

func (sm *SharedMutex) rlockSlow() {
	for {
		// Rendezvous through ex: a pending exclusive request holds it for
		// the whole duration of the grant, so this lock/unlock pair parks
		// us until the writer is gone.
		sm.ex.Lock()
		ok := sm.TryRLock()
		sm.ex.Unlock()
		if ok {
			return
		}
	}
}

// SpinRLock is RLock with an initial spinloop on the rendezvous mutex.
func (sm *SharedMutex) SpinRLock() {
	if sm.TryRLock() {
		return
	}
	for {
		sm.ex.SpinLock()
		ok := sm.TryRLock()
		sm.ex.Unlock()
		if ok {
			return
		}
	}
}

// RUnlock releases a shared lock. If it was the last shared lock a pending
// exclusive requester is waiting on, the requester is woken.
func (sm *SharedMutex) RUnlock() {
	if opt.Race_ {
		opt.RaceReleaseMerge(unsafe.Pointer(&sm.state))
	}
	lk := atomic.AddUint32(&sm.state, ^uint32(0))
	if lk&^uint32(sharedX) == ^uint32(sharedX) {
		panic("atomx: RUnlock of unheld SharedMutex")
	}
	if lk == sharedX {
		// We were the last shared holder an exclusive requester was
		// draining; hand over.
		futexWakeOne(&sm.state)
	}
}

// TryULock attempts to acquire an update lock without blocking.
// An update lock coexists with shared locks but excludes other update and
// exclusive locks.
func (sm *SharedMutex) TryULock() bool {
	if !sm.ex.TryLock() {
		return false
	}
	atomic.AddUint32(&sm.state, sharedReader)
	if opt.Race_ {
		opt.RaceAcquire(unsafe.Pointer(&sm.state))
	}
	return true
}

// ULock acquires an update lock, blocking while another update or
// exclusive lock is in the way.
func (sm *SharedMutex) ULock() {
	sm.ex.Lock()
	atomic.AddUint32(&sm.state, sharedReader)
	if opt.Race_ {
		opt.RaceAcquire(unsafe.Pointer(&sm.state))
	}
}

// SpinULock is ULock with an initial spinloop.
func (sm *SharedMutex) SpinULock() {
	sm.ex.SpinLock()
	atomic.AddUint32(&sm.state, sharedReader)
	if opt.Race_ {
		opt.RaceAcquire(unsafe.Pointer(&sm.state))
	}
}

// UUnlock releases an update lock.
func (sm *SharedMutex) UUnlock() {
	if opt.Race_ {
		opt.RaceReleaseMerge(unsafe.Pointer(&sm.state))
	}
	atomic.AddUint32(&sm.state, ^uint32(0))
	// No wake on state: an exclusive requester cannot exist while we hold
	// ex. Shared waiters parked on ex are released here.
	sm.ex.Unlock()
}

// TryLock attempts to acquire an exclusive lock without blocking.
func (sm *SharedMutex) TryLock() bool {
	if !sm.ex.TryLock() {
		return false
	}
	if atomic.CompareAndSwapUint32(&sm.state, 0, sharedX) {
		if opt.Race_ {
			opt.RaceAcquire(unsafe.Pointer(&sm.state))
		}
		return true
	}
	sm.ex.Unlock()
	return false
}

// Lock acquires an exclusive lock, blocking until every other grant has
// been released.
func (sm *SharedMutex) Lock() {
	sm.ex.Lock()
	sm.exclusiveAcquire()
}

// SpinLock is Lock with an initial spinloop.
func (sm *SharedMutex) SpinLock() {
	sm.ex.SpinLock()
	sm.exclusiveAcquire()
}

// exclusiveAcquire publishes the exclusive request and drains readers.
// Caller holds ex.
func (sm *SharedMutex) exclusiveAcquire() {
	// Holding ex guarantees the X flag is clear, so adding it is
	// equivalent to fetch-or, and the add stays a single XADD where
	// fetch-or would compile to a CAS loop.
	lk := atomic.AddUint32(&sm.state, sharedX) - sharedX
	if lk != 0 {
		sm.exclusiveWait(lk)
	}
	if opt.Race_ {
		opt.RaceAcquire(unsafe.Pointer(&sm.state))
	}
}

// exclusiveWait parks until the lk shared holders present at request time
// have drained. Caller holds ex and has the X flag set.
func (sm *SharedMutex) exclusiveWait(lk uint32) {
	lk |= sharedX
	for lk != sharedX {
		futexWait(&sm.state, lk)
		lk = atomic.LoadUint32(&sm.state)
	}
}

// Unlock releases an exclusive lock. Shared waiters that were parked on
// the rendezvous mutex proceed once ex is released.
func (sm *SharedMutex) Unlock() {
	if opt.Race_ {
		opt.RaceRelease(unsafe.Pointer(&sm.state))
	}
	atomic.StoreUint32(&sm.state, 0)
	sm.ex.Unlock()
}

// Upgrade converts an update lock into an exclusive lock, blocking until
// the remaining shared holders have drained.
func (sm *SharedMutex) Upgrade() {
	// Trade our own reader slot for the X flag in one step.
	lk := atomic.AddUint32(&sm.state, sharedX-sharedReader) - (sharedX - sharedReader)
	if lk != sharedReader {
		sm.exclusiveWait(lk - sharedReader)
	}
	if opt.Race_ {
		opt.RaceAcquire(unsafe.Pointer(&sm.state))
	}
}

// Downgrade converts an exclusive lock into an update lock.
// Shared waiters that are parked on the rendezvous mutex stay parked until
// the subsequent UUnlock.
func (sm *SharedMutex) Downgrade() {
	if opt.Race_ {
		opt.RaceRelease(unsafe.Pointer(&sm.state))
	}
	atomic.StoreUint32(&sm.state, sharedReader)
}

// IsLocked reports whether an exclusive lock is held.
func (sm *SharedMutex) IsLocked() bool {
	return atomic.LoadUint32(&sm.state) == sharedX
}

// IsLockedOrWaiting reports whether any grant is held or being waited for.
func (sm *SharedMutex) IsLockedOrWaiting() bool {
	return sm.ex.IsLockedOrWaiting() || atomic.LoadUint32(&sm.state) != 0
}

// RLocker returns a sync.Locker whose Lock and Unlock are sm.RLock and
// sm.RUnlock.
func (sm *SharedMutex) RLocker() sync.Locker {
	return (*rlocker)(sm)
}

type rlocker SharedMutex

func (r *rlocker) Lock()   { (*SharedMutex)(r).RLock() }
func (r *rlocker) Unlock() { (*SharedMutex)(r).RUnlock() }

// ULocker returns a sync.Locker whose Lock and Unlock are sm.ULock and
// sm.UUnlock.
func (sm *SharedMutex) ULocker() sync.Locker {
	return (*ulocker)(sm)
}

type ulocker SharedMutex

func (u *ulocker) Lock()   { (*SharedMutex)(u).ULock() }
func (u *ulocker) Unlock() { (*SharedMutex)(u).UUnlock() }

// SpinSharedMutex is a SharedMutex whose blocking acquisitions are the
// spin-prefixed variants.
type SpinSharedMutex struct {
	SharedMutex
}

// Lock acquires an exclusive lock with an initial spinloop.
func (sm *SpinSharedMutex) Lock() { sm.SpinLock() }

// RLock acquires a shared lock with an initial spinloop.
func (sm *SpinSharedMutex) RLock() { sm.SpinRLock() }

// ULock acquires an update lock with an initial spinloop.
func (sm *SpinSharedMutex) ULock() { sm.SpinULock() }
