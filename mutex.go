package atomx

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/atomx/internal/opt"
)

// Mutex is a tiny, non-recursive mutual exclusion lock built directly on a
// futex word. The interface intentionally resembles sync.Mutex, with two
// additions: SpinLock for spin-prefixed acquisition, and the predicates
// IsLocked and IsLockedOrWaiting.
//
// It is zero-value usable and must not be copied after first use.
// Unlike sync.Mutex, Lock and Unlock may be called from different
// goroutines.
//
// state 32-bit:
//   Bit 31:   holder flag (1 = locked)
//   Bit 0-30: interest count (the holder plus every pending locker)
//
// The interest count makes Unlock wake-precise: a wake syscall is issued
// only when the count shows that someone is actually waiting, so an
// uncontended lock/unlock pair never leaves user space.
//
// Size: 4 bytes.
type Mutex struct {
	_     noCopy
	state uint32
}

const (
	mutexHolder = 1 << 31
	mutexWaiter = 1
)

// TryLock attempts to acquire the lock without blocking.
// It never issues a wake.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapUint32(&m.state, 0, mutexHolder|mutexWaiter) {
		if opt.Race_ {
			opt.RaceAcquire(unsafe.Pointer(&m.state))
		}
		return true
	}
	return false
}

// Lock acquires the lock, blocking until it is available.
func (m *Mutex) Lock() {
	if !m.TryLock() {
		m.waitAndLock()
	}
}

// SpinLock is like Lock, but busy-polls the lock word for a bounded number
// of rounds before falling back to the blocking wait path. Prefer it when
// the critical section is only a few memory accesses long.
func (m *Mutex) SpinLock() {
	if !m.TryLock() {
		m.spinWaitAndLock()
	}
}

func (m *Mutex) waitAndLock() {
	// Register interest first, so that the holder's Unlock sees a count
	// above one and knows it must wake us.
	lk := atomic.AddUint32(&m.state, mutexWaiter)
	for {
		if lk&mutexHolder == 0 {
			// The lock is free and our interest is already counted; only
			// the holder flag needs to be set.
			if atomic.CompareAndSwapUint32(&m.state, lk, lk|mutexHolder) {
				break
			}
		} else {
			futexWait(&m.state, lk)
		}
		lk = atomic.LoadUint32(&m.state)
	}
	if opt.Race_ {
		opt.RaceAcquire(unsafe.Pointer(&m.state))
	}
}

func (m *Mutex) spinWaitAndLock() {
	for i := spinRounds; i > 0; i-- {
		lk := atomic.LoadUint32(&m.state)
		if lk&mutexHolder == 0 {
			// Claim in one step: count ourselves and set the holder flag,
			// without ever registering as a waiter.
			if atomic.CompareAndSwapUint32(&m.state, lk, (lk+mutexWaiter)|mutexHolder) {
				if opt.Race_ {
					opt.RaceAcquire(unsafe.Pointer(&m.state))
				}
				return
			}
		}
		spinHint()
	}
	m.waitAndLock()
}

// Unlock releases the lock.
// It is a run-time error if m is not locked on entry to Unlock.
func (m *Mutex) Unlock() {
	if opt.Race_ {
		opt.RaceRelease(unsafe.Pointer(&m.state))
	}
	if lk := atomic.AddUint32(&m.state, ^uint32(mutexHolder)); lk != 0 {
		m.unlockSlow(lk)
	}
}

func (m *Mutex) unlockSlow(lk uint32) {
	// Reconstruct the pre-decrement value: its holder flag must have been
	// set, or this Unlock had no matching Lock.
	if (lk+mutexHolder+mutexWaiter)&mutexHolder == 0 {
		panic("atomx: Unlock of unlocked Mutex")
	}
	futexWakeOne(&m.state)
}

// IsLocked reports whether the lock is held by some goroutine.
func (m *Mutex) IsLocked() bool {
	return atomic.LoadUint32(&m.state)&mutexHolder != 0
}

// IsLockedOrWaiting reports whether the lock is held or being waited for.
// A zero word means neither; that is the only state in which the Mutex may
// be dropped.
func (m *Mutex) IsLockedOrWaiting() bool {
	return atomic.LoadUint32(&m.state) != 0
}

// SpinMutex is a Mutex whose Lock is the spin-prefixed SpinLock.
type SpinMutex struct {
	Mutex
}

// Lock acquires the lock with an initial spinloop.
func (m *SpinMutex) Lock() {
	m.SpinLock()
}
