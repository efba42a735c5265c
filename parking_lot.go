package atomx

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/atomx/internal/opt"
)

// parkingLot is the portable implementation of the wait/wake capability.
// It emulates an address-wait facility in process: goroutines park on a
// per-waiter semaphore, registered in a small hash table keyed by the
// address of the waited-on word.
//
// The table is fixed-size; a bucket collision only means unrelated waiters
// share a bucket lock, never that a wake goes to the wrong address.
type parkingLot struct {
	buckets [parkingBuckets]parkingBucket
}

const parkingBuckets = 64 // power of two

type parkingBucket struct {
	// lock is a spin bit-lock guarding head/tail. It is only ever held for
	// a few pointer operations.
	lock uint32
	head *parkingWaiter
	tail *parkingWaiter

	// Pad to a cache line so that hot, unrelated addresses hashing to
	// neighboring buckets do not false-share.
	_ [(opt.CacheLineSize_ - (unsafe.Sizeof(struct {
		lock       uint32
		head, tail *parkingWaiter
	}{}) % opt.CacheLineSize_)) % opt.CacheLineSize_]byte
}

type parkingWaiter struct {
	addr *uint32
	next *parkingWaiter
	sema opt.Sema
}

var lot parkingLot

//go:nosplit
func (l *parkingLot) bucket(addr *uint32) *parkingBucket {
	// Fibonacci hash of the word address. The low bits are dropped first:
	// waitable words are at least 4-byte aligned.
	h := (uintptr(unsafe.Pointer(addr)) >> 2) * 0x9E3779B9
	return &l.buckets[h%parkingBuckets]
}

func (b *parkingBucket) acquire() {
	var spins int
	for !atomic.CompareAndSwapUint32(&b.lock, 0, 1) {
		delay(&spins)
	}
}

//go:nosplit
func (b *parkingBucket) release() {
	atomic.StoreUint32(&b.lock, 0)
}

// wait blocks the caller while *addr == expected.
// The expected-value check runs under the bucket lock, after the point
// where a concurrent wake would have to take that same lock. A wake issued
// after our check therefore finds us enqueued; a wake issued before it has
// already changed nothing we rely on, and the value re-check catches the
// state transition that prompted it.
func (l *parkingLot) wait(addr *uint32, expected uint32) {
	b := l.bucket(addr)
	b.acquire()
	if atomic.LoadUint32(addr) != expected {
		b.release()
		return
	}
	w := &parkingWaiter{addr: addr}
	if b.tail == nil {
		b.head = w
	} else {
		b.tail.next = w
	}
	b.tail = w
	b.release()

	w.sema.Acquire()
}

// wakeOne wakes the oldest waiter parked on addr, if any.
func (l *parkingLot) wakeOne(addr *uint32) {
	b := l.bucket(addr)
	b.acquire()
	var prev *parkingWaiter
	for w := b.head; w != nil; w = w.next {
		if w.addr == addr {
			if prev == nil {
				b.head = w.next
			} else {
				prev.next = w.next
			}
			if w == b.tail {
				b.tail = prev
			}
			b.release()
			w.sema.Release()
			return
		}
		prev = w
	}
	b.release()
}

// wakeAll wakes every waiter parked on addr.
func (l *parkingLot) wakeAll(addr *uint32) {
	b := l.bucket(addr)
	b.acquire()
	var woken *parkingWaiter
	var prev *parkingWaiter
	for w := b.head; w != nil; {
		next := w.next
		if w.addr == addr {
			if prev == nil {
				b.head = next
			} else {
				prev.next = next
			}
			if w == b.tail {
				b.tail = prev
			}
			w.next = woken
			woken = w
		} else {
			prev = w
		}
		w = next
	}
	b.release()

	for woken != nil {
		next := woken.next
		woken.sema.Release()
		woken = next
	}
}
