//go:build linux

package atomx

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// On Linux the wait/wake capability is the futex syscall itself, applied
// directly to the primitive's own 32-bit word. FUTEX_PRIVATE_FLAG is safe
// here: the words are never placed in shared memory mappings.
//
// golang.org/x/sys/unix exposes SYS_FUTEX (the syscall number) but not the
// futex(2) operation/flag constants, so they are defined locally with their
// fixed kernel ABI values.
const (
	_FUTEX_WAIT         = 0
	_FUTEX_WAKE         = 1
	_FUTEX_PRIVATE_FLAG = 128
)

// futexWait blocks the caller while *addr == expected. It performs a single
// wait attempt: it returns as soon as the kernel reports a wake, the value
// no longer matches (EAGAIN), or a signal arrives (EINTR). Callers must
// treat any return as potentially spurious and re-check their condition.
func futexWait(addr *uint32, expected uint32) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(_FUTEX_WAIT|_FUTEX_PRIVATE_FLAG),
		uintptr(expected),
		0, 0, 0)
}

// futexWakeOne wakes at most one waiter blocked on addr.
func futexWakeOne(addr *uint32) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(_FUTEX_WAKE|_FUTEX_PRIVATE_FLAG),
		1,
		0, 0, 0)
}

// futexWakeAll wakes every waiter blocked on addr.
func futexWakeAll(addr *uint32) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(_FUTEX_WAKE|_FUTEX_PRIVATE_FLAG),
		uintptr(^uint32(0)>>1),
		0, 0, 0)
}
