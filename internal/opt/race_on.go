//go:build race

package opt

import (
	"runtime"
	"unsafe"
)

const Race_ = true

// RaceAcquire establishes the acquire half of a happens-before edge for the
// race detector. Call it after a lock word has been won.
func RaceAcquire(addr unsafe.Pointer) {
	runtime.RaceAcquire(addr)
}

// RaceRelease establishes the release half of a happens-before edge for the
// race detector. Call it before a lock word is given up.
func RaceRelease(addr unsafe.Pointer) {
	runtime.RaceRelease(addr)
}

// RaceReleaseMerge is like RaceRelease, but for release operations that may
// run concurrently with each other, such as shared-lock releases.
func RaceReleaseMerge(addr unsafe.Pointer) {
	runtime.RaceReleaseMerge(addr)
}
