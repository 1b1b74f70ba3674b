//go:build linux && cgo && amd64

package slot

/*
#include <stdint.h>

static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// Sfence issues an x86 SFENCE, a store fence ensuring all prior stores are
// globally visible before any subsequent store. PublishRequest/
// PublishResponse already use atomic.Uint32.Store for the flag word, which
// Go's memory model guarantees is enough for correctness; Sfence is an
// optional throughput knob for callers batching several slot writes before
// the flag store and wanting the batch visible sooner, not a correctness
// requirement.
func Sfence() {
	C.sfence_impl()
}

// Mfence issues an x86 MFENCE, a full memory fence. Same caveat as Sfence:
// not required for slot correctness.
func Mfence() {
	C.mfence_impl()
}
