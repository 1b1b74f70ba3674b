//go:build linux

package preempt

import (
	"golang.org/x/sys/unix"
)

// signalWorker delivers SIGURG to the given OS thread id (as returned by
// unix.Gettid on the worker's locked OS thread). SIGURG is chosen because
// the Go runtime already uses it internally for goroutine preemption and
// ignores it by default in user handlers, so delivering an extra one is
// harmless noise rather than a fatal default action; it merely interrupts
// any blocking syscall the thread happens to be in, shaking the worker out
// of the syscall early so it reaches its next checkpoint sooner. This is
// the portable, non-cgo analogue of the original's PREEMPT_VECTOR
// interrupt handler — best effort, not a true mid-instruction trap.
func signalWorker(tid int) {
	_ = unix.Tgkill(unix.Getpid(), tid, unix.SIGURG)
}
