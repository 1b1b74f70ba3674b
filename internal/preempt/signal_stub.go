//go:build !linux

package preempt

// signalWorker is a no-op on platforms without tgkill-style thread
// signaling; Interrupt mode degrades to Cooperative's polling cadence.
func signalWorker(tid int) {}
