//go:build !(linux && cgo && amd64)

package slot

// Sfence is a no-op outside linux/amd64/cgo; Go's atomic flag stores
// already provide the correctness guarantee, so there is nothing to do.
func Sfence() {}

// Mfence is a no-op outside linux/amd64/cgo.
func Mfence() {}
