//go:build !linux

package worker

func currentThreadID() int { return 0 }
