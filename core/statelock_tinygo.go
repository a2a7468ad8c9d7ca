//go:build tinygo

package core

import "sync/atomic"

// interruptStateLock approximates a bounded-timeout lock on bare metal,
// where there is no cheap blocking primitive available to a motion tick.
// Each spin iteration briefly disables interrupts to make the
// compare-and-swap atomic with respect to the other core's access,
// mirroring disableInterrupts/restoreInterrupts in interrupt_tinygo.go.
type interruptStateLock struct {
	locked uint32
}

// NewStateLock returns the platform's StateLock implementation.
func NewStateLock() StateLock {
	return &interruptStateLock{}
}

func (l *interruptStateLock) TryLock(timeoutUS uint32) bool {
	spins := timeoutUS + 1
	for i := uint32(0); i < spins; i++ {
		state := disableInterrupts()
		acquired := atomic.CompareAndSwapUint32(&l.locked, 0, 1)
		restoreInterrupts(state)
		if acquired {
			return true
		}
	}
	return false
}

func (l *interruptStateLock) Unlock() {
	atomic.StoreUint32(&l.locked, 0)
}
