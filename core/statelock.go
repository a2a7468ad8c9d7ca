package core

// StateLock guards cross-core access to motion/system state with a
// short-timeout-and-log-on-failure discipline: the motion core acquires
// with a bounded timeout and gives up rather than blocking a tick on
// contention. Two implementations exist behind the same split used for
// disableInterrupts/restoreInterrupts: a channel-based one for hosted Go
// (tests, the service core in a dual-goroutine simulation), and a spin
// bounded by an interrupt-disabled compare-and-swap on bare metal.
type StateLock interface {
	// TryLock attempts to acquire the lock, giving up after timeoutUS
	// microseconds. Returns false on timeout; the caller must not assume
	// the critical section ran.
	TryLock(timeoutUS uint32) bool
	Unlock()
}
