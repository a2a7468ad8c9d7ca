package core

import "sync/atomic"

// shutdownFlag tracks a latched firmware-wide shutdown, tripped by a safety
// watchdog such as the calibration manager's step-count watchdog
// (motion.CalibrationManager.watchdogTrip). There are no ADC/I2C/SPI
// peripherals to quiesce, so this only latches the flag and logs the
// reason; callers that care (the motion
// engine's Process loop) should check IsShutdown and refuse to emit further
// steps once it trips.
var shutdownFlag uint32

// TryShutdown latches the firmware into a shutdown state and records why.
// Idempotent: subsequent calls after the first are no-ops.
func TryShutdown(reason string) {
	if !atomic.CompareAndSwapUint32(&shutdownFlag, 0, 1) {
		return
	}
	RecordTiming(EvtWatchdogShutdown, 0, GetTime(), 0, 0)
	DebugPrintln("[SHUTDOWN] " + reason)
}

// IsShutdown reports whether TryShutdown has been called.
func IsShutdown() bool {
	return atomic.LoadUint32(&shutdownFlag) != 0
}

// ResetShutdown clears the latched shutdown state. The motion engine calls
// it when a new calibration or return-to-start run begins.
func ResetShutdown() {
	atomic.StoreUint32(&shutdownFlag, 0)
}
