//go:build tinygo

package core

import "sync/atomic"

var (
	systemTicksValue  uint32
	systemMillisValue uint32
	// hardwareTimerFunc is set by platform code to read the actual hardware timer.
	// When set, getSystemTicks() reads hardware directly instead of cached value.
	hardwareTimerFunc func() uint32
	// hardwareMillisFunc is the millisecond-clock equivalent.
	hardwareMillisFunc func() uint32
)

// getSystemTicks returns the current system ticks.
// If a hardware timer function is registered, reads hardware directly for accuracy.
// Otherwise falls back to cached value (for testing or platforms without direct access).
func getSystemTicks() uint32 {
	if hardwareTimerFunc != nil {
		return hardwareTimerFunc()
	}
	return atomic.LoadUint32(&systemTicksValue)
}

// setSystemTicks sets the system ticks (for cached mode)
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}

// getSystemMillis returns the current millisecond clock.
func getSystemMillis() uint32 {
	if hardwareMillisFunc != nil {
		return hardwareMillisFunc()
	}
	return atomic.LoadUint32(&systemMillisValue)
}

// setSystemMillis sets the millisecond clock (for cached mode)
func setSystemMillis(ms uint32) {
	atomic.StoreUint32(&systemMillisValue, ms)
}

// SetHardwareTimerFunc registers a function to read the hardware microsecond
// timer directly. Call during platform initialization before any timer
// operations; once set, GetTime() always returns actual hardware time.
func SetHardwareTimerFunc(f func() uint32) {
	hardwareTimerFunc = f
}

// SetHardwareMillisFunc registers a function to read the hardware
// millisecond clock directly.
func SetHardwareMillisFunc(f func() uint32) {
	hardwareMillisFunc = f
}
