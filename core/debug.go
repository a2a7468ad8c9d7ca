package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	OID       uint8  // Object ID (controller tag, etc.)
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes for the motion engine's post-mortem ring buffer.
const (
	EvtStepEmit         = 1  // a single step pulse was issued
	EvtCycleComplete    = 2  // a VAET or oscillation cycle completed
	EvtCalibrationDone  = 3  // calibration reached FINISHED
	EvtSafetyFault      = 4  // hard-drift contact fired during motion
	EvtSoftDriftCorrect = 5  // soft-drift buffer overrun, auto-reversed
	EvtZoneTurnback     = 6  // a zone-effect random turnback latched or fired
	EvtStateTransition  = 7  // SystemState changed
	EvtSequenceAdvance  = 8  // sequencer moved to the next line/loop
	EvtResourceConflict = 9  // mutex acquisition timed out, command dropped
	EvtWatchdogShutdown = 10 // a watchdog trip latched core.TryShutdown
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine.
// Call this from main() after SetDebugWriter, on the service core only.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking).
// Safe to call from the motion core: drops the message rather than blocking.
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordTiming captures an event in the ring buffer. Non-blocking, ~20ns.
func RecordTiming(eventType, oid uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// DumpTimingRing outputs the timing ring buffer, oldest first. Call after an
// ERROR transition, from the service core.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")

	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		idx := (start + i) % TimingRingSize
		evt := &timingRing[idx]
		if evt.EventType == 0 {
			continue
		}

		var name string
		switch evt.EventType {
		case EvtStepEmit:
			name = "STEP"
		case EvtCycleComplete:
			name = "CYCLE_DONE"
		case EvtCalibrationDone:
			name = "CALIB_DONE"
		case EvtSafetyFault:
			name = "SAFETY_FAULT"
		case EvtSoftDriftCorrect:
			name = "SOFT_DRIFT"
		case EvtZoneTurnback:
			name = "ZONE_TURNBACK"
		case EvtStateTransition:
			name = "STATE_CHANGE"
		case EvtSequenceAdvance:
			name = "SEQ_ADVANCE"
		case EvtResourceConflict:
			name = "RESOURCE_CONFLICT"
		case EvtWatchdogShutdown:
			name = "WATCHDOG_SHUTDOWN"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TIMING] " + name +
			" tag=" + itoa(int(evt.OID)) +
			" clock=" + itoa(int(evt.Clock)) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer.
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
