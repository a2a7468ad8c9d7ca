package core

import "testing"

func TestRecordAndDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	RecordTiming(EvtStepEmit, 1, 100, 2, 3)
	RecordTiming(EvtWatchdogShutdown, 0, 200, 0, 0)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	DumpTimingRing()

	if len(lines) == 0 {
		t.Fatal("expected DumpTimingRing to write at least the header/footer lines")
	}
	foundStep, foundShutdown := false, false
	for _, l := range lines {
		if contains(l, "STEP") {
			foundStep = true
		}
		if contains(l, "WATCHDOG_SHUTDOWN") {
			foundShutdown = true
		}
	}
	if !foundStep {
		t.Error("expected a STEP line in the dump")
	}
	if !foundShutdown {
		t.Error("expected a WATCHDOG_SHUTDOWN line in the dump")
	}
}

func TestTimingRingWrapsAround(t *testing.T) {
	ClearTimingRing()
	for i := 0; i < TimingRingSize+5; i++ {
		RecordTiming(EvtStepEmit, 0, uint32(i), uint32(i), 0)
	}
	if timingRingHead != 5 {
		t.Errorf("timingRingHead = %d, want 5 after wrapping %d times past a %d-slot ring", timingRingHead, TimingRingSize+5, TimingRingSize)
	}
}

func TestClearTimingRing(t *testing.T) {
	RecordTiming(EvtStepEmit, 0, 1, 0, 0)
	ClearTimingRing()
	for i, evt := range timingRing {
		if evt.EventType != 0 {
			t.Fatalf("timingRing[%d] not cleared: %+v", i, evt)
		}
	}
	if timingRingHead != 0 {
		t.Errorf("timingRingHead = %d, want 0 after ClearTimingRing", timingRingHead)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
