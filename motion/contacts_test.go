package motion

import "testing"

func TestContactSensorsRawActiveLow(t *testing.T) {
	gpio := newFakeGPIO()
	cs, err := NewContactSensors(gpio, pinStart, pinEnd, nil)
	if err != nil {
		t.Fatalf("NewContactSensors: %v", err)
	}

	// idle: pulled up, not pressed
	if cs.RawStart() {
		t.Errorf("expected start contact not pressed at idle-high")
	}

	gpio.pins[pinStart] = false // pressed, active-low
	if !cs.RawStart() {
		t.Errorf("expected start contact pressed when pin reads low")
	}
}

func TestContactSensorsMajorityVoteEarlyExit(t *testing.T) {
	gpio := newFakeGPIO()
	cs, _ := NewContactSensors(gpio, pinStart, pinEnd, nil)

	gpio.pins[pinEnd] = false // pressed
	if !cs.IsEndActive(5, 0) {
		t.Errorf("expected end contact debounced-active")
	}

	gpio.pins[pinEnd] = true // idle
	if cs.IsEndActive(5, 0) {
		t.Errorf("expected end contact debounced-inactive")
	}
}

func TestCheckAndCorrectDriftStart(t *testing.T) {
	if !CheckAndCorrectDriftStart(-5, 0, 30) {
		t.Errorf("expected soft drift detected within buffer")
	}
	if CheckAndCorrectDriftStart(-40, 0, 30) {
		t.Errorf("overrun beyond buffer should not be reported as soft drift")
	}
	if CheckAndCorrectDriftStart(5, 0, 30) {
		t.Errorf("no overrun should not be reported as drift")
	}
}

func TestCheckAndCorrectDriftEnd(t *testing.T) {
	if !CheckAndCorrectDriftEnd(8005, 8000, 30) {
		t.Errorf("expected soft drift detected within buffer")
	}
	if CheckAndCorrectDriftEnd(8100, 8000, 30) {
		t.Errorf("overrun beyond buffer should not be reported as soft drift")
	}
}

func TestCheckHardDriftStartOutsideZoneSkipsRead(t *testing.T) {
	gpio := newFakeGPIO()
	cs, _ := NewContactSensors(gpio, pinStart, pinEnd, nil)
	gpio.pins[pinStart] = false // pressed, but far from start so should be ignored
	pc := DefaultPlatformConstants()

	farStep := mmToSteps(pc.HardDriftTestZoneMM, pc.StepsPerMM) + 1000
	if cs.CheckHardDriftStart(farStep, pc) {
		t.Errorf("expected hard-drift check to skip the read far from the start")
	}
}

func TestCheckHardDriftStartInsideZoneReads(t *testing.T) {
	gpio := newFakeGPIO()
	cs, _ := NewContactSensors(gpio, pinStart, pinEnd, nil)
	gpio.pins[pinStart] = false // pressed
	pc := DefaultPlatformConstants()

	if !cs.CheckHardDriftStart(0, pc) {
		t.Errorf("expected hard-drift fault near start when contact is pressed")
	}
}
